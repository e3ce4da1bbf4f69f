// Package telegram ingests channel messages over MTProto. Configured
// channels are searched directly; configured keywords go through global
// search with peer names resolved from each response's lookup tables.
package telegram

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/UkraineNow-Intel/autoSA-backend/common/models"
	"github.com/UkraineNow-Intel/autoSA-backend/common/storage"
	"github.com/UkraineNow-Intel/autoSA-backend/providers"
)

// Key is the report key this provider runs under.
const Key = "telegram"

type Provider struct {
	client   Client
	channels []string
	keywords []string
	media    storage.MediaStorage
}

// New builds the provider. media may be nil, in which case attached media
// is not downloaded.
func New(client Client, channels, keywords []string, media storage.MediaStorage) *Provider {
	return &Provider{
		client:   client,
		channels: channels,
		keywords: keywords,
		media:    media,
	}
}

func (p *Provider) Key() string {
	return Key
}

// Fetch opens one session and drains every configured channel, then every
// configured keyword, into emit.
func (p *Provider) Fetch(ctx context.Context, win providers.TimeWindow, emit providers.EmitFunc) (int, error) {
	dropped := 0
	err := p.client.Connect(ctx, func(ctx context.Context, s Session) error {
		for _, channel := range p.channels {
			d, err := p.fetchChannel(ctx, s, channel, win, emit)
			dropped += d
			if err != nil {
				return fmt.Errorf("channel %s: %w", channel, err)
			}
		}
		for _, keyword := range p.keywords {
			d, err := p.fetchKeyword(ctx, s, keyword, win, emit)
			dropped += d
			if err != nil {
				return fmt.Errorf("keyword %q: %w", keyword, err)
			}
		}
		return nil
	})
	return dropped, err
}

// fetchChannel pages backward through one channel via the offset id
// cursor. Pages arrive newest first; paging stops at a short page or at
// the first message older than the window start.
func (p *Provider) fetchChannel(ctx context.Context, s Session, channel string, win providers.TimeWindow, emit providers.EmitFunc) (int, error) {
	dropped := 0
	var offsetID int64
	for {
		page, err := s.SearchPeer(ctx, channel, "", offsetID, searchPageSize)
		if err != nil {
			return dropped, err
		}

		pastWindow := false
		for _, msg := range page.Messages {
			if win.Start != nil && msg.Date.Before(*win.Start) {
				pastWindow = true
				break
			}
			d, err := p.handleMessage(ctx, s, msg, channel, win, emit)
			dropped += d
			if err != nil {
				return dropped, err
			}
			offsetID = msg.ID
		}

		if pastWindow || len(page.Messages) < searchPageSize {
			break
		}
	}
	log.Debug().Str("channel", channel).Int("dropped", dropped).Msg("Channel search finished")
	return dropped, nil
}

// fetchKeyword pages through global search via the rate cursor,
// terminating on an empty page or an exhausted cursor.
func (p *Provider) fetchKeyword(ctx context.Context, s Session, keyword string, win providers.TimeWindow, emit providers.EmitFunc) (int, error) {
	dropped := 0
	offsetRate := 0
	for {
		page, err := s.SearchGlobal(ctx, keyword, offsetRate, searchPageSize)
		if err != nil {
			return dropped, err
		}
		if len(page.Messages) == 0 {
			break
		}

		for _, msg := range page.Messages {
			origin := resolvePeer(msg.PeerID, page)
			d, err := p.handleMessage(ctx, s, msg, origin, win, emit)
			dropped += d
			if err != nil {
				return dropped, err
			}
		}

		if page.NextRate == nil {
			break
		}
		offsetRate = *page.NextRate
	}
	return dropped, nil
}

func (p *Provider) handleMessage(ctx context.Context, s Session, msg Message, origin string, win providers.TimeWindow, emit providers.EmitFunc) (int, error) {
	item, ok := p.normalize(ctx, s, msg, origin)
	if !ok || !win.Contains(item.Timestamp) {
		return 1, nil
	}
	if err := emit(item); err != nil {
		return 0, err
	}
	return 0, nil
}

// normalize projects one message into the canonical shape. The external
// id is origin:message_id. Messages without text and without media are
// dropped.
func (p *Provider) normalize(ctx context.Context, s Session, msg Message, origin string) (models.NormalizedItem, bool) {
	if origin == "" || msg.ID == 0 {
		return models.NormalizedItem{}, false
	}
	if msg.Text == "" && msg.Media == nil {
		return models.NormalizedItem{}, false
	}

	return models.NormalizedItem{
		ExternalID: fmt.Sprintf("%s:%d", origin, msg.ID),
		Interface:  models.InterfaceTelegram,
		Origin:     origin,
		URL:        fmt.Sprintf("https://t.me/%s/%d", origin, msg.ID),
		MediaURL:   p.cacheMedia(ctx, s, msg, origin),
		Text:       msg.Text,
		Language:   models.LanguageEN,
		Timestamp:  msg.Date.UTC(),
	}, true
}

// cacheMedia downloads the message thumbnail into storage under a
// deterministic name, skipping the download when the object already
// exists from an earlier run.
func (p *Provider) cacheMedia(ctx context.Context, s Session, msg Message, origin string) string {
	if p.media == nil || msg.Media == nil {
		return ""
	}
	objectName := fmt.Sprintf("%s_%d.jpg", origin, msg.ID)

	exists, err := p.media.Exists(ctx, objectName)
	if err == nil && exists {
		return p.media.URL(objectName)
	}

	content, err := s.DownloadThumb(ctx, msg.Media)
	if err != nil {
		log.Warn().Err(err).Str("object", objectName).Msg("Media download failed")
		return ""
	}
	url, err := p.media.Save(ctx, objectName, content, "image/jpeg")
	if err != nil {
		log.Warn().Err(err).Str("object", objectName).Msg("Media save failed")
		return ""
	}
	return url
}

// resolvePeer maps a numeric peer id to the name carried by the same
// response, preferring chats over users.
func resolvePeer(peerID int64, page Page) string {
	if name, ok := page.Chats[peerID]; ok && name != "" {
		return name
	}
	if name, ok := page.Users[peerID]; ok && name != "" {
		return name
	}
	if peerID == 0 {
		return ""
	}
	return strconv.FormatInt(peerID, 10)
}
