package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"

	"github.com/UkraineNow-Intel/autoSA-backend/common"
	"github.com/UkraineNow-Intel/autoSA-backend/common/config"
)

// mtprotoClient is the production Client, backed by gotd. It expects an
// already authorized session file; interactive login is done out of band.
type mtprotoClient struct {
	cfg config.TelegramConfig
}

func NewMTProtoClient(cfg config.TelegramConfig) (Client, error) {
	if cfg.AppID == 0 || cfg.AppHash == "" {
		return nil, fmt.Errorf("%w: telegram api id and hash", common.ErrMissingCredentials)
	}
	return &mtprotoClient{cfg: cfg}, nil
}

func (c *mtprotoClient) Connect(ctx context.Context, fn func(ctx context.Context, s Session) error) error {
	client := telegram.NewClient(c.cfg.AppID, c.cfg.AppHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: c.cfg.SessionFile},
	})
	return client.Run(ctx, func(ctx context.Context) error {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("checking auth status: %w", err)
		}
		if !status.Authorized {
			return errors.New("telegram session is not authorized")
		}
		return fn(ctx, &mtprotoSession{
			api:   client.API(),
			peers: map[string]tg.InputPeerClass{},
		})
	})
}

type mtprotoSession struct {
	api   *tg.Client
	peers map[string]tg.InputPeerClass
}

func (s *mtprotoSession) SearchPeer(ctx context.Context, peer, query string, offsetID int64, limit int) (Page, error) {
	input, err := s.resolvePeer(ctx, peer)
	if err != nil {
		return Page{}, err
	}

	res, err := s.api.MessagesSearch(ctx, &tg.MessagesSearchRequest{
		Peer:     input,
		Q:        query,
		Filter:   &tg.InputMessagesFilterEmpty{},
		OffsetID: int(offsetID),
		Limit:    limit,
	})
	if err != nil {
		return Page{}, fmt.Errorf("searching peer %s: %w", peer, err)
	}
	return pageFromResult(res)
}

func (s *mtprotoSession) SearchGlobal(ctx context.Context, query string, offsetRate, limit int) (Page, error) {
	res, err := s.api.MessagesSearchGlobal(ctx, &tg.MessagesSearchGlobalRequest{
		Q:          query,
		Filter:     &tg.InputMessagesFilterEmpty{},
		OffsetRate: offsetRate,
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      limit,
	})
	if err != nil {
		return Page{}, fmt.Errorf("searching globally for %q: %w", query, err)
	}
	return pageFromResult(res)
}

// resolvePeer turns a channel username into an input peer, memoized per
// session to keep resolve calls off the hot path.
func (s *mtprotoSession) resolvePeer(ctx context.Context, username string) (tg.InputPeerClass, error) {
	if input, ok := s.peers[username]; ok {
		return input, nil
	}

	resolved, err := s.api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{
		Username: username,
	})
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", username, err)
	}

	var input tg.InputPeerClass
	switch p := resolved.Peer.(type) {
	case *tg.PeerChannel:
		for _, chat := range resolved.Chats {
			if ch, ok := chat.(*tg.Channel); ok && ch.ID == p.ChannelID {
				input = &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}
			}
		}
	case *tg.PeerUser:
		for _, user := range resolved.Users {
			if u, ok := user.(*tg.User); ok && u.ID == p.UserID {
				input = &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash}
			}
		}
	}
	if input == nil {
		return nil, fmt.Errorf("no usable peer for %s", username)
	}

	s.peers[username] = input
	return input, nil
}

func (s *mtprotoSession) DownloadThumb(ctx context.Context, media *MediaRef) ([]byte, error) {
	mm, ok := media.Handle.(*tg.MessageMediaPhoto)
	if !ok {
		return nil, errors.New("media is not a photo")
	}
	photo, ok := mm.Photo.AsNotEmpty()
	if !ok {
		return nil, errors.New("photo payload is empty")
	}

	sizeType := ""
	for _, size := range photo.Sizes {
		if ps, ok := size.(*tg.PhotoSize); ok {
			sizeType = ps.Type
		}
	}
	if sizeType == "" {
		return nil, errors.New("photo has no downloadable size")
	}

	loc := &tg.InputPhotoFileLocation{
		ID:            photo.ID,
		AccessHash:    photo.AccessHash,
		FileReference: photo.FileReference,
		ThumbSize:     sizeType,
	}

	var buf bytes.Buffer
	if _, err := downloader.NewDownloader().Download(s.api, loc).Stream(ctx, &buf); err != nil {
		return nil, fmt.Errorf("downloading photo %d: %w", photo.ID, err)
	}
	return buf.Bytes(), nil
}

// pageFromResult lifts a wire search result into a Page.
func pageFromResult(res tg.MessagesMessagesClass) (Page, error) {
	var (
		page     Page
		messages []tg.MessageClass
		chats    []tg.ChatClass
		users    []tg.UserClass
	)

	switch m := res.(type) {
	case *tg.MessagesMessages:
		messages, chats, users = m.Messages, m.Chats, m.Users
	case *tg.MessagesMessagesSlice:
		messages, chats, users = m.Messages, m.Chats, m.Users
		if rate, ok := m.GetNextRate(); ok {
			page.NextRate = &rate
		}
	case *tg.MessagesChannelMessages:
		messages, chats, users = m.Messages, m.Chats, m.Users
	default:
		return Page{}, fmt.Errorf("unexpected search result %T", res)
	}

	page.Chats = map[int64]string{}
	for _, chat := range chats {
		switch c := chat.(type) {
		case *tg.Channel:
			if c.Username != "" {
				page.Chats[c.ID] = c.Username
			} else {
				page.Chats[c.ID] = c.Title
			}
		case *tg.Chat:
			page.Chats[c.ID] = c.Title
		}
	}

	page.Users = map[int64]string{}
	for _, user := range users {
		if u, ok := user.(*tg.User); ok {
			if u.Username != "" {
				page.Users[u.ID] = u.Username
			} else {
				page.Users[u.ID] = u.FirstName
			}
		}
	}

	for _, msg := range messages {
		m, ok := msg.(*tg.Message)
		if !ok {
			continue
		}
		out := Message{
			ID:     int64(m.ID),
			PeerID: peerID(m.PeerID),
			Date:   time.Unix(int64(m.Date), 0).UTC(),
			Text:   m.Message,
		}
		if media, ok := m.GetMedia(); ok {
			if photo, isPhoto := media.(*tg.MessageMediaPhoto); isPhoto {
				out.Media = &MediaRef{Handle: photo}
			}
		}
		page.Messages = append(page.Messages, out)
	}
	return page, nil
}

func peerID(peer tg.PeerClass) int64 {
	switch p := peer.(type) {
	case *tg.PeerChannel:
		return p.ChannelID
	case *tg.PeerChat:
		return p.ChatID
	case *tg.PeerUser:
		return p.UserID
	}
	return 0
}
