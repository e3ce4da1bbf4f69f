// Package translator proxies a machine translation endpoint and caches
// results in redis, keyed by content hash and language pair.
package translator

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/UkraineNow-Intel/autoSA-backend/common/config"
	"github.com/UkraineNow-Intel/autoSA-backend/common/models"
	"github.com/UkraineNow-Intel/autoSA-backend/common/redis"
)

var ErrNotConfigured = errors.New("translation endpoint is not configured")

type Translator struct {
	cfg   config.TranslateConfig
	http  *http.Client
	cache *redis.RedisClient
}

// New builds the translator. cache may be nil; every request then goes to
// the endpoint.
func New(cfg config.TranslateConfig, cache *redis.RedisClient) *Translator {
	return &Translator{
		cfg:   cfg,
		http:  &http.Client{Timeout: 30 * time.Second},
		cache: cache,
	}
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}

// Translate returns text rendered in the target language.
func (t *Translator) Translate(ctx context.Context, text string, source, target models.Language) (string, error) {
	if t.cfg.Endpoint == "" {
		return "", ErrNotConfigured
	}

	key := cacheKey(text, source, target)
	if t.cache != nil {
		cached, err := t.cache.Get(ctx, key)
		if err == nil {
			return cached, nil
		}
		if !redis.IsCacheMiss(err) {
			log.Warn().Err(err).Msg("Translation cache read failed")
		}
	}

	payload, err := json.Marshal(translateRequest{
		Q:      text,
		Source: string(source),
		Target: string(target),
		Format: "text",
		APIKey: t.cfg.APIKey,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling translation endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading translation response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translation endpoint returned status %d: %s", resp.StatusCode, body)
	}

	var out translateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decoding translation response: %w", err)
	}

	if t.cache != nil {
		if err := t.cache.Set(ctx, key, out.TranslatedText, t.cfg.CacheTTL); err != nil {
			log.Warn().Err(err).Msg("Translation cache write failed")
		}
	}
	return out.TranslatedText, nil
}

func cacheKey(text string, source, target models.Language) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("translate:%s:%s:%s", source, target, hex.EncodeToString(sum[:]))
}
