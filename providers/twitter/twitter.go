// Package twitter ingests tweets from the accounts listed in the sources
// configuration through the v2 recent search API.
package twitter

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/UkraineNow-Intel/autoSA-backend/common"
	"github.com/UkraineNow-Intel/autoSA-backend/common/config"
	"github.com/UkraineNow-Intel/autoSA-backend/providers"
)

// Key is the report key this provider runs under.
const Key = "twitter"

type Provider struct {
	accounts []string
	client   *Client
}

func New(cfg config.TwitterConfig, accounts []string, timeout time.Duration) (*Provider, error) {
	if cfg.BearerToken == "" {
		return nil, fmt.Errorf("%w: twitter bearer token", common.ErrMissingCredentials)
	}
	return &Provider{
		accounts: accounts,
		client:   NewClient(cfg, timeout),
	}, nil
}

func (p *Provider) Key() string {
	return Key
}

// Fetch pages through every packed account query and emits the tweets
// that normalize cleanly.
func (p *Provider) Fetch(ctx context.Context, win providers.TimeWindow, emit providers.EmitFunc) (int, error) {
	dropped := 0
	for _, query := range BuildQueries(p.accounts, maxQueryLen) {
		nextToken := ""
		for {
			resp, err := p.client.SearchRecent(ctx, query, win, nextToken)
			if err != nil {
				return dropped, err
			}

			for _, tweet := range resp.Data {
				item, ok := normalizeTweet(tweet, resp.Includes)
				if !ok {
					dropped++
					continue
				}
				if err := emit(item); err != nil {
					return dropped, err
				}
			}

			if resp.Meta.NextToken == "" {
				break
			}
			nextToken = resp.Meta.NextToken
		}
		log.Debug().Str("query", query).Msg("Tweet query exhausted")
	}
	return dropped, nil
}
