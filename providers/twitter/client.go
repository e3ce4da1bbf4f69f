package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/UkraineNow-Intel/autoSA-backend/common/config"
	"github.com/UkraineNow-Intel/autoSA-backend/providers"
)

// pageSize is the maximum the recent search endpoint allows per page.
const pageSize = 100

// Client is a thin wrapper over the v2 recent search endpoint.
type Client struct {
	http    *http.Client
	baseURL string
	bearer  string
}

func NewClient(cfg config.TwitterConfig, timeout time.Duration) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: cfg.BaseURL,
		bearer:  cfg.BearerToken,
	}
}

// Tweet is one item of a search response.
type Tweet struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Lang        string    `json:"lang"`
	AuthorID    string    `json:"author_id"`
	CreatedAt   time.Time `json:"created_at"`
	Attachments struct {
		MediaKeys []string `json:"media_keys"`
	} `json:"attachments"`
	Geo struct {
		PlaceID     string    `json:"place_id"`
		Coordinates *GeoPoint `json:"coordinates"`
	} `json:"geo"`
}

// GeoPoint is an exact coordinate attached to a tweet.
type GeoPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type Media struct {
	MediaKey        string `json:"media_key"`
	Type            string `json:"type"`
	URL             string `json:"url"`
	PreviewImageURL string `json:"preview_image_url"`
}

// Place is an expanded place payload. Geometry arrives either as a
// bounding box or as a full GeoJSON geometry, sometimes both.
type Place struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Geo      struct {
		Type     string       `json:"type"`
		BBox     []float64    `json:"bbox"`
		Geometry *GeoGeometry `json:"geometry"`
	} `json:"geo"`
}

type GeoGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

type Includes struct {
	Users  []User  `json:"users"`
	Media  []Media `json:"media"`
	Places []Place `json:"places"`
}

type SearchResponse struct {
	Data     []Tweet  `json:"data"`
	Includes Includes `json:"includes"`
	Meta     struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

// SearchRecent runs one page of a recent search. nextToken is empty for
// the first page.
func (c *Client) SearchRecent(ctx context.Context, query string, win providers.TimeWindow, nextToken string) (SearchResponse, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("max_results", strconv.Itoa(pageSize))
	params.Set("tweet.fields", "created_at,lang,author_id,geo,attachments")
	params.Set("expansions", "author_id,attachments.media_keys,geo.place_id")
	params.Set("media.fields", "url,preview_image_url")
	params.Set("place.fields", "full_name,geo")
	if win.Start != nil {
		params.Set("start_time", win.Start.UTC().Format(time.RFC3339))
	}
	if win.End != nil {
		params.Set("end_time", win.End.UTC().Format(time.RFC3339))
	}
	if nextToken != "" {
		params.Set("next_token", nextToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tweets/search/recent?"+params.Encode(), nil)
	if err != nil {
		return SearchResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.bearer)

	resp, err := c.http.Do(req)
	if err != nil {
		return SearchResponse{}, fmt.Errorf("searching tweets: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return SearchResponse{}, fmt.Errorf("reading search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return SearchResponse{}, fmt.Errorf("search returned status %d: %s", resp.StatusCode, body)
	}

	var out SearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return SearchResponse{}, fmt.Errorf("decoding search response: %w", err)
	}
	return out, nil
}
