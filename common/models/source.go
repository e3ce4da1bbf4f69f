package models

import (
	"time"

	"github.com/UkraineNow-Intel/autoSA-backend/common/geometry"
)

// Interface identifies the kind of origin a source was ingested from.
type Interface string

const (
	InterfaceWebsite  Interface = "website"
	InterfaceTwitter  Interface = "twitter"
	InterfaceTelegram Interface = "telegram"
	InterfaceAPI      Interface = "api"
)

// Language codes supported by the store. Anything else is normalized to
// LanguageEN by the providers.
type Language string

const (
	LanguageEN Language = "en"
	LanguageRU Language = "ru"
	LanguageUK Language = "uk"
)

// SupportedLanguage reports whether lang is one of the store languages.
func SupportedLanguage(lang Language) bool {
	switch lang {
	case LanguageEN, LanguageRU, LanguageUK:
		return true
	}
	return false
}

// LocationOrigin records how a location was attached to a source.
type LocationOrigin string

const (
	LocationOriginGeotag   LocationOrigin = "geotag"
	LocationOriginText     LocationOrigin = "text"
	LocationOriginOperator LocationOrigin = "operator"
)

// ConflictPolicy selects what a bulk upsert does when an incoming row
// collides with an existing one on external_id.
type ConflictPolicy string

const (
	// ConflictUpdate overwrites all fields of the existing row.
	ConflictUpdate ConflictPolicy = "update"
	// ConflictIgnore keeps the existing row and drops the incoming one.
	ConflictIgnore ConflictPolicy = "ignore"
)

// Source is a single ingested item of information: a tweet, a scraped
// article, a channel message. external_id is the sole deduplication key
// across all providers.
type Source struct {
	ID           int64         `json:"id" db:"id"`
	ExternalID   string        `json:"external_id" db:"external_id"`
	Interface    Interface     `json:"interface" db:"interface"`
	Origin       string        `json:"origin" db:"origin"`
	URL          string        `json:"url" db:"url"`
	MediaURL     string        `json:"media_url" db:"media_url"`
	Headline     string        `json:"headline" db:"headline"`
	Text         string        `json:"text" db:"text"`
	Language     Language      `json:"language" db:"language"`
	Pinned       bool          `json:"pinned" db:"pinned"`
	Deleted      bool          `json:"deleted" db:"deleted"`
	Timestamp    time.Time     `json:"timestamp" db:"timestamp"`
	CreatedAt    time.Time     `json:"timestamp_created" db:"created_at"`
	UpdatedAt    time.Time     `json:"timestamp_updated" db:"updated_at"`
	Tags         []string      `json:"tags"`
	Translations []Translation `json:"translations"`
	Locations    []Location    `json:"locations"`
}

// Translation is a translated rendition of a source text. Owned by the
// parent source; updates replace the whole set.
type Translation struct {
	ID       int64    `json:"id" db:"id"`
	SourceID int64    `json:"source_id" db:"source_id"`
	Language Language `json:"language" db:"language"`
	Text     string   `json:"text" db:"text"`
}

// Location is a geographic reference attached to a source. Point and
// polygon may coexist (a polygon and its centroid); either may be nil.
type Location struct {
	ID       int64             `json:"id" db:"id"`
	SourceID int64             `json:"source_id" db:"source_id"`
	Name     string            `json:"name" db:"name"`
	Point    *geometry.Point   `json:"point"`
	Polygon  *geometry.Polygon `json:"polygon"`
	Origin   LocationOrigin    `json:"origin" db:"origin"`
}

// NormalizedItem is the canonical projection of a provider payload. It is
// transient: it exists only between a provider fetch and the upsert that
// persists it.
type NormalizedItem struct {
	ExternalID string     `json:"external_id"`
	Interface  Interface  `json:"interface"`
	Origin     string     `json:"origin"`
	URL        string     `json:"url"`
	MediaURL   string     `json:"media_url"`
	Headline   string     `json:"headline"`
	Text       string     `json:"text"`
	Language   Language   `json:"language"`
	Timestamp  time.Time  `json:"timestamp"`
	Locations  []Location `json:"locations,omitempty"`
}
