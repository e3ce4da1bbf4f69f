package twitter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/UkraineNow-Intel/autoSA-backend/common/geometry"
	"github.com/UkraineNow-Intel/autoSA-backend/common/models"
)

// normalizeTweet projects one tweet into the canonical shape. The native
// tweet id is the external id. Tweets without an id, text, or creation
// time are dropped.
func normalizeTweet(tw Tweet, inc Includes) (models.NormalizedItem, bool) {
	if tw.ID == "" || tw.Text == "" || tw.CreatedAt.IsZero() {
		return models.NormalizedItem{}, false
	}

	username := tw.AuthorID
	for _, u := range inc.Users {
		if u.ID == tw.AuthorID && u.Username != "" {
			username = u.Username
			break
		}
	}

	lang := models.Language(strings.ToLower(tw.Lang))
	if !models.SupportedLanguage(lang) {
		lang = models.LanguageEN
	}

	item := models.NormalizedItem{
		ExternalID: tw.ID,
		Interface:  models.InterfaceTwitter,
		Origin:     username,
		URL:        fmt.Sprintf("https://twitter.com/%s/status/%s", username, tw.ID),
		MediaURL:   firstMediaURL(tw, inc),
		Text:       tw.Text,
		Language:   lang,
		Timestamp:  tw.CreatedAt.UTC(),
	}
	if loc, ok := tweetLocation(tw, inc); ok {
		item.Locations = []models.Location{loc}
	}
	return item, true
}

func firstMediaURL(tw Tweet, inc Includes) string {
	if len(tw.Attachments.MediaKeys) == 0 {
		return ""
	}
	key := tw.Attachments.MediaKeys[0]
	for _, m := range inc.Media {
		if m.MediaKey != key {
			continue
		}
		if m.URL != "" {
			return m.URL
		}
		return m.PreviewImageURL
	}
	return ""
}

// tweetLocation converts the geo payload: an exact coordinate passes
// through as a point, a place polygon gets its centroid computed, and a
// place that only carries a bounding box becomes the rectangle plus its
// centroid.
func tweetLocation(tw Tweet, inc Includes) (models.Location, bool) {
	var place *Place
	for i := range inc.Places {
		if inc.Places[i].ID == tw.Geo.PlaceID {
			place = &inc.Places[i]
			break
		}
	}

	name := ""
	if place != nil {
		name = place.FullName
	}

	if pt := tw.Geo.Coordinates; pt != nil && len(pt.Coordinates) == 2 {
		return models.Location{
			Name:   name,
			Point:  geometry.NewPoint(pt.Coordinates[0], pt.Coordinates[1]),
			Origin: models.LocationOriginGeotag,
		}, true
	}

	if place == nil {
		return models.Location{}, false
	}

	if g := place.Geo.Geometry; g != nil {
		switch strings.ToLower(g.Type) {
		case "point":
			var coords []float64
			if err := json.Unmarshal(g.Coordinates, &coords); err == nil && len(coords) == 2 {
				return models.Location{
					Name:   name,
					Point:  geometry.NewPoint(coords[0], coords[1]),
					Origin: models.LocationOriginGeotag,
				}, true
			}
		case "polygon":
			var rings [][][]float64
			if err := json.Unmarshal(g.Coordinates, &rings); err == nil && len(rings) > 0 {
				poly := geometry.PolygonFromRings(rings)
				return models.Location{
					Name:    name,
					Point:   poly.Centroid(),
					Polygon: poly,
					Origin:  models.LocationOriginGeotag,
				}, true
			}
		}
	}

	if len(place.Geo.BBox) == 4 {
		poly, err := geometry.PolygonFromBBox(place.Geo.BBox)
		if err != nil {
			return models.Location{}, false
		}
		return models.Location{
			Name:    name,
			Point:   poly.Centroid(),
			Polygon: poly,
			Origin:  models.LocationOriginGeotag,
		}, true
	}

	return models.Location{}, false
}
