// Package geometry holds the geometry payloads carried by source locations.
// Points and polygons travel through the API as lowercase GeoJSON-style
// objects and are serialized to WKT text before hitting the store.
package geometry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/planar"
)

var ErrUnknownGeometry = errors.New("unknown geometry type")

// Point wraps an orb.Point ([longitude, latitude]).
type Point struct {
	orb.Point
}

// Polygon wraps an orb.Polygon (outer ring plus optional holes).
type Polygon struct {
	orb.Polygon
}

type geoJSON struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

func NewPoint(lon, lat float64) *Point {
	return &Point{Point: orb.Point{lon, lat}}
}

// MarshalJSON renders the point as {"type":"point","coordinates":[x,y]}.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal(geoJSONOut{Type: "point", Coordinates: p.Point})
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var raw geoJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if !strings.EqualFold(raw.Type, "point") {
		return fmt.Errorf("%w: %q, want point", ErrUnknownGeometry, raw.Type)
	}
	return json.Unmarshal(raw.Coordinates, &p.Point)
}

// WKT returns the store text representation, e.g. POINT(30.72 46.48).
func (p Point) WKT() string {
	return wkt.MarshalString(p.Point)
}

func (p Polygon) MarshalJSON() ([]byte, error) {
	return json.Marshal(geoJSONOut{Type: "polygon", Coordinates: p.Polygon})
}

func (p *Polygon) UnmarshalJSON(data []byte) error {
	var raw geoJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if !strings.EqualFold(raw.Type, "polygon") {
		return fmt.Errorf("%w: %q, want polygon", ErrUnknownGeometry, raw.Type)
	}
	return json.Unmarshal(raw.Coordinates, &p.Polygon)
}

func (p Polygon) WKT() string {
	return wkt.MarshalString(p.Polygon)
}

// Centroid returns the area centroid of the polygon.
func (p Polygon) Centroid() *Point {
	c, _ := planar.CentroidArea(p.Polygon)
	return &Point{Point: c}
}

// PolygonFromBBox builds a closed rectangle from a [west, south, east,
// north] bounding box.
func PolygonFromBBox(bbox []float64) (*Polygon, error) {
	if len(bbox) != 4 {
		return nil, fmt.Errorf("bounding box needs 4 values, got %d", len(bbox))
	}
	b := orb.Bound{
		Min: orb.Point{bbox[0], bbox[1]},
		Max: orb.Point{bbox[2], bbox[3]},
	}
	return &Polygon{Polygon: b.ToPolygon()}, nil
}

// PolygonFromRings builds a polygon from raw GeoJSON ring coordinates.
func PolygonFromRings(rings [][][]float64) *Polygon {
	poly := make(orb.Polygon, 0, len(rings))
	for _, ring := range rings {
		r := make(orb.Ring, len(ring))
		for i, pt := range ring {
			if len(pt) >= 2 {
				r[i] = orb.Point{pt[0], pt[1]}
			}
		}
		poly = append(poly, r)
	}
	return &Polygon{Polygon: poly}
}

// ParsePointWKT reads a point back from its store representation.
func ParsePointWKT(s string) (*Point, error) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, err
	}
	pt, ok := g.(orb.Point)
	if !ok {
		return nil, fmt.Errorf("%w: %T, want point", ErrUnknownGeometry, g)
	}
	return &Point{Point: pt}, nil
}

// ParsePolygonWKT reads a polygon back from its store representation.
func ParsePolygonWKT(s string) (*Polygon, error) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, err
	}
	poly, ok := g.(orb.Polygon)
	if !ok {
		return nil, fmt.Errorf("%w: %T, want polygon", ErrUnknownGeometry, g)
	}
	return &Polygon{Polygon: poly}, nil
}

type geoJSONOut struct {
	Type        string      `json:"type"`
	Coordinates interface{} `json:"coordinates"`
}
