package geo

import (
	"encoding/binary"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"
)

// RouteFromLineString converts a 2D line string (X=lon, Y=lat) to a Route
func RouteFromLineString(ls *geom.LineString) Route {
	coords := ls.Coords()
	route := make(Route, 0, len(coords))
	for _, c := range coords {
		route = append(route, Point{Latitude: c.Y(), Longitude: c.X()})
	}
	return route
}

// LineString converts the route to a go-geom line string in lon/lat order
func (r Route) LineString() (*geom.LineString, error) {
	coords := make([]geom.Coord, 0, len(r))
	for _, p := range r {
		coords = append(coords, geom.Coord{p.Longitude, p.Latitude})
	}
	ls, err := geom.NewLineString(geom.XY).SetCoords(coords)
	if err != nil {
		return nil, fmt.Errorf("failed to build line string: %w", err)
	}
	return ls.SetSRID(4326), nil
}

// MarshalWKB encodes the route as little-endian WKB
func (r Route) MarshalWKB() ([]byte, error) {
	ls, err := r.LineString()
	if err != nil {
		return nil, err
	}
	b, err := wkb.Marshal(ls, binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("failed to encode route as WKB: %w", err)
	}
	return b, nil
}

// UnmarshalWKBRoute decodes a WKB line string into a Route
func UnmarshalWKBRoute(b []byte) (Route, error) {
	g, err := wkb.Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to decode WKB: %w", err)
	}
	ls, ok := g.(*geom.LineString)
	if !ok {
		return nil, fmt.Errorf("expected LineString geometry, got %T", g)
	}
	return RouteFromLineString(ls), nil
}

// DecodeGeoJSONRoutes reads a FeatureCollection and returns one Route per
// LineString feature. Other geometry types are rejected.
func DecodeGeoJSONRoutes(data []byte) ([]Route, error) {
	var fc geojson.FeatureCollection
	if err := fc.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("failed to parse GeoJSON: %w", err)
	}

	routes := make([]Route, 0, len(fc.Features))
	for i, f := range fc.Features {
		ls, ok := f.Geometry.(*geom.LineString)
		if !ok {
			return nil, fmt.Errorf("feature %d: expected LineString geometry, got %T", i, f.Geometry)
		}
		routes = append(routes, RouteFromLineString(ls))
	}
	return routes, nil
}
