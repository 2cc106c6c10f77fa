// Package gpx reads the GPX exports of Strava routes and keeps a local archive of them.
package gpx

import (
	"encoding/xml"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrNoPoints is returned when a document holds neither route nor track points.
var ErrNoPoints = errors.New("gpx has no points")

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `xml:"lat,attr"`
	Lon float64 `xml:"lon,attr"`
}

// BBox is a south/west/north/east bounding box.
type BBox struct {
	South, West, North, East float64
}

type document struct {
	Routes []struct {
		Points []Point `xml:"rtept"`
	} `xml:"rte"`
	Tracks []struct {
		Segments []struct {
			Points []Point `xml:"trkpt"`
		} `xml:"trkseg"`
	} `xml:"trk"`
}

// Track is the ordered point list of one GPX document.
type Track struct {
	Points []Point
}

// Parse decodes GPX text. Route points are preferred over track points.
func Parse(text string) (*Track, error) {
	var doc document
	if err := xml.NewDecoder(strings.NewReader(text)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode gpx: %w", err)
	}

	var pts []Point
	for _, r := range doc.Routes {
		pts = append(pts, r.Points...)
	}
	if len(pts) == 0 {
		for _, trk := range doc.Tracks {
			for _, seg := range trk.Segments {
				pts = append(pts, seg.Points...)
			}
		}
	}
	if len(pts) == 0 {
		return nil, ErrNoPoints
	}
	return &Track{Points: pts}, nil
}

// Endpoints returns the first and last point.
func (t *Track) Endpoints() (start, end Point) {
	return t.Points[0], t.Points[len(t.Points)-1]
}

// Sample keeps every step-th point and always the last one.
func (t *Track) Sample(step int) []Point {
	if step <= 1 {
		return t.Points
	}
	out := make([]Point, 0, len(t.Points)/step+2)
	for i := 0; i < len(t.Points); i += step {
		out = append(out, t.Points[i])
	}
	if last := t.Points[len(t.Points)-1]; out[len(out)-1] != last {
		out = append(out, last)
	}
	return out
}

// Bounds returns the bounding box of pts grown by expand degrees on each side.
func Bounds(pts []Point, expand float64) (BBox, bool) {
	if len(pts) == 0 {
		return BBox{}, false
	}
	b := BBox{South: math.Inf(1), West: math.Inf(1), North: math.Inf(-1), East: math.Inf(-1)}
	for _, p := range pts {
		b.South = math.Min(b.South, p.Lat)
		b.North = math.Max(b.North, p.Lat)
		b.West = math.Min(b.West, p.Lon)
		b.East = math.Max(b.East, p.Lon)
	}
	b.South -= expand
	b.West -= expand
	b.North += expand
	b.East += expand
	return b, true
}
