// Package geom evaluates spatial predicates between query geometries and
// item footprints. Coordinates are treated as planar lon/lat (EPSG:4326);
// there is no antimeridian wraparound handling.
package geom

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/planar"
)

type Predicate string

const (
	Intersects Predicate = "intersects"
	Contains   Predicate = "contains"
)

var (
	// ErrInvalidWKT reports unparseable well-known text input.
	ErrInvalidWKT = errors.New("invalid WKT geometry")

	// ErrGeometryType reports a query geometry type the predicate does not
	// accept (contains requires a polygon or multipolygon).
	ErrGeometryType = errors.New("unsupported geometry type for predicate")
)

// Parse decodes a WKT string into a geometry.
func Parse(s string) (orb.Geometry, error) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWKT, err)
	}
	return g, nil
}

// Evaluate reports whether the query geometry matches the item footprint
// under the given predicate. The footprint must be a polygon or
// multipolygon; for Contains the query must be polygonal as well.
func Evaluate(pred Predicate, query, footprint orb.Geometry) (bool, error) {
	if !isPolygonal(footprint) {
		return false, fmt.Errorf("%w: footprint is %s", ErrGeometryType, geometryType(footprint))
	}

	switch pred {
	case Intersects:
		return intersects(query, footprint), nil
	case Contains:
		if !isPolygonal(query) {
			return false, fmt.Errorf("%w: contains requires POLYGON or MULTIPOLYGON, got %s",
				ErrGeometryType, geometryType(query))
		}
		return covers(footprint, query), nil
	default:
		return false, fmt.Errorf("unknown predicate %q", pred)
	}
}

func isPolygonal(g orb.Geometry) bool {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return true
	}
	return false
}

func geometryType(g orb.Geometry) string {
	if g == nil {
		return "nil"
	}
	return g.GeoJSONType()
}

// intersects reports whether the query geometry shares at least one point
// with the polygonal footprint. Boundary touches count.
func intersects(query, footprint orb.Geometry) bool {
	// bound-disjoint rejection only; overlapping bounds still need the
	// exact test.
	if !query.Bound().Intersects(footprint.Bound()) {
		return false
	}

	switch q := query.(type) {
	case orb.Point:
		return polygonalContainsPoint(footprint, q)
	case orb.MultiPoint:
		for _, p := range q {
			if polygonalContainsPoint(footprint, p) {
				return true
			}
		}
		return false
	case orb.LineString:
		return lineIntersectsPolygonal(q, footprint)
	case orb.MultiLineString:
		for _, ls := range q {
			if lineIntersectsPolygonal(ls, footprint) {
				return true
			}
		}
		return false
	case orb.Ring:
		return intersects(orb.Polygon{q}, footprint)
	case orb.Polygon:
		return polygonalsIntersect(q, footprint)
	case orb.MultiPolygon:
		for _, p := range q {
			if polygonalsIntersect(p, footprint) {
				return true
			}
		}
		return false
	case orb.Bound:
		return intersects(q.ToPolygon(), footprint)
	case orb.Collection:
		for _, g := range q {
			if intersects(g, footprint) {
				return true
			}
		}
		return false
	}
	return false
}

func polygonalContainsPoint(g orb.Geometry, p orb.Point) bool {
	switch t := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(t, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(t, p)
	}
	return false
}

func polygonalRings(g orb.Geometry) []orb.Ring {
	switch t := g.(type) {
	case orb.Polygon:
		return t
	case orb.MultiPolygon:
		var rings []orb.Ring
		for _, p := range t {
			rings = append(rings, p...)
		}
		return rings
	}
	return nil
}

func lineIntersectsPolygonal(ls orb.LineString, footprint orb.Geometry) bool {
	for _, p := range ls {
		if polygonalContainsPoint(footprint, p) {
			return true
		}
	}
	for i := 0; i+1 < len(ls); i++ {
		for _, ring := range polygonalRings(footprint) {
			if segmentIntersectsRing(ls[i], ls[i+1], ring) {
				return true
			}
		}
	}
	return false
}

func polygonalsIntersect(a orb.Polygon, b orb.Geometry) bool {
	for _, ring := range a {
		for _, p := range ring {
			if polygonalContainsPoint(b, p) {
				return true
			}
		}
	}
	for _, ring := range polygonalRings(b) {
		for _, p := range ring {
			if planar.PolygonContains(a, p) {
				return true
			}
		}
	}
	// edge-only crossings (no vertex of either inside the other)
	for _, ra := range a {
		for ai, an := 0, segmentCount(ra); ai < an; ai++ {
			a1, a2 := segmentAt(ra, ai)
			for _, rb := range polygonalRings(b) {
				if segmentIntersectsRing(a1, a2, rb) {
					return true
				}
			}
		}
	}
	return false
}

// covers reports whether the footprint completely covers the polygonal
// query geometry (closed containment; shared boundaries are allowed).
func covers(footprint, query orb.Geometry) bool {
	if !boundCovers(footprint.Bound(), query.Bound()) {
		return false
	}

	switch q := query.(type) {
	case orb.Polygon:
		return polygonCoveredBy(q, footprint)
	case orb.MultiPolygon:
		for _, p := range q {
			if !polygonCoveredBy(p, footprint) {
				return false
			}
		}
		return true
	}
	return false
}

func polygonCoveredBy(q orb.Polygon, footprint orb.Geometry) bool {
	switch fp := footprint.(type) {
	case orb.Polygon:
		return polygonCoveredByPolygon(q, fp)
	case orb.MultiPolygon:
		// members of a valid multipolygon are disjoint, so the query must
		// sit entirely inside one of them
		for _, p := range fp {
			if polygonCoveredByPolygon(q, p) {
				return true
			}
		}
		return false
	}
	return false
}

// polygonCoveredByPolygon samples query ring vertices and edge midpoints
// against the footprint and rejects proper edge crossings. A concave
// footprint notch that touches a query edge only between sample points,
// without crossing it, can go undetected; raster footprints are rectangles
// or near-rectangles, where the sampling is exact.
func polygonCoveredByPolygon(q, fp orb.Polygon) bool {
	// every vertex and edge midpoint of the query must lie in the
	// footprint (boundary inclusive)
	for _, ring := range q {
		for i, n := 0, segmentCount(ring); i < n; i++ {
			p1, p2 := segmentAt(ring, i)
			if !planar.PolygonContains(fp, p1) {
				return false
			}
			mid := orb.Point{(p1[0] + p2[0]) / 2, (p1[1] + p2[1]) / 2}
			if !planar.PolygonContains(fp, mid) {
				return false
			}
		}
	}
	// no query edge may cross through the footprint boundary
	for _, qr := range q {
		for qi, qn := 0, segmentCount(qr); qi < qn; qi++ {
			q1, q2 := segmentAt(qr, qi)
			for _, fr := range fp {
				for fi, fn := 0, segmentCount(fr); fi < fn; fi++ {
					f1, f2 := segmentAt(fr, fi)
					if segmentsProperlyCross(q1, q2, f1, f2) {
						return false
					}
				}
			}
		}
	}
	// no footprint hole may poke into the query interior
	if len(q) > 0 {
		outer := orb.Polygon{q[0]}
		for _, hole := range fp[1:] {
			for _, p := range hole {
				if planar.PolygonContains(outer, p) && !pointOnRing(p, q[0]) {
					return false
				}
			}
		}
	}
	return true
}

func boundCovers(outer, inner orb.Bound) bool {
	return outer.Min[0] <= inner.Min[0] && outer.Min[1] <= inner.Min[1] &&
		outer.Max[0] >= inner.Max[0] && outer.Max[1] >= inner.Max[1]
}

// segmentCount returns the number of edges in a ring, closing it
// implicitly when the last point does not repeat the first.
func segmentCount(r orb.Ring) int {
	if len(r) < 2 {
		return 0
	}
	if r[0] == r[len(r)-1] {
		return len(r) - 1
	}
	return len(r)
}

func segmentAt(r orb.Ring, i int) (orb.Point, orb.Point) {
	return r[i], r[(i+1)%len(r)]
}

func segmentIntersectsRing(a, b orb.Point, r orb.Ring) bool {
	for i, n := 0, segmentCount(r); i < n; i++ {
		c, d := segmentAt(r, i)
		if segmentsIntersect(a, b, c, d) {
			return true
		}
	}
	return false
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

func onSegment(a, b, p orb.Point) bool {
	return min(a[0], b[0]) <= p[0] && p[0] <= max(a[0], b[0]) &&
		min(a[1], b[1]) <= p[1] && p[1] <= max(a[1], b[1])
}

// segmentsIntersect reports whether segments ab and cd share any point,
// endpoint touches and collinear overlaps included.
func segmentsIntersect(a, b, c, d orb.Point) bool {
	d1 := cross(c, d, a)
	d2 := cross(c, d, b)
	d3 := cross(a, b, c)
	d4 := cross(a, b, d)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	if d1 == 0 && onSegment(c, d, a) {
		return true
	}
	if d2 == 0 && onSegment(c, d, b) {
		return true
	}
	if d3 == 0 && onSegment(a, b, c) {
		return true
	}
	if d4 == 0 && onSegment(a, b, d) {
		return true
	}
	return false
}

// segmentsProperlyCross reports a crossing interior to both segments;
// touches at endpoints or collinear overlaps do not count.
func segmentsProperlyCross(a, b, c, d orb.Point) bool {
	d1 := cross(c, d, a)
	d2 := cross(c, d, b)
	d3 := cross(a, b, c)
	d4 := cross(a, b, d)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

func pointOnRing(p orb.Point, r orb.Ring) bool {
	for i, n := 0, segmentCount(r); i < n; i++ {
		a, b := segmentAt(r, i)
		if cross(a, b, p) == 0 && onSegment(a, b, p) {
			return true
		}
	}
	return false
}
