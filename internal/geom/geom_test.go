package geom

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
)

// axis-aligned box as a closed polygon
func box(minx, miny, maxx, maxy float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minx, miny}, {maxx, miny}, {maxx, maxy}, {minx, maxy}, {minx, miny},
	}}
}

func mustParse(t *testing.T, s string) orb.Geometry {
	t.Helper()
	g, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return g
}

func TestParse_InvalidWKT(t *testing.T) {
	_, err := Parse("POLYGONE ((0 0, 1 0, 1 1))")
	if !errors.Is(err, ErrInvalidWKT) {
		t.Fatalf("err=%v want ErrInvalidWKT", err)
	}
}

func TestIntersects_FootprintWithItself(t *testing.T) {
	fp := box(0, 0, 10, 10)
	ok, err := Evaluate(Intersects, fp, fp)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !ok {
		t.Fatal("footprint must intersect itself")
	}
}

func TestIntersects_TouchingBoundariesCount(t *testing.T) {
	a := box(0, 0, 10, 10)
	b := box(10, 0, 20, 10) // shares the x=10 edge only
	ok, err := Evaluate(Intersects, a, b)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !ok {
		t.Fatal("touching boundaries must intersect")
	}
}

func TestIntersects_Disjoint(t *testing.T) {
	ok, err := Evaluate(Intersects, box(0, 0, 1, 1), box(5, 5, 6, 6))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ok {
		t.Fatal("disjoint boxes must not intersect")
	}
}

func TestIntersects_EdgeOnlyCrossing(t *testing.T) {
	// thin cross shapes: no vertex of either polygon is inside the other
	horizontal := box(-10, -1, 10, 1)
	vertical := box(-1, -10, 1, 10)
	ok, err := Evaluate(Intersects, horizontal, vertical)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !ok {
		t.Fatal("crossing polygons must intersect")
	}
}

func TestIntersects_PointAndLineQueries(t *testing.T) {
	fp := box(0, 0, 10, 10)

	cases := []struct {
		name  string
		query orb.Geometry
		want  bool
	}{
		{"point inside", orb.Point{5, 5}, true},
		{"point on boundary", orb.Point{0, 5}, true},
		{"point outside", orb.Point{11, 5}, false},
		{"line through", orb.LineString{{-5, 5}, {15, 5}}, true},
		{"line outside", orb.LineString{{-5, -5}, {-1, -1}}, false},
		{"multipoint one inside", orb.MultiPoint{{50, 50}, {1, 1}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Evaluate(Intersects, tc.query, fp)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestContains_FootprintContainsItself(t *testing.T) {
	fp := box(0, 0, 10, 10)
	ok, err := Evaluate(Contains, fp, fp)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !ok {
		t.Fatal("a footprint must contain itself")
	}
}

func TestContains_InnerAndOverlapping(t *testing.T) {
	fp := box(0, 0, 10, 10)

	inner := box(2, 2, 4, 4)
	ok, err := Evaluate(Contains, inner, fp)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !ok {
		t.Fatal("inner box must be contained")
	}

	overlapping := box(5, 5, 15, 15)
	ok, err = Evaluate(Contains, overlapping, fp)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ok {
		t.Fatal("partially overlapping box must not be contained")
	}
}

func TestContains_NonPolygonQueryRejected(t *testing.T) {
	fp := box(0, 0, 10, 10)
	for _, q := range []orb.Geometry{
		orb.Point{5, 5},
		orb.LineString{{1, 1}, {2, 2}},
		orb.MultiPoint{{1, 1}},
	} {
		_, err := Evaluate(Contains, q, fp)
		if !errors.Is(err, ErrGeometryType) {
			t.Fatalf("query %s: err=%v want ErrGeometryType", q.GeoJSONType(), err)
		}
	}
}

func TestContains_HoleBreaksCoverage(t *testing.T) {
	fp := orb.Polygon{
		orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
		orb.Ring{{4, 4}, {4, 6}, {6, 6}, {6, 4}, {4, 4}}, // hole
	}
	query := box(3, 3, 7, 7) // straddles the hole
	ok, err := Evaluate(Contains, query, fp)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ok {
		t.Fatal("footprint with hole must not cover a query straddling the hole")
	}

	clear := box(1, 1, 3, 3)
	ok, err = Evaluate(Contains, clear, fp)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !ok {
		t.Fatal("query away from the hole must be covered")
	}
}

func TestContains_MultiPolygonFootprint(t *testing.T) {
	fp := orb.MultiPolygon{box(0, 0, 10, 10), box(20, 0, 30, 10)}

	ok, err := Evaluate(Contains, box(22, 2, 28, 8), fp)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !ok {
		t.Fatal("box inside second member must be contained")
	}

	// spans the gap between the members
	ok, err = Evaluate(Contains, box(5, 2, 25, 8), fp)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ok {
		t.Fatal("box spanning disjoint members must not be contained")
	}
}

func TestEvaluate_WKTQueries(t *testing.T) {
	fp := box(0, 0, 10, 10)

	g := mustParse(t, "POLYGON ((2 2, 8 2, 8 8, 2 8, 2 2))")
	ok, err := Evaluate(Contains, g, fp)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !ok {
		t.Fatal("parsed polygon must be contained")
	}

	g = mustParse(t, "POINT (5 5)")
	ok, err = Evaluate(Intersects, g, fp)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !ok {
		t.Fatal("parsed point must intersect")
	}
}

func TestBoundPrefilter_NeverFalseNegative(t *testing.T) {
	// bounds overlap but the exact shapes are disjoint: the prefilter must
	// fall through to the exact test and say false for the right reason
	tri := orb.Polygon{orb.Ring{{0, 0}, {10, 0}, {0, 10}, {0, 0}}}
	corner := box(8, 8, 9, 9) // inside tri's bound, outside tri
	ok, err := Evaluate(Intersects, corner, tri)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ok {
		t.Fatal("box outside the triangle must not intersect")
	}

	// and bounds that do intersect with intersecting shapes stay true
	ok, err = Evaluate(Intersects, box(1, 1, 3, 3), tri)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !ok {
		t.Fatal("box inside the triangle must intersect")
	}
}
