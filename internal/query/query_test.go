package query

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/paulmach/orb"

	"github.com/rastac/rastac/internal/catalog"
	"github.com/rastac/rastac/internal/geom"
)

func box(minX, minY, maxX, maxY float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}}
}

func wktBox(minX, minY, maxX, maxY float64) string {
	return fmt.Sprintf("POLYGON((%g %g,%g %g,%g %g,%g %g,%g %g))",
		minX, minY, maxX, minY, maxX, maxY, minX, maxY, minX, minY)
}

func seed(t *testing.T, store catalog.Store, coll, id string, fp orb.Polygon, res float64) {
	t.Helper()
	it, err := catalog.NewItem(id, coll, fp,
		map[string]any{"spatial_resolution": res}, "/data/"+id)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.AddItem(context.Background(), coll, it); err != nil {
		t.Fatal(err)
	}
}

func newEngine(t *testing.T, store catalog.Store) *Engine {
	t.Helper()
	e, err := NewEngine(store, 16)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

// The contains+sort+limit scenario: three footprints of 10x10, 5x5 and
// 20x20 with resolutions 2.0, 0.5 and 5.0. Query box 4x4 sits inside all
// three; sorted ascending by resolution with limit 1 the 5x5 item wins.
func TestContainsSortLimitScenario(t *testing.T) {
	store := catalog.NewMemoryStore()
	seed(t, store, "scenes", "mid", box(0, 0, 10, 10), 2.0)
	seed(t, store, "scenes", "fine", box(0, 0, 5, 5), 0.5)
	seed(t, store, "scenes", "coarse", box(0, 0, 20, 20), 5.0)

	e := newEngine(t, store)
	got, err := e.Collection(context.Background(), "scenes", Params{
		Contains: wktBox(1, 1, 4, 4),
		SortBy:   "spatial_resolution",
		Limit:    1,
		LimitSet: true,
	})
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	if len(got) != 1 || got[0].ID != "fine" {
		t.Fatalf("got %v, want the fine item", got)
	}
}

func TestUnfilteredReturnsAll(t *testing.T) {
	store := catalog.NewMemoryStore()
	seed(t, store, "c", "a", box(0, 0, 1, 1), 1)
	seed(t, store, "c", "b", box(5, 5, 6, 6), 2)

	e := newEngine(t, store)
	got, err := e.Collection(context.Background(), "c", Params{})
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d items, want 2", len(got))
	}
}

func TestFilterIdempotent(t *testing.T) {
	store := catalog.NewMemoryStore()
	seed(t, store, "c", "in", box(0, 0, 2, 2), 1)
	seed(t, store, "c", "out", box(50, 50, 60, 60), 1)

	e := newEngine(t, store)
	p := Params{Intersects: wktBox(0, 0, 3, 3)}
	first, err := e.Collection(context.Background(), "c", p)
	if err != nil {
		t.Fatalf("first query: %v", err)
	}
	second, err := e.Collection(context.Background(), "c", p)
	if err != nil {
		t.Fatalf("second query: %v", err)
	}
	if len(first) != 1 || len(second) != 1 || first[0].ID != second[0].ID {
		t.Fatalf("filter not idempotent: %v then %v", first, second)
	}
}

func TestStableSortPreservesInsertionOrderOnTies(t *testing.T) {
	store := catalog.NewMemoryStore()
	seed(t, store, "c", "first", box(0, 0, 2, 2), 1)
	seed(t, store, "c", "second", box(0, 0, 2, 2), 1)
	seed(t, store, "c", "third", box(0, 0, 2, 2), 1)

	e := newEngine(t, store)
	got, err := e.Collection(context.Background(), "c", Params{
		Intersects: wktBox(0, 0, 5, 5),
		SortBy:     "spatial_resolution",
	})
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	for i, want := range []string{"first", "second", "third"} {
		if got[i].ID != want {
			t.Fatalf("got[%d] = %q, want %q", i, got[i].ID, want)
		}
	}
}

func TestSortDirections(t *testing.T) {
	store := catalog.NewMemoryStore()
	seed(t, store, "c", "coarse", box(0, 0, 2, 2), 10)
	seed(t, store, "c", "fine", box(0, 0, 2, 2), 1)

	e := newEngine(t, store)
	base := Params{Intersects: wktBox(0, 0, 5, 5)}

	for _, tc := range []struct {
		sortBy string
		first  string
	}{
		{"spatial_resolution", "fine"},
		{"+spatial_resolution", "fine"},
		{"-spatial_resolution", "coarse"},
	} {
		p := base
		p.SortBy = tc.sortBy
		got, err := e.Collection(context.Background(), "c", p)
		if err != nil {
			t.Fatalf("sortby %q: %v", tc.sortBy, err)
		}
		if got[0].ID != tc.first {
			t.Fatalf("sortby %q: first = %q, want %q", tc.sortBy, got[0].ID, tc.first)
		}
	}
}

func TestLimitIsMinOfNAndMatches(t *testing.T) {
	store := catalog.NewMemoryStore()
	for i := 0; i < 3; i++ {
		seed(t, store, "c", fmt.Sprintf("it-%d", i), box(0, 0, 2, 2), 1)
	}
	e := newEngine(t, store)
	base := Params{Intersects: wktBox(0, 0, 5, 5)}

	p := base
	p.Limit, p.LimitSet = 2, true
	got, err := e.Collection(context.Background(), "c", p)
	if err != nil || len(got) != 2 {
		t.Fatalf("limit 2: got %d, err %v", len(got), err)
	}

	p.Limit = 10
	got, err = e.Collection(context.Background(), "c", p)
	if err != nil || len(got) != 3 {
		t.Fatalf("limit 10: got %d, err %v", len(got), err)
	}
}

func TestParamValidation(t *testing.T) {
	store := catalog.NewMemoryStore()
	seed(t, store, "c", "a", box(0, 0, 1, 1), 1)
	e := newEngine(t, store)
	ctx := context.Background()

	cases := []struct {
		name string
		p    Params
		want error
	}{
		{"sort without filter", Params{SortBy: "spatial_resolution"}, ErrFilterRequired},
		{"limit without filter", Params{Limit: 3, LimitSet: true}, ErrFilterRequired},
		{"zero limit", Params{Intersects: wktBox(0, 0, 1, 1), Limit: 0, LimitSet: true}, ErrInvalidLimit},
		{"negative limit", Params{Intersects: wktBox(0, 0, 1, 1), Limit: -2, LimitSet: true}, ErrInvalidLimit},
		{"bad sort key", Params{Intersects: wktBox(0, 0, 1, 1), SortBy: "cloud_cover"}, ErrUnsupportedSortKey},
		{"both predicates", Params{Intersects: wktBox(0, 0, 1, 1), Contains: wktBox(0, 0, 1, 1)}, ErrConflictingPredicates},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := e.Collection(ctx, "c", tc.p); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestBadWKTAndUnknownCollection(t *testing.T) {
	store := catalog.NewMemoryStore()
	seed(t, store, "c", "a", box(0, 0, 1, 1), 1)
	e := newEngine(t, store)
	ctx := context.Background()

	if _, err := e.Collection(ctx, "c", Params{Intersects: "POLYGON((bogus"}); !errors.Is(err, geom.ErrInvalidWKT) {
		t.Fatalf("err = %v, want ErrInvalidWKT", err)
	}
	if _, err := e.Collection(ctx, "nope", Params{}); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := e.Collection(ctx, "c", Params{Contains: "POINT(1 1)"}); !errors.Is(err, geom.ErrGeometryType) {
		t.Fatalf("err = %v, want ErrGeometryType", err)
	}
}

func TestSearchAcrossCollections(t *testing.T) {
	store := catalog.NewMemoryStore()
	seed(t, store, "alpha", "a-1", box(0, 0, 2, 2), 1)
	seed(t, store, "beta", "b-1", box(1, 1, 3, 3), 2)
	seed(t, store, "beta", "b-2", box(50, 50, 60, 60), 3)

	e := newEngine(t, store)
	got, err := e.Search(context.Background(), Params{Intersects: wktBox(0, 0, 4, 4)})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	ids := map[string]bool{}
	for _, it := range got {
		ids[it.ID] = true
	}
	if len(got) != 2 || !ids["a-1"] || !ids["b-1"] {
		t.Fatalf("got %v", got)
	}
}

func TestInvalidateCollection(t *testing.T) {
	store := catalog.NewMemoryStore()
	seed(t, store, "c", "old", box(0, 0, 2, 2), 1)

	e := newEngine(t, store)
	p := Params{Intersects: wktBox(0, 0, 5, 5)}
	if _, err := e.Collection(context.Background(), "c", p); err != nil {
		t.Fatal(err)
	}

	repl, err := catalog.NewItem("new", "c", box(0, 0, 2, 2),
		map[string]any{"spatial_resolution": 1.0}, "/data/new")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.ReplaceCollection(context.Background(), "c", []catalog.Item{repl}); err != nil {
		t.Fatal(err)
	}
	e.InvalidateCollection("c")

	got, err := e.Collection(context.Background(), "c", p)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "new" {
		t.Fatalf("stale cache after invalidation: %v", got)
	}
}
