package stac

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"

	"github.com/rastac/rastac/internal/catalog"
)

const base = "http://localhost:8000"

func testItem(t *testing.T, id string, minX, minY, maxX, maxY float64) catalog.Item {
	t.Helper()
	fp := orb.Polygon{orb.Ring{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}}
	it, err := catalog.NewItem(id, "scenes", fp,
		map[string]any{"spatial_resolution": 1.5}, "/data/scenes/"+id+".tif")
	if err != nil {
		t.Fatal(err)
	}
	return it
}

func TestLandingPageLinks(t *testing.T) {
	lp := NewLandingPage("rastac", "rastac", "raster catalog", base, []catalog.Collection{
		{ID: "scenes", Title: "scenes"},
	})
	if lp.Type != "Catalog" || lp.StacVersion != Version {
		t.Fatalf("landing page header: %+v", lp)
	}
	var child *Link
	for i := range lp.Links {
		if lp.Links[i].Rel == "child" {
			child = &lp.Links[i]
		}
	}
	if child == nil || child.Href != base+"/collections/scenes" {
		t.Fatalf("child link = %+v", child)
	}
}

func TestCollectionExtentUnion(t *testing.T) {
	items := []catalog.Item{
		testItem(t, "a", 0, 0, 10, 10),
		testItem(t, "b", -5, 2, 3, 20),
	}
	c := NewCollection(catalog.Collection{ID: "scenes", Title: "scenes"}, items, base)
	if len(c.Extent.Spatial.BBox) != 1 {
		t.Fatalf("extent = %+v", c.Extent)
	}
	got := c.Extent.Spatial.BBox[0]
	want := [4]float64{-5, 0, 10, 20}
	if got != want {
		t.Fatalf("extent bbox = %v, want %v", got, want)
	}
	itemLinks := 0
	for _, l := range c.Links {
		if l.Rel == "item" {
			itemLinks++
		}
	}
	if itemLinks != 2 {
		t.Fatalf("item links = %d, want 2", itemLinks)
	}
}

func TestFeatureShape(t *testing.T) {
	f := NewFeature(testItem(t, "a", 0, 0, 10, 10), base)

	raw, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}
	if doc["type"] != "Feature" || doc["id"] != "a" || doc["collection"] != "scenes" {
		t.Fatalf("feature doc = %v", doc)
	}
	geomDoc, ok := doc["geometry"].(map[string]any)
	if !ok || geomDoc["type"] != "Polygon" {
		t.Fatalf("geometry = %v", doc["geometry"])
	}
	props, ok := doc["properties"].(map[string]any)
	if !ok || props["spatial_resolution"] != 1.5 {
		t.Fatalf("properties = %v", doc["properties"])
	}
	bbox, ok := doc["bbox"].([]any)
	if !ok || len(bbox) != 4 {
		t.Fatalf("bbox = %v", doc["bbox"])
	}
	assets, ok := doc["assets"].(map[string]any)
	if !ok {
		t.Fatalf("assets = %v", doc["assets"])
	}
	data := assets["data"].(map[string]any)
	if data["href"] != "/data/scenes/a.tif" {
		t.Fatalf("data asset = %v", data)
	}
}

func TestFeatureCollectionCount(t *testing.T) {
	fc := NewFeatureCollection([]catalog.Item{
		testItem(t, "a", 0, 0, 1, 1),
		testItem(t, "b", 0, 0, 1, 1),
	}, base)
	if fc.Type != "FeatureCollection" || fc.NumberReturned != 2 || len(fc.Features) != 2 {
		t.Fatalf("fc = %+v", fc)
	}
}
