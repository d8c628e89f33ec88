// Package stac renders catalog resources in STAC v1.0.0 shapes.
package stac

import (
	"fmt"

	"github.com/paulmach/orb/geojson"

	"github.com/rastac/rastac/internal/catalog"
)

const Version = "1.0.0"

var conformsTo = []string{
	"https://api.stacspec.org/v1.0.0/core",
	"https://api.stacspec.org/v1.0.0/collections",
	"https://api.stacspec.org/v1.0.0/item-search",
}

type Link struct {
	Rel   string `json:"rel"`
	Href  string `json:"href"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

type LandingPage struct {
	Type        string   `json:"type"`
	StacVersion string   `json:"stac_version"`
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ConformsTo  []string `json:"conformsTo"`
	Links       []Link   `json:"links"`
}

type Extent struct {
	Spatial SpatialExtent `json:"spatial"`
}

type SpatialExtent struct {
	BBox [][4]float64 `json:"bbox"`
}

type Collection struct {
	Type        string `json:"type"`
	StacVersion string `json:"stac_version"`
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	License     string `json:"license"`
	Extent      Extent `json:"extent"`
	Links       []Link `json:"links"`
}

type Asset struct {
	Href  string   `json:"href"`
	Type  string   `json:"type,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// Feature is a catalog item as a STAC item, a GeoJSON Feature.
type Feature struct {
	Type        string            `json:"type"`
	StacVersion string            `json:"stac_version"`
	ID          string            `json:"id"`
	Collection  string            `json:"collection"`
	BBox        [4]float64        `json:"bbox"`
	Geometry    *geojson.Geometry `json:"geometry"`
	Properties  map[string]any    `json:"properties"`
	Links       []Link            `json:"links,omitempty"`
	Assets      map[string]Asset  `json:"assets,omitempty"`
}

type FeatureCollection struct {
	Type           string    `json:"type"`
	Features       []Feature `json:"features"`
	NumberReturned int       `json:"numberReturned"`
}

// NewLandingPage builds the root resource with a child link per collection.
func NewLandingPage(id, title, description, baseURL string, collections []catalog.Collection) LandingPage {
	links := []Link{
		{Rel: "self", Href: baseURL + "/", Type: "application/json"},
		{Rel: "root", Href: baseURL + "/", Type: "application/json"},
		{Rel: "search", Href: baseURL + "/stac/search", Type: "application/geo+json"},
	}
	for _, c := range collections {
		links = append(links, Link{
			Rel:   "child",
			Href:  fmt.Sprintf("%s/collections/%s", baseURL, c.ID),
			Type:  "application/json",
			Title: c.Title,
		})
	}
	return LandingPage{
		Type:        "Catalog",
		StacVersion: Version,
		ID:          id,
		Title:       title,
		Description: description,
		ConformsTo:  conformsTo,
		Links:       links,
	}
}

// NewCollection renders a collection resource. The spatial extent is the
// union of the item bboxes.
func NewCollection(c catalog.Collection, items []catalog.Item, baseURL string) Collection {
	var bbox [4]float64
	for i, it := range items {
		b := [4]float64{it.BBox.Min[0], it.BBox.Min[1], it.BBox.Max[0], it.BBox.Max[1]}
		if i == 0 {
			bbox = b
			continue
		}
		bbox[0] = min(bbox[0], b[0])
		bbox[1] = min(bbox[1], b[1])
		bbox[2] = max(bbox[2], b[2])
		bbox[3] = max(bbox[3], b[3])
	}
	self := fmt.Sprintf("%s/collections/%s", baseURL, c.ID)
	links := []Link{
		{Rel: "self", Href: self, Type: "application/json"},
		{Rel: "root", Href: baseURL + "/", Type: "application/json"},
	}
	for _, it := range items {
		links = append(links, Link{
			Rel:  "item",
			Href: fmt.Sprintf("%s/items/%s", self, it.ID),
			Type: "application/geo+json",
		})
	}
	return Collection{
		Type:        "Collection",
		StacVersion: Version,
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		License:     "proprietary",
		Extent:      Extent{Spatial: SpatialExtent{BBox: [][4]float64{bbox}}},
		Links:       links,
	}
}

// NewFeature renders one item. The raster itself is exposed as a data
// asset pointing at the source locator.
func NewFeature(it catalog.Item, baseURL string) Feature {
	props := make(map[string]any, len(it.Properties))
	for k, v := range it.Properties {
		props[k] = v
	}
	self := fmt.Sprintf("%s/collections/%s/items/%s", baseURL, it.CollectionID, it.ID)
	return Feature{
		Type:        "Feature",
		StacVersion: Version,
		ID:          it.ID,
		Collection:  it.CollectionID,
		BBox:        [4]float64{it.BBox.Min[0], it.BBox.Min[1], it.BBox.Max[0], it.BBox.Max[1]},
		Geometry:    geojson.NewGeometry(it.Footprint),
		Properties:  props,
		Links: []Link{
			{Rel: "self", Href: self, Type: "application/geo+json"},
			{Rel: "collection", Href: fmt.Sprintf("%s/collections/%s", baseURL, it.CollectionID), Type: "application/json"},
			{Rel: "root", Href: baseURL + "/", Type: "application/json"},
		},
		Assets: map[string]Asset{
			"data": {Href: it.SourceLocator, Roles: []string{"data"}},
		},
	}
}

// NewFeatureCollection renders a filtered result set.
func NewFeatureCollection(items []catalog.Item, baseURL string) FeatureCollection {
	features := make([]Feature, 0, len(items))
	for _, it := range items {
		features = append(features, NewFeature(it, baseURL))
	}
	return FeatureCollection{
		Type:           "FeatureCollection",
		Features:       features,
		NumberReturned: len(features),
	}
}
