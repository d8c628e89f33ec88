// Package extract turns discovered entries into catalog metadata.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ErrUnreadable marks an entry whose metadata cannot be read or parsed.
// Ingestion skips such entries instead of failing the run.
var ErrUnreadable = errors.New("unreadable entry")

// Metadata is what an extractor derives from one raster entry.
type Metadata struct {
	ID         string
	Footprint  orb.Geometry
	Properties map[string]any
}

// Extractor derives metadata for a locator.
type Extractor interface {
	Extract(ctx context.Context, locator string) (Metadata, error)
}

// ReadFunc fetches raw bytes for a locator. Implementations exist for the
// local filesystem and for object storage.
type ReadFunc func(ctx context.Context, locator string) ([]byte, error)

// Sidecar reads `<locator>.json`, a GeoJSON Feature carrying the raster's
// footprint and properties. The feature id, or the locator's base name
// without extension, becomes the item id.
type Sidecar struct {
	read ReadFunc
}

func NewSidecar(read ReadFunc) *Sidecar {
	return &Sidecar{read: read}
}

func (s *Sidecar) Extract(ctx context.Context, locator string) (Metadata, error) {
	raw, err := s.read(ctx, locator+".json")
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %s: %v", ErrUnreadable, locator, err)
	}
	f, err := geojson.UnmarshalFeature(raw)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %s: %v", ErrUnreadable, locator, err)
	}
	if f.Geometry == nil {
		return Metadata{}, fmt.Errorf("%w: %s: feature has no geometry", ErrUnreadable, locator)
	}
	switch f.Geometry.(type) {
	case orb.Polygon, orb.MultiPolygon:
	default:
		return Metadata{}, fmt.Errorf("%w: %s: footprint is %s, want polygonal",
			ErrUnreadable, locator, f.Geometry.GeoJSONType())
	}

	id := baseName(locator)
	if fid, ok := f.ID.(string); ok && fid != "" {
		id = fid
	}

	props := make(map[string]any, len(f.Properties))
	for k, v := range f.Properties {
		props[k] = v
	}
	return Metadata{ID: id, Footprint: f.Geometry, Properties: props}, nil
}

func baseName(locator string) string {
	b := path.Base(strings.ReplaceAll(locator, "\\", "/"))
	if i := strings.LastIndex(b, "."); i > 0 {
		b = b[:i]
	}
	return b
}
