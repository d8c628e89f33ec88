package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// itemDoc is the serialized form shared by the sqlite and redis backends.
type itemDoc struct {
	ID         string            `json:"id"`
	Collection string            `json:"collection"`
	Geometry   *geojson.Geometry `json:"geometry"`
	BBox       [4]float64        `json:"bbox"`
	Properties map[string]any    `json:"properties,omitempty"`
	Source     string            `json:"source"`
}

func encodeItem(it Item) ([]byte, error) {
	doc := itemDoc{
		ID:         it.ID,
		Collection: it.CollectionID,
		Geometry:   geojson.NewGeometry(it.Footprint),
		BBox:       [4]float64{it.BBox.Min[0], it.BBox.Min[1], it.BBox.Max[0], it.BBox.Max[1]},
		Properties: it.Properties,
		Source:     it.SourceLocator,
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode item %s: %w", it.ID, err)
	}
	return b, nil
}

func decodeItem(b []byte) (Item, error) {
	var doc itemDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return Item{}, fmt.Errorf("decode item: %w", err)
	}
	if doc.Geometry == nil {
		return Item{}, fmt.Errorf("decode item %s: missing geometry", doc.ID)
	}
	it := Item{
		ID:            doc.ID,
		CollectionID:  doc.Collection,
		Footprint:     doc.Geometry.Geometry(),
		Properties:    doc.Properties,
		SourceLocator: doc.Source,
	}
	it.BBox = it.Footprint.Bound()
	if err := it.Validate(); err != nil {
		return Item{}, fmt.Errorf("decode item: %w", err)
	}
	return it, nil
}
