package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// JSON-LD keys carried by every catalog item.
const (
	KeyID   = "@id"
	KeyType = "@type"
)

var ErrMalformedEntity = errors.New("orion: malformed entity")

// Entity is one catalog item: its IRI, its type tag and every other member as-is.
type Entity struct {
	ID     string
	Type   string
	Fields map[string]any
}

// DecodeEntity validates a raw catalog member. Items without a non-empty
// @id or @type are rejected with ErrMalformedEntity.
func DecodeEntity(raw json.RawMessage) (Entity, error) {
	var m map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber() // keep numeric literals stable across re-encoding
	if err := dec.Decode(&m); err != nil {
		return Entity{}, fmt.Errorf("%w: %v", ErrMalformedEntity, err)
	}
	return EntityFromMap(m)
}

func EntityFromMap(m map[string]any) (Entity, error) {
	if m == nil {
		return Entity{}, fmt.Errorf("%w: not an object", ErrMalformedEntity)
	}
	id, _ := m[KeyID].(string)
	typ, _ := m[KeyType].(string)
	if id == "" {
		return Entity{}, fmt.Errorf("%w: missing %s", ErrMalformedEntity, KeyID)
	}
	if typ == "" {
		return Entity{}, fmt.Errorf("%w: missing %s on %s", ErrMalformedEntity, KeyType, id)
	}
	fields := make(map[string]any, len(m))
	for k, v := range m {
		if k == KeyID || k == KeyType {
			continue
		}
		fields[k] = v
	}
	return Entity{ID: id, Type: typ, Fields: fields}, nil
}

// Payload returns a shallow copy of Fields without the listed keys.
func (e Entity) Payload(drop ...string) map[string]any {
	out := make(map[string]any, len(e.Fields))
	for k, v := range e.Fields {
		out[k] = v
	}
	for _, k := range drop {
		delete(out, k)
	}
	return out
}

// Map re-assembles the item as received, @id and @type included.
func (e Entity) Map() map[string]any {
	out := e.Payload()
	out[KeyID] = e.ID
	out[KeyType] = e.Type
	return out
}

func (e Entity) Bool(key string) bool {
	b, _ := e.Fields[key].(bool)
	return b
}

// PictureItem wraps the picture actually attached to a rental.
type PictureItem struct {
	Entity
	Picture Entity
}

func DecodePictureItem(e Entity) (PictureItem, error) {
	inner, ok := e.Fields["picture"].(map[string]any)
	if !ok {
		return PictureItem{}, fmt.Errorf("%w: %s has no picture", ErrMalformedEntity, e.ID)
	}
	p, err := EntityFromMap(inner)
	if err != nil {
		return PictureItem{}, err
	}
	return PictureItem{Entity: e, Picture: p}, nil
}

// Rental is the primary catalog entity. A nil sub-collection has not been
// fetched (or its fetch failed); an empty one was fetched and has no items.
type Rental struct {
	Entity

	Pictures         []PictureItem
	Prices           []Entity
	PointOfInterests []Entity
	Rooms            []Entity
	SpecialOffers    []Entity
}

// ReferenceCollection is one flat collection fetched before the rentals.
type ReferenceCollection struct {
	Name     string
	Endpoint string
	Groups   []string
}

// ReferenceCollections lists the flat collections in fetch order.
var ReferenceCollections = []ReferenceCollection{
	{Name: "userLocales", Endpoint: "/locales", Groups: []string{"website:locale:output"}},
	{Name: "locations", Endpoint: "/locations", Groups: []string{"website:location:output"}},
	{Name: "highlights", Endpoint: "/highlights", Groups: []string{"website:highlight:output"}},
	{Name: "seasons", Endpoint: "/seasons", Groups: []string{"website:season:output"}},
	{Name: "pois", Endpoint: "/point_of_interests", Groups: []string{"website:poi:output"}},
	{Name: "roomTypes", Endpoint: "/room_types", Groups: []string{"website:roomType:output"}},
	{Name: "furnishings", Endpoint: "/furnishings", Groups: []string{"website:furnishing:output"}},
	{Name: "beds", Endpoint: "/beds", Groups: []string{"website:bed:output"}},
}

const RentalsEndpoint = "/rentals"

var RentalGroups = []string{
	"website:rental:output",
	"website:rentalPoi:output",
	"website:rentalSeason:output",
	"website:price:output",
}

// CollectionPage is one decoded hydra collection page.
type CollectionPage struct {
	Members []json.RawMessage `json:"hydra:member"`
	View    *CollectionView   `json:"hydra:view,omitempty"`
}

type CollectionView struct {
	ID   string `json:"@id,omitempty"`
	Last string `json:"hydra:last,omitempty"`
}
