package app

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"orion_source/internal/adapters/observability"
	"orion_source/internal/domain"
)

// Canonical encodes v as compact JSON with object keys sorted.
func Canonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Digest is the hex MD5 of canonical content.
func Digest(content []byte) string {
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:])
}

type MaterializeStats struct {
	References int
	Rentals    int
	Pictures   int
	Duplicates int
}

// Materialize turns the fetched and enriched catalog into graph nodes.
// A repeated id keeps its first node; later ones are counted and dropped.
func Materialize(refs []domain.Entity, rentals []*domain.Rental) (*domain.Graph, MaterializeStats, error) {
	g := domain.NewGraph()
	var st MaterializeStats

	add := func(n domain.Node) (bool, error) {
		if err := g.Add(n); err != nil {
			if errors.Is(err, domain.ErrDuplicateNode) {
				st.Duplicates++
				log.Warn().Str("id", n.ID).Str("type", n.Type).Msg("duplicate node dropped")
				return false, nil
			}
			return false, err
		}
		observability.ObserveNode(n.Type)
		return true, nil
	}

	for _, e := range refs {
		n, err := ReferenceNode(e)
		if err != nil {
			return nil, st, err
		}
		ok, err := add(n)
		if err != nil {
			return nil, st, err
		}
		if ok {
			st.References++
		}
	}

	for _, r := range rentals {
		rn, pics, err := RentalNodes(r)
		if err != nil {
			return nil, st, err
		}
		ok, err := add(rn)
		if err != nil {
			return nil, st, err
		}
		if ok {
			st.Rentals++
		}
		for _, p := range pics {
			ok, err := add(p)
			if err != nil {
				return nil, st, err
			}
			if ok {
				st.Pictures++
			}
		}
	}
	return g, st, nil
}

// ReferenceNode builds the node for one reference entity. The "Locale" tag
// becomes "UserLocale".
func ReferenceNode(e domain.Entity) (domain.Node, error) {
	payload := e.Payload()
	typ := e.Type
	if typ == "Locale" {
		typ = domain.TypeUserLocale
	}
	return newNode(e.ID, nil, typ, payload, payload)
}

// RentalNodes builds a rental's node and one RentalPicture node per
// attached picture, parented to the rental.
func RentalNodes(r *domain.Rental) (domain.Node, []domain.Node, error) {
	payload := r.Payload("pictures")
	setEntities(payload, "prices", r.Prices)
	setEntities(payload, "pointOfInterests", r.PointOfInterests)
	setEntities(payload, "rooms", r.Rooms)
	setEntities(payload, "specialOffers", r.SpecialOffers)

	parent := r.ID
	pics := make([]domain.Node, 0, len(r.Pictures))
	picIDs := make([]string, 0, len(r.Pictures))
	for _, item := range r.Pictures {
		sub := item.Picture.Payload()
		n, err := newNode(item.Picture.ID, &parent, domain.TypeRentalPicture, sub, sub)
		if err != nil {
			return domain.Node{}, nil, err
		}
		pics = append(pics, n)
		picIDs = append(picIDs, item.Picture.ID)
	}

	fields := make(map[string]any, len(payload)+4)
	for k, v := range payload {
		fields[k] = v
	}
	if fields["highlights"] == nil {
		fields["highlights"] = []any{}
	}
	if fields["rooms"] == nil {
		fields["rooms"] = []any{}
	}
	fields["pictures"] = picIDs
	if len(picIDs) > 0 {
		fields["mainPicture"] = picIDs[0]
	}
	fields["hasSpecialOffers"] = len(r.SpecialOffers) > 0

	rn, err := newNode(r.ID, nil, r.Type, payload, fields)
	if err != nil {
		return domain.Node{}, nil, err
	}
	return rn, pics, nil
}

// setEntities stores an enriched sub-collection; unset ones keep whatever
// the rental payload already carried.
func setEntities(payload map[string]any, key string, items []domain.Entity) {
	if items == nil {
		return
	}
	out := make([]any, 0, len(items))
	for _, it := range items {
		out = append(out, it.Map())
	}
	payload[key] = out
}

func newNode(id string, parent *string, typ string, content, fields map[string]any) (domain.Node, error) {
	b, err := Canonical(content)
	if err != nil {
		return domain.Node{}, fmt.Errorf("encode %s: %w", id, err)
	}
	return domain.Node{
		ID:            id,
		Parent:        parent,
		Children:      []string{},
		Type:          typ,
		Content:       string(b),
		ContentDigest: Digest(b),
		Fields:        fields,
	}, nil
}
