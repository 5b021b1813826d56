package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"orion_source/internal/adapters/observability"
	"orion_source/internal/domain"
)

// Kind names one rental sub-collection.
type Kind string

const (
	KindPictures         Kind = "pictures"
	KindPrices           Kind = "prices"
	KindPointOfInterests Kind = "pointOfInterests"
	KindRooms            Kind = "rooms"
	KindSpecialOffers    Kind = "specialOffers"
)

// FailurePolicy decides what one rental's failed sub-fetch does to its kind.
type FailurePolicy string

const (
	// Swallow leaves the rental's field unset and lets its siblings finish.
	Swallow FailurePolicy = "swallow"
	// Propagate cancels the fan-out and fails the run.
	Propagate FailurePolicy = "propagate"
)

// SharedDataHeader asks the catalog for shared data rather than
// rental-scoped data only.
const SharedDataHeader = "x-full-shared-data"

type KindSpec struct {
	Kind       Kind
	Path       string // appended to the rental IRI
	Params     map[string]any
	Policy     FailurePolicy
	SharedFlag func(*domain.Rental) bool
}

func managed(r *domain.Rental) bool { return r.Bool("managed") }

// DefaultKinds is the enrichment table used by the ingestor.
var DefaultKinds = []KindSpec{
	{
		Kind:       KindPictures,
		Path:       "/pictures",
		Params:     map[string]any{"perPage": 10, "groups": []string{"website:picture:output", "website:mediaObject:output"}},
		Policy:     Swallow,
		SharedFlag: managed,
	},
	{
		Kind:       KindPrices,
		Path:       "/prices",
		Params:     map[string]any{"perPage": 30, "groups": []string{"website:price:output"}},
		Policy:     Swallow,
		SharedFlag: managed,
	},
	{
		Kind:       KindPointOfInterests,
		Path:       "/point_of_interests",
		Params:     map[string]any{"groups": []string{"website:rentalPoi:output"}},
		Policy:     Propagate,
		SharedFlag: managed,
	},
	{
		Kind:       KindRooms,
		Path:       "/rooms",
		Params:     map[string]any{"groups": []string{"website:room:output"}},
		Policy:     Swallow,
		SharedFlag: managed,
	},
	{
		Kind:       KindSpecialOffers,
		Path:       "/special_offers",
		Params:     map[string]any{"groups": []string{"website:specialOffer:output"}},
		Policy:     Propagate,
		SharedFlag: managed,
	},
}

type Status string

const (
	StatusSuccess   Status = "success"
	StatusPartial   Status = "partial"
	StatusFatal     Status = "fatal"
	// StatusCancelled: the fan-out was stopped from outside, by another
	// kind's fatal failure or by the caller. Unfinished rentals stay unset.
	StatusCancelled Status = "cancelled"
)

type EntityFailure struct {
	EntityID string
	Err      error
}

// Outcome summarizes one kind's fan-out.
type Outcome struct {
	Kind     Kind
	Policy   FailurePolicy
	Status   Status
	Enriched int
	Failures []EntityFailure
	Err      error
}

type Enricher struct {
	pager domain.Pager
	kinds []KindSpec
	sem   *semaphore.Weighted
}

// NewEnricher builds an enricher over kinds. limit bounds concurrent
// sub-fetches across all kinds; 0 means unbounded.
func NewEnricher(p domain.Pager, kinds []KindSpec, limit int) *Enricher {
	e := &Enricher{pager: p, kinds: kinds}
	if limit > 0 {
		e.sem = semaphore.NewWeighted(int64(limit))
	}
	return e
}

// EnrichAll runs every kind concurrently over rentals. It returns the
// outcomes in table order, and the first fatal error if any kind failed.
func (e *Enricher) EnrichAll(ctx context.Context, rentals []*domain.Rental) ([]Outcome, error) {
	outcomes := make([]Outcome, len(e.kinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range e.kinds {
		i, spec := i, spec
		g.Go(func() error {
			outcomes[i] = e.Enrich(gctx, spec, rentals)
			return outcomes[i].Err
		})
	}
	err := g.Wait()
	if err == nil {
		// every kind stood down quietly; the caller cancelled
		err = ctx.Err()
	}
	return outcomes, err
}

// Enrich fetches one kind's sub-collection for every rental at once and stores
// it on the rental in place.
func (e *Enricher) Enrich(ctx context.Context, spec KindSpec, rentals []*domain.Rental) Outcome {
	out := Outcome{Kind: spec.Kind, Policy: spec.Policy}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range rentals {
		r := r
		g.Go(func() error {
			if e.sem != nil {
				if err := e.sem.Acquire(gctx, 1); err != nil {
					// stopped before it started; whoever cancelled reports the cause
					return nil
				}
				defer e.sem.Release(1)
			}

			headers := map[string]string{SharedDataHeader: "0"}
			if spec.SharedFlag != nil && spec.SharedFlag(r) {
				headers[SharedDataHeader] = "1"
			}
			items, err := e.pager.FetchAll(gctx, r.ID+spec.Path, spec.Params, headers)
			if err != nil {
				// cancelled by a sibling, another kind or the caller: not a failure of this rental
				if gctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
					return nil
				}
				mu.Lock()
				out.Failures = append(out.Failures, EntityFailure{EntityID: r.ID, Err: err})
				mu.Unlock()
				observability.ObserveEnrichFailure(string(spec.Kind), string(spec.Policy))

				if spec.Policy == Propagate {
					return fmt.Errorf("%s for %s: %w", spec.Kind, r.ID, err)
				}
				log.Warn().Err(err).Str("kind", string(spec.Kind)).Str("rental", r.ID).Msg("enrichment skipped")
				return nil
			}

			assign(spec.Kind, r, items)
			mu.Lock()
			out.Enriched++
			mu.Unlock()
			return nil
		})
	}

	out.Err = g.Wait()
	switch {
	case out.Err != nil:
		out.Status = StatusFatal
	case ctx.Err() != nil:
		out.Status = StatusCancelled
	case len(out.Failures) > 0:
		out.Status = StatusPartial
	default:
		out.Status = StatusSuccess
	}
	return out
}

// assign writes items to the kind's field; an empty result is stored as an
// empty, non-nil slice.
func assign(k Kind, r *domain.Rental, items []domain.Entity) {
	if items == nil {
		items = []domain.Entity{}
	}
	switch k {
	case KindPictures:
		pics := make([]domain.PictureItem, 0, len(items))
		for _, it := range items {
			p, err := domain.DecodePictureItem(it)
			if err != nil {
				log.Warn().Err(err).Str("rental", r.ID).Msg("picture quarantined")
				continue
			}
			pics = append(pics, p)
		}
		r.Pictures = pics
	case KindPrices:
		r.Prices = items
	case KindPointOfInterests:
		r.PointOfInterests = items
	case KindRooms:
		r.Rooms = items
	case KindSpecialOffers:
		r.SpecialOffers = items
	}
}
