package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"orion_source/internal/adapters/observability"
	"orion_source/internal/domain"
)

// Stage is one step of an ingestion run.
type Stage string

const (
	StageIdle            Stage = "Idle"
	StageFetchReferences Stage = "FetchReferences"
	StageFetchPrimary    Stage = "FetchPrimary"
	StageEnrich          Stage = "Enrich"
	StageMaterialize     Stage = "Materialize"
	StageCommit          Stage = "Commit"
	StageDone            Stage = "Done"
	StageFailed          Stage = "Failed"
)

// StageError is the single terminal error of a failed run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("ingestion failed at %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Report describes what a run did, successful or not.
type Report struct {
	RunID       string
	Stage       Stage
	References  map[string]int // collection name -> items
	Rentals     int
	Outcomes    []Outcome
	Stats       MaterializeStats
	Quarantined int64
	Durations   map[Stage]time.Duration
}

type IngestionService struct {
	pager       domain.Pager
	enricher    *Enricher
	store       domain.GraphStore
	cache       domain.Cache
	collections []domain.ReferenceCollection
}

func NewIngestionService(p domain.Pager, e *Enricher, store domain.GraphStore, cache domain.Cache) *IngestionService {
	return &IngestionService{pager: p, enricher: e, store: store, cache: cache, collections: domain.ReferenceCollections}
}

// Run fetches, enriches and materializes the whole catalog. Any stage
// failure aborts the run with a *StageError; nothing is kept from it.
func (s *IngestionService) Run(ctx context.Context) (_ *domain.Graph, rep Report, _ error) {
	rep = Report{
		RunID:      uuid.NewString(),
		Stage:      StageIdle,
		References: make(map[string]int, len(s.collections)),
		Durations:  make(map[Stage]time.Duration),
	}
	defer func() {
		if q, ok := s.pager.(interface{ Quarantined() int64 }); ok {
			rep.Quarantined = q.Quarantined()
		}
	}()

	var refs []domain.Entity
	err := s.stage(&rep, StageFetchReferences, func() error {
		for _, c := range s.collections {
			log.Info().Str("run", rep.RunID).Str("collection", c.Name).Msg("fetching")
			items, err := s.pager.FetchAll(ctx, c.Endpoint, map[string]any{"groups": c.Groups}, nil)
			if err != nil {
				return fmt.Errorf("%s: %w", c.Name, err)
			}
			rep.References[c.Name] = len(items)
			refs = append(refs, items...)
		}
		return nil
	})
	if err != nil {
		return nil, rep, err
	}

	var rentals []*domain.Rental
	err = s.stage(&rep, StageFetchPrimary, func() error {
		items, err := s.pager.FetchAll(ctx, domain.RentalsEndpoint, map[string]any{"groups": domain.RentalGroups}, nil)
		if err != nil {
			return err
		}
		rentals = make([]*domain.Rental, 0, len(items))
		for _, e := range items {
			rentals = append(rentals, &domain.Rental{Entity: e})
		}
		rep.Rentals = len(rentals)
		return nil
	})
	if err != nil {
		return nil, rep, err
	}

	err = s.stage(&rep, StageEnrich, func() error {
		outcomes, err := s.enricher.EnrichAll(ctx, rentals)
		rep.Outcomes = outcomes
		for _, o := range outcomes {
			log.Info().
				Str("run", rep.RunID).
				Str("kind", string(o.Kind)).
				Str("status", string(o.Status)).
				Int("enriched", o.Enriched).
				Int("failed", len(o.Failures)).
				Msg("enrichment finished")
		}
		return err
	})
	if err != nil {
		return nil, rep, err
	}

	var g *domain.Graph
	err = s.stage(&rep, StageMaterialize, func() error {
		var err error
		g, rep.Stats, err = Materialize(refs, rentals)
		return err
	})
	if err != nil {
		return nil, rep, err
	}

	rep.Stage = StageDone
	return g, rep, nil
}

// Ingest runs the pipeline and commits the graph. The store is only touched
// when the run completed.
func (s *IngestionService) Ingest(ctx context.Context) (Report, error) {
	g, rep, err := s.Run(ctx)
	if err != nil {
		return rep, err
	}
	nodes := g.Nodes()
	err = s.stage(&rep, StageCommit, func() error {
		return s.store.ReplaceGraph(ctx, nodes)
	})
	if err != nil {
		return rep, err
	}
	rep.Stage = StageDone

	// the graph changed as a whole -> drop cached lookups for every node
	if s.cache != nil {
		for _, n := range nodes {
			_ = s.cache.Del(ctx, NodeCacheKey(n.ID))
		}
	}
	log.Info().
		Str("run", rep.RunID).
		Int("nodes", len(nodes)).
		Int("rentals", rep.Stats.Rentals).
		Int("pictures", rep.Stats.Pictures).
		Int("references", rep.Stats.References).
		Msg("graph committed")
	return rep, nil
}

func (s *IngestionService) stage(rep *Report, st Stage, fn func() error) error {
	rep.Stage = st
	log.Info().Str("run", rep.RunID).Str("stage", string(st)).Msg("stage started")
	start := time.Now()
	err := fn()
	d := time.Since(start)
	rep.Durations[st] = d
	observability.ObserveStage(string(st), err, d)
	if err != nil {
		rep.Stage = StageFailed
		log.Error().Err(err).Str("run", rep.RunID).Str("stage", string(st)).Dur("duration", d).Msg("stage failed")
		return &StageError{Stage: st, Err: err}
	}
	log.Info().Str("run", rep.RunID).Str("stage", string(st)).Dur("duration", d).Msg("stage finished")
	return nil
}
