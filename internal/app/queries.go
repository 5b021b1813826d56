package app

import (
	"context"
	"time"

	"orion_source/internal/domain"
)

const maxListLimit = 500

func NodeCacheKey(id string) string { return "node:" + id }

type QueryService struct {
	repo     domain.NodeRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(r domain.NodeRepository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl}
}

// GetNode resolves one identifier, the single-id lookup of the schema layer.
func (s *QueryService) GetNode(ctx context.Context, id string) (domain.Node, error) {
	key := NodeCacheKey(id)
	var n domain.Node
	if ok, _ := s.cache.Get(ctx, key, &n); ok {
		return n, nil
	}
	n, err := s.repo.GetNode(ctx, id)
	if err != nil {
		return domain.Node{}, err
	}
	_ = s.cache.Set(ctx, key, n, int(s.cacheTTL.Seconds()))
	return n, nil
}

// GetNodes resolves an id list in request order. Unknown ids are skipped,
// as a by-ids lookup in the schema layer does.
func (s *QueryService) GetNodes(ctx context.Context, ids []string) ([]domain.Node, error) {
	if len(ids) == 0 {
		return []domain.Node{}, nil
	}
	found, err := s.repo.GetNodes(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Node, len(found))
	for _, n := range found {
		byID[n.ID] = n
	}
	out := make([]domain.Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := byID[id]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *QueryService) ListByType(ctx context.Context, typ string, limit int) ([]domain.Node, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	return s.repo.ListByType(ctx, typ, limit)
}
