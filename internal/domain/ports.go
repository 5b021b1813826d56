package domain

import "context"

// CatalogClient issues single requests against the remote catalog.
type CatalogClient interface {
	Fetch(ctx context.Context, endpoint string, params map[string]any, headers map[string]string) (CollectionPage, error)
}

// Pager walks every page of one hydra collection.
type Pager interface {
	FetchAll(ctx context.Context, endpoint string, params map[string]any, headers map[string]string) ([]Entity, error)
}

// GraphStore receives a complete graph. ReplaceGraph is all-or-nothing.
type GraphStore interface {
	ReplaceGraph(ctx context.Context, nodes []Node) error
}

// NodeRepository answers identifier lookups over the last committed graph.
type NodeRepository interface {
	GetNode(ctx context.Context, id string) (Node, error)
	GetNodes(ctx context.Context, ids []string) ([]Node, error)
	ListByType(ctx context.Context, typ string, limit int) ([]Node, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
