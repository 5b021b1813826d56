package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"orion_source/internal/app"
	"orion_source/internal/domain"
)

// ---- fakes ----

type fakeRepo struct {
	nodes map[string]domain.Node
	calls int
}

func (f *fakeRepo) GetNode(ctx context.Context, id string) (domain.Node, error) {
	f.calls++
	n, ok := f.nodes[id]
	if !ok {
		return domain.Node{}, domain.ErrNotFound
	}
	return n, nil
}

func (f *fakeRepo) GetNodes(ctx context.Context, ids []string) ([]domain.Node, error) {
	f.calls++
	var out []domain.Node
	// deliberately unordered relative to ids
	for i := len(ids) - 1; i >= 0; i-- {
		if n, ok := f.nodes[ids[i]]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListByType(ctx context.Context, typ string, limit int) ([]domain.Node, error) {
	f.calls++
	var out []domain.Node
	for _, n := range f.nodes {
		if n.Type == typ && len(out) < limit {
			out = append(out, n)
		}
	}
	return out, nil
}

type fakeCache struct {
	store map[string]any
	dels  []string
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	if d, ok := dst.(*domain.Node); ok {
		*d = v.(domain.Node)
	}
	return true, nil
}
func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if c.store == nil {
		c.store = map[string]any{}
	}
	c.store[key] = v
	return nil
}
func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.dels = append(c.dels, key)
	delete(c.store, key)
	return nil
}

// ---- tests ----

func TestGetNode_CacheMissThenHit(t *testing.T) {
	repo := &fakeRepo{nodes: map[string]domain.Node{
		"/beds/1": {ID: "/beds/1", Type: "Bed", ContentDigest: "d1"},
	}}
	cache := &fakeCache{}
	q := app.NewQueryService(repo, cache, 10*time.Minute)

	n, err := q.GetNode(context.Background(), "/beds/1")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if n.ID != "/beds/1" || n.ContentDigest != "d1" {
		t.Fatalf("unexpected node: %+v", n)
	}

	// mutate repo to ensure the second read comes from cache
	repo.nodes["/beds/1"] = domain.Node{ID: "/beds/1", Type: "Bed", ContentDigest: "SHOULD NOT SEE THIS"}

	n2, err := q.GetNode(context.Background(), "/beds/1")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if n2.ContentDigest != "d1" {
		t.Fatalf("expected cached digest, got %s", n2.ContentDigest)
	}
	if repo.calls != 1 {
		t.Fatalf("expected one repo call, got %d", repo.calls)
	}
}

func TestGetNode_NotFound(t *testing.T) {
	q := app.NewQueryService(&fakeRepo{}, &fakeCache{}, time.Minute)
	if _, err := q.GetNode(context.Background(), "/nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetNodes_KeepsRequestOrderAndSkipsUnknown(t *testing.T) {
	repo := &fakeRepo{nodes: map[string]domain.Node{
		"/highlights/1": {ID: "/highlights/1", Type: "Highlight"},
		"/highlights/2": {ID: "/highlights/2", Type: "Highlight"},
		"/highlights/3": {ID: "/highlights/3", Type: "Highlight"},
	}}
	q := app.NewQueryService(repo, &fakeCache{}, time.Minute)

	got, err := q.GetNodes(context.Background(), []string{"/highlights/3", "/missing", "/highlights/1"})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	var ids []string
	for _, n := range got {
		ids = append(ids, n.ID)
	}
	if diff := cmp.Diff([]string{"/highlights/3", "/highlights/1"}, ids); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}

	empty, err := q.GetNodes(context.Background(), nil)
	if err != nil || len(empty) != 0 || empty == nil {
		t.Fatalf("expected empty non-nil slice, got %v %v", empty, err)
	}
}

func TestListByType_ClampsLimit(t *testing.T) {
	repo := &fakeRepo{nodes: map[string]domain.Node{
		"/beds/1":    {ID: "/beds/1", Type: "Bed"},
		"/beds/2":    {ID: "/beds/2", Type: "Bed"},
		"/seasons/1": {ID: "/seasons/1", Type: "Season"},
	}}
	q := app.NewQueryService(repo, &fakeCache{}, time.Minute)
	got, err := q.ListByType(context.Background(), "Bed", 0)
	if err != nil || len(got) != 2 {
		t.Fatalf("expected both beds, got %d (%v)", len(got), err)
	}
	got, _ = q.ListByType(context.Background(), "Bed", 1)
	if len(got) != 1 {
		t.Fatalf("expected limit 1, got %d", len(got))
	}
}
