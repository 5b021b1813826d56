package domain

import (
	"errors"
	"fmt"
)

// Node types produced besides the catalog's own @type tags.
const (
	TypeRentalPicture = "RentalPicture"
	TypeUserLocale    = "UserLocale"
)

var (
	ErrNotFound      = errors.New("orion: node not found")
	ErrDuplicateNode = errors.New("orion: duplicate node id")
)

// Node is the materialized graph unit handed to the renderer. Fields holds
// the node's queryable members; relations to other nodes are ids only.
type Node struct {
	ID            string         `json:"id"`
	Parent        *string        `json:"parent"`
	Children      []string       `json:"children"`
	Type          string         `json:"type"`
	Content       string         `json:"content"`
	ContentDigest string         `json:"contentDigest"`
	Fields        map[string]any `json:"fields"`
}

// Graph is an ordered set of nodes with unique ids.
type Graph struct {
	order []string
	byID  map[string]Node
}

func NewGraph() *Graph {
	return &Graph{byID: make(map[string]Node)}
}

func (g *Graph) Add(n Node) error {
	if _, ok := g.byID[n.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
	}
	if n.Children == nil {
		n.Children = []string{}
	}
	g.order = append(g.order, n.ID)
	g.byID[n.ID] = n
	return nil
}

func (g *Graph) Len() int { return len(g.order) }

func (g *Graph) Get(id string) (Node, bool) {
	n, ok := g.byID[id]
	return n, ok
}

// GetMany returns the nodes for ids in request order, skipping unknown ids.
func (g *Graph) GetMany(ids []string) []Node {
	out := make([]Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := g.byID[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Nodes returns all nodes in creation order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.byID[id])
	}
	return out
}

func (g *Graph) ByType(typ string) []Node {
	var out []Node
	for _, id := range g.order {
		if n := g.byID[id]; n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

// CountByType is keyed by node type.
func (g *Graph) CountByType() map[string]int {
	out := make(map[string]int)
	for _, n := range g.byID {
		out[n.Type]++
	}
	return out
}

// Orphans lists nodes whose parent id does not resolve inside the graph.
func (g *Graph) Orphans() []Node {
	var out []Node
	for _, id := range g.order {
		n := g.byID[id]
		if n.Parent == nil {
			continue
		}
		if _, ok := g.byID[*n.Parent]; !ok {
			out = append(out, n)
		}
	}
	return out
}
