package orion_test

import (
	"testing"

	"orion_source/internal/adapters/orion"
)

func TestEncodeQuery(t *testing.T) {
	cases := []struct {
		name   string
		params map[string]any
		want   string
	}{
		{"empty", nil, ""},
		{"scalars sorted", map[string]any{"perPage": 10, "page": 1, "flag": true}, "flag=true&page=1&perPage=10"},
		{"array", map[string]any{"groups": []string{"a:b", "c"}}, "groups%5B0%5D=a%3Ab&groups%5B1%5D=c"},
		{"nested", map[string]any{"order": map[string]any{"title": "asc", "id": "desc"}}, "order%5Bid%5D=desc&order%5Btitle%5D=asc"},
		{"nil skipped", map[string]any{"a": nil, "b": "x y"}, "b=x%20y"},
		{"array of maps", map[string]any{"f": []any{map[string]any{"k": 1.5}}}, "f%5B0%5D%5Bk%5D=1.5"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := orion.EncodeQuery(c.params); got != c.want {
				t.Fatalf("got %q want %q", got, c.want)
			}
		})
	}
}

func TestEncodeQuery_Deterministic(t *testing.T) {
	p := map[string]any{"z": 1, "a": []string{"x"}, "m": map[string]any{"b": 2, "a": 1}}
	first := orion.EncodeQuery(p)
	for i := 0; i < 20; i++ {
		if got := orion.EncodeQuery(p); got != first {
			t.Fatalf("encoding changed between calls: %q vs %q", first, got)
		}
	}
}
