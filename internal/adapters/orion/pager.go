package orion

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"orion_source/internal/domain"
)

var lastPagePattern = regexp.MustCompile(`(?i)[&|?]page=(\d+)`)

// LastPage extracts the page number from a hydra:last link such as
// "/rentals?page=5" or "/rentals?groups[]=x&page=12". ok is false when the
// link carries no page parameter.
func LastPage(link string) (int, bool) {
	m := lastPagePattern.FindStringSubmatch(link)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// TruncationPolicy caps the number of pages walked for some endpoints when
// Restricted is set. Used to keep non-production runs short.
type TruncationPolicy struct {
	Restricted bool
	Caps       map[string]int
}

func (p TruncationPolicy) Apply(endpoint string, last int) int {
	if !p.Restricted {
		return last
	}
	if limit, ok := p.Caps[endpoint]; ok && limit > 0 && limit < last {
		return limit
	}
	return last
}

type Pager struct {
	client      domain.CatalogClient
	policy      TruncationPolicy
	quarantined atomic.Int64
}

func NewPager(c domain.CatalogClient, p TruncationPolicy) *Pager {
	return &Pager{client: c, policy: p}
}

// FetchAll walks every page of endpoint in order and returns the members
// page by page. Duplicates across pages are kept. Members that are not valid
// entities are dropped and counted.
func (p *Pager) FetchAll(ctx context.Context, endpoint string, params map[string]any, headers map[string]string) ([]domain.Entity, error) {
	var out []domain.Entity
	for page, last := 1, 1; page <= last; page++ {
		q := make(map[string]any, len(params)+1)
		for k, v := range params {
			q[k] = v
		}
		q["page"] = page

		res, err := p.client.Fetch(ctx, endpoint, q, headers)
		if err != nil {
			return nil, fmt.Errorf("%s page %d: %w", endpoint, page, err)
		}
		if res.View != nil && res.View.Last != "" {
			if n, ok := LastPage(res.View.Last); ok {
				last = p.policy.Apply(endpoint, n)
			}
		}
		for _, raw := range res.Members {
			e, err := domain.DecodeEntity(raw)
			if err != nil {
				p.quarantined.Add(1)
				log.Warn().Err(err).Str("endpoint", endpoint).Int("page", page).Msg("member quarantined")
				continue
			}
			out = append(out, e)
		}
	}
	return out, nil
}

// Quarantined is the number of members dropped since the pager was created.
func (p *Pager) Quarantined() int64 { return p.quarantined.Load() }
