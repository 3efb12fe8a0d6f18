package retrieval

import (
	"sort"

	"github.com/trident-search/trident/internal/config"
)

// RoutingPlan is the per-query execution plan: which backends run and the
// effective weight each one's normalized scores carry in the merge.
type RoutingPlan struct {
	// Weights holds the effective weight per routed backend (static config
	// weight times the query type's routing multiplier). A backend absent
	// from the map is not invoked.
	Weights map[config.Backend]float64

	// CrossModal indicates modality filters should be relaxed so results
	// may span text, image transcripts, and audio transcripts.
	CrossModal bool
}

// Backends returns the routed backends in stable order.
func (p RoutingPlan) Backends() []config.Backend {
	backends := make([]config.Backend, 0, len(p.Weights))
	for b := range p.Weights {
		backends = append(backends, b)
	}
	sort.Slice(backends, func(i, j int) bool { return backends[i] < backends[j] })
	return backends
}

// BuildRoutingPlan computes the plan for a query type. Pure function of
// its inputs. Disabled backends and zero-multiplier backends are excluded;
// an unknown query type gets multiplier 1.0 everywhere.
func BuildRoutingPlan(cfg *config.Config, queryType QueryType) RoutingPlan {
	rule, ok := cfg.Routing[string(queryType)]
	if !ok {
		rule = config.RoutingRule{Graph: 1.0, Vector: 1.0, Keyword: 1.0}
	}

	multipliers := map[config.Backend]float64{
		config.BackendGraph:   rule.Graph,
		config.BackendVector:  rule.Vector,
		config.BackendKeyword: rule.Keyword,
	}

	plan := RoutingPlan{
		Weights:    make(map[config.Backend]float64),
		CrossModal: rule.CrossModal,
	}
	for _, b := range config.AllBackends() {
		bc := cfg.Backends.Get(b)
		if !bc.Enabled || multipliers[b] == 0 {
			continue
		}
		plan.Weights[b] = bc.Weight * multipliers[b]
	}
	return plan
}
