package recommend

import (
	"sort"

	"github.com/fyrsmithlabs/linkd/internal/catalog"
)

// Funnel target shares for a balanced link set.
var funnelShares = map[string]float64{
	catalog.StageAwareness:     0.3,
	catalog.StageConsideration: 0.4,
	catalog.StageDecision:      0.3,
}

// balanceFunnel reorders candidates so the first maxLinks picks
// approximate the target funnel distribution, using largest-remainder
// quotas. Within a stage the score order is preserved; when fewer than
// two known stages are present the input order stands. Candidates beyond
// the quota picks follow in score order.
func balanceFunnel(recs []*recommendation, maxLinks int) []*recommendation {
	if maxLinks <= 0 || len(recs) <= 1 {
		return recs
	}

	byStage := make(map[string][]*recommendation)
	for _, r := range recs {
		stage := r.article.FunnelStage
		if _, known := funnelShares[stage]; !known {
			stage = catalog.StageUnknown
		}
		byStage[stage] = append(byStage[stage], r)
	}

	known := 0
	for stage := range byStage {
		if stage != catalog.StageUnknown {
			known++
		}
	}
	if known < 2 {
		return recs
	}

	quotas := stageQuotas(byStage, maxLinks)

	picked := make([]*recommendation, 0, len(recs))
	taken := make(map[*recommendation]bool, len(recs))
	for _, stage := range []string{catalog.StageAwareness, catalog.StageConsideration, catalog.StageDecision} {
		pool := byStage[stage]
		for i := 0; i < quotas[stage] && i < len(pool); i++ {
			picked = append(picked, pool[i])
			taken[pool[i]] = true
		}
	}

	for _, r := range recs {
		if !taken[r] {
			picked = append(picked, r)
		}
	}

	// Quota picks lead, highest score first.
	head := picked[:min(len(taken), len(picked))]
	sort.SliceStable(head, func(i, j int) bool { return head[i].enhanced > head[j].enhanced })
	return picked
}

// stageQuotas distributes maxLinks across stages by largest remainder,
// capped by per-stage availability.
func stageQuotas(byStage map[string][]*recommendation, maxLinks int) map[string]int {
	type alloc struct {
		stage     string
		remainder float64
	}

	quotas := make(map[string]int, len(funnelShares))
	assigned := 0
	var remainders []alloc
	for stage, share := range funnelShares {
		exact := share * float64(maxLinks)
		q := int(exact)
		if avail := len(byStage[stage]); q > avail {
			q = avail
		}
		quotas[stage] = q
		assigned += q
		remainders = append(remainders, alloc{stage, exact - float64(int(exact))})
	}

	sort.Slice(remainders, func(i, j int) bool {
		if remainders[i].remainder != remainders[j].remainder {
			return remainders[i].remainder > remainders[j].remainder
		}
		return remainders[i].stage < remainders[j].stage
	})

	for assigned < maxLinks {
		grew := false
		for _, a := range remainders {
			if assigned >= maxLinks {
				break
			}
			if quotas[a.stage] < len(byStage[a.stage]) {
				quotas[a.stage]++
				assigned++
				grew = true
			}
		}
		if !grew {
			break
		}
	}
	return quotas
}
