package recommend

import (
	"time"

	"github.com/fyrsmithlabs/linkd/internal/catalog"
)

// Enhancer adjusts a hybrid score after the weighted blend. Additive
// enhancers return a delta; multiplicative ones a factor (delta zero,
// factor non-zero). Returning (0, 0) means no adjustment.
type Enhancer interface {
	Name() string
	Adjust(target *catalog.Article, now time.Time) (delta float64, factor float64)
}

// FreshnessDecay rewards recently updated targets and penalizes stale
// ones. Boundaries follow the relevance-decay buckets used in link
// scoring so the two surfaces agree on what "fresh" means.
type FreshnessDecay struct{}

func (FreshnessDecay) Name() string { return "freshnessDecay" }

func (FreshnessDecay) Adjust(target *catalog.Article, now time.Time) (float64, float64) {
	ref := target.UpdatedAt
	if ref.IsZero() {
		ref = target.PublishedAt
	}
	if ref.IsZero() {
		return -5, 0
	}
	days := now.Sub(ref).Hours() / 24
	switch {
	case days <= 30:
		return 5, 0
	case days <= 90:
		return 3, 0
	case days <= 180:
		return 1, 0
	case days <= 365:
		return 0, 0
	default:
		return -5, 0
	}
}

// SeasonalBoost is an extension point for calendar-driven boosts. The
// default build applies none.
type SeasonalBoost struct{}

func (SeasonalBoost) Name() string { return "seasonalBoost" }

func (SeasonalBoost) Adjust(*catalog.Article, time.Time) (float64, float64) {
	return 0, 0
}

// EEATBoost is an extension point for authority signals sourced outside
// the catalog. The default build applies none.
type EEATBoost struct{}

func (EEATBoost) Name() string { return "eeatBoost" }

func (EEATBoost) Adjust(*catalog.Article, time.Time) (float64, float64) {
	return 0, 0
}

// VelocityGuard is an extension point for rate-limiting link creation
// toward targets that gained links unnaturally fast. The default build
// applies none and reports normal velocity.
type VelocityGuard struct{}

func (VelocityGuard) Name() string { return "velocityGuard" }

func (VelocityGuard) Adjust(*catalog.Article, time.Time) (float64, float64) {
	return 0, 0
}

// Status reports the velocity verdict for response stats.
func (VelocityGuard) Status() string { return "normal" }

func defaultEnhancers() []Enhancer {
	return []Enhancer{SeasonalBoost{}, FreshnessDecay{}, EEATBoost{}, VelocityGuard{}}
}

// applyEnhancers runs the chain over a score and records non-zero
// adjustments.
func applyEnhancers(enhancers []Enhancer, target *catalog.Article, score float64, now time.Time) (float64, []Enhancement) {
	var notes []Enhancement
	for _, e := range enhancers {
		delta, factor := e.Adjust(target, now)
		switch {
		case factor != 0 && factor != 1:
			score *= factor
			notes = append(notes, Enhancement{Name: e.Name(), Factor: factor})
		case delta != 0:
			score += delta
			notes = append(notes, Enhancement{Name: e.Name(), Delta: delta})
		}
	}
	if score < 0 {
		score = 0
	}
	return score, notes
}
