package policy

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/pennybridge/mnemon/pkg/domain/types"
)

// MergeStrategy selects how a matched record absorbs new content.
type MergeStrategy string

const (
	// MergeUpdate mutates the matched record in place.
	MergeUpdate MergeStrategy = "update"
	// MergeRecreate writes an enriched replacement record and deletes the
	// old one only after the new one is durably persisted.
	MergeRecreate MergeStrategy = "recreate"
)

// IsValid checks if the merge strategy is a known value
func (s MergeStrategy) IsValid() bool {
	return s == MergeUpdate || s == MergeRecreate
}

// Similarity holds the dedup decision thresholds and the guarded low-band
// fallback settings.
type Similarity struct {
	AutoUpdate       float64          `toml:"auto_update"`
	CheckLow         float64          `toml:"check_low"`
	CheckTopK        int              `toml:"check_topk"`
	FallbackLow      float64          `toml:"fallback_low"`
	FallbackTopK     int              `toml:"fallback_topk"`
	FallbackOverlap  int              `toml:"fallback_overlap"`
	FallbackRecency  int              `toml:"fallback_recency_hours"`
	FallbackEnabled  bool             `toml:"fallback_enabled"`
	MinImportance    float64          `toml:"min_importance"`
	Strategy         MergeStrategy    `toml:"merge_strategy"`
	FallbackCategory []types.Category `toml:"fallback_categories"`
}

// Validate checks if the similarity section is consistent
func (s *Similarity) Validate() error {
	for name, v := range map[string]float64{
		"auto_update":    s.AutoUpdate,
		"check_low":      s.CheckLow,
		"fallback_low":   s.FallbackLow,
		"min_importance": s.MinImportance,
	} {
		if v < 0 || v > 1 {
			return goerr.New("similarity threshold out of [0,1]",
				goerr.V("name", name), goerr.V("value", v))
		}
	}
	if s.AutoUpdate < s.CheckLow {
		return goerr.New("auto_update must not be below check_low",
			goerr.V("auto_update", s.AutoUpdate), goerr.V("check_low", s.CheckLow))
	}
	if s.CheckLow < s.FallbackLow {
		return goerr.New("check_low must not be below fallback_low",
			goerr.V("check_low", s.CheckLow), goerr.V("fallback_low", s.FallbackLow))
	}
	if s.CheckTopK < 1 {
		return goerr.New("check_topk must be positive", goerr.V("check_topk", s.CheckTopK))
	}
	if s.FallbackEnabled && s.FallbackTopK < 1 {
		return goerr.New("fallback_topk must be positive when fallback is enabled",
			goerr.V("fallback_topk", s.FallbackTopK))
	}
	if !s.Strategy.IsValid() {
		return goerr.New("unknown merge strategy", goerr.V("merge_strategy", s.Strategy))
	}
	for _, c := range s.FallbackCategory {
		if !c.IsValid() {
			return goerr.New("unknown fallback category", goerr.V("category", c))
		}
	}
	return nil
}

// FallbackAllows reports whether the guarded low-band fallback applies to a
// category.
func (s *Similarity) FallbackAllows(category types.Category) bool {
	for _, c := range s.FallbackCategory {
		if c == category {
			return true
		}
	}
	return false
}

// Episodic holds the post-turn capture policy.
type Episodic struct {
	CooldownTurns    int     `toml:"cooldown_turns"`
	CooldownMinutes  int     `toml:"cooldown_minutes"`
	MaxPerDay        int     `toml:"max_per_day"`
	NoveltyMin       float64 `toml:"novelty_min"`
	MergeThreshold   float64 `toml:"merge_threshold"`
	MergeWindowHours int     `toml:"merge_window_hours"`
	SummaryTurns     int     `toml:"summary_turns"`
	RecentPool       int     `toml:"recent_pool"`
}

// Validate checks if the episodic section is consistent
func (e *Episodic) Validate() error {
	if e.CooldownTurns < 0 || e.CooldownMinutes < 0 {
		return goerr.New("episodic cooldown must not be negative",
			goerr.V("turns", e.CooldownTurns), goerr.V("minutes", e.CooldownMinutes))
	}
	if e.MaxPerDay < 1 {
		return goerr.New("max_per_day must be positive", goerr.V("max_per_day", e.MaxPerDay))
	}
	if e.NoveltyMin < 0 || e.NoveltyMin > 1 {
		return goerr.New("novelty_min out of [0,1]", goerr.V("novelty_min", e.NoveltyMin))
	}
	if e.MergeThreshold < 0 || e.MergeThreshold > 1 {
		return goerr.New("merge_threshold out of [0,1]", goerr.V("merge_threshold", e.MergeThreshold))
	}
	if e.MergeWindowHours < 0 {
		return goerr.New("merge_window_hours must not be negative",
			goerr.V("merge_window_hours", e.MergeWindowHours))
	}
	if e.SummaryTurns < 1 {
		return goerr.New("summary_turns must be positive", goerr.V("summary_turns", e.SummaryTurns))
	}
	if e.RecentPool < 1 {
		return goerr.New("recent_pool must be positive", goerr.V("recent_pool", e.RecentPool))
	}
	return nil
}

// Retrieval holds the read-path pool sizes and hybrid rerank weights.
type Retrieval struct {
	ContextTopK        int     `toml:"context_topk"`
	ContextTopN        int     `toml:"context_topn"`
	EpisodicPool       int     `toml:"episodic_pool"`
	RecallEpisodicPool int     `toml:"recall_episodic_pool"`
	WeightSimilarity   float64 `toml:"weight_similarity"`
	WeightImportance   float64 `toml:"weight_importance"`
	WeightRecency      float64 `toml:"weight_recency"`
	RecallWeightRec    float64 `toml:"recall_weight_recency"`
	WeightPinned       float64 `toml:"weight_pinned"`
	RecencyHalfLife    float64 `toml:"recency_half_life_days"`
}

// Validate checks if the retrieval section is consistent
func (r *Retrieval) Validate() error {
	if r.ContextTopK < 1 || r.ContextTopN < 1 {
		return goerr.New("retrieval pool sizes must be positive",
			goerr.V("context_topk", r.ContextTopK), goerr.V("context_topn", r.ContextTopN))
	}
	if r.ContextTopN > r.ContextTopK {
		return goerr.New("context_topn must not exceed context_topk",
			goerr.V("context_topk", r.ContextTopK), goerr.V("context_topn", r.ContextTopN))
	}
	if r.EpisodicPool < 0 || r.RecallEpisodicPool < 0 {
		return goerr.New("episodic pool sizes must not be negative",
			goerr.V("episodic_pool", r.EpisodicPool),
			goerr.V("recall_episodic_pool", r.RecallEpisodicPool))
	}
	for name, w := range map[string]float64{
		"weight_similarity":     r.WeightSimilarity,
		"weight_importance":     r.WeightImportance,
		"weight_recency":        r.WeightRecency,
		"recall_weight_recency": r.RecallWeightRec,
		"weight_pinned":         r.WeightPinned,
	} {
		if w < 0 {
			return goerr.New("rerank weight must not be negative",
				goerr.V("name", name), goerr.V("value", w))
		}
	}
	if r.RecencyHalfLife <= 0 {
		return goerr.New("recency_half_life_days must be positive",
			goerr.V("recency_half_life_days", r.RecencyHalfLife))
	}
	return nil
}

// Policy is the full externally tunable configuration of the memory engine.
type Policy struct {
	Similarity Similarity `toml:"similarity"`
	Episodic   Episodic   `toml:"episodic"`
	Retrieval  Retrieval  `toml:"retrieval"`
}

// Validate checks every section
func (p *Policy) Validate() error {
	if err := p.Similarity.Validate(); err != nil {
		return goerr.Wrap(err, "invalid [similarity] section")
	}
	if err := p.Episodic.Validate(); err != nil {
		return goerr.Wrap(err, "invalid [episodic] section")
	}
	if err := p.Retrieval.Validate(); err != nil {
		return goerr.Wrap(err, "invalid [retrieval] section")
	}
	return nil
}

// Default returns the engine defaults, used when a section is absent from the
// loaded configuration.
func Default() *Policy {
	return &Policy{
		Similarity: Similarity{
			AutoUpdate:      0.90,
			CheckLow:        0.72,
			CheckTopK:       5,
			FallbackLow:     0.60,
			FallbackTopK:    2,
			FallbackOverlap: 2,
			FallbackRecency: 72,
			FallbackEnabled: true,
			MinImportance:   0.30,
			Strategy:        MergeRecreate,
			FallbackCategory: []types.Category{
				types.CategoryPersonal,
				types.CategoryGoals,
				types.CategoryFinance,
			},
		},
		Episodic: Episodic{
			CooldownTurns:    3,
			CooldownMinutes:  10,
			MaxPerDay:        8,
			NoveltyMin:       0.85,
			MergeThreshold:   0.80,
			MergeWindowHours: 12,
			SummaryTurns:     6,
			RecentPool:       10,
		},
		Retrieval: Retrieval{
			ContextTopK:        20,
			ContextTopN:        8,
			EpisodicPool:       3,
			RecallEpisodicPool: 10,
			WeightSimilarity:   0.55,
			WeightImportance:   0.20,
			WeightRecency:      0.15,
			RecallWeightRec:    0.35,
			WeightPinned:       0.10,
			RecencyHalfLife:    14,
		},
	}
}
