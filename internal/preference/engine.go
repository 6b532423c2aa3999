// Package preference implements the Preference Learning Engine: it records
// selection/rejection decisions keyed by keyword, model, and adapter, and
// answers recommendation queries from a Bayesian-smoothed blend of observed
// rate and a neutral prior.
package preference

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/orchestrator/internal/interfaces"
	"github.com/ternarybob/orchestrator/internal/models"
)

const (
	smoothing  = 10.0
	priorScore = 0.5
)

// Engine is the Preference Learning Engine. All mutation flows through
// Record, which is the single writer; readers (RecommendModel,
// RecommendAdapters, Export) snapshot state under the same lock so they
// never observe a partial update.
type Engine struct {
	mu      sync.RWMutex
	records []models.PreferenceRecord
	stats   map[models.StatKey]models.Stat
	logger  arbor.ILogger
}

// New creates an empty Engine.
func New(logger arbor.ILogger) *Engine {
	return &Engine{
		stats:  make(map[models.StatKey]models.Stat),
		logger: logger,
	}
}

// Record appends a Preference Record and updates every derived statistic the
// record touches: (keyword, model), (keyword, adapter), (model, adapter),
// and the coarse (model) aggregate.
func (e *Engine) Record(prompt, model string, adapters []string, action models.PreferenceAction, stage int, sessionID, feedbackText string) {
	keywords := extractKeywords(prompt)
	selected := action == models.ActionSelected

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, k := range keywords {
		e.records = append(e.records, models.PreferenceRecord{
			Keyword: k, Model: model, Stage: stage, Action: action,
			FeedbackText: feedbackText, Timestamp: time.Now(),
		})
	}
	if len(keywords) == 0 {
		e.records = append(e.records, models.PreferenceRecord{
			Model: model, Stage: stage, Action: action, FeedbackText: feedbackText, Timestamp: time.Now(),
		})
	}

	for _, k := range keywords {
		e.bump(models.StatKey{Kind: models.StatKindKeywordModel, A: k, B: model}, selected)
		for _, adapter := range adapters {
			e.bump(models.StatKey{Kind: models.StatKindKeywordAdapter, A: k, B: adapter}, selected)
		}
	}
	for _, adapter := range adapters {
		e.bump(models.StatKey{Kind: models.StatKindModelAdapter, A: model, B: adapter}, selected)
	}
	e.bump(models.StatKey{Kind: models.StatKindModel, A: model}, selected)

	if e.logger != nil {
		e.logger.Info().Str("session_id", sessionID).Str("model", model).Str("action", string(action)).Msg("preference recorded")
	}
}

// bump increments a stat's total (and selected, if selected) count. Caller
// must hold e.mu.
func (e *Engine) bump(key models.StatKey, selected bool) {
	stat := e.stats[key]
	stat.Total++
	if selected {
		stat.Selected++
	}
	e.stats[key] = stat
}

// RecommendModel scores each candidate against the prompt's keyword set and
// returns the argmax with its confidence. Ties are broken by candidate id.
// If the keyword set is empty and none of the candidates has ever been
// recorded, the first candidate is returned with confidence 0 (the
// unknown-model fallback).
func (e *Engine) RecommendModel(prompt string, candidates []string) interfaces.Recommendation {
	if len(candidates) == 0 {
		return interfaces.Recommendation{}
	}
	keywords := extractKeywords(prompt)

	e.mu.RLock()
	defer e.mu.RUnlock()

	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)

	if len(keywords) == 0 && !e.anySeen(sorted) {
		return interfaces.Recommendation{ID: sorted[0], Confidence: 0, Score: priorScore}
	}

	bestID := sorted[0]
	bestScore := e.scoreModel(keywords, sorted[0])
	for _, c := range sorted[1:] {
		score := e.scoreModel(keywords, c)
		if score > bestScore {
			bestID, bestScore = c, score
		}
	}

	return interfaces.Recommendation{ID: bestID, Confidence: e.confidence(keywords, sorted), Score: bestScore}
}

// RecommendAdapters returns the top k adapters by a blend of per-keyword
// (keyword, adapter) score and the (model, adapter) score, equally weighted.
func (e *Engine) RecommendAdapters(prompt, model string, candidates []string, k int) []interfaces.Recommendation {
	keywords := extractKeywords(prompt)

	e.mu.RLock()
	defer e.mu.RUnlock()

	recs := make([]interfaces.Recommendation, len(candidates))
	for i, a := range candidates {
		keywordScore := e.scoreKeywordAdapter(keywords, a)
		modelScore := e.blended(e.stats[models.StatKey{Kind: models.StatKindModelAdapter, A: model, B: a}])
		recs[i] = interfaces.Recommendation{ID: a, Score: 0.5*keywordScore + 0.5*modelScore}
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].ID < recs[j].ID
	})

	if k > len(recs) {
		k = len(recs)
	}
	return recs[:k]
}

// scoreModel computes S(m) = mean of per-keyword blended scores, or the
// prior when the keyword set is empty.
func (e *Engine) scoreModel(keywords []string, model string) float64 {
	if len(keywords) == 0 {
		return priorScore
	}
	sum := 0.0
	for _, k := range keywords {
		sum += e.blended(e.stats[models.StatKey{Kind: models.StatKindKeywordModel, A: k, B: model}])
	}
	return sum / float64(len(keywords))
}

// scoreKeywordAdapter averages the per-keyword (keyword, adapter) blended
// score across the prompt's keyword set, or the prior when empty.
func (e *Engine) scoreKeywordAdapter(keywords []string, adapter string) float64 {
	if len(keywords) == 0 {
		return priorScore
	}
	sum := 0.0
	for _, k := range keywords {
		sum += e.blended(e.stats[models.StatKey{Kind: models.StatKindKeywordAdapter, A: k, B: adapter}])
	}
	return sum / float64(len(keywords))
}

// blended computes (1-w)*prior + w*rate, where w = tot/(tot+smoothing).
func (e *Engine) blended(stat models.Stat) float64 {
	if stat.Total == 0 {
		return priorScore
	}
	rate := stat.Rate(priorScore)
	w := float64(stat.Total) / (float64(stat.Total) + smoothing)
	return (1-w)*priorScore + w*rate
}

// confidence sums tot across all (keyword, model) stats touching the
// keyword set and candidate models, scaled to [0, 1] at T=100.
func (e *Engine) confidence(keywords []string, candidates []string) float64 {
	var total int
	for _, k := range keywords {
		for _, m := range candidates {
			total += e.stats[models.StatKey{Kind: models.StatKindKeywordModel, A: k, B: m}].Total
		}
	}
	return math.Min(float64(total)/100.0, 1.0)
}

// anySeen reports whether any candidate has a non-zero coarse stat, used to
// special-case the unknown-model failure mode when the keyword set is empty.
func (e *Engine) anySeen(candidates []string) bool {
	for _, c := range candidates {
		if e.stats[models.StatKey{Kind: models.StatKindModel, A: c}].Total > 0 {
			return true
		}
	}
	return false
}

// Stats returns a snapshot of every derived statistic the engine has
// accumulated, flattened for JSON serving.
func (e *Engine) Stats() []statEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]statEntry, 0, len(e.stats))
	for k, v := range e.stats {
		out = append(out, statEntry{Key: k, Stat: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Kind != out[j].Key.Kind {
			return out[i].Key.Kind < out[j].Key.Kind
		}
		if out[i].Key.A != out[j].Key.A {
			return out[i].Key.A < out[j].Key.A
		}
		return out[i].Key.B < out[j].Key.B
	})
	return out
}

var _ interfaces.PreferenceEngine = (*Engine)(nil)
