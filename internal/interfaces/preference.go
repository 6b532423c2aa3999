package interfaces

import "github.com/ternarybob/orchestrator/internal/models"

// Recommendation is the result of scoring candidate models or adapters
// against a prompt's keyword set.
type Recommendation struct {
	ID         string
	Confidence float64
	Score      float64
}

// PreferenceEngine learns, from recorded selections and rejections, which
// models and adapters tend to be selected for which kinds of prompt.
type PreferenceEngine interface {
	// Record appends a Preference Record and updates derived statistics.
	Record(prompt, model string, adapters []string, action models.PreferenceAction, stage int, sessionID, feedbackText string)

	// RecommendModel scores each candidate and returns the argmax with its
	// confidence. Ties are broken by candidate id.
	RecommendModel(prompt string, candidates []string) Recommendation

	// RecommendAdapters returns the top k candidate adapters by blended score.
	RecommendAdapters(prompt, model string, candidates []string, k int) []Recommendation

	// Export serializes the current state to the versioned export format.
	Export() ([]byte, error)

	// Import atomically replaces current state from a previously exported
	// document. Fails with ErrCorruptExport on partially-decoded input.
	Import(data []byte) error
}
