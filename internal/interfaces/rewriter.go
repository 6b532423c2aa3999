package interfaces

import "context"

// Rewriter is the external prompt-rewriting collaborator seam. It is not
// specified further by the core orchestrator; a no-op implementation
// satisfies it by returning the inputs unchanged.
type Rewriter interface {
	// Rewrite returns a possibly-adjusted prompt/negative-prompt pair and a
	// rationale string explaining the adjustment (or lack of one).
	Rewrite(ctx context.Context, prompt, negative string) (newPrompt, newNegative, rationale string, err error)
}
