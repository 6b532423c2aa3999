// Package rewriter provides implementations of the external prompt-rewriting
// collaborator seam the Iteration Controller calls on a select feedback
// action.
package rewriter

import (
	"context"

	"github.com/ternarybob/orchestrator/internal/interfaces"
)

// Noop is the default Rewriter: it returns the inputs unchanged with a
// boilerplate rationale, for deployments with no configured rewriting
// provider.
type Noop struct{}

// NewNoop creates a Noop rewriter.
func NewNoop() *Noop { return &Noop{} }

// Rewrite returns prompt and negative unchanged.
func (n *Noop) Rewrite(ctx context.Context, prompt, negative string) (string, string, string, error) {
	return prompt, negative, "no rewriter configured; prompt unchanged", nil
}

var _ interfaces.Rewriter = (*Noop)(nil)
