package rewriter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoopReturnsInputsUnchanged(t *testing.T) {
	n := NewNoop()
	prompt, negative, rationale, err := n.Rewrite(context.Background(), "a castle", "blurry")
	assert.NoError(t, err)
	assert.Equal(t, "a castle", prompt)
	assert.Equal(t, "blurry", negative)
	assert.NotEmpty(t, rationale)
}

func TestStripCodeFenceRemovesJSONFence(t *testing.T) {
	in := "```json\n{\"prompt\":\"a\"}\n```"
	assert.Equal(t, `{"prompt":"a"}`, stripCodeFence(in))
}

func TestStripCodeFenceLeavesPlainJSONUntouched(t *testing.T) {
	in := `{"prompt":"a"}`
	assert.Equal(t, in, stripCodeFence(in))
}

func TestNewGenAIRequiresAPIKey(t *testing.T) {
	_, err := NewGenAI(context.Background(), "", "", nil)
	assert.Error(t, err)
}
