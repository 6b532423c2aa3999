package registry

import (
	"errors"
	"testing"

	"github.com/ternarybob/orchestrator/internal/models"
)

func sampleNodes() []models.Node {
	return []models.Node{
		{ID: "n1", Tier: models.TierDraft, Host: "localhost", Port: 9001, CapabilityTags: []string{"sd15"}},
		{ID: "n2", Tier: models.TierQuality, Host: "localhost", Port: 9002, CapabilityTags: []string{"sdxl", "upscale"}},
	}
}

func TestLoadRejectsUnknownCapability(t *testing.T) {
	r := New(nil)
	err := r.Load([]models.Node{
		{ID: "n1", Tier: models.TierDraft, Host: "h", Port: 1, CapabilityTags: []string{"not-a-real-tag"}},
	})
	if !errors.Is(err, models.ErrConfigError) {
		t.Fatalf("expected ErrConfigError, got %v", err)
	}
}

func TestLoadRejectsMissingFields(t *testing.T) {
	r := New(nil)
	if err := r.Load([]models.Node{{Tier: models.TierDraft, Host: "h", Port: 1}}); !errors.Is(err, models.ErrConfigError) {
		t.Fatalf("expected ErrConfigError for missing id, got %v", err)
	}
	if err := r.Load([]models.Node{{ID: "n1", Tier: models.TierDraft}}); !errors.Is(err, models.ErrConfigError) {
		t.Fatalf("expected ErrConfigError for missing host/port, got %v", err)
	}
}

func TestLoadRejectsDuplicateID(t *testing.T) {
	r := New(nil)
	err := r.Load([]models.Node{
		{ID: "n1", Tier: models.TierDraft, Host: "h", Port: 1},
		{ID: "n1", Tier: models.TierDraft, Host: "h", Port: 2},
	})
	if !errors.Is(err, models.ErrConfigError) {
		t.Fatalf("expected ErrConfigError for duplicate id, got %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	r := New(nil)
	if err := r.Load(sampleNodes()); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Get("missing"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCapableFiltersByTag(t *testing.T) {
	r := New(nil)
	if err := r.Load(sampleNodes()); err != nil {
		t.Fatal(err)
	}

	nodes := r.Capable(models.CapabilitySDXL)
	if len(nodes) != 1 || nodes[0].ID != "n2" {
		t.Fatalf("expected [n2], got %v", nodes)
	}
}

func TestUpdateHealthAndSnapshotConsistency(t *testing.T) {
	r := New(nil)
	if err := r.Load(sampleNodes()); err != nil {
		t.Fatal(err)
	}

	if err := r.UpdateHealth("n1", true, 42); err != nil {
		t.Fatal(err)
	}

	snap := r.Snapshot()
	var n1 *models.Node
	for _, n := range snap {
		if n.ID == "n1" {
			n1 = n
		}
	}
	if n1 == nil {
		t.Fatal("n1 missing from snapshot")
	}
	if !n1.Runtime.Healthy || n1.Runtime.LastLatencyMS != 42 {
		t.Fatalf("unexpected runtime state: %+v", n1.Runtime)
	}
	if n1.Runtime.Transitions != 1 {
		t.Fatalf("expected 1 transition, got %d", n1.Runtime.Transitions)
	}
}

func TestBumpQueueClampsAtZero(t *testing.T) {
	r := New(nil)
	if err := r.Load(sampleNodes()); err != nil {
		t.Fatal(err)
	}

	if err := r.BumpQueue("n1", -5); err != nil {
		t.Fatal(err)
	}
	n, _ := r.Get("n1")
	if n.Runtime.QueueDepth != 0 {
		t.Fatalf("queue depth = %d, want clamped to 0", n.Runtime.QueueDepth)
	}

	if err := r.BumpQueue("n1", 3); err != nil {
		t.Fatal(err)
	}
	n, _ = r.Get("n1")
	if n.Runtime.QueueDepth != 3 {
		t.Fatalf("queue depth = %d, want 3", n.Runtime.QueueDepth)
	}
}

func TestSnapshotIsIndependentOfFutureMutation(t *testing.T) {
	r := New(nil)
	if err := r.Load(sampleNodes()); err != nil {
		t.Fatal(err)
	}

	snap := r.Snapshot()
	r.BumpQueue("n1", 5)

	for _, n := range snap {
		if n.ID == "n1" && n.Runtime.QueueDepth != 0 {
			t.Fatalf("snapshot mutated after BumpQueue: %d", n.Runtime.QueueDepth)
		}
	}
}
