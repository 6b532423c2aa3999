package router

import (
	"errors"
	"testing"

	"github.com/ternarybob/orchestrator/internal/interfaces"
	"github.com/ternarybob/orchestrator/internal/models"
	"github.com/ternarybob/orchestrator/internal/registry"
)

func newTestRegistry(t *testing.T, nodes []models.Node) *registry.Registry {
	t.Helper()
	r := registry.New(nil)
	if err := r.Load(nodes); err != nil {
		t.Fatal(err)
	}
	for _, n := range nodes {
		if err := r.UpdateHealth(n.ID, true, 10); err != nil {
			t.Fatal(err)
		}
		if n.Runtime.QueueDepth != 0 {
			if err := r.BumpQueue(n.ID, n.Runtime.QueueDepth); err != nil {
				t.Fatal(err)
			}
		}
	}
	return r
}

func TestRouteNoCapableNode(t *testing.T) {
	r := newTestRegistry(t, nil)
	router := New(r, DefaultOverflowThreshold)

	_, err := router.Route(interfaces.RouteRequest{TaskClass: models.TaskClassDraft, Capability: models.CapabilitySD15})
	if !errors.Is(err, models.ErrNoCapableNode) {
		t.Fatalf("expected ErrNoCapableNode, got %v", err)
	}
}

func TestRouteQualityClassPrefersHigherTier(t *testing.T) {
	r := newTestRegistry(t, []models.Node{
		{ID: "draft1", Tier: models.TierDraft, Host: "h", Port: 1, CapabilityTags: []string{"sdxl"}},
		{ID: "premium1", Tier: models.TierPremium, Host: "h", Port: 2, CapabilityTags: []string{"sdxl"}},
	})
	router := New(r, DefaultOverflowThreshold)

	candidates, err := router.Route(interfaces.RouteRequest{TaskClass: models.TaskClassQuality, Capability: models.CapabilitySDXL})
	if err != nil {
		t.Fatal(err)
	}
	if candidates[0].ID != "premium1" {
		t.Fatalf("expected premium1 first for quality class, got %s", candidates[0].ID)
	}
}

func TestRouteDraftClassPrefersLowerTier(t *testing.T) {
	r := newTestRegistry(t, []models.Node{
		{ID: "draft1", Tier: models.TierDraft, Host: "h", Port: 1, CapabilityTags: []string{"sdxl"}},
		{ID: "premium1", Tier: models.TierPremium, Host: "h", Port: 2, CapabilityTags: []string{"sdxl"}},
	})
	router := New(r, DefaultOverflowThreshold)

	candidates, err := router.Route(interfaces.RouteRequest{TaskClass: models.TaskClassDraft, Capability: models.CapabilitySDXL})
	if err != nil {
		t.Fatal(err)
	}
	if candidates[0].ID != "draft1" {
		t.Fatalf("expected draft1 first for draft class, got %s", candidates[0].ID)
	}
}

func TestRouteOverflowSpill(t *testing.T) {
	// [n1(queue=5), n2(queue=0), n3(queue=0)], threshold 3 -> n2 promoted to head.
	r := registry.New(nil)
	if err := r.Load([]models.Node{
		{ID: "n1", Tier: models.TierQuality, Host: "h", Port: 1, CapabilityTags: []string{"sdxl"}},
		{ID: "n2", Tier: models.TierQuality, Host: "h", Port: 2, CapabilityTags: []string{"sdxl"}},
		{ID: "n3", Tier: models.TierQuality, Host: "h", Port: 3, CapabilityTags: []string{"sdxl"}},
	}); err != nil {
		t.Fatal(err)
	}
	for _, n := range []string{"n1", "n2", "n3"} {
		if err := r.UpdateHealth(n, true, 10); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.BumpQueue("n1", 5); err != nil {
		t.Fatal(err)
	}

	router := New(r, 3)
	candidates, err := router.Route(interfaces.RouteRequest{TaskClass: models.TaskClassQuality, Capability: models.CapabilitySDXL})
	if err != nil {
		t.Fatal(err)
	}
	if candidates[0].ID != "n2" {
		t.Fatalf("expected n2 promoted to head, got %s (full order: %v)", candidates[0].ID, ids(candidates))
	}
}

func TestRoutePreferredNodePlacedFirst(t *testing.T) {
	r := newTestRegistry(t, []models.Node{
		{ID: "n1", Tier: models.TierDraft, Host: "h", Port: 1, CapabilityTags: []string{"sdxl"}},
		{ID: "n2", Tier: models.TierDraft, Host: "h", Port: 2, CapabilityTags: []string{"sdxl"}},
	})
	router := New(r, DefaultOverflowThreshold)

	candidates, err := router.Route(interfaces.RouteRequest{
		TaskClass: models.TaskClassDraft, Capability: models.CapabilitySDXL, PreferredNode: "n2",
	})
	if err != nil {
		t.Fatal(err)
	}
	if candidates[0].ID != "n2" {
		t.Fatalf("expected preferred node n2 first, got %s", candidates[0].ID)
	}
}

func TestRouteTieBreaksByNodeID(t *testing.T) {
	r := newTestRegistry(t, []models.Node{
		{ID: "zzz", Tier: models.TierDraft, Host: "h", Port: 1, CapabilityTags: []string{"sdxl"}},
		{ID: "aaa", Tier: models.TierDraft, Host: "h", Port: 2, CapabilityTags: []string{"sdxl"}},
	})
	router := New(r, DefaultOverflowThreshold)

	candidates, err := router.Route(interfaces.RouteRequest{TaskClass: models.TaskClassDraft, Capability: models.CapabilitySDXL})
	if err != nil {
		t.Fatal(err)
	}
	if candidates[0].ID != "aaa" {
		t.Fatalf("expected tie-break to pick aaa first, got %s", candidates[0].ID)
	}
}

func ids(nodes []*models.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}
