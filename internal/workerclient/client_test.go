package workerclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/orchestrator/internal/interfaces"
	"github.com/ternarybob/orchestrator/internal/models"
)

func testConfig() Config {
	return Config{
		SubmitTimeout:     time.Second,
		PollInterval:      10 * time.Millisecond,
		PollTimeout:       time.Second,
		ArtifactTimeout:   time.Second,
		ReconnectMinDelay: 5 * time.Millisecond,
		ReconnectMaxDelay: 20 * time.Millisecond,
		KeepaliveInterval: time.Second,
	}
}

func TestSubmitReturnsWorkerJobID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/submit", r.URL.Path)
		_ = json.NewEncoder(w).Encode(submitResponse{JobID: "wjob-1", QueueNumber: 2})
	}))
	defer srv.Close()

	c := New("n1", srv.URL, "", testConfig(), nil)
	id, err := c.Submit(context.Background(), map[string]interface{}{"node": "x"})
	require.NoError(t, err)
	assert.Equal(t, "wjob-1", id)
}

func TestSubmitRejectedByWorker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New("n1", srv.URL, "", testConfig(), nil)
	_, err := c.Submit(context.Background(), map[string]interface{}{})
	require.ErrorIs(t, err, models.ErrRejectedByWorker)
}

func TestPollUntilCompleteSucceeds(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			_ = json.NewEncoder(w).Encode(historyResponse{Status: "running"})
			return
		}
		_ = json.NewEncoder(w).Encode(historyResponse{
			Status: "complete",
			Outputs: []struct {
				Filename string `json:"filename"`
			}{{Filename: "out.png"}},
		})
	}))
	defer srv.Close()

	c := New("n1", srv.URL, "", testConfig(), nil)
	deadline, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	outcome, err := c.PollUntilComplete(context.Background(), "wjob-1", deadline)
	require.NoError(t, err)
	assert.Equal(t, "out.png", outcome.ArtifactFilename)
	assert.GreaterOrEqual(t, calls, 3)
}

func TestPollUntilCompleteFailsOnWorkerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(historyResponse{Status: "failed", Error: "OOM"})
	}))
	defer srv.Close()

	c := New("n1", srv.URL, "", testConfig(), nil)
	deadline, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := c.PollUntilComplete(context.Background(), "wjob-1", deadline)
	require.ErrorIs(t, err, models.ErrRejectedByWorker)
}

func TestPollUntilCompleteTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(historyResponse{Status: "running"})
	}))
	defer srv.Close()

	c := New("n1", srv.URL, "", testConfig(), nil)
	deadline, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := c.PollUntilComplete(context.Background(), "wjob-1", deadline)
	require.ErrorIs(t, err, models.ErrTimeout)
}

func TestFetchArtifactNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New("n1", srv.URL, "", testConfig(), nil)
	_, err := c.FetchArtifact(context.Background(), "missing.png")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestFetchArtifactSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("binary-data"))
	}))
	defer srv.Close()

	c := New("n1", srv.URL, "", testConfig(), nil)
	data, err := c.FetchArtifact(context.Background(), "out.png")
	require.NoError(t, err)
	assert.Equal(t, "binary-data", string(data))
}

func TestListAssetsFiltersByKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(assetResponse{
			Models:   []string{"sdxl_base.safetensors"},
			Adapters: []string{"lora1.safetensors"},
		})
	}))
	defer srv.Close()

	c := New("n1", srv.URL, "", testConfig(), nil)
	assets, err := c.ListAssets(context.Background(), interfaces.AssetAdapter)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "lora1.safetensors", assets[0].Name)
}

func wsURLFromHTTP(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestEventsDecodesProgressMessage(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		msg := map[string]interface{}{
			"type": "progress",
			"data": map[string]interface{}{"prompt-id": "p1", "value": 3, "max": 20},
		}
		data, _ := json.Marshal(msg)
		_ = conn.WriteMessage(websocket.TextMessage, data)

		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	c := New("n1", srv.URL, wsURLFromHTTP(srv.URL), testConfig(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	events, err := c.Events(ctx)
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, interfaces.WorkerEventProgress, ev.Kind)
		assert.Equal(t, "p1", ev.PromptID)
		assert.Equal(t, 3, ev.Value)
		assert.Equal(t, 20, ev.Max)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for progress event")
	}
}

func TestEventsReconnectsAfterSeveredConnection(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var connectCount int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		connectCount++
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		if connectCount == 1 {
			conn.Close() // sever immediately to force a reconnect
			return
		}
		defer conn.Close()
		msg := map[string]interface{}{"type": "ping"}
		data, _ := json.Marshal(msg)
		_ = conn.WriteMessage(websocket.TextMessage, data)
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	cfg := testConfig()
	c := New("n1", srv.URL, wsURLFromHTTP(srv.URL), cfg, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	events, err := c.Events(ctx)
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, interfaces.WorkerEventPing, ev.Kind)
	case <-time.After(900 * time.Millisecond):
		t.Fatal("timed out waiting for reconnected event stream")
	}
	assert.GreaterOrEqual(t, connectCount, 2)
}
