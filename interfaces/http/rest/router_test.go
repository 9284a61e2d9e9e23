package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"conduit-backend/domain/workflow"
	"conduit-backend/infrastructure/config"
	"conduit-backend/infrastructure/persistence/memory"
	"conduit-backend/pkg/auth"
)

func newTestServer(t *testing.T, connectLimit int) (*httptest.Server, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &config.Config{
		Environment:      "development",
		LiveKitURL:       "wss://media.example.com",
		ConnectRateLimit: connectLimit,
		EnableCORS:       true,
	}
	rt := NewRouter(
		cfg,
		store, store, store,
		auth.NewTokenMinter("api-key", "api-secret", "conduit-agent"),
		auth.NewRedisRateLimiter(client, connectLimit, time.Minute),
		zaptest.NewLogger(t),
	)

	srv := httptest.NewServer(rt.Setup())
	t.Cleanup(srv.Close)
	return srv, store
}

func doJSON(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeData(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.True(t, envelope.Success)
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func TestRouter_ProjectLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, 30)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/projects", map[string]string{
		"name": "support bot",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var project workflow.Project
	decodeData(t, resp, &project)
	require.NotEmpty(t, project.ID)

	// The fresh project's graph holds exactly the seeded start node.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/projects/"+project.ID+"/graph", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var graph struct {
		Nodes []workflow.Node `json:"nodes"`
		Edges []workflow.Edge `json:"edges"`
	}
	decodeData(t, resp, &graph)
	require.Len(t, graph.Nodes, 1)
	assert.Equal(t, workflow.StartNodeID(project.ID), graph.Nodes[0].ID)
	assert.Empty(t, graph.Edges)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/projects/"+project.ID, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/projects/"+project.ID, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_SaveGraphRoundTrip(t *testing.T) {
	srv, store := newTestServer(t, 30)
	p, err := store.CreateProject(context.Background(), "P", "")
	require.NoError(t, err)
	startID := workflow.StartNodeID(p.ID)

	body := map[string]interface{}{
		"nodes": []map[string]interface{}{
			{"id": startID, "node_type": "start", "title": "Start"},
			{"id": "n1", "node_type": "default", "title": "Ask name"},
		},
		"edges": []map[string]interface{}{
			{"id": "e1", "source_id": startID, "target_id": "n1"},
		},
	}
	resp := doJSON(t, http.MethodPut, srv.URL+"/api/v1/projects/"+p.ID+"/graph", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var saved struct {
		SavedAt time.Time `json:"saved_at"`
	}
	decodeData(t, resp, &saved)
	assert.False(t, saved.SavedAt.IsZero())

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/projects/"+p.ID+"/graph", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var graph struct {
		Nodes []workflow.Node `json:"nodes"`
		Edges []workflow.Edge `json:"edges"`
	}
	decodeData(t, resp, &graph)
	assert.Len(t, graph.Nodes, 2)
	assert.Len(t, graph.Edges, 1)
}

func TestRouter_SaveGraphWithoutStartNodeRejected(t *testing.T) {
	srv, store := newTestServer(t, 30)
	p, err := store.CreateProject(context.Background(), "P", "")
	require.NoError(t, err)

	body := map[string]interface{}{
		"nodes": []map[string]interface{}{
			{"id": "n1", "node_type": "default"},
		},
	}
	resp := doJSON(t, http.MethodPut, srv.URL+"/api/v1/projects/"+p.ID+"/graph", body)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRouter_DeleteStartNodeRejected(t *testing.T) {
	srv, store := newTestServer(t, 30)
	p, err := store.CreateProject(context.Background(), "P", "")
	require.NoError(t, err)

	resp := doJSON(t, http.MethodDelete, srv.URL+"/api/v1/nodes/"+workflow.StartNodeID(p.ID), nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRouter_ConnectMintsToken(t *testing.T) {
	srv, store := newTestServer(t, 30)
	p, err := store.CreateProject(context.Background(), "P", "")
	require.NoError(t, err)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/connect", map[string]string{
		"project_id":       p.ID,
		"participant_name": "Ada",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var conn struct {
		ServerURL        string `json:"serverUrl"`
		RoomName         string `json:"roomName"`
		ParticipantToken string `json:"participantToken"`
		ParticipantName  string `json:"participantName"`
	}
	decodeData(t, resp, &conn)
	assert.Equal(t, "wss://media.example.com", conn.ServerURL)
	assert.NotEmpty(t, conn.RoomName)
	assert.Equal(t, "Ada", conn.ParticipantName)

	claims, err := auth.NewTokenMinter("api-key", "api-secret", "conduit-agent").Verify(conn.ParticipantToken)
	require.NoError(t, err)
	assert.Equal(t, conn.RoomName, claims.Video.Room)
	assert.Equal(t, p.ID, claims.Metadata)
}

func TestRouter_ConnectUnknownProjectRejected(t *testing.T) {
	srv, _ := newTestServer(t, 30)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/connect", map[string]string{
		"project_id": "missing",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_ConnectRateLimited(t *testing.T) {
	srv, store := newTestServer(t, 2)
	p, err := store.CreateProject(context.Background(), "P", "")
	require.NoError(t, err)

	body := map[string]string{"project_id": p.ID}
	for i := 0; i < 2; i++ {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/connect", body)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, fmt.Sprintf("request %d", i+1))
	}

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/connect", body)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestRouter_ToolCRUD(t *testing.T) {
	srv, _ := newTestServer(t, 30)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/tools", map[string]interface{}{
		"name":     "weather",
		"method":   "GET",
		"endpoint": "https://api.example.com/weather",
		"headers":  map[string]string{"X-Api-Key": "k"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var tool workflow.Tool
	decodeData(t, resp, &tool)
	require.NotEmpty(t, tool.ID)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/tools/"+tool.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched workflow.Tool
	decodeData(t, resp, &fetched)
	assert.Equal(t, "weather", fetched.Name)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/tools/"+tool.ID, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRouter_Health(t *testing.T) {
	srv, _ := newTestServer(t, 30)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
