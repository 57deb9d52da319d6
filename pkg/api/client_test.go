package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormloop-dev/stormloop/pkg/brainstorm"
	apperrors "github.com/stormloop-dev/stormloop/pkg/errors"
	"github.com/stormloop-dev/stormloop/pkg/report"
)

// fakePlatform records requests and serves canned enveloped responses keyed
// by method plus path.
type fakePlatform struct {
	mu        sync.Mutex
	requests  []recordedRequest
	responses map[string]string
	status    map[string]int
}

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   string
}

func newFakePlatform(t *testing.T) (*fakePlatform, *Client) {
	t.Helper()
	fp := &fakePlatform{
		responses: make(map[string]string),
		status:    make(map[string]int),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fp.mu.Lock()
		fp.requests = append(fp.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Auth:   r.Header.Get("Authorization"),
			Body:   string(body),
		})
		key := r.Method + " " + r.URL.Path
		resp, ok := fp.responses[key]
		status := fp.status[key]
		fp.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
		}
		if !ok {
			resp = `{"success": true, "data": null, "message": "ok"}`
		}
		w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, func() string { return "test-token" })
	return fp, client
}

func (fp *fakePlatform) respond(method, path, dataJSON string) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.responses[method+" "+path] = `{"success": true, "data": ` + dataJSON + `, "message": "ok"}`
}

func (fp *fakePlatform) last() recordedRequest {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.requests[len(fp.requests)-1]
}

func TestClient_ListAgentsPagination(t *testing.T) {
	fp, client := newFakePlatform(t)
	fp.respond("GET", "/agents", `{
		"items": [{"id": 1, "name": "pm", "role": "product manager", "modelType": "gpt-4"}],
		"pagination": {"page": 2, "limit": 10, "total": 11, "totalPages": 2, "hasNext": false, "hasPrev": true}
	}`)

	page, err := client.ListAgents(context.Background(), ListAgentsParams{Page: 2, Limit: 10, Role: "product manager"})
	require.NoError(t, err)

	require.Len(t, page.Items, 1)
	assert.Equal(t, "pm", page.Items[0].Name)
	assert.Equal(t, 2, page.Pagination.Page)
	assert.True(t, page.Pagination.HasPrev)

	req := fp.last()
	assert.Equal(t, "Bearer test-token", req.Auth)
	assert.Contains(t, req.Query, "page=2")
	assert.Contains(t, req.Query, "role=product+manager")
}

func TestClient_CreateAgent(t *testing.T) {
	fp, client := newFakePlatform(t)
	fp.respond("POST", "/agents", `{"id": 5, "name": "critic", "role": "critic", "modelType": "claude-3"}`)

	agent, err := client.CreateAgent(context.Background(), AgentInput{
		Name: "critic", Role: "critic", ModelType: "claude-3",
		ModelConfig: ModelConfig{Temperature: 0.7, MaxTokens: 2048},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, agent.ID)

	var sent AgentInput
	require.NoError(t, json.Unmarshal([]byte(fp.last().Body), &sent))
	assert.Equal(t, 0.7, sent.ModelConfig.Temperature)
}

func TestClient_CreateSessionValidatesLocally(t *testing.T) {
	fp, client := newFakePlatform(t)

	_, err := client.CreateSession(context.Background(), CreateSessionRequest{
		Topic:    "too short",
		AgentIDs: []int{1},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))

	// Nothing left the client.
	fp.mu.Lock()
	defer fp.mu.Unlock()
	assert.Empty(t, fp.requests)
}

func TestClient_CreateSession(t *testing.T) {
	fp, client := newFakePlatform(t)
	fp.respond("POST", "/sessions", `{"id": 9, "topic": "ceramic travel mug for cultural tourism", "status": "CREATED"}`)

	session, err := client.CreateSession(context.Background(), CreateSessionRequest{
		Topic:    "ceramic travel mug for cultural tourism",
		AgentIDs: []int{1, 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 9, session.ID)
	assert.Equal(t, brainstorm.SessionStatusCreated, session.Status)
}

func TestClient_SessionCommands(t *testing.T) {
	fp, client := newFakePlatform(t)
	ctx := context.Background()

	require.NoError(t, client.PauseSession(ctx, 9))
	assert.Equal(t, "/sessions/9/pause", fp.last().Path)

	require.NoError(t, client.ResumeSession(ctx, 9))
	assert.Equal(t, "/sessions/9/resume", fp.last().Path)

	require.NoError(t, client.CancelSession(ctx, 9))
	assert.Equal(t, "/sessions/9/cancel", fp.last().Path)
}

func TestClient_PhaseApproval(t *testing.T) {
	fp, client := newFakePlatform(t)
	ctx := context.Background()

	require.NoError(t, client.ApprovePhase(ctx, 9, brainstorm.PhaseIdeaGeneration))
	assert.Equal(t, "/sessions/9/phases/IDEA_GENERATION/approve", fp.last().Path)

	require.NoError(t, client.RejectPhase(ctx, 9, brainstorm.PhaseIdeaGeneration, "needs more variety"))
	req := fp.last()
	assert.Equal(t, "/sessions/9/phases/IDEA_GENERATION/reject", req.Path)
	assert.JSONEq(t, `{"reason": "needs more variety"}`, req.Body)

	require.NoError(t, client.SubmitPhaseForApproval(ctx, 9, brainstorm.PhaseFeasibilityAnalysis))
	assert.Equal(t, "/sessions/9/phases/FEASIBILITY_ANALYSIS/submit-for-approval", fp.last().Path)
}

func TestClient_RejectedEnvelope(t *testing.T) {
	fp, client := newFakePlatform(t)
	fp.mu.Lock()
	fp.responses["POST /sessions/9/start"] = `{"success": false, "error": {"code": "SESSION_RUNNING", "message": "session already started"}}`
	fp.mu.Unlock()

	err := client.StartSession(context.Background(), 9, StartSessionRequest{
		Topic:    "ceramic travel mug for cultural tourism",
		AgentIDs: []int{1, 2},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeSessionCommand))
	assert.Contains(t, err.Error(), "session already started")
}

func TestClient_HTTPErrorStatus(t *testing.T) {
	fp, client := newFakePlatform(t)
	fp.mu.Lock()
	fp.status["GET /sessions/404"] = http.StatusNotFound
	fp.responses["GET /sessions/404"] = `{"success": false, "error": {"code": "NOT_FOUND", "message": "no such session"}}`
	fp.mu.Unlock()

	_, err := client.GetSession(context.Background(), 404)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeSessionGet))
	assert.Contains(t, err.Error(), "no such session")
}

func TestClient_GetFinalReport(t *testing.T) {
	fp, client := newFakePlatform(t)
	fp.respond("GET", "/sessions/9/report", `{
		"sessionId": 9,
		"topic": "ceramic travel mug for cultural tourism",
		"executiveSummary": "three strong concepts",
		"sections": [{"phase": "IDEA_GENERATION", "name": "Idea Generation", "summary": "ideas"}]
	}`)

	fr, err := client.GetFinalReport(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, 9, fr.SessionID)
	require.Len(t, fr.Sections, 1)
	assert.Equal(t, brainstorm.PhaseIdeaGeneration, fr.Sections[0].Phase)
}

func TestClient_ExportReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sessions/9/export", r.URL.Path)
		assert.Equal(t, "pdf", r.URL.Query().Get("format"))
		assert.Equal(t, "detailed", r.URL.Query().Get("template"))
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="mug-report.pdf"`)
		w.Write([]byte("%PDF-1.7 fake"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	art, err := client.ExportReport(context.Background(), 9, report.ExportOptions{
		Format:   report.FormatPDF,
		Template: report.TemplateDetailed,
	})
	require.NoError(t, err)
	assert.Equal(t, "mug-report.pdf", art.FileName)
	assert.Equal(t, "application/pdf", art.ContentType)
	assert.Equal(t, []byte("%PDF-1.7 fake"), art.Data)
}

func TestClient_ExportReportBadFormat(t *testing.T) {
	client := NewClient("http://unused", nil)
	_, err := client.ExportReport(context.Background(), 9, report.ExportOptions{Format: "xlsx"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}
