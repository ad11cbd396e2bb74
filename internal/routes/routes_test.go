package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infinitehq/aimlgw/internal/auth"
	"github.com/infinitehq/aimlgw/internal/config"
	"github.com/infinitehq/aimlgw/internal/forward"
	"github.com/infinitehq/aimlgw/internal/session"
	"github.com/infinitehq/aimlgw/internal/storage"
)

const testSubject = "user_1"

// upstreamCall records one request received by the fake upstream.
type upstreamCall struct {
	Method string
	Path   string
	Query  map[string]string
	Body   string
}

// fakeUpstream is a scripted AIML backend.
type fakeUpstream struct {
	mu        sync.Mutex
	calls     []upstreamCall
	responses map[string]string // path -> JSON body
	status    map[string]int    // path -> status override
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		responses: make(map[string]string),
		status:    make(map[string]int),
	}
}

func (f *fakeUpstream) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		query := make(map[string]string)
		for key, values := range r.URL.Query() {
			query[key] = values[0]
		}

		f.mu.Lock()
		f.calls = append(f.calls, upstreamCall{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  query,
			Body:   string(body),
		})
		response, ok := f.responses[r.URL.Path]
		status := f.status[r.URL.Path]
		f.mu.Unlock()

		if status == 0 {
			status = http.StatusOK
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if ok {
			w.Write([]byte(response))
		} else {
			w.Write([]byte(`{}`))
		}
	})
}

// respond scripts the response for an upstream path. A zero status
// means 200.
func (f *fakeUpstream) respond(path string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[path] = body
	if status != 0 {
		f.status[path] = status
	}
}

func (f *fakeUpstream) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeUpstream) lastCall(t *testing.T) upstreamCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

// fakeSessions is an in-memory session.Store.
type fakeSessions struct {
	sessions map[string]*session.Session
	err      error
}

func (f *fakeSessions) Get(_ context.Context, sessionID string) (*session.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	sess, ok := f.sessions[sessionID]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return sess, nil
}

func (f *fakeSessions) Ping(context.Context) error { return nil }
func (f *fakeSessions) Close() error               { return nil }

// stubPresigner returns fixed URLs and never fails.
type stubPresigner struct{}

func (stubPresigner) PresignPutObject(_ context.Context, _ *s3.PutObjectInput,
	_ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{URL: "https://s3.example.com/put"}, nil
}

func (stubPresigner) PresignGetObject(_ context.Context, _ *s3.GetObjectInput,
	_ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{URL: "https://s3.example.com/get"}, nil
}

// stubObjects records deleted keys.
type stubObjects struct {
	mu      sync.Mutex
	deleted []string
}

func (s *stubObjects) DeleteObject(_ context.Context, params *s3.DeleteObjectInput,
	_ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if params.Key != nil {
		s.deleted = append(s.deleted, *params.Key)
	}
	return &s3.DeleteObjectOutput{}, nil
}

// routesHarness bundles everything a route test needs.
type routesHarness struct {
	router   *gin.Engine
	upstream *fakeUpstream
	sessions *fakeSessions
	objects  *stubObjects
}

func newHarness(t *testing.T) *routesHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	upstream := newFakeUpstream()
	server := httptest.NewServer(upstream.handler())
	t.Cleanup(server.Close)

	objects := &stubObjects{}
	svc, err := storage.NewService(context.Background(),
		&config.StorageConfig{Bucket: "test-bucket"},
		storage.WithPresignClient(stubPresigner{}),
		storage.WithObjectClient(objects),
	)
	require.NoError(t, err)

	sessions := &fakeSessions{sessions: make(map[string]*session.Session)}

	forwarder := forward.New(
		forward.WithMetrics(forward.NewMetricsWithRegisterer("test", prometheus.NewRegistry())),
		forward.WithRetryInterval(time.Millisecond),
	)

	handlers := New(Config{
		BaseURL:       server.URL,
		Forwarder:     forwarder,
		Sessions:      sessions,
		Storage:       svc,
		MaxFileSizeMB: 10,
	})

	router := gin.New()
	api := router.Group("/aiml")
	api.Use(func(c *gin.Context) {
		auth.SetClaims(c, &auth.Claims{Subject: testSubject})
		c.Next()
	})
	handlers.Register(api)

	return &routesHarness{
		router:   router,
		upstream: upstream,
		sessions: sessions,
		objects:  objects,
	}
}

func (h *routesHarness) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func TestRelay_QueryDefaultsApplied(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	rec := h.do(http.MethodGet, "/aiml/agents/get_public", "")

	require.Equal(t, http.StatusOK, rec.Code)
	call := h.upstream.lastCall(t)
	assert.Equal(t, "/agent/get_public", call.Path)
	assert.Equal(t, "20", call.Query["limit"])
	assert.Equal(t, "0", call.Query["skip"])
	assert.NotContains(t, call.Query, "user_id")
}

func TestRelay_CallerQueryWins(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.do(http.MethodGet, "/aiml/agents/get_public?limit=5", "")

	call := h.upstream.lastCall(t)
	assert.Equal(t, "5", call.Query["limit"])
	assert.Equal(t, "0", call.Query["skip"])
}

func TestRelay_SubjectInjected(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.do(http.MethodGet, "/aiml/agents/get/agent-1?user_id=spoofed", "")

	call := h.upstream.lastCall(t)
	assert.Equal(t, "/agent/get/agent-1", call.Path)
	assert.Equal(t, testSubject, call.Query["user_id"])
}

func TestRelay_BodyForwardedAndOidNormalized(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.upstream.respond("/agent/create", 0, `{"_id": {"$oid": "507f1f77bcf86cd799439011"}, "name": "a"}`)

	rec := h.do(http.MethodPost, "/aiml/agents/create", `{"name": "a"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"_id": "507f1f77bcf86cd799439011", "name": "a"}`, rec.Body.String())

	call := h.upstream.lastCall(t)
	assert.JSONEq(t, `{"name": "a"}`, call.Body)
}

func TestRelay_MalformedBody(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	rec := h.do(http.MethodPost, "/aiml/agents/create", "{not json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, h.upstream.callCount())
}

func TestRelay_UpstreamErrorPassthrough(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.upstream.respond("/agent/get/missing", http.StatusNotFound, `{"detail": "Agent not found"}`)

	rec := h.do(http.MethodGet, "/aiml/agents/get/missing", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The upstream's parsed error body rides inside the gateway's own
	// detail envelope.
	assert.JSONEq(t, `{"detail": {"detail": "Agent not found"}}`, rec.Body.String())
}

func TestUpdateAgent_SystemImmutable(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.upstream.respond("/agent/get/sys-1", 0, `{"agent_type": "system"}`)

	rec := h.do(http.MethodPut, "/aiml/agents/update/sys-1", `{"name": "new"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"detail": {"message": "System agents cannot be modified", "error": "forbidden"}}`,
		rec.Body.String())

	// Only the lookup reached the upstream; the update must not.
	assert.Equal(t, 1, h.upstream.callCount())
	assert.Equal(t, "/agent/get/sys-1", h.upstream.lastCall(t).Path)
}

func TestUpdateAgent_TypeTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		currentType string
		body        string
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "into system rejected",
			currentType: "private",
			body:        `{"agent_type": "system"}`,
			wantStatus:  http.StatusForbidden,
			wantMessage: "Changing an agent to system is not permitted",
		},
		{
			name:        "into approved rejected",
			currentType: "private",
			body:        `{"agent_type": "approved"}`,
			wantStatus:  http.StatusForbidden,
			wantMessage: "Changing an agent to approved is not permitted",
		},
		{
			name:        "into unknown category rejected",
			currentType: "private",
			body:        `{"agent_type": "experimental"}`,
			wantStatus:  http.StatusForbidden,
			wantMessage: "Agents can only be changed to private",
		},
		{
			name:        "approved into private allowed",
			currentType: "approved",
			body:        `{"agent_type": "private"}`,
			wantStatus:  http.StatusOK,
		},
		{
			name:        "no type change allowed",
			currentType: "private",
			body:        `{"name": "renamed"}`,
			wantStatus:  http.StatusOK,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			h.upstream.respond("/agent/get/a1", 0, `{"data": {"agent_type": "` + tt.currentType + `"}}`)

			rec := h.do(http.MethodPut, "/aiml/agents/update/a1", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantMessage != "" {
				assert.Contains(t, rec.Body.String(), tt.wantMessage)
				assert.Equal(t, 1, h.upstream.callCount())
				return
			}
			assert.Equal(t, 2, h.upstream.callCount())
			assert.Equal(t, "/agent/update/a1", h.upstream.lastCall(t).Path)
		})
	}
}

func TestChat_SessionNotFound(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	rec := h.do(http.MethodPost, "/aiml/chat/agent/missing", `{"message": "hi"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail": {"message": "Session not found", "error": "not_found"}}`,
		rec.Body.String())
	assert.Zero(t, h.upstream.callCount())
}

func TestChat_TypeGating(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		sessionType string
		endpoint    string
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "agent session on agent endpoint",
			sessionType: "Agent",
			endpoint:    "/aiml/chat/agent/s1",
			wantStatus:  http.StatusOK,
		},
		{
			name:        "team session with odd casing on team endpoint",
			sessionType: " tEaM ",
			endpoint:    "/aiml/chat/team/s1",
			wantStatus:  http.StatusOK,
		},
		{
			name:        "team session on agent endpoint",
			sessionType: "Team",
			endpoint:    "/aiml/chat/agent/s1",
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Cannot use /agent endpoint for team sessions",
		},
		{
			name:        "agent session on team endpoint",
			sessionType: "Agent",
			endpoint:    "/aiml/chat/team/s1",
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Cannot use /team endpoint for single agent sessions",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			h.sessions.sessions["s1"] = &session.Session{ID: "s1", SessionType: tt.sessionType}

			rec := h.do(http.MethodPost, tt.endpoint, `{"message": "hi"}`)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantMessage != "" {
				assert.Contains(t, rec.Body.String(), tt.wantMessage)
				assert.Zero(t, h.upstream.callCount())
				return
			}

			call := h.upstream.lastCall(t)
			assert.Equal(t, "false", call.Query["stream"])
			assert.Equal(t, "true", call.Query["use_rag"])
			assert.Equal(t, testSubject, call.Query["user_id"])
		})
	}
}

func TestChat_Streaming(t *testing.T) {
	t.Parallel()

	gin.SetMode(gin.TestMode)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("stream"))
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		w.Write([]byte("data: first\n\n"))
		flusher.Flush()
		w.Write([]byte("data: second\n\n"))
		flusher.Flush()
	}))
	t.Cleanup(upstream.Close)

	sessions := &fakeSessions{sessions: map[string]*session.Session{
		"s1": {ID: "s1", SessionType: session.TypeAgent},
	}}
	handlers := New(Config{
		BaseURL:  upstream.URL,
		Sessions: sessions,
		Forwarder: forward.New(
			forward.WithMetrics(forward.NewMetricsWithRegisterer("test", prometheus.NewRegistry()))),
	})

	router := gin.New()
	api := router.Group("/aiml")
	api.Use(func(c *gin.Context) {
		auth.SetClaims(c, &auth.Claims{Subject: testSubject})
		c.Next()
	})
	handlers.Register(api)

	req := httptest.NewRequest(http.MethodPost, "/aiml/chat/agent/s1?stream=true", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "data: first\n\ndata: second\n\n", rec.Body.String())
}

func TestSessionHistory_Dispatch(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	h.do(http.MethodGet, "/aiml/sessions/history/s1", "")
	call := h.upstream.lastCall(t)
	assert.Equal(t, "/session/history/s1", call.Path)
	assert.Equal(t, "20", call.Query["limit"])
	assert.Equal(t, testSubject, call.Query["user_id"])

	h.do(http.MethodGet, "/aiml/sessions/history/recent/s1", "")
	assert.Equal(t, "/session/history/recent/s1", h.upstream.lastCall(t).Path)

	rec := h.do(http.MethodGet, "/aiml/sessions/history/a/b/c", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionCreate_ContextDefault(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.do(http.MethodPost, "/aiml/sessions/create", `{"title": "t"}`)

	call := h.upstream.lastCall(t)
	assert.Equal(t, "/session/create", call.Path)
	assert.Equal(t, "1", call.Query["max_context_results"])
	assert.Equal(t, testSubject, call.Query["user_id"])
}

func TestGenerateUploadURL(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.upstream.respond("/files/files/all/agent-1", 0, `{"data": []}`)

	rec := h.do(http.MethodPost,
		"/aiml/files/upload/generate_url?file_name=report.pdf&file_type=pdf&file_size=2&agent_id=agent-1", "")

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Upload URL generated successfully", resp["message"])
	assert.Equal(t, "https://s3.example.com/put", resp["upload_url"])
	assert.Equal(t, "test-bucket", resp["s3_bucket"])
	assert.Equal(t, "application/pdf", resp["content_type"])

	key, _ := resp["s3_key"].(string)
	assert.True(t, strings.HasPrefix(key, "files/"+testSubject+"/report_"))
	assert.True(t, strings.HasSuffix(key, ".pdf"))
}

func TestGenerateUploadURL_Duplicate(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.upstream.respond("/files/files/all/agent-1", 0, `{"data": [{"filename": "Report.PDF", "_id": "file-7"}]}`)

	rec := h.do(http.MethodPost,
		"/aiml/files/upload/generate_url?file_name=report.pdf&file_type=pdf&file_size=2&agent_id=agent-1", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"detail": {"message": "File with this name already exists", "existing_file_id": "file-7"}}`,
		rec.Body.String())
}

func TestGenerateUploadURL_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		target      string
		wantMessage string
	}{
		{
			name:        "missing parameters",
			target:      "/aiml/files/upload/generate_url?file_name=a.pdf",
			wantMessage: "file_name, file_type and agent_id are required",
		},
		{
			name:        "unsupported type",
			target:      "/aiml/files/upload/generate_url?file_name=a.exe&file_type=exe&file_size=1&agent_id=agent-1",
			wantMessage: "File type exe not allowed",
		},
		{
			name:        "too large",
			target:      "/aiml/files/upload/generate_url?file_name=a.pdf&file_type=pdf&file_size=11&agent_id=agent-1",
			wantMessage: "File size exceeds maximum limit of 10MB",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)

			rec := h.do(http.MethodPost, tt.target, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantMessage)

			// Local rejections never consult the upstream listing.
			assert.Zero(t, h.upstream.callCount())
		})
	}
}

func TestValidateFile(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.upstream.respond("/files/files/all/agent-1", 0, `{"data": []}`)

	rec := h.do(http.MethodPost,
		"/aiml/files/validate?file_name=a.pdf&file_type=pdf&file_size=1&agent_id=agent-1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"valid": true, "issues": []}`, rec.Body.String())
}

func TestValidateFile_LocalIssuesSkipListing(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	rec := h.do(http.MethodPost,
		"/aiml/files/validate?file_name=a.exe&file_type=exe&file_size=1&agent_id=agent-1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"valid": false, "issues": ["File type exe not allowed"]}`, rec.Body.String())
	assert.Zero(t, h.upstream.callCount())
}

func TestProcessFile(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.do(http.MethodPost, "/aiml/files/process?s3_key=files/u/abc_a.pdf&agent_id=agent-1", "")

	call := h.upstream.lastCall(t)
	assert.Equal(t, "/files/jobs/start", call.Path)
	assert.Equal(t, "3", call.Query["chunk_size"])
	assert.Equal(t, "1", call.Query["overlap"])
	assert.Equal(t, "sentence", call.Query["chunk_type"])
	assert.Equal(t, "test-bucket", call.Query["s3_bucket"])
	assert.Equal(t, testSubject, call.Query["user_id"])
}

func TestProcessFile_RequiresKey(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	rec := h.do(http.MethodPost, "/aiml/files/process", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, h.upstream.callCount())
}

func TestDownloadFile(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.upstream.respond("/files/files/get/f1", 0, `{"file_type": "pdf", "s3_key": "files/u/abc_a.pdf"}`)

	rec := h.do(http.MethodGet, "/aiml/files/download/f1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message": "Download URL generated successfully", "download_url": "https://s3.example.com/get"}`,
		rec.Body.String())
}

func TestDownloadFile_Webpage(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.upstream.respond("/files/files/get/f1", 0, `{"file_type": "webpage", "url": "https://example.com/page"}`)

	rec := h.do(http.MethodGet, "/aiml/files/download/f1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message": "Webpage URL retrieved", "url": "https://example.com/page"}`,
		rec.Body.String())
}

func TestDeleteFile(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.upstream.respond("/files/files/get/f1", 0, `{"file_type": "pdf", "s3_key": "files/u/abc_a.pdf"}`)

	rec := h.do(http.MethodDelete, "/aiml/files/delete/f1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message": "File deleted successfully"}`, rec.Body.String())
	assert.Equal(t, []string{"files/u/abc_a.pdf"}, h.objects.deleted)
}

func TestDeleteFile_WebpageSkipsStorage(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.upstream.respond("/files/files/get/f1", 0, `{"file_type": "webpage", "url": "https://example.com"}`)

	rec := h.do(http.MethodDelete, "/aiml/files/delete/f1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, h.objects.deleted)
}

func TestDeleteFile_PartialFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.upstream.respond("/files/files/get/f1", 0, `{"file_type": "pdf", "s3_key": "files/u/abc_a.pdf"}`)
	h.upstream.respond("/files/delete/f1", http.StatusBadGateway, `{"detail": "backend refused"}`)

	rec := h.do(http.MethodDelete, "/aiml/files/delete/f1", "")

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "File deletion partially completed with errors", resp["message"])
	errs, _ := resp["errors"].([]interface{})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Failed to delete from backend")

	// Storage cleanup still ran.
	assert.Equal(t, []string{"files/u/abc_a.pdf"}, h.objects.deleted)
}

func TestCollections_Dispatch(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	h.do(http.MethodGet, "/aiml/files/collections/agent-1", "")
	assert.Equal(t, "/files/collections/all/agent-1", h.upstream.lastCall(t).Path)

	h.do(http.MethodGet, "/aiml/files/collections/files/agent-1/col-2", "")
	call := h.upstream.lastCall(t)
	assert.Equal(t, "/files/collections/files/agent-1/col-2", call.Path)
	assert.Equal(t, "20", call.Query["limit"])

	rec := h.do(http.MethodGet, "/aiml/files/collections/files/only-one", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobStatus_NoSubject(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.do(http.MethodGet, "/aiml/files/jobs/job-1", "")

	call := h.upstream.lastCall(t)
	assert.Equal(t, "/files/jobs/get/job-1", call.Path)
	assert.NotContains(t, call.Query, "user_id")
}

func TestAgentFiles(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.do(http.MethodGet, "/aiml/files/files/agent-1", "")

	call := h.upstream.lastCall(t)
	assert.Equal(t, "/files/files/all/agent-1", call.Path)
	assert.Equal(t, "20", call.Query["limit"])
	assert.Equal(t, "0", call.Query["skip"])
	assert.Equal(t, testSubject, call.Query["user_id"])
}
