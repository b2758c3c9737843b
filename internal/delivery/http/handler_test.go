package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tastycreative/genflow/internal/domain"
	mockpub "github.com/tastycreative/genflow/internal/publisher/mock"
	"github.com/tastycreative/genflow/internal/repository/mock"
	"github.com/tastycreative/genflow/internal/usecase"
)

const testSecret = "internal-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSubscriber struct {
	events chan *domain.Event
}

func (f *fakeSubscriber) Subscribe(ctx context.Context, userID string) (<-chan *domain.Event, func() error, error) {
	return f.events, func() error { return nil }, nil
}

type testEnv struct {
	router *gin.Engine
	repo   *mock.JobRepository
	store  *mock.ObjectStore
	pub    *mockpub.MockPublisher
	sub    *fakeSubscriber
}

func setupTestRouter(checks map[string]HealthCheck) *testEnv {
	repo := mock.NewJobRepository()
	store := mock.NewObjectStore(nil)
	pub := mockpub.NewMockPublisher()
	sub := &fakeSubscriber{events: make(chan *domain.Event, 8)}
	logger := zap.NewNop()

	router := NewRouter(RouterDeps{
		SubmitUC:       usecase.NewSubmitGenerationUsecase(repo, pub, usecase.GenerationDefaults{Model: "m", Size: "2K"}, logger),
		GetJobUC:       usecase.NewGetJobUsecase(repo, logger),
		UploadUC:       usecase.NewUploadReferenceUsecase(store, 1<<20, logger),
		TriggerUC:      usecase.NewTriggerUsecase(repo, pub, logger),
		Subscriber:     sub,
		HealthChecks:   checks,
		InternalSecret: testSecret,
		MaxUploadBytes: 1 << 20,
	}, logger)

	return &testEnv{router: router, repo: repo, store: store, pub: pub, sub: sub}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(method, path, user string, body any) *http.Request {
	jsonBody, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	return req
}

func TestSubmitHandler_Success(t *testing.T) {
	env := setupTestRouter(nil)

	w := env.do(jsonRequest(http.MethodPost, "/api/v1/generations", "user_1", map[string]any{
		"prompt":             "a cat astronaut",
		"count":              3,
		"referenceImageKeys": []string{"temp/user_1/x/a.png"},
	}))

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", w.Code, w.Body.String())
	}
	var resp domain.SubmitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Status != domain.StatusPending {
		t.Errorf("expected PENDING, got %s", resp.Status)
	}
	if len(env.pub.Published) != 1 {
		t.Errorf("expected 1 published trigger, got %d", len(env.pub.Published))
	}
}

func TestSubmitHandler_Errors(t *testing.T) {
	tests := []struct {
		name string
		user string
		body map[string]any
		want int
	}{
		{"no user", "", map[string]any{"prompt": "p"}, http.StatusUnauthorized},
		{"missing prompt", "user_1", map[string]any{}, http.StatusBadRequest},
		{"count out of range", "user_1", map[string]any{"prompt": "p", "count": 9, "referenceImageKeys": []string{"temp/user_1/x/a.png"}}, http.StatusBadRequest},
		{"no references", "user_1", map[string]any{"prompt": "p"}, http.StatusBadRequest},
		{"foreign reference", "user_1", map[string]any{"prompt": "p", "referenceImageKeys": []string{"temp/user_2/x/a.png"}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestRouter(nil)
			w := env.do(jsonRequest(http.MethodPost, "/api/v1/generations", tt.user, tt.body))
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestSubmitHandler_PublishUnavailable(t *testing.T) {
	env := setupTestRouter(nil)
	env.pub.PublishFn = func(ctx context.Context, jobID uuid.UUID) error {
		return errors.New("broker down")
	}

	w := env.do(jsonRequest(http.MethodPost, "/api/v1/generations", "user_1", map[string]any{
		"prompt":             "p",
		"referenceImageKeys": []string{"temp/user_1/x/a.png"},
	}))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestGetByIDHandler(t *testing.T) {
	env := setupTestRouter(nil)
	job := &domain.Job{ID: uuid.New(), UserID: "user_1", Status: domain.StatusProcessing, Progress: 30}
	env.repo.Put(job)

	w := env.do(jsonRequest(http.MethodGet, "/api/v1/generations/"+job.ID.String(), "user_1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var got domain.Job
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to unmarshal job: %v", err)
	}
	if got.ID != job.ID || got.Progress != 30 {
		t.Errorf("unexpected job %+v", got)
	}

	w = env.do(jsonRequest(http.MethodGet, "/api/v1/generations/"+job.ID.String(), "user_2", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for another user, got %d", w.Code)
	}

	w = env.do(jsonRequest(http.MethodGet, "/api/v1/generations/not-a-uuid", "user_1", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid id, got %d", w.Code)
	}
}

func multipartRequest(t *testing.T, user, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = fw.Write(data)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/references", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-ID", user)
	return req
}

func TestUploadReferenceHandler(t *testing.T) {
	env := setupTestRouter(nil)

	w := env.do(multipartRequest(t, "user_1", "face.png", mock.PNG))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp domain.UploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if !strings.HasPrefix(resp.Key, "temp/user_1/") || !env.store.Has(resp.Key) {
		t.Errorf("unexpected key %q", resp.Key)
	}

	w = env.do(multipartRequest(t, "user_1", "notes.txt", []byte("plain text")))
	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415 for non-image, got %d", w.Code)
	}
}

func TestInternalProcessHandler(t *testing.T) {
	env := setupTestRouter(nil)
	job := &domain.Job{ID: uuid.New(), UserID: "user_1", Status: domain.StatusPending}
	env.repo.Put(job)

	req := jsonRequest(http.MethodPost, "/internal/generations/process", "", map[string]any{"jobId": job.ID})
	w := env.do(req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without secret, got %d", w.Code)
	}

	req = jsonRequest(http.MethodPost, "/internal/generations/process", "", map[string]any{"jobId": job.ID})
	req.Header.Set("X-Internal-Secret", testSecret)
	w = env.do(req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	if len(env.pub.Published) != 1 || env.pub.Published[0] != job.ID {
		t.Errorf("expected trigger for %s, got %v", job.ID, env.pub.Published)
	}

	req = jsonRequest(http.MethodPost, "/internal/generations/process", "", map[string]any{})
	req.Header.Set("X-Internal-Secret", testSecret)
	w = env.do(req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without job id, got %d", w.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	env := setupTestRouter(map[string]HealthCheck{
		"postgres": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return nil },
	})
	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	env = setupTestRouter(map[string]HealthCheck{
		"postgres": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("dial tcp: refused") },
	})
	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
	var body struct {
		Services map[string]string `json:"services"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Services["redis"] != "unavailable" || body.Services["postgres"] != "ok" {
		t.Errorf("unexpected services %v", body.Services)
	}
}

func TestEventsWebSocket(t *testing.T) {
	env := setupTestRouter(nil)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	jobID := uuid.New()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events?jobId=" + jobID.String()
	header := http.Header{}
	header.Set("X-User-ID", "user_1")

	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	env.sub.events <- &domain.Event{Type: domain.EventProgress, JobID: uuid.New(), Status: domain.StatusProcessing}
	env.sub.events <- &domain.Event{Type: domain.EventCompleted, JobID: jobID, Status: domain.StatusCompleted, Progress: 100}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got domain.Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.JobID != jobID || got.Type != domain.EventCompleted {
		t.Errorf("expected completed event for %s, got %+v", jobID, got)
	}

	// The stream closes after the filtered job finishes.
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal close, got %v", err)
	}
}

func TestEventsWebSocket_RequiresUser(t *testing.T) {
	env := setupTestRouter(nil)
	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}
