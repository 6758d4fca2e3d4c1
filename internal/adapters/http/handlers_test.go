package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/adapters/cache"
	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/adapters/queue"
	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/adapters/ws"
	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/application"
	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/domain"
	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/ports"
	"github.com/google/uuid"
)

type stubStore struct {
	lessons map[uuid.UUID]domain.Lesson
}

func (s *stubStore) Create(_ context.Context, lesson domain.Lesson) error {
	s.lessons[lesson.LessonID] = lesson
	return nil
}

func (s *stubStore) Get(_ context.Context, lessonID uuid.UUID) (domain.Lesson, error) {
	lesson, ok := s.lessons[lessonID]
	if !ok {
		return domain.Lesson{}, domain.ErrNotFound
	}
	return lesson, nil
}

func (s *stubStore) UpdateIfVersion(context.Context, uuid.UUID, int64, json.RawMessage, time.Time) (domain.Lesson, error) {
	return domain.Lesson{}, domain.ErrNotFound
}

func (s *stubStore) DeleteIfVersion(context.Context, uuid.UUID, int64) error {
	return domain.ErrNotFound
}

type stubDeadLetters struct{}

func (stubDeadLetters) Record(context.Context, ports.DeadLetter) error { return nil }
func (stubDeadLetters) List(context.Context, int, int) ([]ports.DeadLetter, error) {
	return nil, nil
}

func newTestRouter(store *stubStore) http.Handler {
	service := application.NewService(application.Dependencies{
		Queue:       queue.NewMemoryQueue(time.Minute),
		Store:       store,
		Idempotency: cache.NewMemoryIdempotencyCache(),
		DeadLetters: stubDeadLetters{},
	})
	handler := NewHandler(service, ws.NewHub(nil), slog.Default())
	return NewRouter(handler)
}

func doRequest(t *testing.T, router http.Handler, method, target, userID string, headers map[string]string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateLessonAccepted(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&stubStore{lessons: map[uuid.UUID]domain.Lesson{}})
	rec := doRequest(t, router, http.MethodPost, "/v1/lessons", "user-1", nil, `{"title":"Intro"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Location") == "" {
		t.Fatalf("expected Location header on acceptance")
	}

	var resp struct {
		Data struct {
			CommandID string `json:"command_id"`
			LessonID  string `json:"lesson_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.CommandID == "" || resp.Data.LessonID == "" {
		t.Fatalf("expected command and lesson ids, got %s", rec.Body.String())
	}
}

func TestCreateLessonRejectsIfMatch(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&stubStore{lessons: map[uuid.UUID]domain.Lesson{}})
	rec := doRequest(t, router, http.MethodPost, "/v1/lessons", "user-1",
		map[string]string{"If-Match": `"0"`}, `{"title":"Intro"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for If-Match on create, got %d", rec.Code)
	}
}

func TestUpdateLessonRequiresIfMatch(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&stubStore{lessons: map[uuid.UUID]domain.Lesson{}})
	target := "/v1/lessons/" + uuid.NewString()
	rec := doRequest(t, router, http.MethodPut, target, "user-1", nil, `{"title":"Intro"}`)
	if rec.Code != http.StatusPreconditionRequired {
		t.Fatalf("expected 428 without If-Match, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPut, target, "user-1",
		map[string]string{"If-Match": `"not-a-version"`}, `{"title":"Intro"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed If-Match, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPut, target, "user-1",
		map[string]string{"If-Match": `"3"`}, `{"title":"Intro"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 with valid If-Match, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDeleteLessonAcceptsWeakETag(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&stubStore{lessons: map[uuid.UUID]domain.Lesson{}})
	rec := doRequest(t, router, http.MethodDelete, "/v1/lessons/"+uuid.NewString(), "user-1",
		map[string]string{"If-Match": `W/"2"`}, "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 for weak validator, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestMutationsRequireIdentity(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&stubStore{lessons: map[uuid.UUID]domain.Lesson{}})
	rec := doRequest(t, router, http.MethodPost, "/v1/lessons", "", nil, `{"title":"Intro"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity header, got %d", rec.Code)
	}
}

func TestCreateLessonRejectsInvalidPayload(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&stubStore{lessons: map[uuid.UUID]domain.Lesson{}})
	rec := doRequest(t, router, http.MethodPost, "/v1/lessons", "user-1", nil, `{"title":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed json, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPost, "/v1/lessons", "user-1", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty payload, got %d", rec.Code)
	}
}

func TestGetLessonETag(t *testing.T) {
	t.Parallel()

	lessonID := uuid.New()
	store := &stubStore{lessons: map[uuid.UUID]domain.Lesson{
		lessonID: {
			LessonID:       lessonID,
			Version:        3,
			Payload:        json.RawMessage(`{"title":"Intro"}`),
			CreatedAt:      time.Now().UTC(),
			LastModifiedAt: time.Now().UTC(),
		},
	}}
	router := newTestRouter(store)

	rec := doRequest(t, router, http.MethodGet, "/v1/lessons/"+lessonID.String(), "user-1", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	etag := rec.Header().Get("ETag")
	if etag != `"3"` {
		t.Fatalf("expected ETag %q, got %q", `"3"`, etag)
	}

	rec = doRequest(t, router, http.MethodGet, "/v1/lessons/"+lessonID.String(), "user-1",
		map[string]string{"If-None-Match": etag}, "")
	if rec.Code != http.StatusNotModified {
		t.Fatalf("expected 304 on matching If-None-Match, got %d", rec.Code)
	}
}

func TestGetLessonNotFound(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&stubStore{lessons: map[uuid.UUID]domain.Lesson{}})
	rec := doRequest(t, router, http.MethodGet, "/v1/lessons/"+uuid.NewString(), "user-1", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetCommandOutcomeNotFound(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&stubStore{lessons: map[uuid.UUID]domain.Lesson{}})
	rec := doRequest(t, router, http.MethodGet, "/v1/commands/"+uuid.NewString(), "user-1", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown command, got %d", rec.Code)
	}
}
