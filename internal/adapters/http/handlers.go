package http

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/adapters/ws"
	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/application"
	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/contracts"
	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/domain"
	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/ports"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	maxPayloadBytes = 1 << 20
	timeFormat      = time.RFC3339
)

type Handler struct {
	service *application.Service
	hub     *ws.Hub
	logger  *slog.Logger
}

func NewHandler(service *application.Service, hub *ws.Hub, logger *slog.Logger) *Handler {
	return &Handler{service: service, hub: hub, logger: logger}
}

func (h *Handler) createLesson(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("If-Match") != "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "If-Match is not allowed on create", requestIDFromContext(r.Context()))
		return
	}
	payload, err := readPayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	h.submit(w, r, application.SubmitCommandInput{
		Action:  domain.ActionCreate,
		Payload: payload,
	})
}

func (h *Handler) updateLesson(w http.ResponseWriter, r *http.Request) {
	lessonID, ok := h.lessonIDParam(w, r)
	if !ok {
		return
	}
	expected, ok := h.expectedVersion(w, r)
	if !ok {
		return
	}
	payload, err := readPayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	h.submit(w, r, application.SubmitCommandInput{
		Action:          domain.ActionUpdate,
		LessonID:        lessonID,
		ExpectedVersion: expected,
		Payload:         payload,
	})
}

func (h *Handler) deleteLesson(w http.ResponseWriter, r *http.Request) {
	lessonID, ok := h.lessonIDParam(w, r)
	if !ok {
		return
	}
	expected, ok := h.expectedVersion(w, r)
	if !ok {
		return
	}
	h.submit(w, r, application.SubmitCommandInput{
		Action:          domain.ActionDelete,
		LessonID:        lessonID,
		ExpectedVersion: expected,
	})
}

// submit is the shared ingress tail: stamp identity and idempotency key,
// enqueue, answer 202 with a polling hint. Acceptance acknowledges the
// enqueue, never the mutation.
func (h *Handler) submit(w http.ResponseWriter, r *http.Request, in application.SubmitCommandInput) {
	in.UserID = userIDFromContext(r.Context())
	in.CommandID = strings.TrimSpace(r.Header.Get("Idempotency-Key"))

	accepted, err := h.service.SubmitCommand(r.Context(), in)
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg, requestIDFromContext(r.Context()))
		return
	}
	w.Header().Set("Location", accepted.LocationHint)
	writeSuccess(w, http.StatusAccepted, contracts.CommandAccepted{
		CommandID: accepted.CommandID,
		LessonID:  accepted.LessonID.String(),
	})
}

func (h *Handler) getLesson(w http.ResponseWriter, r *http.Request) {
	lessonID, ok := h.lessonIDParam(w, r)
	if !ok {
		return
	}
	lesson, err := h.service.GetLesson(r.Context(), lessonID)
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg, requestIDFromContext(r.Context()))
		return
	}
	etag := fmt.Sprintf("%q", strconv.FormatInt(lesson.Version, 10))
	if r.Header.Get("If-None-Match") == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	writeSuccess(w, http.StatusOK, toLessonItem(lesson))
}

func (h *Handler) getCommandOutcome(w http.ResponseWriter, r *http.Request) {
	commandID := chi.URLParam(r, "command_id")
	rec, err := h.service.GetCommandOutcome(r.Context(), commandID)
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg, requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, toOutcomeItem(rec))
}

func (h *Handler) listDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	letters, err := h.service.ListDeadLetters(r.Context(), limit, offset)
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg, requestIDFromContext(r.Context()))
		return
	}
	resp := contracts.ListDeadLettersResponse{
		Items:  make([]contracts.DeadLetterItem, 0, len(letters)),
		Limit:  limit,
		Offset: offset,
	}
	for _, letter := range letters {
		resp.Items = append(resp.Items, toDeadLetterItem(letter))
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	ws.ServeWS(h.hub, h.logger, w, r, userIDFromContext(r.Context()))
}

func (h *Handler) lessonIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	lessonID, err := uuid.Parse(chi.URLParam(r, "lesson_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid lesson_id", requestIDFromContext(r.Context()))
		return uuid.Nil, false
	}
	return lessonID, true
}

// expectedVersion maps the If-Match header to the envelope's expected
// version. Absence is a precondition failure, not a validation one: the
// caller must first read the entity to learn its version.
func (h *Handler) expectedVersion(w http.ResponseWriter, r *http.Request) (*int64, bool) {
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	if raw == "" {
		writeError(w, http.StatusPreconditionRequired, "PRECONDITION_REQUIRED", "If-Match header is required", requestIDFromContext(r.Context()))
		return nil, false
	}
	version, err := parseIfMatch(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid If-Match header", requestIDFromContext(r.Context()))
		return nil, false
	}
	return &version, true
}

func parseIfMatch(raw string) (int64, error) {
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || version < 0 {
		return 0, fmt.Errorf("%w: malformed entity version", domain.ErrInvalidInput)
	}
	return version, nil
}

func readPayload(r *http.Request) (json.RawMessage, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable body", domain.ErrInvalidInput)
	}
	if len(raw) > maxPayloadBytes {
		return nil, fmt.Errorf("%w: payload too large", domain.ErrInvalidInput)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: payload is required", domain.ErrInvalidInput)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: payload must be valid json", domain.ErrInvalidInput)
	}
	return json.RawMessage(raw), nil
}

func toLessonItem(lesson domain.Lesson) contracts.LessonItem {
	return contracts.LessonItem{
		LessonID:       lesson.LessonID.String(),
		Version:        lesson.Version,
		Payload:        lesson.Payload,
		CreatedAt:      lesson.CreatedAt.Format(timeFormat),
		LastModifiedAt: lesson.LastModifiedAt.Format(timeFormat),
	}
}

func toOutcomeItem(rec *ports.OutcomeRecord) contracts.CommandOutcomeItem {
	return contracts.CommandOutcomeItem{
		CommandID:  rec.CommandID,
		LessonID:   rec.LessonID.String(),
		Status:     string(rec.Status),
		NewVersion: rec.NewVersion,
		RecordedAt: rec.RecordedAt.Format(timeFormat),
	}
}

func toDeadLetterItem(letter ports.DeadLetter) contracts.DeadLetterItem {
	return contracts.DeadLetterItem{
		CommandID:      letter.CommandID,
		UserID:         letter.UserID,
		Action:         string(letter.Action),
		LessonID:       letter.LessonID.String(),
		Envelope:       json.RawMessage(letter.Envelope),
		DeliveryCount:  letter.DeliveryCount,
		Reason:         letter.Reason,
		FirstSeenAt:    letter.FirstSeenAt.Format(timeFormat),
		DeadLetteredAt: letter.DeadLetteredAt.Format(timeFormat),
	}
}
