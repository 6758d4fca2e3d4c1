package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func int64Ptr(v int64) *int64 { return &v }

func validEnvelope(action Action) Envelope {
	env := Envelope{
		CommandID:   uuid.NewString(),
		UserID:      "user-1",
		Action:      action,
		LessonID:    uuid.New(),
		SubmittedAt: time.Now().UTC(),
		ExpiresAt:   time.Now().UTC().Add(5 * time.Minute),
	}
	switch action {
	case ActionCreate:
		env.Payload = json.RawMessage(`{"title":"Intro"}`)
	case ActionUpdate:
		env.ExpectedVersion = int64Ptr(3)
		env.Payload = json.RawMessage(`{"title":"Intro v2"}`)
	case ActionDelete:
		env.ExpectedVersion = int64Ptr(3)
	}
	return env
}

func TestParseAction(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"create", "update", "delete"} {
		if _, err := ParseAction(raw); err != nil {
			t.Fatalf("expected %q to parse, got %v", raw, err)
		}
	}
	if _, err := ParseAction("upsert"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown action, got %v", err)
	}
}

func TestEnvelopeValidate(t *testing.T) {
	t.Parallel()

	for _, action := range []Action{ActionCreate, ActionUpdate, ActionDelete} {
		if err := validEnvelope(action).Validate(); err != nil {
			t.Fatalf("expected valid %s envelope, got %v", action, err)
		}
	}

	env := validEnvelope(ActionCreate)
	env.ExpectedVersion = int64Ptr(0)
	if err := env.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected create with expected version to fail, got %v", err)
	}

	env = validEnvelope(ActionCreate)
	env.Payload = nil
	if err := env.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected create without payload to fail, got %v", err)
	}

	env = validEnvelope(ActionUpdate)
	env.ExpectedVersion = nil
	if err := env.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected update without expected version to fail, got %v", err)
	}

	env = validEnvelope(ActionUpdate)
	env.ExpectedVersion = int64Ptr(-1)
	if err := env.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected negative expected version to fail, got %v", err)
	}

	env = validEnvelope(ActionDelete)
	env.ExpectedVersion = nil
	if err := env.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected delete without expected version to fail, got %v", err)
	}

	env = validEnvelope(ActionUpdate)
	env.UserID = ""
	if err := env.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected missing user_id to fail, got %v", err)
	}

	env = validEnvelope(ActionUpdate)
	env.LessonID = uuid.Nil
	if err := env.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected missing lesson_id to fail, got %v", err)
	}
}

func TestEnvelopeExpired(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	env := validEnvelope(ActionCreate)
	env.ExpiresAt = now.Add(time.Minute)
	if env.Expired(now) {
		t.Fatalf("envelope should not be expired before its deadline")
	}
	if !env.Expired(now.Add(2 * time.Minute)) {
		t.Fatalf("envelope should be expired after its deadline")
	}

	env.ExpiresAt = time.Time{}
	if env.Expired(now) {
		t.Fatalf("zero deadline must mean no expiry")
	}
}
