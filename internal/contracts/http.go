package contracts

import "encoding/json"

type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Status string       `json:"status"`
	Error  ErrorPayload `json:"error"`
}

type CommandAccepted struct {
	CommandID string `json:"command_id"`
	LessonID  string `json:"lesson_id"`
}

type LessonItem struct {
	LessonID       string          `json:"lesson_id"`
	Version        int64           `json:"version"`
	Payload        json.RawMessage `json:"payload"`
	CreatedAt      string          `json:"created_at"`
	LastModifiedAt string          `json:"last_modified_at"`
}

type CommandOutcomeItem struct {
	CommandID  string `json:"command_id"`
	LessonID   string `json:"lesson_id"`
	Status     string `json:"status"`
	NewVersion *int64 `json:"new_version,omitempty"`
	RecordedAt string `json:"recorded_at"`
}

type DeadLetterItem struct {
	CommandID      string          `json:"command_id"`
	UserID         string          `json:"user_id"`
	Action         string          `json:"action"`
	LessonID       string          `json:"lesson_id"`
	Envelope       json.RawMessage `json:"envelope"`
	DeliveryCount  int             `json:"delivery_count"`
	Reason         string          `json:"reason"`
	FirstSeenAt    string          `json:"first_seen_at"`
	DeadLetteredAt string          `json:"dead_lettered_at"`
}

type ListDeadLettersResponse struct {
	Items  []DeadLetterItem `json:"items"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}
