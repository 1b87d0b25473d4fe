package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"quizflow/internal/domain"
)

type errorKind struct {
	err    error
	code   string
	status int
}

var errorKinds = []errorKind{
	{domain.ErrQuizNotFound, "quiz_not_found", http.StatusNotFound},
	{domain.ErrResultNotFound, "result_not_found", http.StatusNotFound},
	{domain.ErrSessionNotFound, "session_not_found", http.StatusNotFound},
	{domain.ErrSessionQuizMismatch, "session_quiz_mismatch", http.StatusConflict},
	{domain.ErrInvalidQuiz, "invalid_quiz", http.StatusUnprocessableEntity},
	{domain.ErrQuestionNotFound, "question_not_found", http.StatusBadRequest},
	{domain.ErrQuestionNotActive, "question_not_active", http.StatusConflict},
	{domain.ErrOptionNotFound, "option_not_found", http.StatusBadRequest},
	{domain.ErrInvalidInput, "invalid_input", http.StatusBadRequest},
	{domain.ErrFieldNotFound, "field_not_found", http.StatusBadRequest},
	{domain.ErrValidationFailed, "validation_failed", http.StatusUnprocessableEntity},
	{domain.ErrTransitionInProgress, "transition_in_progress", http.StatusConflict},
	{domain.ErrBackNotAllowed, "back_not_allowed", http.StatusConflict},
	{domain.ErrAlreadySubmitted, "already_submitted", http.StatusConflict},
	{domain.ErrNotStarted, "not_started", http.StatusConflict},
	{domain.ErrLeadCaptureNotActive, "lead_capture_not_active", http.StatusConflict},
	{domain.ErrSessionClosed, "session_closed", http.StatusGone},
	{domain.ErrStatsUnavailable, "stats_unavailable", http.StatusServiceUnavailable},
	{errUnsupportedMessage, "unsupported_message", http.StatusBadRequest},
}

func classify(err error) errorKind {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k
		}
	}
	return errorKind{err: err, code: "internal", status: http.StatusInternalServerError}
}

func errorCode(err error) string { return classify(err).code }

func writeError(w http.ResponseWriter, err error) {
	k := classify(err)
	msg := err.Error()
	if k.status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, k.status, errorPayload{Code: k.code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
