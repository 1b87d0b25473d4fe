package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no live session exists for an id.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionQuizMismatch is returned when a session id is reused for another quiz.
	ErrSessionQuizMismatch = errors.New("session belongs to a different quiz")
	// ErrSessionClosed is returned by operations on a torn-down session.
	ErrSessionClosed = errors.New("quiz session closed")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrInvalidQuiz wraps configuration problems found by Quiz.Validate.
	ErrInvalidQuiz = errors.New("invalid quiz configuration")
	// ErrQuestionNotFound indicates a question ID is not part of the quiz.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrQuestionNotActive is returned when answering a question that is not on screen.
	ErrQuestionNotActive = errors.New("question is not the current step")
	// ErrOptionNotFound indicates a submitted option value is invalid.
	ErrOptionNotFound = errors.New("option not found")
	// ErrInvalidInput indicates an interaction that does not fit the question type.
	ErrInvalidInput = errors.New("invalid input for question")
	// ErrFieldNotFound indicates a lead capture key that is not configured.
	ErrFieldNotFound = errors.New("lead capture field not found")
	// ErrResultNotFound indicates a result key missing from the results list.
	ErrResultNotFound = errors.New("result not found")

	// ErrValidationFailed means the step did not change; messages are in the session state.
	ErrValidationFailed = errors.New("validation failed")
	// ErrTransitionInProgress rejects navigation while a transition is pending.
	ErrTransitionInProgress = errors.New("transition in progress")
	// ErrBackNotAllowed is returned when back navigation is disabled or impossible.
	ErrBackNotAllowed = errors.New("back navigation not allowed")
	// ErrAlreadySubmitted is returned once the session has produced its result.
	ErrAlreadySubmitted = errors.New("quiz already submitted")
	// ErrNotStarted is returned when submitting from the welcome step.
	ErrNotStarted = errors.New("quiz not started")
	// ErrLeadCaptureNotActive rejects lead data and explicit submits away from the lead capture step.
	ErrLeadCaptureNotActive = errors.New("lead capture step is not active")

	// ErrStatsUnavailable is returned when the submission store cannot count results.
	ErrStatsUnavailable = errors.New("result statistics unavailable")

	// ErrMalformedSnapshot is returned when a stored session cannot be decoded.
	ErrMalformedSnapshot = errors.New("malformed session snapshot")
)
