package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"quizflow/internal/app"
	"quizflow/internal/domain"
	"quizflow/internal/share"
)

// QuizHandler serves quiz content and stateless scoring.
type QuizHandler struct {
	service *app.QuizService
}

func NewQuizHandler(service *app.QuizService) *QuizHandler {
	return &QuizHandler{service: service}
}

func (h *QuizHandler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.service.Quiz(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

type evaluateRequest struct {
	Answers map[domain.ID]json.RawMessage `json:"answers"`
}

type evaluateResponse struct {
	ResultKey string      `json:"resultKey"`
	View      *share.View `json:"view,omitempty"`
}

// Evaluate scores a posted answer set and returns the resolved result.
func (h *QuizHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	quizID := chi.URLParam(r, "quizID")
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Join(domain.ErrInvalidInput, err))
		return
	}
	key, err := h.service.Evaluate(r.Context(), quizID, req.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := evaluateResponse{ResultKey: key}
	quiz, err := h.service.Quiz(r.Context(), quizID)
	if err != nil {
		writeError(w, err)
		return
	}
	locale := requestLocale(r)
	if view, err := share.BuildView(quiz, key, share.Square, h.service.Translator(quiz, locale)); err == nil {
		resp.View = &view
	}
	writeJSON(w, http.StatusOK, resp)
}

// ShareView renders the result screen payload for one result key.
func (h *QuizHandler) ShareView(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.service.Quiz(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		writeError(w, err)
		return
	}
	aspect := share.Aspect(r.URL.Query().Get("aspect"))
	tr := h.service.Translator(quiz, requestLocale(r))
	view, err := share.BuildView(quiz, chi.URLParam(r, "resultKey"), aspect, tr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// requestLocale prefers ?locale= and falls back to Accept-Language.
func requestLocale(r *http.Request) string {
	if locale := r.URL.Query().Get("locale"); locale != "" {
		return locale
	}
	return r.Header.Get("Accept-Language")
}

type statsResponse struct {
	QuizID  string         `json:"quizId"`
	Results map[string]int `json:"results"`
}

// Stats reports how many completed sessions reached each result.
func (h *QuizHandler) Stats(w http.ResponseWriter, r *http.Request) {
	quizID := chi.URLParam(r, "quizID")
	counts, err := h.service.ResultCounts(r.Context(), quizID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{QuizID: quizID, Results: counts})
}
