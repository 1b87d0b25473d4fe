package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"quizflow/internal/app"
	"quizflow/internal/domain"
	"quizflow/internal/share"
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu    sync.Mutex
	conns map[string]int // open connections per session id
}

func NewWSHandler(service *app.QuizService, logger *slog.Logger, allowedOrigins []string) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		logger:  logger,
		conns:   make(map[string]int),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID  domain.ID `json:"questionId"`
	AutoAdvance bool      `json:"autoAdvance"`
	domain.Input
}

type leadPayload struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type sessionPayload struct {
	SessionID string `json:"sessionId"`
	QuizID    string `json:"quizId"`
}

type resultPayload struct {
	ResultKey string      `json:"resultKey"`
	View      *share.View `json:"view,omitempty"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Code: errorCode(err), Message: err.Error()}}
}

// ServeWS upgrades HTTP requests to websockets and drives one quiz session per
// connection. Every state change, including ones caused by transitions and
// timers, is pushed as a "state" message.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	locale := requestLocale(r)

	h.acquire(sessionID)
	defer h.release(sessionID)

	session, err := h.service.Start(r.Context(), quizID, sessionID, locale)
	if err != nil {
		writeError(w, err)
		return
	}
	tr := h.service.Translator(session.Quiz(), locale)
	logger := h.logger.With("session", sessionID, "quiz", quizID)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	updates, cancel := session.Subscribe()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				logger.Warn("ws write error", "err", err)
				_ = conn.Close()
				return
			}
		}
	}()

	emit := func(msg outboundMessage[any]) bool {
		select {
		case send <- msg:
			return true
		case <-writerDone:
			return false
		case <-closeSignals:
			return false
		}
	}

	emit(outboundMessage[any]{Type: "session", Payload: sessionPayload{SessionID: sessionID, QuizID: quizID}})

	go func() {
		defer close(updatesDone)
		resultSent := false
		for {
			select {
			case st, ok := <-updates:
				if !ok {
					return
				}
				if !emit(outboundMessage[any]{Type: "state", Payload: st}) {
					return
				}
				if st.Submitted && !resultSent {
					resultSent = true
					payload := resultPayload{ResultKey: st.ResultKey}
					if view, err := share.BuildView(session.Quiz(), st.ResultKey, share.Square, tr); err == nil {
						payload.View = &view
					}
					if !emit(outboundMessage[any]{Type: "result", Payload: payload}) {
						return
					}
				}
				if !st.Submitted {
					resultSent = false
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.handle(r, session, inbound); err != nil {
			if !emit(errorMessage(err)) {
				break
			}
		}
	}

	close(closeSignals)
	cancel()
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) acquire(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[sessionID]++
}

// release ends the session once its last connection is gone. The lock is held
// across End so a connection arriving meanwhile starts a fresh session.
func (h *WSHandler) release(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[sessionID]--
	if h.conns[sessionID] > 0 {
		return
	}
	delete(h.conns, sessionID)
	h.service.End(sessionID)
}

func (h *WSHandler) connections(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conns[sessionID]
}

var errUnsupportedMessage = errors.New("unsupported message type")

func (h *WSHandler) handle(r *http.Request, session *app.Session, inbound inboundMessage) error {
	ctx := r.Context()
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errors.Join(domain.ErrInvalidInput, err)
		}
		return session.SelectAnswer(ctx, payload.QuestionID, payload.Input, payload.AutoAdvance)
	case "next":
		return session.Advance(ctx)
	case "back":
		return session.Retreat(ctx)
	case "lead":
		var payload leadPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errors.Join(domain.ErrInvalidInput, err)
		}
		return session.SetLeadField(ctx, payload.Key, payload.Value)
	case "submit":
		_, err := session.Submit(ctx)
		return err
	case "reset":
		return session.Reset(ctx)
	default:
		return errUnsupportedMessage
	}
}
