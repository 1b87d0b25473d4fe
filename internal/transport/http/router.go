package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"quizflow/internal/app"
)

type RouterConfig struct {
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter mounts the health check, REST API and websocket endpoint.
func NewRouter(service *app.QuizService, cfg RouterConfig) http.Handler {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Accept-Language", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/ws", NewWSHandler(service, cfg.Logger, origins).ServeWS)

	quizzes := NewQuizHandler(service)
	r.Route("/api/quizzes/{quizID}", func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))
		r.Get("/", quizzes.GetQuiz)
		r.Post("/evaluate", quizzes.Evaluate)
		r.Get("/results/{resultKey}/share", quizzes.ShareView)
		r.Get("/stats", quizzes.Stats)
	})
	return r
}

// originChecker accepts same-host requests and any origin in allowed; "*"
// accepts everything.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}
