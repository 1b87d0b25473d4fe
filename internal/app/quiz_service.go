package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"quizflow/internal/domain"
	"quizflow/internal/i18n"
	"quizflow/internal/scoring"
	"quizflow/internal/timer"
)

// SessionRepository abstracts where live sessions are registered (in-memory, Redis, etc).
type SessionRepository interface {
	// GetOrCreate returns the session for id, calling create when there is none.
	// The bool reports whether a new session was created.
	GetOrCreate(sessionID string, create func() *Session) (*Session, bool)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// SubmissionSink receives completed sessions.
type SubmissionSink interface {
	Record(ctx context.Context, sub domain.Submission) error
}

// ResultCounter is implemented by sinks that can report how often each result
// was reached.
type ResultCounter interface {
	ResultCounts(ctx context.Context, quizID string) (map[string]int, error)
}

// QuizService wires sessions to quiz content, persistence and translations.
type QuizService struct {
	sessions    SessionRepository
	quizzes     QuizRepository
	snapshots   SnapshotStore
	submissions SubmissionSink
	catalog     *i18n.Catalog
	sched       timer.Scheduler
	logger      *slog.Logger
	locale      string

	mu      sync.RWMutex
	scorers map[string]domain.CustomFunc
}

type ServiceOption func(*QuizService)

// UseSnapshots enables saved progress for quizzes that allow it.
func UseSnapshots(store SnapshotStore) ServiceOption {
	return func(s *QuizService) { s.snapshots = store }
}

func UseSubmissions(sink SubmissionSink) ServiceOption {
	return func(s *QuizService) { s.submissions = sink }
}

func UseCatalog(c *i18n.Catalog) ServiceOption {
	return func(s *QuizService) { s.catalog = c }
}

func UseScheduler(sched timer.Scheduler) ServiceOption {
	return func(s *QuizService) { s.sched = sched }
}

func UseLogger(l *slog.Logger) ServiceOption {
	return func(s *QuizService) { s.logger = l }
}

// UseLocale sets the locale used when neither the caller nor the quiz picks one.
func UseLocale(locale string) ServiceOption {
	return func(s *QuizService) { s.locale = locale }
}

func NewQuizService(sessions SessionRepository, quizzes QuizRepository, opts ...ServiceOption) *QuizService {
	s := &QuizService{
		sessions: sessions,
		quizzes:  quizzes,
		catalog:  i18n.NewCatalog(),
		sched:    timer.RealScheduler{},
		logger:   slog.Default(),
		locale:   i18n.DefaultLocale,
		scorers:  make(map[string]domain.CustomFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterScorer makes a custom result function available to quizzes whose
// resultLogic.custom names it.
func (s *QuizService) RegisterScorer(name string, fn domain.CustomFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scorers[name] = fn
}

// Quiz loads quiz content with registered scorers attached.
func (s *QuizService) Quiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if quiz.ResultLogic.Type == domain.LogicCustom && quiz.ResultLogic.Calculate == nil && quiz.ResultLogic.Custom != "" {
		s.mu.RLock()
		quiz.ResultLogic.Calculate = s.scorers[quiz.ResultLogic.Custom]
		s.mu.RUnlock()
	}
	return quiz, nil
}

// Translator resolves messages for quiz in the requested locale, falling back to
// the quiz's own locale and then the service default.
func (s *QuizService) Translator(quiz domain.Quiz, locale string) domain.TranslateFunc {
	if locale == "" && quiz.I18n != nil {
		locale = quiz.I18n.Locale
	}
	if locale == "" {
		locale = s.locale
	}
	return s.catalog.ForQuiz(quiz.I18n).Translator(locale)
}

// Start returns the live session for sessionID, creating (and restoring) it if
// needed.
func (s *QuizService) Start(ctx context.Context, quizID, sessionID, locale string) (*Session, error) {
	quiz, err := s.Quiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	session, created := s.sessions.GetOrCreate(sessionID, func() *Session {
		return NewSession(ctx, quiz, sessionID, s.sessionOptions(quiz, locale)...)
	})
	if !created && session.Quiz().ID != quizID {
		return nil, fmt.Errorf("%w: session %s", domain.ErrSessionQuizMismatch, sessionID)
	}
	if created {
		s.logger.Info("session started", "session", sessionID, "quiz", quizID)
	}
	return session, nil
}

func (s *QuizService) sessionOptions(quiz domain.Quiz, locale string) []SessionOption {
	opts := []SessionOption{
		WithScheduler(s.sched),
		WithTranslator(s.Translator(quiz, locale)),
		WithLogger(s.logger),
		WithTimerExpiry(func(scope TimerScope, questionID domain.ID) {
			s.logger.Info("timer expired", "quiz", quiz.ID, "scope", scope, "question", questionID)
		}),
	}
	if s.snapshots != nil {
		opts = append(opts, WithSnapshotStore(s.snapshots))
	}
	if s.submissions != nil {
		opts = append(opts, WithSubmitHandler(s.submissions.Record))
	}
	return opts
}

// Session looks up a live session.
func (s *QuizService) Session(sessionID string) (*Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// End tears a session down and forgets it. Saved progress stays in the snapshot
// store until the session is submitted or reset.
func (s *QuizService) End(sessionID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	session.Close()
	s.sessions.Delete(sessionID)
}

// Evaluate scores a complete answer set without a session. Answers use the same
// JSON shape as saved progress; weights are taken from the quiz, not the caller.
func (s *QuizService) Evaluate(ctx context.Context, quizID string, raw map[domain.ID]json.RawMessage) (string, error) {
	quiz, err := s.Quiz(ctx, quizID)
	if err != nil {
		return "", err
	}
	answers, err := domain.DecodeAnswers(quiz, raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	for id, a := range answers {
		q, _ := quiz.Question(id)
		answers[id] = q.Reweigh(a)
	}
	return scoring.Score(quiz, answers), nil
}

// ResultCounts reports submissions per result key. Every declared result is
// present, with zero when nobody reached it.
func (s *QuizService) ResultCounts(ctx context.Context, quizID string) (map[string]int, error) {
	quiz, err := s.Quiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	counter, ok := s.submissions.(ResultCounter)
	if !ok {
		return nil, domain.ErrStatsUnavailable
	}
	recorded, err := counter.ResultCounts(ctx, quizID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(quiz.Results))
	for _, key := range quiz.ResultKeys() {
		out[key] = recorded[key]
	}
	return out, nil
}
