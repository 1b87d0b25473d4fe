package app

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"quizflow/internal/branching"
	"quizflow/internal/domain"
	"quizflow/internal/scoring"
	"quizflow/internal/timer"
	"quizflow/internal/validation"
)

type Phase string

const (
	PhaseWelcome     Phase = "welcome"
	PhaseQuestion    Phase = "question"
	PhaseLeadCapture Phase = "lead-capture"
	PhaseResults     Phase = "results"
)

type Direction string

const (
	Forward  Direction = "forward"
	Backward Direction = "backward"
)

// TimerScope tells a timer-expiry hook which countdown ran out.
type TimerScope string

const (
	QuizTimer     TimerScope = "quiz"
	QuestionTimer TimerScope = "question"
)

// SnapshotStore is the key-value shim sessions persist their progress to.
type SnapshotStore interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// SubmitFunc receives the completed session exactly once.
type SubmitFunc func(ctx context.Context, sub domain.Submission) error

// State is a point-in-time copy of a session, safe to hand to other goroutines.
type State struct {
	SessionID            string                      `json:"sessionId"`
	QuizID               string                      `json:"quizId"`
	Step                 int                         `json:"step"`
	Phase                Phase                       `json:"phase"`
	QuestionID           domain.ID                   `json:"questionId,omitempty"`
	Visible              []domain.ID                 `json:"visible"`
	Visited              []int                       `json:"visited"`
	Answers              map[domain.ID]domain.Answer `json:"answers"`
	LeadData             map[string]string           `json:"leadData"`
	Submitted            bool                        `json:"submitted"`
	ResultKey            string                      `json:"resultKey,omitempty"`
	ValidationErrors     map[domain.ID][]string      `json:"validationErrors,omitempty"`
	LeadValidationErrors map[string][]string         `json:"leadValidationErrors,omitempty"`
	Transitioning        bool                        `json:"transitioning"`
	Direction            Direction                   `json:"direction"`
	Progress             float64                     `json:"progress"`
	QuizTimer            *timer.State                `json:"quizTimer,omitempty"`
	QuestionTimer        *timer.State                `json:"questionTimer,omitempty"`
}

// Session is one traversal of a quiz. All mutation goes through its methods;
// deferred work (transitions, timer ticks) re-enters through the same lock.
type Session struct {
	id     string
	quiz   domain.Quiz
	ctx    context.Context
	sched  timer.Scheduler
	tr     domain.TranslateFunc
	store  SnapshotStore
	submit SubmitFunc
	expiry func(scope TimerScope, questionID domain.ID)
	logger *slog.Logger

	mu               sync.Mutex
	step             int
	answers          map[domain.ID]domain.Answer
	visited          map[int]bool
	lead             map[string]string
	submitted        bool
	resultKey        string
	questionErrors   map[domain.ID][]string
	leadErrors       map[string][]string
	transitioning    bool
	direction        Direction
	cancelTransition timer.Cancel
	gen              uint64
	closed           bool

	quizTimer        *timer.Timer
	questionTimer    *timer.Timer
	questionTimerFor domain.ID

	subscribers map[chan State]struct{}
}

type SessionOption func(*Session)

func WithScheduler(s timer.Scheduler) SessionOption {
	return func(sess *Session) { sess.sched = s }
}

func WithTranslator(tr domain.TranslateFunc) SessionOption {
	return func(sess *Session) { sess.tr = tr }
}

func WithSnapshotStore(store SnapshotStore) SessionOption {
	return func(sess *Session) { sess.store = store }
}

func WithSubmitHandler(f SubmitFunc) SessionOption {
	return func(sess *Session) { sess.submit = f }
}

// WithTimerExpiry registers a hook called whenever a quiz or question timer runs out.
func WithTimerExpiry(f func(scope TimerScope, questionID domain.ID)) SessionOption {
	return func(sess *Session) { sess.expiry = f }
}

func WithLogger(l *slog.Logger) SessionOption {
	return func(sess *Session) { sess.logger = l }
}

// NewSession starts a session, restoring saved progress when the quiz allows it.
func NewSession(ctx context.Context, quiz domain.Quiz, id string, opts ...SessionOption) *Session {
	s := &Session{
		id:          id,
		quiz:        quiz,
		ctx:         context.WithoutCancel(ctx),
		sched:       timer.RealScheduler{},
		logger:      slog.Default(),
		subscribers: make(map[chan State]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", id, "quiz", quiz.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	s.restoreLocked(ctx)
	s.syncTimersLocked()
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Quiz() domain.Quiz { return s.quiz }

func (s *Session) clearLocked() {
	s.step = 0
	s.answers = make(map[domain.ID]domain.Answer)
	s.visited = map[int]bool{0: true}
	s.lead = make(map[string]string)
	s.submitted = false
	s.resultKey = ""
	s.questionErrors = make(map[domain.ID][]string)
	s.leadErrors = make(map[string][]string)
	s.transitioning = false
	s.direction = Forward
	if cfg := s.quiz.Behavior.Timer; cfg.Active() {
		s.quizTimer = s.newTimer(cfg, QuizTimer, "")
	}
}

func (s *Session) restoreLocked(ctx context.Context) {
	if s.store == nil || !s.quiz.Behavior.SaveProgressEnabled() {
		return
	}
	key := domain.SnapshotKey(s.id)
	data, ok, err := s.store.Load(ctx, key)
	if err != nil {
		s.logger.Warn("could not load saved progress", "err", err)
		return
	}
	if !ok {
		return
	}
	snap, err := domain.DecodeSnapshot(data, s.quiz)
	if err != nil {
		s.logger.Warn("discarding saved progress", "err", err)
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.Warn("could not delete saved progress", "err", err)
		}
		return
	}
	s.answers = snap.Answers
	s.lead = snap.LeadData
	s.step = snap.Step
	if last := s.lastStepLocked(s.visibleLocked()); s.step > last {
		s.step = last
	}
	for i := 0; i <= s.step; i++ {
		s.visited[i] = true
	}
}

func (s *Session) visibleLocked() []domain.Question {
	return branching.Visible(s.quiz.Questions, s.quiz.ConditionalLogic, s.answers)
}

func (s *Session) leadSteps() int {
	if s.quiz.LeadCapture.Enabled {
		return 1
	}
	return 0
}

// lastStepLocked is the last step reachable before submission.
func (s *Session) lastStepLocked(visible []domain.Question) int {
	return len(visible) + s.leadSteps()
}

func (s *Session) phaseLocked(visible []domain.Question) (Phase, *domain.Question) {
	switch {
	case s.submitted || s.step > s.lastStepLocked(visible):
		return PhaseResults, nil
	case s.step == 0:
		return PhaseWelcome, nil
	case s.step <= len(visible):
		q := visible[s.step-1]
		return PhaseQuestion, &q
	default:
		return PhaseLeadCapture, nil
	}
}

// SelectAnswer records an interaction with the question on screen. With
// autoAdvance, and auto-advance enabled for the quiz, it also starts a forward
// transition that lands only if that question is still current.
func (s *Session) SelectAnswer(ctx context.Context, questionID domain.ID, in domain.Input, autoAdvance bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpenLocked(); err != nil {
		return err
	}
	q, ok := s.quiz.Question(questionID)
	if !ok {
		return domain.ErrQuestionNotFound
	}
	visible := s.visibleLocked()
	if phase, cur := s.phaseLocked(visible); phase != PhaseQuestion || cur.ID != questionID {
		return domain.ErrQuestionNotActive
	}

	var prev *domain.Answer
	if a, ok := s.answers[questionID]; ok {
		prev = &a
	}
	answer, err := q.Apply(prev, in)
	if err != nil {
		return err
	}
	s.answers[questionID] = answer
	if validation.HasAnswer(q, &answer) {
		delete(s.questionErrors, questionID)
	}
	s.reanchorLocked(questionID)

	if autoAdvance && s.quiz.Behavior.AutoAdvanceEnabled() {
		s.beginTransitionLocked(Forward, func() *domain.Submission {
			_, cur := s.phaseLocked(s.visibleLocked())
			if cur == nil || cur.ID != questionID {
				return nil
			}
			return s.stepForwardLocked()
		})
	}
	s.changedLocked(ctx)
	return nil
}

// reanchorLocked keeps the step on the answered question when branching changes
// the visible list around it.
func (s *Session) reanchorLocked(questionID domain.ID) {
	visible := s.visibleLocked()
	for i, q := range visible {
		if q.ID == questionID {
			s.step = i + 1
			return
		}
	}
	if last := s.lastStepLocked(visible); s.step > last {
		s.step = last
	}
}

// Advance moves forward one step. On a question it validates the answer first;
// on the lead capture step it submits.
func (s *Session) Advance(ctx context.Context) error {
	s.mu.Lock()
	sub, err := s.advanceLocked(ctx)
	s.mu.Unlock()
	s.dispatch(ctx, sub)
	return err
}

func (s *Session) advanceLocked(ctx context.Context) (*domain.Submission, error) {
	if err := s.checkOpenLocked(); err != nil {
		return nil, err
	}
	phase, cur := s.phaseLocked(s.visibleLocked())
	switch phase {
	case PhaseLeadCapture:
		return s.submitAndPublishLocked(ctx, false)
	case PhaseQuestion:
		var answer *domain.Answer
		if a, ok := s.answers[cur.ID]; ok {
			answer = &a
		}
		if errs := validation.ValidateAnswer(*cur, answer, s.tr); len(errs) > 0 {
			s.questionErrors[cur.ID] = errs
			s.changedLocked(ctx)
			return nil, domain.ErrValidationFailed
		}
		delete(s.questionErrors, cur.ID)
	}
	s.beginTransitionLocked(Forward, s.stepForwardLocked)
	s.changedLocked(ctx)
	return nil, nil
}

// Retreat moves back one step without validating.
func (s *Session) Retreat(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpenLocked(); err != nil {
		return err
	}
	if !s.quiz.Behavior.AllowBackEnabled() || s.step == 0 {
		return domain.ErrBackNotAllowed
	}
	s.beginTransitionLocked(Backward, func() *domain.Submission {
		if s.step > 0 {
			s.step--
		}
		return nil
	})
	s.changedLocked(ctx)
	return nil
}

// SetLeadField stores one lead capture value and re-validates only that field.
// It is only accepted on the lead capture step.
func (s *Session) SetLeadField(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSessionClosed
	}
	if s.submitted {
		return domain.ErrAlreadySubmitted
	}
	field, ok := s.quiz.LeadCapture.Field(key)
	if !ok {
		return domain.ErrFieldNotFound
	}
	if phase, _ := s.phaseLocked(s.visibleLocked()); phase != PhaseLeadCapture {
		return domain.ErrLeadCaptureNotActive
	}
	s.lead[key] = value
	if errs := validation.ValidateLeadField(field, value, s.tr); len(errs) > 0 {
		s.leadErrors[key] = errs
	} else {
		delete(s.leadErrors, key)
	}
	s.changedLocked(ctx)
	return nil
}

// Submit scores the session from the lead capture step, hands it to the submit
// handler and clears saved progress. It returns the result key. Quizzes without
// lead capture submit by advancing past their last question.
func (s *Session) Submit(ctx context.Context) (string, error) {
	s.mu.Lock()
	var (
		sub *domain.Submission
		err error
	)
	if err = s.checkOpenLocked(); err == nil {
		err = s.checkSubmittableLocked()
	}
	if err == nil {
		sub, err = s.submitAndPublishLocked(ctx, false)
	}
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	s.dispatch(ctx, sub)
	return sub.ResultKey, nil
}

func (s *Session) checkSubmittableLocked() error {
	phase, _ := s.phaseLocked(s.visibleLocked())
	switch phase {
	case PhaseLeadCapture:
		return nil
	case PhaseWelcome:
		return domain.ErrNotStarted
	}
	return domain.ErrLeadCaptureNotActive
}

func (s *Session) submitAndPublishLocked(ctx context.Context, force bool) (*domain.Submission, error) {
	sub, err := s.submitLocked(ctx, force)
	if err != nil {
		if errors.Is(err, domain.ErrValidationFailed) {
			s.changedLocked(ctx)
		}
		return nil, err
	}
	s.changedLocked(ctx)
	return sub, nil
}

func (s *Session) submitLocked(ctx context.Context, force bool) (*domain.Submission, error) {
	if s.submitted {
		return nil, domain.ErrAlreadySubmitted
	}
	if s.step == 0 {
		return nil, domain.ErrNotStarted
	}
	if s.quiz.LeadCapture.Enabled && !force {
		s.leadErrors = validation.ValidateLead(s.quiz.LeadCapture.Fields, s.lead, s.tr)
		if len(s.leadErrors) > 0 {
			return nil, domain.ErrValidationFailed
		}
	}
	s.cancelTransitionLocked()

	s.resultKey = scoring.Score(s.quiz, s.answers)
	s.submitted = true
	s.step = s.lastStepLocked(s.visibleLocked()) + 1
	s.visited[s.step] = true

	if s.store != nil && s.quiz.Behavior.SaveProgressEnabled() {
		if err := s.store.Delete(ctx, domain.SnapshotKey(s.id)); err != nil {
			s.logger.Warn("could not clear saved progress", "err", err)
		}
	}

	lead := make(map[string]string, len(s.lead))
	for k, v := range s.lead {
		lead[k] = v
	}
	return &domain.Submission{
		QuizID:      s.quiz.ID,
		SessionID:   s.id,
		ResultKey:   s.resultKey,
		LeadData:    lead,
		Answers:     domain.CloneAnswers(s.answers),
		SubmittedAt: s.sched.Now(),
	}, nil
}

func (s *Session) dispatch(ctx context.Context, sub *domain.Submission) {
	if sub == nil || s.submit == nil {
		return
	}
	if err := s.submit(ctx, *sub); err != nil {
		s.logger.Error("submit handler failed", "result", sub.ResultKey, "err", err)
	}
}

// Reset returns the session to the welcome step with everything cleared.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSessionClosed
	}
	s.gen++
	s.cancelTransitionLocked()
	s.stopTimersLocked()
	s.clearLocked()
	if s.store != nil {
		if err := s.store.Delete(ctx, domain.SnapshotKey(s.id)); err != nil {
			s.logger.Warn("could not clear saved progress", "err", err)
		}
	}
	s.syncTimersLocked()
	s.broadcastLocked()
	return nil
}

// Close tears down pending transitions and timers and ends subscriptions. Saved
// progress is kept so the session can be resumed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.gen++
	s.cancelTransitionLocked()
	s.stopTimersLocked()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Session) checkOpenLocked() error {
	switch {
	case s.closed:
		return domain.ErrSessionClosed
	case s.submitted:
		return domain.ErrAlreadySubmitted
	case s.transitioning:
		return domain.ErrTransitionInProgress
	}
	return nil
}

func (s *Session) beginTransitionLocked(dir Direction, complete func() *domain.Submission) {
	s.transitioning = true
	s.direction = dir
	gen := s.gen
	s.cancelTransition = s.sched.AfterFunc(s.quiz.Behavior.TransitionDuration(), func() {
		s.finishTransition(gen, complete)
	})
}

func (s *Session) finishTransition(gen uint64, complete func() *domain.Submission) {
	s.mu.Lock()
	if s.closed || gen != s.gen || !s.transitioning {
		s.mu.Unlock()
		return
	}
	s.transitioning = false
	s.cancelTransition = nil
	sub := complete()
	s.changedLocked(s.ctx)
	s.mu.Unlock()
	s.dispatch(s.ctx, sub)
}

func (s *Session) cancelTransitionLocked() {
	if s.cancelTransition != nil {
		s.cancelTransition()
		s.cancelTransition = nil
	}
	s.transitioning = false
}

// stepForwardLocked lands a forward transition. Without lead capture, leaving
// the last question completes the session.
func (s *Session) stepForwardLocked() *domain.Submission {
	s.step++
	s.visited[s.step] = true
	if s.step > s.lastStepLocked(s.visibleLocked()) {
		sub, err := s.submitLocked(s.ctx, false)
		if err != nil {
			s.logger.Warn("automatic submit failed", "err", err)
		}
		return sub
	}
	return nil
}

// changedLocked runs after every state change: persist, align timers, notify.
func (s *Session) changedLocked(ctx context.Context) {
	s.persistLocked(ctx)
	s.syncTimersLocked()
	s.broadcastLocked()
}

func (s *Session) persistLocked(ctx context.Context) {
	if s.store == nil || !s.quiz.Behavior.SaveProgressEnabled() || s.submitted {
		return
	}
	if s.step == 0 && len(s.answers) == 0 {
		return
	}
	data, err := domain.EncodeSnapshot(domain.Snapshot{Step: s.step, Answers: s.answers, LeadData: s.lead})
	if err != nil {
		s.logger.Warn("could not encode progress", "err", err)
		return
	}
	if err := s.store.Save(ctx, domain.SnapshotKey(s.id), data); err != nil {
		s.logger.Warn("could not save progress", "err", err)
	}
}

// State returns a copy of the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() State {
	visible := s.visibleLocked()
	phase, cur := s.phaseLocked(visible)

	st := State{
		SessionID:     s.id,
		QuizID:        s.quiz.ID,
		Step:          s.step,
		Phase:         phase,
		Visible:       branching.IDs(visible),
		Answers:       domain.CloneAnswers(s.answers),
		LeadData:      make(map[string]string, len(s.lead)),
		Submitted:     s.submitted,
		ResultKey:     s.resultKey,
		Transitioning: s.transitioning,
		Direction:     s.direction,
		Progress:      progress(s.step, s.lastStepLocked(visible)),
	}
	if cur != nil {
		st.QuestionID = cur.ID
	}
	for step := range s.visited {
		st.Visited = append(st.Visited, step)
	}
	sort.Ints(st.Visited)
	for k, v := range s.lead {
		st.LeadData[k] = v
	}
	if len(s.questionErrors) > 0 {
		st.ValidationErrors = make(map[domain.ID][]string, len(s.questionErrors))
		for id, errs := range s.questionErrors {
			st.ValidationErrors[id] = append([]string(nil), errs...)
		}
	}
	if len(s.leadErrors) > 0 {
		st.LeadValidationErrors = make(map[string][]string, len(s.leadErrors))
		for k, errs := range s.leadErrors {
			st.LeadValidationErrors[k] = append([]string(nil), errs...)
		}
	}
	if s.quizTimer != nil {
		ts := s.quizTimer.State()
		st.QuizTimer = &ts
	}
	if s.questionTimer != nil {
		ts := s.questionTimer.State()
		st.QuestionTimer = &ts
	}
	return st
}

func progress(step, total int) float64 {
	if total <= 0 {
		if step > 0 {
			return 100
		}
		return 0
	}
	p := float64(step) / float64(total) * 100
	if p > 100 {
		return 100
	}
	return p
}

// Subscribe returns a channel of state updates starting with the current state.
// Slow readers only miss intermediate states. The caller must invoke cancel.
func (s *Session) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 8)

	s.mu.Lock()
	ch <- s.snapshotLocked()
	if s.closed {
		close(ch)
		s.mu.Unlock()
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() {
	if len(s.subscribers) == 0 {
		return
	}
	st := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- st:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- st
		}
	}
}
