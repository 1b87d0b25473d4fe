package app

import (
	"quizflow/internal/domain"
	"quizflow/internal/timer"
)

func (s *Session) newTimer(cfg *domain.TimerConfig, scope TimerScope, questionID domain.ID) *timer.Timer {
	var t *timer.Timer
	opts := []timer.Option{
		timer.WithScheduler(s.sched),
		timer.WithResolution(domain.DefaultTimerResolution),
		timer.OnChange(func(timer.State) { s.timerTicked(t) }),
		timer.OnExpiry(func() { s.timerExpired(t, scope, questionID) }),
	}
	if cfg.AutoAdvanceOnExpiry {
		opts = append(opts, timer.OnAutoAdvance(func() { s.timerAutoAdvance(t, scope) }))
	}
	t = timer.New(cfg.Duration, cfg.WarningThreshold, opts...)
	return t
}

// syncTimersLocked runs the quiz timer while a question is on screen and keeps
// exactly one question timer, bound to the current question.
func (s *Session) syncTimersLocked() {
	phase, cur := s.phaseLocked(s.visibleLocked())
	onQuestion := phase == PhaseQuestion && !s.closed

	if s.quizTimer != nil {
		switch {
		case s.submitted || s.closed:
			s.quizTimer.Stop()
		case onQuestion:
			s.quizTimer.Start()
		default:
			s.quizTimer.Pause()
		}
	}

	if !onQuestion || !cur.Timer.Active() {
		s.dropQuestionTimerLocked()
		return
	}
	if s.questionTimer != nil && s.questionTimerFor == cur.ID {
		s.questionTimer.Start()
		return
	}
	s.dropQuestionTimerLocked()
	s.questionTimer = s.newTimer(cur.Timer, QuestionTimer, cur.ID)
	s.questionTimerFor = cur.ID
	s.questionTimer.Start()
}

func (s *Session) dropQuestionTimerLocked() {
	if s.questionTimer != nil {
		s.questionTimer.Stop()
		s.questionTimer = nil
		s.questionTimerFor = ""
	}
}

func (s *Session) stopTimersLocked() {
	if s.quizTimer != nil {
		s.quizTimer.Stop()
	}
	s.dropQuestionTimerLocked()
}

// ownsLocked reports whether t is still one of the session's live timers; ticks
// from a replaced or torn-down timer are ignored.
func (s *Session) ownsLocked(t *timer.Timer) bool {
	return !s.closed && t != nil && (t == s.quizTimer || t == s.questionTimer)
}

func (s *Session) timerTicked(t *timer.Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ownsLocked(t) {
		s.broadcastLocked()
	}
}

func (s *Session) timerExpired(t *timer.Timer, scope TimerScope, questionID domain.ID) {
	s.mu.Lock()
	owned := s.ownsLocked(t)
	s.mu.Unlock()
	if owned && s.expiry != nil {
		s.expiry(scope, questionID)
	}
}

// timerAutoAdvance moves the session on when a timer configured to do so runs
// out: a question timer advances (with validation), the quiz timer submits
// whatever has been answered.
func (s *Session) timerAutoAdvance(t *timer.Timer, scope TimerScope) {
	s.mu.Lock()
	if !s.ownsLocked(t) || s.submitted {
		s.mu.Unlock()
		return
	}
	if scope == QuestionTimer {
		s.mu.Unlock()
		if err := s.Advance(s.ctx); err != nil {
			s.logger.Debug("question timer could not advance", "err", err)
		}
		return
	}
	sub, err := s.submitAndPublishLocked(s.ctx, true)
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("quiz timer could not submit", "err", err)
		return
	}
	s.dispatch(s.ctx, sub)
}
