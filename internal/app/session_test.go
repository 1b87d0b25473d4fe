package app_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizflow/internal/app"
	"quizflow/internal/domain"
	"quizflow/internal/infra/memory"
	"quizflow/internal/timer"
)

var ctx = context.Background()

func ptr[T any](v T) *T { return &v }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// styleQuiz: q2 only shows up for "red"; scoring over bold/calm.
func styleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "style",
		Title: domain.Literal("Style check"),
		Questions: []domain.Question{
			{
				ID:       "q1",
				Prompt:   domain.Literal("Pick a colour"),
				Type:     domain.SingleChoice,
				Required: true,
				Options: []domain.Option{
					{Value: "red", Label: domain.Literal("Red"), Weight: domain.Weights{"bold": 1}},
					{Value: "grey", Label: domain.Literal("Grey"), Weight: domain.Weights{"calm": 1}},
				},
			},
			{
				ID:         "q2",
				Prompt:     domain.Literal("Why red?"),
				Type:       domain.TextInput,
				Required:   true,
				Validation: &domain.Rules{MinLength: 3},
				Weight:     domain.Weights{"bold": 1},
			},
			{
				ID:           "q3",
				Prompt:       domain.Literal("How calm are you?"),
				Type:         domain.Scale,
				ScaleWeights: map[int]domain.Weights{1: {"bold": 2}, 5: {"calm": 2}},
			},
		},
		ConditionalLogic: []domain.ConditionalRule{
			{QuestionID: "q2", Condition: domain.Condition{DependsOn: "q1", Operator: domain.OpEquals, Value: "red"}},
		},
		Results: []domain.Result{
			{Key: "bold", Title: domain.Literal("Bold")},
			{Key: "calm", Title: domain.Literal("Calm")},
		},
	}
}

func withLead(q domain.Quiz) domain.Quiz {
	q.LeadCapture = domain.LeadCapture{
		Enabled: true,
		Fields: []domain.LeadField{
			{Key: "name", Label: "Name", Type: domain.FieldText, Required: true},
			{Key: "email", Label: "Email", Type: domain.FieldEmail, Required: true},
		},
	}
	return q
}

type fixture struct {
	sched *timer.ManualScheduler
	store *memory.SnapshotStore
	subs  *memory.SubmissionRecorder
}

func newFixture() *fixture {
	return &fixture{
		sched: timer.NewManualScheduler(time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)),
		store: memory.NewSnapshotStore(),
		subs:  memory.NewSubmissionRecorder(),
	}
}

func (f *fixture) session(t *testing.T, quiz domain.Quiz, id string, extra ...app.SessionOption) *app.Session {
	t.Helper()
	opts := append([]app.SessionOption{
		app.WithScheduler(f.sched),
		app.WithSnapshotStore(f.store),
		app.WithSubmitHandler(f.subs.Record),
		app.WithLogger(discardLogger()),
	}, extra...)
	s := app.NewSession(ctx, quiz, id, opts...)
	t.Cleanup(s.Close)
	return s
}

// settle lets a pending transition land.
func (f *fixture) settle() { f.sched.Advance(domain.DefaultTransition) }

func (f *fixture) forward(t *testing.T, s *app.Session) {
	t.Helper()
	require.NoError(t, s.Advance(ctx))
	f.settle()
}

func TestSessionWalkthroughScoresResult(t *testing.T) {
	f := newFixture()
	s := f.session(t, styleQuiz(), "s-1")

	st := s.State()
	assert.Equal(t, app.PhaseWelcome, st.Phase)
	assert.Equal(t, []domain.ID{"q1", "q3"}, st.Visible)

	f.forward(t, s)
	assert.Equal(t, domain.ID("q1"), s.State().QuestionID)

	require.NoError(t, s.SelectAnswer(ctx, "q1", domain.ChooseOption("red"), true))
	st = s.State()
	assert.True(t, st.Transitioning)
	assert.Equal(t, app.Forward, st.Direction)
	assert.Equal(t, []domain.ID{"q1", "q2", "q3"}, st.Visible)
	f.settle()

	st = s.State()
	assert.Equal(t, 2, st.Step)
	assert.Equal(t, domain.ID("q2"), st.QuestionID)
	assert.InDelta(t, 66.67, st.Progress, 0.01)

	require.NoError(t, s.SelectAnswer(ctx, "q2", domain.EnterText("because"), false))
	f.forward(t, s)
	require.NoError(t, s.SelectAnswer(ctx, "q3", domain.PickNumber(1), false))
	f.forward(t, s)

	st = s.State()
	assert.True(t, st.Submitted)
	assert.Equal(t, app.PhaseResults, st.Phase)
	assert.Equal(t, "bold", st.ResultKey)
	assert.Equal(t, 4, st.Step)
	assert.Equal(t, float64(100), st.Progress)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, st.Visited)

	subs := f.subs.All()
	require.Len(t, subs, 1)
	assert.Equal(t, "bold", subs[0].ResultKey)
	assert.Equal(t, "s-1", subs[0].SessionID)
	assert.Equal(t, f.sched.Now(), subs[0].SubmittedAt)
	assert.Len(t, subs[0].Answers, 3)
}

func TestTransitionGuardRejectsOverlappingRequests(t *testing.T) {
	f := newFixture()
	s := f.session(t, styleQuiz(), "s-1")
	f.forward(t, s)

	require.NoError(t, s.SelectAnswer(ctx, "q1", domain.ChooseOption("grey"), true))
	assert.ErrorIs(t, s.Advance(ctx), domain.ErrTransitionInProgress)
	assert.ErrorIs(t, s.Retreat(ctx), domain.ErrTransitionInProgress)
	assert.ErrorIs(t, s.SelectAnswer(ctx, "q1", domain.ChooseOption("red"), true), domain.ErrTransitionInProgress)
	assert.Equal(t, "grey", s.State().Answers["q1"].Text)

	f.settle()
	st := s.State()
	assert.False(t, st.Transitioning)
	assert.Equal(t, 2, st.Step, "only one step per transition")
	assert.Equal(t, domain.ID("q3"), st.QuestionID)
}

func TestAdvanceBlockedByValidation(t *testing.T) {
	f := newFixture()
	s := f.session(t, styleQuiz(), "s-1")
	f.forward(t, s)

	assert.ErrorIs(t, s.Advance(ctx), domain.ErrValidationFailed)
	st := s.State()
	assert.Equal(t, 1, st.Step)
	assert.False(t, st.Transitioning)
	assert.Equal(t, []string{"Please answer this question"}, st.ValidationErrors["q1"])

	require.NoError(t, s.SelectAnswer(ctx, "q1", domain.ChooseOption("red"), false))
	assert.Empty(t, s.State().ValidationErrors)
	f.forward(t, s)

	require.NoError(t, s.SelectAnswer(ctx, "q2", domain.EnterText("ab"), false))
	assert.ErrorIs(t, s.Advance(ctx), domain.ErrValidationFailed)
	assert.Equal(t, []string{"Please enter at least 3 characters"}, s.State().ValidationErrors["q2"])
}

func TestSelectAnswerOnlyAcceptsCurrentQuestion(t *testing.T) {
	f := newFixture()
	s := f.session(t, styleQuiz(), "s-1")

	assert.ErrorIs(t, s.SelectAnswer(ctx, "q1", domain.ChooseOption("red"), false), domain.ErrQuestionNotActive)
	assert.ErrorIs(t, s.SelectAnswer(ctx, "q9", domain.ChooseOption("red"), false), domain.ErrQuestionNotFound)

	f.forward(t, s)
	assert.ErrorIs(t, s.SelectAnswer(ctx, "q3", domain.PickNumber(3), false), domain.ErrQuestionNotActive)
	assert.ErrorIs(t, s.SelectAnswer(ctx, "q1", domain.ChooseOption("blue"), false), domain.ErrOptionNotFound)
	assert.Empty(t, s.State().Answers)
}

func TestChangingBranchKeepsStepOnAnsweredQuestion(t *testing.T) {
	f := newFixture()
	s := f.session(t, styleQuiz(), "s-1")
	f.forward(t, s)
	require.NoError(t, s.SelectAnswer(ctx, "q1", domain.ChooseOption("red"), true))
	f.settle()
	require.NoError(t, s.SelectAnswer(ctx, "q2", domain.EnterText("loud"), false))

	require.NoError(t, s.Retreat(ctx))
	assert.Equal(t, app.Backward, s.State().Direction)
	f.settle()
	require.NoError(t, s.SelectAnswer(ctx, "q1", domain.ChooseOption("grey"), false))

	st := s.State()
	assert.Equal(t, 1, st.Step)
	assert.Equal(t, []domain.ID{"q1", "q3"}, st.Visible)
	assert.Contains(t, st.Answers, domain.ID("q2"), "hidden answers are kept")

	f.forward(t, s)
	assert.Equal(t, domain.ID("q3"), s.State().QuestionID)
}

func TestRetreatRules(t *testing.T) {
	f := newFixture()
	s := f.session(t, styleQuiz(), "s-1")
	assert.ErrorIs(t, s.Retreat(ctx), domain.ErrBackNotAllowed)

	f.forward(t, s)
	require.NoError(t, s.Retreat(ctx))
	f.settle()
	assert.Equal(t, app.PhaseWelcome, s.State().Phase)

	noBack := styleQuiz()
	noBack.Behavior.AllowBack = ptr(false)
	s2 := f.session(t, noBack, "s-2")
	f.forward(t, s2)
	assert.ErrorIs(t, s2.Retreat(ctx), domain.ErrBackNotAllowed)
}

func TestLeadCaptureSubmitsOnce(t *testing.T) {
	f := newFixture()
	s := f.session(t, withLead(styleQuiz()), "s-1")
	f.forward(t, s)
	require.NoError(t, s.SelectAnswer(ctx, "q1", domain.ChooseOption("grey"), true))
	f.settle()
	require.NoError(t, s.SelectAnswer(ctx, "q3", domain.PickNumber(5), false))
	f.forward(t, s)

	st := s.State()
	assert.Equal(t, app.PhaseLeadCapture, st.Phase)
	assert.Equal(t, 3, st.Step)
	assert.Equal(t, float64(100), st.Progress)
	assert.Empty(t, f.subs.All(), "lead capture must not submit on its own")

	_, err := s.Submit(ctx)
	assert.ErrorIs(t, err, domain.ErrValidationFailed)
	st = s.State()
	assert.Equal(t, []string{"This field is required"}, st.LeadValidationErrors["name"])
	assert.Equal(t, []string{"This field is required"}, st.LeadValidationErrors["email"])

	require.NoError(t, s.SetLeadField(ctx, "email", "nope"))
	st = s.State()
	assert.Equal(t, []string{"Please enter a valid email address"}, st.LeadValidationErrors["email"])
	assert.Equal(t, []string{"This field is required"}, st.LeadValidationErrors["name"], "other fields untouched")
	assert.ErrorIs(t, s.SetLeadField(ctx, "age", "40"), domain.ErrFieldNotFound)

	require.NoError(t, s.SetLeadField(ctx, "email", "ada@example.com"))
	require.NoError(t, s.SetLeadField(ctx, "name", "Ada Lovelace"))
	require.NoError(t, s.Advance(ctx))

	st = s.State()
	assert.True(t, st.Submitted)
	assert.Equal(t, "calm", st.ResultKey)
	assert.Equal(t, 4, st.Step)

	_, err = s.Submit(ctx)
	assert.ErrorIs(t, err, domain.ErrAlreadySubmitted)
	assert.ErrorIs(t, s.Advance(ctx), domain.ErrAlreadySubmitted)

	subs := f.subs.All()
	require.Len(t, subs, 1)
	assert.Equal(t, map[string]string{"name": "Ada Lovelace", "email": "ada@example.com"}, subs[0].LeadData)
}

func TestSubmitRequiresStartedQuiz(t *testing.T) {
	f := newFixture()
	s := f.session(t, styleQuiz(), "s-1")
	_, err := s.Submit(ctx)
	assert.ErrorIs(t, err, domain.ErrNotStarted)
}

func TestSubmitOnlyFromLeadCapture(t *testing.T) {
	f := newFixture()
	s := f.session(t, withLead(styleQuiz()), "s-1")
	f.forward(t, s)

	// q1 is required and unanswered; neither lead data nor submit may skip it.
	assert.ErrorIs(t, s.SetLeadField(ctx, "name", "Ada Lovelace"), domain.ErrLeadCaptureNotActive)
	_, err := s.Submit(ctx)
	assert.ErrorIs(t, err, domain.ErrLeadCaptureNotActive)

	st := s.State()
	assert.False(t, st.Submitted)
	assert.Equal(t, app.PhaseQuestion, st.Phase)
	assert.Empty(t, st.LeadData)
	assert.Empty(t, f.subs.All())

	plain := f.session(t, styleQuiz(), "s-2")
	f.forward(t, plain)
	require.NoError(t, plain.SelectAnswer(ctx, "q1", domain.ChooseOption("grey"), false))
	_, err = plain.Submit(ctx)
	assert.ErrorIs(t, err, domain.ErrLeadCaptureNotActive, "without lead capture the quiz submits by advancing")
	assert.Empty(t, f.subs.All())
}

func TestProgressPersistsAndRestores(t *testing.T) {
	f := newFixture()
	quiz := styleQuiz()
	s := f.session(t, quiz, "s-1")

	_, ok, _ := f.store.Load(ctx, domain.SnapshotKey("s-1"))
	assert.False(t, ok, "an untouched session saves nothing")

	f.forward(t, s)
	require.NoError(t, s.SelectAnswer(ctx, "q1", domain.ChooseOption("red"), true))
	f.settle()
	require.NoError(t, s.SelectAnswer(ctx, "q2", domain.EnterText("because"), false))
	before := s.State()
	s.Close()

	_, ok, _ = f.store.Load(ctx, domain.SnapshotKey("s-1"))
	require.True(t, ok, "closing keeps saved progress")

	after := f.session(t, quiz, "s-1").State()
	assert.Equal(t, before.Step, after.Step)
	assert.Equal(t, before.Visible, after.Visible)
	assert.Equal(t, before.Answers, after.Answers)
	assert.Equal(t, before.Progress, after.Progress)
	assert.Equal(t, before.Visited, after.Visited)
}

func TestMalformedSnapshotIsDiscarded(t *testing.T) {
	f := newFixture()
	key := domain.SnapshotKey("s-1")
	require.NoError(t, f.store.Save(ctx, key, []byte(`{{{`)))

	s := f.session(t, styleQuiz(), "s-1")
	st := s.State()
	assert.Equal(t, 0, st.Step)
	assert.Empty(t, st.Answers)

	_, ok, _ := f.store.Load(ctx, key)
	assert.False(t, ok)
}

func TestSnapshotStepIsClamped(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.store.Save(ctx, domain.SnapshotKey("s-1"), []byte(`{"step":9,"answers":{},"leadData":{}}`)))

	st := f.session(t, styleQuiz(), "s-1").State()
	assert.Equal(t, 2, st.Step)
	assert.Equal(t, domain.ID("q3"), st.QuestionID)
}

func TestSaveProgressDisabled(t *testing.T) {
	f := newFixture()
	quiz := styleQuiz()
	quiz.Behavior.SaveProgress = ptr(false)
	s := f.session(t, quiz, "s-1")
	f.forward(t, s)
	require.NoError(t, s.SelectAnswer(ctx, "q1", domain.ChooseOption("red"), false))

	_, ok, _ := f.store.Load(ctx, domain.SnapshotKey("s-1"))
	assert.False(t, ok)
}

func TestSubmitAndResetClearSnapshot(t *testing.T) {
	f := newFixture()
	key := domain.SnapshotKey("s-1")
	s := f.session(t, styleQuiz(), "s-1")
	f.forward(t, s)
	require.NoError(t, s.SelectAnswer(ctx, "q1", domain.ChooseOption("grey"), false))

	require.NoError(t, s.Reset(ctx))
	st := s.State()
	assert.Equal(t, app.PhaseWelcome, st.Phase)
	assert.Empty(t, st.Answers)
	assert.Equal(t, []int{0}, st.Visited)
	_, ok, _ := f.store.Load(ctx, key)
	assert.False(t, ok)

	f.forward(t, s)
	require.NoError(t, s.SelectAnswer(ctx, "q1", domain.ChooseOption("grey"), false))
	_, ok, _ = f.store.Load(ctx, key)
	require.True(t, ok)

	f.forward(t, s)
	f.forward(t, s)
	st = s.State()
	require.True(t, st.Submitted)
	assert.Equal(t, "calm", st.ResultKey)
	_, ok, _ = f.store.Load(ctx, key)
	assert.False(t, ok)
}

func TestQuestionTimerAdvancesOnExpiry(t *testing.T) {
	f := newFixture()
	quiz := styleQuiz()
	quiz.Questions[0].Timer = &domain.TimerConfig{Enabled: true, Duration: 5, AutoAdvanceOnExpiry: true, WarningThreshold: 2}

	type expiry struct {
		scope app.TimerScope
		id    domain.ID
	}
	var expired []expiry
	s := f.session(t, quiz, "s-1", app.WithTimerExpiry(func(scope app.TimerScope, id domain.ID) {
		expired = append(expired, expiry{scope, id})
	}))

	assert.Nil(t, s.State().QuestionTimer)
	f.forward(t, s)
	st := s.State()
	require.NotNil(t, st.QuestionTimer)
	assert.Equal(t, 5, st.QuestionTimer.Remaining)
	assert.True(t, st.QuestionTimer.Running)

	// Unanswered and required: expiry tries to advance and records the error.
	f.sched.Advance(5 * time.Second)
	st = s.State()
	assert.Equal(t, []expiry{{app.QuestionTimer, "q1"}}, expired)
	assert.Equal(t, 1, st.Step)
	assert.NotEmpty(t, st.ValidationErrors["q1"])
	require.NotNil(t, st.QuestionTimer)
	assert.True(t, st.QuestionTimer.Expired)

	// The next question gets its own timer; going back to q1 starts fresh.
	require.NoError(t, s.SelectAnswer(ctx, "q1", domain.ChooseOption("grey"), true))
	f.settle()
	assert.Nil(t, s.State().QuestionTimer, "q3 has no timer")
	require.NoError(t, s.Retreat(ctx))
	f.settle()

	st = s.State()
	require.NotNil(t, st.QuestionTimer)
	assert.Equal(t, 5, st.QuestionTimer.Remaining)
	f.sched.Advance(3 * time.Second)
	assert.True(t, s.State().QuestionTimer.Warning)
	f.sched.Advance(2 * time.Second)
	assert.True(t, s.State().Transitioning, "answered question advances on expiry")
	f.settle()
	assert.Equal(t, domain.ID("q3"), s.State().QuestionID)
}

func TestQuizTimerForcesSubmit(t *testing.T) {
	f := newFixture()
	quiz := withLead(styleQuiz())
	quiz.Behavior.Timer = &domain.TimerConfig{Enabled: true, Duration: 10, AutoAdvanceOnExpiry: true}
	s := f.session(t, quiz, "s-1")

	f.sched.Advance(time.Minute)
	st := s.State()
	require.NotNil(t, st.QuizTimer)
	assert.Equal(t, 10, st.QuizTimer.Remaining, "quiz timer waits on the welcome step")
	assert.False(t, st.QuizTimer.Running)

	f.forward(t, s)
	require.NoError(t, s.SelectAnswer(ctx, "q1", domain.ChooseOption("grey"), false))
	f.sched.Advance(4 * time.Second)
	assert.Equal(t, 6, s.State().QuizTimer.Remaining)

	f.sched.Advance(6 * time.Second)
	st = s.State()
	assert.True(t, st.Submitted, "expiry submits without lead data")
	assert.Equal(t, "calm", st.ResultKey)
	assert.False(t, st.QuizTimer.Running)
	require.Len(t, f.subs.All(), 1)
	assert.Empty(t, f.subs.All()[0].LeadData)
}

func TestSubscribeAndClose(t *testing.T) {
	f := newFixture()
	s := f.session(t, styleQuiz(), "s-1")

	updates, cancel := s.Subscribe()
	defer cancel()
	first := <-updates
	assert.Equal(t, app.PhaseWelcome, first.Phase)

	require.NoError(t, s.Advance(ctx))
	assert.True(t, (<-updates).Transitioning)
	f.settle()
	assert.Equal(t, 1, (<-updates).Step)

	require.NoError(t, s.SelectAnswer(ctx, "q1", domain.ChooseOption("grey"), false))
	require.NoError(t, s.Advance(ctx))
	require.True(t, s.State().Transitioning)
	s.Close()
	f.settle()
	for range updates {
	}
	assert.Equal(t, 1, s.State().Step, "closing cancels the pending transition")
	assert.Zero(t, f.sched.Pending())

	assert.ErrorIs(t, s.Advance(ctx), domain.ErrSessionClosed)
	assert.ErrorIs(t, s.Reset(ctx), domain.ErrSessionClosed)
	assert.ErrorIs(t, s.SetLeadField(ctx, "name", "x"), domain.ErrSessionClosed)
}
