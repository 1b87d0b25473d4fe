package app_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizflow/internal/app"
	"quizflow/internal/domain"
	"quizflow/internal/infra/memory"
	"quizflow/internal/timer"
)

type serviceFixture struct {
	service  *app.QuizService
	sessions *memory.SessionStore
	sched    *timer.ManualScheduler
	subs     *memory.SubmissionRecorder
	store    *memory.SnapshotStore
}

func newServiceFixture(quizzes ...domain.Quiz) *serviceFixture {
	byID := make(map[string]domain.Quiz, len(quizzes))
	for _, q := range quizzes {
		byID[q.ID] = q
	}
	f := &serviceFixture{
		sessions: memory.NewSessionStore(),
		sched:    timer.NewManualScheduler(time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)),
		subs:     memory.NewSubmissionRecorder(),
		store:    memory.NewSnapshotStore(),
	}
	f.service = app.NewQuizService(
		f.sessions,
		memory.NewQuizRepository(memory.NewStaticQuizLoader(byID), time.Minute),
		app.UseScheduler(f.sched),
		app.UseSnapshots(f.store),
		app.UseSubmissions(f.subs),
		app.UseLogger(discardLogger()),
	)
	return f
}

func TestStartCreatesAndReusesSessions(t *testing.T) {
	other := styleQuiz()
	other.ID = "other"
	f := newServiceFixture(styleQuiz(), other)

	first, err := f.service.Start(ctx, "style", "s-1", "")
	require.NoError(t, err)
	defer f.service.End("s-1")

	again, err := f.service.Start(ctx, "style", "s-1", "")
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 1, f.sessions.Len())

	_, err = f.service.Start(ctx, "other", "s-1", "")
	assert.ErrorIs(t, err, domain.ErrSessionQuizMismatch)

	_, err = f.service.Start(ctx, "missing", "s-2", "")
	assert.ErrorIs(t, err, domain.ErrQuizNotFound)

	got, err := f.service.Session("s-1")
	require.NoError(t, err)
	assert.Same(t, first, got)
}

func TestEndClosesSessionAndKeepsProgress(t *testing.T) {
	f := newServiceFixture(styleQuiz())
	s, err := f.service.Start(ctx, "style", "s-1", "")
	require.NoError(t, err)
	require.NoError(t, s.Advance(ctx))
	f.sched.Advance(domain.DefaultTransition)

	f.service.End("s-1")
	_, err = f.service.Session("s-1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, s.Advance(ctx), domain.ErrSessionClosed)

	resumed, err := f.service.Start(ctx, "style", "s-1", "")
	require.NoError(t, err)
	defer f.service.End("s-1")
	assert.NotSame(t, s, resumed)
	assert.Equal(t, 1, resumed.State().Step)

	f.service.End("unknown")
}

func TestSubmissionsReachSink(t *testing.T) {
	f := newServiceFixture(styleQuiz())
	s, err := f.service.Start(ctx, "style", "s-1", "")
	require.NoError(t, err)
	defer f.service.End("s-1")

	require.NoError(t, s.Advance(ctx))
	f.sched.Advance(domain.DefaultTransition)
	require.NoError(t, s.SelectAnswer(ctx, "q1", domain.ChooseOption("grey"), false))
	for i := 0; i < 2; i++ {
		require.NoError(t, s.Advance(ctx))
		f.sched.Advance(domain.DefaultTransition)
	}
	st := s.State()
	require.True(t, st.Submitted)
	assert.Equal(t, "calm", st.ResultKey)

	subs := f.subs.All()
	require.Len(t, subs, 1)
	assert.Equal(t, "style", subs[0].QuizID)
	assert.Equal(t, "calm", subs[0].ResultKey)

	counts, err := f.service.ResultCounts(ctx, "style")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"bold": 0, "calm": 1}, counts)
}

func TestResultCountsNeedCountingSink(t *testing.T) {
	service := app.NewQuizService(
		memory.NewSessionStore(),
		memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{"style": styleQuiz()}), time.Minute),
		app.UseLogger(discardLogger()),
	)
	_, err := service.ResultCounts(ctx, "style")
	assert.ErrorIs(t, err, domain.ErrStatsUnavailable)

	f := newServiceFixture(styleQuiz())
	_, err = f.service.ResultCounts(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrQuizNotFound)
}

func TestCustomScorerIsAttachedByName(t *testing.T) {
	quiz := styleQuiz()
	quiz.ResultLogic = domain.ResultLogic{Type: domain.LogicCustom, Custom: "always-calm"}
	f := newServiceFixture(quiz)

	raw := map[domain.ID]json.RawMessage{"q1": json.RawMessage(`{"value":"red"}`)}

	key, err := f.service.Evaluate(ctx, "style", raw)
	require.NoError(t, err)
	assert.Equal(t, "bold", key, "unregistered scorer falls back to the first result")

	f.service.RegisterScorer("always-calm", func(map[domain.ID]domain.Answer) string { return "calm" })
	key, err = f.service.Evaluate(ctx, "style", raw)
	require.NoError(t, err)
	assert.Equal(t, "calm", key)
}

func TestEvaluate(t *testing.T) {
	f := newServiceFixture(styleQuiz())

	key, err := f.service.Evaluate(ctx, "style", map[domain.ID]json.RawMessage{
		"q1":    json.RawMessage(`{"value":"grey","weight":{"bold":10}}`),
		"q3":    json.RawMessage(`{"value":5}`),
		"ghost": json.RawMessage(`{"value":"x"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "calm", key)

	_, err = f.service.Evaluate(ctx, "style", map[domain.ID]json.RawMessage{"q3": json.RawMessage(`{"value":"five"}`)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.service.Evaluate(ctx, "missing", nil)
	assert.ErrorIs(t, err, domain.ErrQuizNotFound)
}

func TestSessionsUseRequestedLocale(t *testing.T) {
	quiz := styleQuiz()
	quiz.I18n = &domain.I18n{Translations: map[string]map[string]string{
		"de": {"validation.questionRequired": "Bitte beantworte diese Frage"},
	}}
	f := newServiceFixture(quiz)

	for locale, want := range map[string]string{
		"de-AT": "Bitte beantworte diese Frage",
		"":      "Please answer this question",
	} {
		id := "s-" + locale
		s, err := f.service.Start(ctx, "style", id, locale)
		require.NoError(t, err)
		require.NoError(t, s.Advance(ctx))
		f.sched.Advance(domain.DefaultTransition)
		assert.ErrorIs(t, s.Advance(ctx), domain.ErrValidationFailed)
		assert.Equal(t, []string{want}, s.State().ValidationErrors["q1"], "locale %q", locale)
		f.service.End(id)
	}
}
