package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quizflow/internal/domain"
)

func TestQuizRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		QuizLoader: NewStaticQuizLoader(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	repo := NewQuizRepository(loader, time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected loader once, got %d", loader.count())
	}

	quiz, err := repo.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.count())
	}
	if quiz.Questions[0].Prompt.Resolve(nil) != "Pick a colour" {
		t.Fatalf("unexpected prompt %+v", quiz.Questions[0].Prompt)
	}
}

func TestQuizRepositoryExpires(t *testing.T) {
	loader := &countingLoader{QuizLoader: NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": sampleQuiz()})}
	repo := NewQuizRepository(loader, time.Minute)
	now := time.Date(2024, 11, 22, 0, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	_, _ = repo.GetQuiz(context.Background(), "quiz-1")
	now = now.Add(30 * time.Second)
	_, _ = repo.GetQuiz(context.Background(), "quiz-1")
	if loader.count() != 1 {
		t.Fatalf("expected cache hit within ttl, loader calls %d", loader.count())
	}

	now = now.Add(2 * time.Minute)
	_, _ = repo.GetQuiz(context.Background(), "quiz-1")
	if loader.count() != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.count())
	}
}

func TestQuizRepositoryUnknownQuiz(t *testing.T) {
	repo := NewQuizRepository(NewStaticQuizLoader(nil), time.Minute)
	if _, err := repo.GetQuiz(context.Background(), "nope"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestTTLWithJitterBounds(t *testing.T) {
	for i := 0; i < 50; i++ {
		d := TTLWithJitter(time.Minute)
		if d < time.Minute || d > 66*time.Second {
			t.Fatalf("jitter out of range: %v", d)
		}
	}
	if TTLWithJitter(0) != 0 {
		t.Fatalf("zero ttl should stay zero")
	}
}

type countingLoader struct {
	QuizLoader
	mu    sync.Mutex
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID: "quiz-1",
		Questions: []domain.Question{
			{
				ID:     "q1",
				Prompt: domain.Literal("Pick a colour"),
				Type:   domain.SingleChoice,
				Options: []domain.Option{
					{Value: "red", Label: domain.Literal("Red"), Weight: domain.Weights{"bold": 1}},
					{Value: "grey", Label: domain.Literal("Grey"), Weight: domain.Weights{"calm": 1}},
				},
			},
		},
		Results: []domain.Result{{Key: "bold"}, {Key: "calm"}},
	}
}
