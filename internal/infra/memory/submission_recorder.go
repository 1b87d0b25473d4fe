package memory

import (
	"context"
	"sync"

	"quizflow/internal/domain"
)

// SubmissionRecorder keeps completed sessions in memory, in arrival order.
type SubmissionRecorder struct {
	mu   sync.Mutex
	subs []domain.Submission
}

func NewSubmissionRecorder() *SubmissionRecorder {
	return &SubmissionRecorder{}
}

func (r *SubmissionRecorder) Record(_ context.Context, sub domain.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, sub)
	return nil
}

// All returns a copy of everything recorded so far.
func (r *SubmissionRecorder) All() []domain.Submission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Submission(nil), r.subs...)
}

// ResultCounts tallies recorded submissions of quizID by result key.
func (r *SubmissionRecorder) ResultCounts(_ context.Context, quizID string) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int)
	for _, sub := range r.subs {
		if sub.QuizID == quizID {
			counts[sub.ResultKey]++
		}
	}
	return counts, nil
}
