package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizflow/internal/domain"
)

// SubmissionStore records completed sessions in quiz_submissions.
type SubmissionStore struct {
	pool *pgxpool.Pool
}

func NewSubmissionStore(pool *pgxpool.Pool) *SubmissionStore {
	return &SubmissionStore{pool: pool}
}

func (s *SubmissionStore) Record(ctx context.Context, sub domain.Submission) error {
	lead := sub.LeadData
	if lead == nil {
		lead = map[string]string{}
	}
	leadJSON, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("encode lead data: %w", err)
	}
	answers := sub.Answers
	if answers == nil {
		answers = map[domain.ID]domain.Answer{}
	}
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO quiz_submissions (id, quiz_id, session_id, result_key, lead_data, answers, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New(), sub.QuizID, sub.SessionID, sub.ResultKey, leadJSON, answersJSON, sub.SubmittedAt)
	if err != nil {
		return fmt.Errorf("record submission for %s: %w", sub.SessionID, err)
	}
	return nil
}

// ResultCounts tallies submissions per result key for one quiz.
func (s *SubmissionStore) ResultCounts(ctx context.Context, quizID string) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT result_key, count(*) FROM quiz_submissions WHERE quiz_id=$1 GROUP BY result_key`, quizID)
	if err != nil {
		return nil, fmt.Errorf("count results for %s: %w", quizID, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scan result count: %w", err)
		}
		counts[key] = n
	}
	return counts, rows.Err()
}
