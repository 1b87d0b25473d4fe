// Package branching derives the visible question list from conditional rules.
package branching

import "quizflow/internal/domain"

// Evaluate checks one condition against the recorded answers. A missing source
// answer makes the condition false for every operator.
func Evaluate(c domain.Condition, answers map[domain.ID]domain.Answer) bool {
	a, ok := answers[c.DependsOn]
	if !ok {
		return false
	}
	switch c.Operator {
	case domain.OpEquals:
		return a.Equals(c.Value)
	case domain.OpNotEquals:
		return !a.Equals(c.Value)
	case domain.OpContains:
		return a.Contains(c.Value)
	}
	return false
}

// Visible returns the questions currently eligible for display, in configuration
// order. A question targeted by rules is shown when any of them holds.
func Visible(questions []domain.Question, rules []domain.ConditionalRule, answers map[domain.ID]domain.Answer) []domain.Question {
	if len(rules) == 0 {
		return questions
	}
	byTarget := make(map[domain.ID][]domain.Condition, len(rules))
	for _, r := range rules {
		byTarget[r.QuestionID] = append(byTarget[r.QuestionID], r.Condition)
	}

	out := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		conds, gated := byTarget[q.ID]
		if !gated || anyHolds(conds, answers) {
			out = append(out, q)
		}
	}
	return out
}

func anyHolds(conds []domain.Condition, answers map[domain.ID]domain.Answer) bool {
	for _, c := range conds {
		if Evaluate(c, answers) {
			return true
		}
	}
	return false
}

// IDs lists the ids of the given questions.
func IDs(questions []domain.Question) []domain.ID {
	out := make([]domain.ID, len(questions))
	for i, q := range questions {
		out[i] = q.ID
	}
	return out
}
