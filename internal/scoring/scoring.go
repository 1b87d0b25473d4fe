// Package scoring turns a finished answer set into a result key.
package scoring

import (
	"quizflow/internal/branching"
	"quizflow/internal/domain"
)

// Strategy computes a result key for a quiz.
type Strategy func(quiz domain.Quiz, answers map[domain.ID]domain.Answer) string

var strategies = map[domain.ResultLogicType]Strategy{
	domain.LogicScoring:     sumWeights,
	domain.LogicWeighted:    sumWeights,
	domain.LogicConditional: firstMatch,
	domain.LogicCustom:      custom,
}

// Score picks the result for answers. An empty results list yields "".
func Score(quiz domain.Quiz, answers map[domain.ID]domain.Answer) string {
	if len(quiz.Results) == 0 {
		return ""
	}
	kind := quiz.ResultLogic.Type
	if kind == "" {
		kind = domain.LogicScoring
	}
	strategy, ok := strategies[kind]
	if !ok {
		return quiz.Results[0].Key
	}
	return strategy(quiz, answers)
}

// Totals returns the per-result sums used by the scoring and weighted strategies.
// Only declared result keys and configured questions are counted, summed in
// question order so float totals are reproducible.
func Totals(quiz domain.Quiz, answers map[domain.ID]domain.Answer) map[string]float64 {
	totals := make(map[string]float64, len(quiz.Results))
	for _, r := range quiz.Results {
		totals[r.Key] = 0
	}
	weighted := quiz.ResultLogic.Type == domain.LogicWeighted
	for _, q := range quiz.Questions {
		a, ok := answers[q.ID]
		if !ok {
			continue
		}
		multiplier := 1.0
		if weighted {
			if m, ok := quiz.ResultLogic.Weights[q.ID]; ok {
				multiplier = m
			}
		}
		for key, w := range a.Weight {
			if _, declared := totals[key]; declared {
				totals[key] += w * multiplier
			}
		}
	}
	return totals
}

func sumWeights(quiz domain.Quiz, answers map[domain.ID]domain.Answer) string {
	totals := Totals(quiz, answers)
	best := quiz.Results[0].Key
	for _, r := range quiz.Results[1:] {
		if totals[r.Key] > totals[best] {
			best = r.Key
		}
	}
	return best
}

func firstMatch(quiz domain.Quiz, answers map[domain.ID]domain.Answer) string {
	values := domain.OrderedAnswers(quiz.Questions, answers)
	for _, c := range quiz.ResultLogic.Conditions {
		if matches(c, values, answers) {
			return c.Result
		}
	}
	return quiz.Results[0].Key
}

func matches(c domain.ResultCondition, values []domain.Answer, answers map[domain.ID]domain.Answer) bool {
	if c.Check != nil {
		return c.Check(values)
	}
	if len(c.Match) == 0 {
		return false
	}
	for _, m := range c.Match {
		if !branching.Evaluate(m, answers) {
			return false
		}
	}
	return true
}

func custom(quiz domain.Quiz, answers map[domain.ID]domain.Answer) string {
	if quiz.ResultLogic.Calculate == nil {
		return quiz.Results[0].Key
	}
	return quiz.ResultLogic.Calculate(domain.CloneAnswers(answers))
}
