package domain

import (
	"errors"
	"fmt"
	"regexp"
)

// Validate checks a quiz configuration for problems the engine treats as caller
// preconditions. Loaders run it; the state machine does not.
func (q Quiz) Validate() error {
	var problems []error
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	if len(q.Results) == 0 {
		add("no results declared")
	}
	resultKeys := make(map[string]bool, len(q.Results))
	for _, r := range q.Results {
		if r.Key == "" {
			add("result with empty key")
		}
		if resultKeys[r.Key] {
			add("duplicate result key %q", r.Key)
		}
		resultKeys[r.Key] = true
	}

	ids := make(map[ID]bool, len(q.Questions))
	for _, question := range q.Questions {
		if question.ID == "" {
			add("question with empty id")
		}
		if ids[question.ID] {
			add("duplicate question id %q", question.ID)
		}
		ids[question.ID] = true
		problems = append(problems, question.problems()...)
	}

	for i, rule := range q.ConditionalLogic {
		if !ids[rule.QuestionID] {
			add("conditional rule %d targets unknown question %q", i, rule.QuestionID)
		}
		if err := checkCondition(rule.Condition, ids); err != nil {
			add("conditional rule %d: %v", i, err)
		}
	}

	switch q.ResultLogic.Type {
	case "", LogicScoring, LogicCustom:
	case LogicWeighted:
		for id := range q.ResultLogic.Weights {
			if !ids[id] {
				add("weight for unknown question %q", id)
			}
		}
	case LogicConditional:
		for i, c := range q.ResultLogic.Conditions {
			if !resultKeys[c.Result] {
				add("result condition %d points to unknown result %q", i, c.Result)
			}
			for _, m := range c.Match {
				if err := checkCondition(m, ids); err != nil {
					add("result condition %d: %v", i, err)
				}
			}
		}
	default:
		add("unknown result logic %q", q.ResultLogic.Type)
	}

	seen := make(map[string]bool, len(q.LeadCapture.Fields))
	for _, f := range q.LeadCapture.Fields {
		if f.Key == "" || seen[f.Key] {
			add("lead field key %q empty or duplicated", f.Key)
		}
		seen[f.Key] = true
		switch f.Type {
		case FieldText, FieldEmail, FieldTel:
		default:
			add("lead field %q has unknown type %q", f.Key, f.Type)
		}
		if f.Validation != nil && f.Validation.Pattern != "" {
			if _, err := regexp.Compile(f.Validation.Pattern); err != nil {
				add("lead field %q pattern: %v", f.Key, err)
			}
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidQuiz, errors.Join(problems...))
}

func (q Question) problems() []error {
	var out []error
	add := func(format string, args ...any) {
		out = append(out, fmt.Errorf("question %q: "+format, append([]any{q.ID}, args...)...))
	}
	if !q.Type.Known() {
		add("unknown type %q", q.Type)
	}
	switch q.Type {
	case SingleChoice, MultiChoice, ImageSelection:
		if len(q.Options) == 0 {
			add("no options")
		}
		values := make(map[string]bool, len(q.Options))
		for _, opt := range q.Options {
			if values[opt.Value] {
				add("duplicate option %q", opt.Value)
			}
			values[opt.Value] = true
		}
	case Matrix:
		if len(q.Rows) == 0 || len(q.Columns) == 0 {
			add("matrix needs rows and columns")
		}
	case Slider:
		if lo, hi := q.sliderBounds(); lo > hi {
			add("slider min %v above max %v", lo, hi)
		}
	}
	if q.Validation != nil && q.Validation.Pattern != "" {
		if _, err := regexp.Compile(q.Validation.Pattern); err != nil {
			add("pattern: %v", err)
		}
	}
	if q.Timer != nil && q.Timer.Enabled && q.Timer.Duration <= 0 {
		add("timer enabled without duration")
	}
	return out
}

func checkCondition(c Condition, ids map[ID]bool) error {
	if !ids[c.DependsOn] {
		return fmt.Errorf("depends on unknown question %q", c.DependsOn)
	}
	switch c.Operator {
	case OpEquals, OpNotEquals, OpContains:
		return nil
	}
	return fmt.Errorf("unknown operator %q", c.Operator)
}
