// Package validation checks question answers and lead capture fields. Failures
// are reported as translated message lists, never as errors.
package validation

import (
	"regexp"
	"sync"
	"unicode/utf8"

	"quizflow/internal/domain"
	"quizflow/internal/i18n"
)

var (
	EmailPattern = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")
	PhonePattern = regexp.MustCompile(`^[\+]?[1-9][\d]{0,15}$`)
	NamePattern  = regexp.MustCompile(`^[a-zA-Z\s'-]+$`)
	URLPattern   = regexp.MustCompile(`^https?://(www\.)?[-a-zA-Z0-9@:%._\+~#=]{1,256}\.[a-zA-Z0-9()]{1,6}\b([-a-zA-Z0-9()@:%_\+.~#?&//=]*)$`)
)

var english = i18n.NewCatalog().Translator(i18n.DefaultLocale)

func orEnglish(tr domain.TranslateFunc) domain.TranslateFunc {
	if tr == nil {
		return english
	}
	return tr
}

var (
	patternsMu sync.Mutex
	patterns   = map[string]*regexp.Regexp{}
)

// compiled caches configured patterns; nil means the pattern does not compile
// and the rule is skipped.
func compiled(pattern string) *regexp.Regexp {
	patternsMu.Lock()
	defer patternsMu.Unlock()
	if re, ok := patterns[pattern]; ok {
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		re = nil
	}
	patterns[pattern] = re
	return re
}

// HasAnswer is the "answered" rule used to clear errors: matrices need every row,
// everything else a non-empty value.
func HasAnswer(q domain.Question, a *domain.Answer) bool {
	if a == nil {
		return false
	}
	if q.Type == domain.Matrix {
		return a.Cells != nil && a.AnsweredRows(len(q.Rows)) >= len(q.Rows)
	}
	return a.HasValue()
}

// ValidateAnswer returns the messages blocking advancement past q.
func ValidateAnswer(q domain.Question, a *domain.Answer, tr domain.TranslateFunc) []string {
	tr = orEnglish(tr)
	var errs []string

	if q.Type == domain.Matrix {
		if !q.Required {
			return nil
		}
		if a == nil || a.Cells == nil {
			return append(errs, tr("validation.matrixRequired", nil))
		}
		total := len(q.Rows)
		if missing := total - a.AnsweredRows(total); missing > 0 {
			errs = append(errs, tr("validation.matrixRequiredCount", domain.Params{"count": total, "missing": missing}))
		}
		return errs
	}

	if q.Required && (a == nil || !a.HasValue()) {
		return append(errs, tr("validation.questionRequired", nil))
	}
	if q.Validation == nil || a == nil || !isStringKind(a.Kind) || a.Text == "" {
		return errs
	}

	rules := q.Validation
	n := utf8.RuneCountInString(a.Text)
	if rules.MinLength > 0 && n < rules.MinLength {
		errs = append(errs, tr("validation.minCharacters", domain.Params{"count": rules.MinLength}))
	}
	if rules.MaxLength > 0 && n > rules.MaxLength {
		errs = append(errs, tr("validation.maxCharacters", domain.Params{"count": rules.MaxLength}))
	}
	if rules.Pattern != "" {
		if re := compiled(rules.Pattern); re != nil && !re.MatchString(a.Text) {
			errs = append(errs, patternMessage(rules, tr))
		}
	}
	if rules.Custom != nil {
		if msg := rules.Custom(a.Text); msg != "" {
			errs = append(errs, msg)
		}
	}
	return errs
}

func isStringKind(k domain.QuestionType) bool {
	switch k {
	case domain.SingleChoice, domain.ImageSelection, domain.TextInput, domain.DatePicker:
		return true
	}
	return false
}

func patternMessage(rules *domain.Rules, tr domain.TranslateFunc) string {
	if !rules.Message.IsZero() {
		return rules.Message.Resolve(tr)
	}
	return tr("validation.pattern", nil)
}
