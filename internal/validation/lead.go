package validation

import (
	"strings"
	"unicode/utf8"

	"quizflow/internal/domain"
)

// DefaultRules are applied to a lead field that declares no rules of its own.
// Email and tel fields are checked by format instead and get nil.
func DefaultRules(fieldType domain.FieldType, key string) *domain.Rules {
	if fieldType != domain.FieldText {
		return nil
	}
	k := strings.ToLower(key)
	switch {
	case strings.Contains(k, "name"):
		return &domain.Rules{
			Pattern:   NamePattern.String(),
			Message:   domain.Key("validation.name", nil),
			MinLength: 2,
			MaxLength: 50,
		}
	case strings.Contains(k, "url"), strings.Contains(k, "website"):
		return &domain.Rules{
			Pattern: URLPattern.String(),
			Message: domain.Key("validation.url", nil),
		}
	default:
		return &domain.Rules{MinLength: 1, MaxLength: 100}
	}
}

// ValidateLeadField checks one lead capture value. A required field that is empty
// reports only that.
func ValidateLeadField(f domain.LeadField, value string, tr domain.TranslateFunc) []string {
	tr = orEnglish(tr)
	value = strings.TrimSpace(value)
	if value == "" {
		if f.Required {
			return []string{tr("validation.required", nil)}
		}
		return nil
	}

	rules := f.Validation
	if rules == nil {
		switch f.Type {
		case domain.FieldEmail:
			if !EmailPattern.MatchString(value) {
				return []string{tr("validation.email", nil)}
			}
			return nil
		case domain.FieldTel:
			if !PhonePattern.MatchString(value) {
				return []string{tr("validation.phone", nil)}
			}
			return nil
		}
		rules = DefaultRules(f.Type, f.Key)
		if rules == nil {
			return nil
		}
	}

	var errs []string
	n := utf8.RuneCountInString(value)
	if rules.MinLength > 0 && n < rules.MinLength {
		errs = append(errs, tr("validation.minLength", domain.Params{"count": rules.MinLength}))
	}
	if rules.MaxLength > 0 && n > rules.MaxLength {
		errs = append(errs, tr("validation.maxLength", domain.Params{"count": rules.MaxLength}))
	}
	if rules.Pattern != "" {
		if re := compiled(rules.Pattern); re != nil && !re.MatchString(value) {
			errs = append(errs, patternMessage(rules, tr))
		}
	}
	if rules.Custom != nil {
		if msg := rules.Custom(value); msg != "" {
			errs = append(errs, msg)
		}
	}
	return errs
}

// ValidateLead validates every configured field; only fields with problems appear
// in the result.
func ValidateLead(fields []domain.LeadField, data map[string]string, tr domain.TranslateFunc) map[string][]string {
	out := make(map[string][]string)
	for _, f := range fields {
		if errs := ValidateLeadField(f, data[f.Key], tr); len(errs) > 0 {
			out[f.Key] = errs
		}
	}
	return out
}
