package i18n

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	"golang.org/x/text/language"

	"quizflow/internal/domain"
)

// DefaultLocale is used when nothing better matches.
const DefaultLocale = "en"

var placeholder = regexp.MustCompile(`{{\s*([A-Za-z0-9_.]+)\s*}}`)

// Catalog stores messages per locale. It is safe for concurrent use.
type Catalog struct {
	mu       sync.RWMutex
	fallback string
	messages map[string]map[string]string
}

// NewCatalog returns a catalog seeded with the built-in English messages.
func NewCatalog() *Catalog {
	c := &Catalog{fallback: DefaultLocale, messages: make(map[string]map[string]string)}
	c.Add(DefaultLocale, English)
	return c
}

// Add merges messages into a locale, overriding existing keys.
func (c *Catalog) Add(locale string, msgs map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	bucket, ok := c.messages[locale]
	if !ok {
		bucket = make(map[string]string, len(msgs))
		c.messages[locale] = bucket
	}
	for k, v := range msgs {
		bucket[k] = v
	}
}

// Clone returns an independent copy.
func (c *Catalog) Clone() *Catalog {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := &Catalog{fallback: c.fallback, messages: make(map[string]map[string]string, len(c.messages))}
	for locale, msgs := range c.messages {
		bucket := make(map[string]string, len(msgs))
		for k, v := range msgs {
			bucket[k] = v
		}
		out.messages[locale] = bucket
	}
	return out
}

// ForQuiz layers a quiz's own translations over a copy of the catalog.
func (c *Catalog) ForQuiz(cfg *domain.I18n) *Catalog {
	out := c.Clone()
	if cfg == nil {
		return out
	}
	for locale, msgs := range cfg.Translations {
		out.Add(locale, msgs)
	}
	if cfg.FallbackLocale != "" {
		out.fallback = cfg.FallbackLocale
	}
	return out
}

func (c *Catalog) localesLocked() []string {
	out := make([]string, 0, len(c.messages))
	for locale := range c.messages {
		if locale != c.fallback {
			out = append(out, locale)
		}
	}
	sort.Strings(out)
	return append([]string{c.fallback}, out...)
}

// Match picks the best known locale for the requested ones, which may be
// Accept-Language strings.
func (c *Catalog) Match(requested ...string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	locales := c.localesLocked()
	supported := make([]language.Tag, len(locales))
	for i, l := range locales {
		supported[i] = language.Make(l)
	}

	var wanted []language.Tag
	for _, r := range requested {
		tags, _, err := language.ParseAcceptLanguage(r)
		if err != nil {
			continue
		}
		wanted = append(wanted, tags...)
	}
	if len(wanted) == 0 {
		return c.fallback
	}
	_, idx, conf := language.NewMatcher(supported).Match(wanted...)
	if conf == language.No || idx < 0 || idx >= len(locales) {
		return c.fallback
	}
	return locales[idx]
}

// Translator returns a lookup for locale. Missing keys fall back to the fallback
// locale and then to the key itself.
func (c *Catalog) Translator(locale string) domain.TranslateFunc {
	resolved := c.Match(locale)
	return func(key string, params map[string]any) string {
		c.mu.RLock()
		msg, ok := c.messages[resolved][key]
		if !ok {
			msg, ok = c.messages[c.fallback][key]
		}
		c.mu.RUnlock()
		if !ok {
			msg = key
		}
		return interpolate(msg, params)
	}
}

func interpolate(msg string, params map[string]any) string {
	if len(params) == 0 {
		return msg
	}
	return placeholder.ReplaceAllStringFunc(msg, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		v, ok := params[name]
		if !ok {
			return m
		}
		return fmt.Sprint(v)
	})
}
