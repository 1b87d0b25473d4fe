package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// TranslateFunc resolves a translation key with parameters to display text.
type TranslateFunc func(key string, params map[string]any) string

// Params is shorthand for translation parameters.
type Params = map[string]any

// ID identifies a question. Configurations may use strings or integers; both decode to ID.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("question id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Text is either a literal string or a translation key with parameters.
type Text struct {
	Literal string
	Key     string
	Params  map[string]any
}

// Literal builds a literal Text.
func Literal(s string) Text { return Text{Literal: s} }

// Key builds a translated Text.
func Key(key string, params map[string]any) Text { return Text{Key: key, Params: params} }

// IsZero reports whether the text is unset.
func (t Text) IsZero() bool { return t.Literal == "" && t.Key == "" }

// Resolve renders the text; literals pass through untouched.
func (t Text) Resolve(translate TranslateFunc) string {
	if t.Key == "" || translate == nil {
		return t.Literal
	}
	return translate(t.Key, t.Params)
}

type textRef struct {
	Key    string         `json:"key" yaml:"key"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

func (t Text) MarshalJSON() ([]byte, error) {
	if t.Key != "" {
		return json.Marshal(textRef{Key: t.Key, Params: t.Params})
	}
	return json.Marshal(t.Literal)
}

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		*t = Text{}
		return json.Unmarshal(data, &t.Literal)
	}
	var ref textRef
	if err := json.Unmarshal(data, &ref); err != nil {
		return err
	}
	*t = Text{Key: ref.Key, Params: ref.Params}
	return nil
}

func (t Text) MarshalYAML() (any, error) {
	if t.Key != "" {
		return textRef{Key: t.Key, Params: t.Params}, nil
	}
	return t.Literal, nil
}

func (t *Text) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*t = Text{Literal: node.Value}
		return nil
	}
	var ref textRef
	if err := node.Decode(&ref); err != nil {
		return err
	}
	*t = Text{Key: ref.Key, Params: ref.Params}
	return nil
}
