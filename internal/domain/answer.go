package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MatrixCell records the column chosen for one matrix row.
type MatrixCell struct {
	Row    string `json:"row"`
	Column string `json:"column"`
	Value  int    `json:"value"` // column index
}

// Answer is a tagged variant keyed by the question type it answers. Only the
// field matching Kind is meaningful:
//
//	single-choice, image-selection, text-input, date-picker -> Text
//	scale, slider                                           -> Number
//	multi-choice                                            -> Selected
//	matrix                                                  -> Cells (row index -> cell)
type Answer struct {
	Kind     QuestionType
	Text     string
	Number   float64
	Selected []Option
	Cells    map[int]MatrixCell
	Weight   Weights
}

// TextAnswer builds an answer for a string-valued question type.
func TextAnswer(kind QuestionType, value string, weight Weights) Answer {
	return Answer{Kind: kind, Text: value, Weight: weight}
}

// NumberAnswer builds an answer for scale or slider questions.
func NumberAnswer(kind QuestionType, value float64, weight Weights) Answer {
	return Answer{Kind: kind, Number: value, Weight: weight}
}

func (a Answer) isNumeric() bool { return a.Kind == Scale || a.Kind == Slider }

// HasValue is the type-specific non-empty rule: a non-blank string, any number,
// a non-empty selection, or a present row map.
func (a Answer) HasValue() bool {
	switch a.Kind {
	case Scale, Slider:
		return true
	case MultiChoice:
		return len(a.Selected) > 0
	case Matrix:
		return a.Cells != nil
	default:
		return strings.TrimSpace(a.Text) != ""
	}
}

// Equals compares the scalar value of the answer with v. Selections and
// matrices are never equal to a scalar.
func (a Answer) Equals(v any) bool {
	switch a.Kind {
	case MultiChoice, Matrix:
		return false
	}
	if a.isNumeric() {
		n, ok := toFloat(v)
		return ok && n == a.Number
	}
	s, ok := v.(string)
	return ok && s == a.Text
}

// Contains reports whether a multi-choice selection includes an option with value v.
func (a Answer) Contains(v any) bool {
	if a.Kind != MultiChoice {
		return false
	}
	want := scalarString(v)
	for _, opt := range a.Selected {
		if opt.Value == want {
			return true
		}
	}
	return false
}

// Value returns the answer's wire value.
func (a Answer) Value() any {
	switch a.Kind {
	case Scale, Slider:
		return a.Number
	case MultiChoice:
		if a.Selected == nil {
			return []Option{}
		}
		return a.Selected
	case Matrix:
		cells := make(map[string]MatrixCell, len(a.Cells))
		for row, cell := range a.Cells {
			cells[strconv.Itoa(row)] = cell
		}
		return cells
	default:
		return a.Text
	}
}

// Clone returns a deep copy.
func (a Answer) Clone() Answer {
	out := a
	out.Weight = a.Weight.clone()
	if a.Selected != nil {
		out.Selected = append([]Option(nil), a.Selected...)
	}
	if a.Cells != nil {
		out.Cells = make(map[int]MatrixCell, len(a.Cells))
		for k, v := range a.Cells {
			out.Cells[k] = v
		}
	}
	return out
}

// AnsweredRows counts matrix rows with a recorded column among the first rows rows.
func (a Answer) AnsweredRows(rows int) int {
	n := 0
	for row := range a.Cells {
		if row >= 0 && row < rows {
			n++
		}
	}
	return n
}

type wireAnswer struct {
	Value  any     `json:"value"`
	Weight Weights `json:"weight,omitempty"`
}

func (a Answer) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireAnswer{Value: a.Value(), Weight: a.Weight})
}

// DecodeAnswer is the per-type inverse of Answer.MarshalJSON.
func DecodeAnswer(q Question, raw []byte) (Answer, error) {
	var wire struct {
		Value  json.RawMessage `json:"value"`
		Weight Weights         `json:"weight"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Answer{}, fmt.Errorf("decode answer %s: %w", q.ID, err)
	}
	a := Answer{Kind: q.Type, Weight: wire.Weight}
	var err error
	switch q.Type {
	case Scale, Slider:
		err = json.Unmarshal(wire.Value, &a.Number)
	case MultiChoice:
		err = json.Unmarshal(wire.Value, &a.Selected)
	case Matrix:
		var cells map[string]MatrixCell
		if err = json.Unmarshal(wire.Value, &cells); err == nil {
			a.Cells = make(map[int]MatrixCell, len(cells))
			for k, cell := range cells {
				row, convErr := strconv.Atoi(k)
				if convErr != nil {
					return Answer{}, fmt.Errorf("decode answer %s: matrix row %q: %w", q.ID, k, convErr)
				}
				a.Cells[row] = cell
			}
		}
	default:
		err = json.Unmarshal(wire.Value, &a.Text)
	}
	if err != nil {
		return Answer{}, fmt.Errorf("decode answer %s: %w", q.ID, err)
	}
	return a, nil
}

// DecodeAnswers decodes a raw answer map, dropping entries for unknown questions.
func DecodeAnswers(quiz Quiz, raw map[ID]json.RawMessage) (map[ID]Answer, error) {
	out := make(map[ID]Answer, len(raw))
	for id, data := range raw {
		q, ok := quiz.Question(id)
		if !ok {
			continue
		}
		a, err := DecodeAnswer(q, data)
		if err != nil {
			return nil, err
		}
		out[id] = a
	}
	return out, nil
}

// OrderedAnswers lists answers following question configuration order.
func OrderedAnswers(questions []Question, answers map[ID]Answer) []Answer {
	out := make([]Answer, 0, len(answers))
	for _, q := range questions {
		if a, ok := answers[q.ID]; ok {
			out = append(out, a)
		}
	}
	return out
}

// CloneAnswers deep-copies an answer map.
func CloneAnswers(answers map[ID]Answer) map[ID]Answer {
	out := make(map[ID]Answer, len(answers))
	for id, a := range answers {
		out[id] = a.Clone()
	}
	return out
}

func sumWeights(options []Option) Weights {
	var out Weights
	for _, opt := range options {
		for k, v := range opt.Weight {
			if out == nil {
				out = make(Weights)
			}
			out[k] += v
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	}
	if f, ok := toFloat(v); ok {
		if f == math.Trunc(f) {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
