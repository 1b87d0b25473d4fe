package domain

import (
	"fmt"
	"math"
	"time"
	"unicode/utf8"
)

// Input is one user interaction with a question: picking an option, typing text,
// choosing a number, or marking a matrix cell.
type Input struct {
	Option string   `json:"option,omitempty"`
	Text   *string  `json:"text,omitempty"`
	Number *float64 `json:"number,omitempty"`
	Row    *int     `json:"row,omitempty"`
	Column *int     `json:"column,omitempty"`
}

// ChooseOption is an Input selecting (or toggling) an option by value.
func ChooseOption(value string) Input { return Input{Option: value} }

// EnterText is an Input for text-input and date-picker questions.
func EnterText(s string) Input { return Input{Text: &s} }

// PickNumber is an Input for scale and slider questions.
func PickNumber(n float64) Input { return Input{Number: &n} }

// MarkCell is an Input for one matrix row.
func MarkCell(row, column int) Input { return Input{Row: &row, Column: &column} }

// Apply folds an interaction into the previous answer for q. Multi-choice toggles
// membership by value and matrix merges per row; every other type replaces the
// answer. Weights come from the configuration, never from the caller.
func (q Question) Apply(prev *Answer, in Input) (Answer, error) {
	switch q.Type {
	case SingleChoice, ImageSelection:
		opt, ok := q.Option(in.Option)
		if !ok {
			return Answer{}, fmt.Errorf("%w: %q on question %s", ErrOptionNotFound, in.Option, q.ID)
		}
		return Answer{Kind: q.Type, Text: opt.Value, Weight: opt.Weight.clone()}, nil

	case MultiChoice:
		opt, ok := q.Option(in.Option)
		if !ok {
			return Answer{}, fmt.Errorf("%w: %q on question %s", ErrOptionNotFound, in.Option, q.ID)
		}
		var selected []Option
		if prev != nil && prev.Kind == MultiChoice {
			selected = append(selected, prev.Selected...)
		}
		var toggled []Option
		removed := false
		for _, s := range selected {
			if s.Value == opt.Value {
				removed = true
				continue
			}
			toggled = append(toggled, s)
		}
		if !removed {
			toggled = append(toggled, opt)
		}
		return Answer{Kind: MultiChoice, Selected: toggled, Weight: sumWeights(toggled)}, nil

	case Scale:
		if in.Number == nil {
			return Answer{}, fmt.Errorf("%w: scale question %s needs a number", ErrInvalidInput, q.ID)
		}
		n := *in.Number
		if n != math.Trunc(n) || n < 1 || n > float64(q.scaleMax()) {
			return Answer{}, fmt.Errorf("%w: %v outside scale 1..%d", ErrInvalidInput, n, q.scaleMax())
		}
		return Answer{Kind: Scale, Number: n, Weight: q.ScaleWeights[int(n)].clone()}, nil

	case Slider:
		if in.Number == nil {
			return Answer{}, fmt.Errorf("%w: slider question %s needs a number", ErrInvalidInput, q.ID)
		}
		n := *in.Number
		lo, hi := q.sliderBounds()
		if n < lo || n > hi {
			return Answer{}, fmt.Errorf("%w: %v outside slider %v..%v", ErrInvalidInput, n, lo, hi)
		}
		if !q.onSliderStep(n) {
			return Answer{}, fmt.Errorf("%w: %v is not a multiple of step %v from %v", ErrInvalidInput, n, q.sliderStep(), lo)
		}
		return Answer{Kind: Slider, Number: n, Weight: q.sliderWeight(n)}, nil

	case TextInput:
		if in.Text == nil {
			return Answer{}, fmt.Errorf("%w: text question %s needs text", ErrInvalidInput, q.ID)
		}
		if utf8.RuneCountInString(*in.Text) > q.maxLength() {
			return Answer{}, fmt.Errorf("%w: text longer than %d characters", ErrInvalidInput, q.maxLength())
		}
		return Answer{Kind: TextInput, Text: *in.Text, Weight: q.Weight.clone()}, nil

	case DatePicker:
		if in.Text == nil {
			return Answer{}, fmt.Errorf("%w: date question %s needs a date", ErrInvalidInput, q.ID)
		}
		if *in.Text != "" {
			if err := q.checkDate(*in.Text); err != nil {
				return Answer{}, err
			}
		}
		return Answer{Kind: DatePicker, Text: *in.Text, Weight: q.Weight.clone()}, nil

	case Matrix:
		if in.Row == nil || in.Column == nil {
			return Answer{}, fmt.Errorf("%w: matrix question %s needs row and column", ErrInvalidInput, q.ID)
		}
		row, col := *in.Row, *in.Column
		if row < 0 || row >= len(q.Rows) || col < 0 || col >= len(q.Columns) {
			return Answer{}, fmt.Errorf("%w: cell %d,%d outside matrix", ErrInvalidInput, row, col)
		}
		cells := make(map[int]MatrixCell)
		if prev != nil && prev.Kind == Matrix {
			for k, v := range prev.Cells {
				cells[k] = v
			}
		}
		cells[row] = MatrixCell{Row: q.Rows[row], Column: q.Columns[col], Value: col}
		return Answer{Kind: Matrix, Cells: cells}, nil
	}
	return Answer{}, fmt.Errorf("%w: unsupported question type %q", ErrInvalidInput, q.Type)
}

// Reweigh replaces the weights carried by a with the ones configured on q, as
// Apply would have produced them. Unknown option values contribute nothing.
func (q Question) Reweigh(a Answer) Answer {
	out := a.Clone()
	switch q.Type {
	case SingleChoice, ImageSelection:
		opt, _ := q.Option(a.Text)
		out.Weight = opt.Weight.clone()
	case MultiChoice:
		out.Selected = nil
		for _, s := range a.Selected {
			if opt, ok := q.Option(s.Value); ok {
				out.Selected = append(out.Selected, opt)
			}
		}
		out.Weight = sumWeights(out.Selected)
	case Scale:
		out.Weight = q.ScaleWeights[int(a.Number)].clone()
	case Slider:
		out.Weight = q.sliderWeight(a.Number)
	case TextInput, DatePicker:
		out.Weight = q.Weight.clone()
	default:
		out.Weight = nil
	}
	return out
}

func (q Question) checkDate(value string) error {
	d, err := time.Parse(DateLayout, value)
	if err != nil {
		return fmt.Errorf("%w: %q is not a %s date", ErrInvalidInput, value, DateLayout)
	}
	if q.MinDate != "" {
		if lo, err := time.Parse(DateLayout, q.MinDate); err == nil && d.Before(lo) {
			return fmt.Errorf("%w: %s is before %s", ErrInvalidInput, value, q.MinDate)
		}
	}
	if q.MaxDate != "" {
		if hi, err := time.Parse(DateLayout, q.MaxDate); err == nil && d.After(hi) {
			return fmt.Errorf("%w: %s is after %s", ErrInvalidInput, value, q.MaxDate)
		}
	}
	return nil
}
