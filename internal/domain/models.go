package domain

import (
	"math"
	"time"
)

// QuestionType tags how a question is answered.
type QuestionType string

const (
	SingleChoice   QuestionType = "single-choice"
	MultiChoice    QuestionType = "multi-choice"
	Scale          QuestionType = "scale"
	Slider         QuestionType = "slider"
	TextInput      QuestionType = "text-input"
	ImageSelection QuestionType = "image-selection"
	DatePicker     QuestionType = "date-picker"
	Matrix         QuestionType = "matrix"
)

// Known reports whether t is one of the supported question types.
func (t QuestionType) Known() bool {
	switch t {
	case SingleChoice, MultiChoice, Scale, Slider, TextInput, ImageSelection, DatePicker, Matrix:
		return true
	}
	return false
}

const (
	DefaultScaleMax        = 5
	DefaultSliderMin       = 0
	DefaultSliderMax       = 100
	DefaultSliderStep      = 1
	DefaultTextMaxLength   = 500
	DefaultTransition      = 300 * time.Millisecond
	DateLayout             = "2006-01-02"
	DefaultTimerResolution = 100 * time.Millisecond
)

// Weights maps a result key to a numeric contribution.
type Weights map[string]float64

func (w Weights) clone() Weights {
	if len(w) == 0 {
		return nil
	}
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Option represents a selectable answer.
type Option struct {
	Value  string  `json:"value" yaml:"value"`
	Label  Text    `json:"label" yaml:"label"`
	Image  string  `json:"image,omitempty" yaml:"image,omitempty"`
	Weight Weights `json:"weight,omitempty" yaml:"weight,omitempty"`
}

// Rules are shared length/pattern checks for text answers and lead fields.
type Rules struct {
	MinLength int    `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength int    `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Pattern   string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Message   Text   `json:"message,omitempty" yaml:"message,omitempty"`
	// Custom returns an error message, or "" when the value is acceptable.
	Custom func(value string) string `json:"-" yaml:"-"`
}

// TimerConfig configures a quiz-level or question-level countdown.
type TimerConfig struct {
	Enabled             bool `json:"enabled" yaml:"enabled"`
	Duration            int  `json:"duration" yaml:"duration"` // seconds
	ShowDisplay         bool `json:"showDisplay,omitempty" yaml:"showDisplay,omitempty"`
	AutoAdvanceOnExpiry bool `json:"autoAdvanceOnExpiry,omitempty" yaml:"autoAdvanceOnExpiry,omitempty"`
	WarningThreshold    int  `json:"warningThreshold,omitempty" yaml:"warningThreshold,omitempty"`
}

// Active reports whether the timer should run at all.
func (t *TimerConfig) Active() bool { return t != nil && t.Enabled }

type ScaleLabels struct {
	Min Text `json:"min" yaml:"min"`
	Max Text `json:"max" yaml:"max"`
}

type Layout struct {
	Type    string `json:"type" yaml:"type"` // list | grid
	Columns int    `json:"columns,omitempty" yaml:"columns,omitempty"`
	Gap     string `json:"gap,omitempty" yaml:"gap,omitempty"`
}

// Question is immutable once the quiz configuration is supplied.
type Question struct {
	ID           ID              `json:"id" yaml:"id"`
	Prompt       Text            `json:"question" yaml:"question"`
	Description  Text            `json:"description,omitempty" yaml:"description,omitempty"`
	Type         QuestionType    `json:"type" yaml:"type"`
	Required     bool            `json:"required,omitempty" yaml:"required,omitempty"`
	Options      []Option        `json:"options,omitempty" yaml:"options,omitempty"`
	Placeholder  Text            `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	MaxLength    int             `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Min          *float64        `json:"min,omitempty" yaml:"min,omitempty"`
	Max          *float64        `json:"max,omitempty" yaml:"max,omitempty"`
	Step         *float64        `json:"step,omitempty" yaml:"step,omitempty"`
	Unit         string          `json:"unit,omitempty" yaml:"unit,omitempty"`
	ScaleMax     int             `json:"scaleMax,omitempty" yaml:"scaleMax,omitempty"`
	ScaleLabels  *ScaleLabels    `json:"scaleLabels,omitempty" yaml:"scaleLabels,omitempty"`
	ScaleWeights map[int]Weights `json:"scaleWeights,omitempty" yaml:"scaleWeights,omitempty"`
	ValueWeights map[int]Weights `json:"valueWeights,omitempty" yaml:"valueWeights,omitempty"` // slider values rounded to the nearest whole number
	Weight       Weights         `json:"weight,omitempty" yaml:"weight,omitempty"`
	Validation   *Rules          `json:"validation,omitempty" yaml:"validation,omitempty"`
	Columns      []string        `json:"columns,omitempty" yaml:"columns,omitempty"`
	Rows         []string        `json:"rows,omitempty" yaml:"rows,omitempty"`
	MinDate      string          `json:"minDate,omitempty" yaml:"minDate,omitempty"`
	MaxDate      string          `json:"maxDate,omitempty" yaml:"maxDate,omitempty"`
	Layout       *Layout         `json:"layout,omitempty" yaml:"layout,omitempty"`
	Timer        *TimerConfig    `json:"timer,omitempty" yaml:"timer,omitempty"`
}

// Option looks up a configured option by value.
func (q Question) Option(value string) (Option, bool) {
	for _, opt := range q.Options {
		if opt.Value == value {
			return opt, true
		}
	}
	return Option{}, false
}

func (q Question) scaleMax() int {
	if q.ScaleMax > 0 {
		return q.ScaleMax
	}
	return DefaultScaleMax
}

func (q Question) sliderBounds() (float64, float64) {
	lo, hi := float64(DefaultSliderMin), float64(DefaultSliderMax)
	if q.Min != nil {
		lo = *q.Min
	}
	if q.Max != nil {
		hi = *q.Max
	}
	return lo, hi
}

func (q Question) sliderStep() float64 {
	if q.Step != nil && *q.Step > 0 {
		return *q.Step
	}
	return DefaultSliderStep
}

// onSliderStep reports whether n lies on the grid lo, lo+step, lo+2*step, ...
func (q Question) onSliderStep(n float64) bool {
	lo, _ := q.sliderBounds()
	k := (n - lo) / q.sliderStep()
	return math.Abs(k-math.Round(k)) < 1e-9
}

func (q Question) sliderWeight(n float64) Weights {
	return q.ValueWeights[int(math.Round(n))].clone()
}

func (q Question) maxLength() int {
	if q.MaxLength > 0 {
		return q.MaxLength
	}
	return DefaultTextMaxLength
}

// Operator is a conditional comparison.
type Operator string

const (
	OpEquals    Operator = "equals"
	OpNotEquals Operator = "not_equals"
	OpContains  Operator = "contains"
)

// Condition compares the answer of DependsOn against Value.
type Condition struct {
	DependsOn ID       `json:"dependsOn" yaml:"dependsOn"`
	Operator  Operator `json:"operator" yaml:"operator"`
	Value     any      `json:"value" yaml:"value"`
}

// ConditionalRule shows QuestionID only when its condition holds. Multiple rules
// for the same target are OR-ed.
type ConditionalRule struct {
	QuestionID ID `json:"questionId" yaml:"questionId"`
	Condition  `yaml:",inline"`
}

// ResultLogicType selects a scoring strategy.
type ResultLogicType string

const (
	LogicScoring     ResultLogicType = "scoring"
	LogicWeighted    ResultLogicType = "weighted"
	LogicConditional ResultLogicType = "conditional"
	LogicCustom      ResultLogicType = "custom"
)

// ResultCondition maps a predicate over answer values to a result key. Check is
// used when set; otherwise every Match clause must hold.
type ResultCondition struct {
	Check  func(values []Answer) bool `json:"-" yaml:"-"`
	Match  []Condition                `json:"match,omitempty" yaml:"match,omitempty"`
	Result string                     `json:"result" yaml:"result"`
}

// CustomFunc computes a result key from the full answer map.
type CustomFunc func(answers map[ID]Answer) string

type ResultLogic struct {
	Type       ResultLogicType   `json:"type" yaml:"type"`
	Weights    map[ID]float64    `json:"weights,omitempty" yaml:"weights,omitempty"`
	Conditions []ResultCondition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Custom     string            `json:"custom,omitempty" yaml:"custom,omitempty"`
	Calculate  CustomFunc        `json:"-" yaml:"-"`
}

// Result is one outcome of the quiz. Results are ordered; the order breaks ties.
type Result struct {
	Key             string `json:"key" yaml:"key"`
	Title           Text   `json:"title" yaml:"title"`
	Description     Text   `json:"description" yaml:"description"`
	Recommendations []Text `json:"recommendations,omitempty" yaml:"recommendations,omitempty"`
	Color           string `json:"color,omitempty" yaml:"color,omitempty"`
	CTA             Text   `json:"cta,omitempty" yaml:"cta,omitempty"`
}

type FieldType string

const (
	FieldText  FieldType = "text"
	FieldEmail FieldType = "email"
	FieldTel   FieldType = "tel"
)

type LeadField struct {
	Key         string    `json:"key" yaml:"key"`
	Label       string    `json:"label" yaml:"label"`
	Type        FieldType `json:"type" yaml:"type"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Validation  *Rules    `json:"validation,omitempty" yaml:"validation,omitempty"`
	Placeholder string    `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
}

type LeadCapture struct {
	Enabled     bool        `json:"enabled" yaml:"enabled"`
	Title       Text        `json:"title" yaml:"title"`
	Subtitle    Text        `json:"subtitle" yaml:"subtitle"`
	Fields      []LeadField `json:"fields,omitempty" yaml:"fields,omitempty"`
	SubmitText  Text        `json:"submitText,omitempty" yaml:"submitText,omitempty"`
	PrivacyText Text        `json:"privacyText,omitempty" yaml:"privacyText,omitempty"`
}

// Field looks up a configured lead field.
func (l LeadCapture) Field(key string) (LeadField, bool) {
	for _, f := range l.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return LeadField{}, false
}

type Colors struct {
	Primary   string `json:"primary" yaml:"primary"`
	Secondary string `json:"secondary" yaml:"secondary"`
	Accent    string `json:"accent" yaml:"accent"`
}

type Branding struct {
	Colors Colors `json:"colors" yaml:"colors"`
	Icon   string `json:"icon,omitempty" yaml:"icon,omitempty"`
}

type Timing struct {
	QuestionTransition int `json:"questionTransition,omitempty" yaml:"questionTransition,omitempty"` // milliseconds
	OptionHover        int `json:"optionHover,omitempty" yaml:"optionHover,omitempty"`
	ButtonHover        int `json:"buttonHover,omitempty" yaml:"buttonHover,omitempty"`
	ProgressUpdate     int `json:"progressUpdate,omitempty" yaml:"progressUpdate,omitempty"`
}

// Animations is consumed by presentation; only Timing.QuestionTransition matters here.
type Animations struct {
	Transitions map[string]bool `json:"transitions,omitempty" yaml:"transitions,omitempty"`
	Timing      Timing          `json:"timing" yaml:"timing"`
	Effects     map[string]bool `json:"effects,omitempty" yaml:"effects,omitempty"`
}

type ButtonText struct {
	Next     string `json:"next,omitempty" yaml:"next,omitempty"`
	Back     string `json:"back,omitempty" yaml:"back,omitempty"`
	Continue string `json:"continue,omitempty" yaml:"continue,omitempty"`
	Submit   string `json:"submit,omitempty" yaml:"submit,omitempty"`
	Start    string `json:"start,omitempty" yaml:"start,omitempty"`
}

// Behavior flags default to true when unset, except ShuffleOptions.
type Behavior struct {
	AutoAdvance    *bool        `json:"autoAdvance,omitempty" yaml:"autoAdvance,omitempty"`
	ShowProgress   *bool        `json:"showProgress,omitempty" yaml:"showProgress,omitempty"`
	AllowBack      *bool        `json:"allowBack,omitempty" yaml:"allowBack,omitempty"`
	SaveProgress   *bool        `json:"saveProgress,omitempty" yaml:"saveProgress,omitempty"`
	ShuffleOptions bool         `json:"shuffleOptions,omitempty" yaml:"shuffleOptions,omitempty"`
	Timer          *TimerConfig `json:"timer,omitempty" yaml:"timer,omitempty"`
	Animations     *Animations  `json:"animations,omitempty" yaml:"animations,omitempty"`
	ButtonText     *ButtonText  `json:"buttonText,omitempty" yaml:"buttonText,omitempty"`
}

func orTrue(b *bool) bool { return b == nil || *b }

func (b Behavior) AutoAdvanceEnabled() bool  { return orTrue(b.AutoAdvance) }
func (b Behavior) ShowProgressEnabled() bool { return orTrue(b.ShowProgress) }
func (b Behavior) AllowBackEnabled() bool    { return orTrue(b.AllowBack) }
func (b Behavior) SaveProgressEnabled() bool { return orTrue(b.SaveProgress) }

// TransitionDuration is the delay between a navigation request and the step change.
func (b Behavior) TransitionDuration() time.Duration {
	if b.Animations != nil && b.Animations.Timing.QuestionTransition > 0 {
		return time.Duration(b.Animations.Timing.QuestionTransition) * time.Millisecond
	}
	return DefaultTransition
}

// I18n carries per-quiz translations keyed by locale.
type I18n struct {
	Locale         string                       `json:"locale,omitempty" yaml:"locale,omitempty"`
	FallbackLocale string                       `json:"fallbackLocale,omitempty" yaml:"fallbackLocale,omitempty"`
	Translations   map[string]map[string]string `json:"translations,omitempty" yaml:"translations,omitempty"`
}

// Quiz is the full, session-immutable configuration.
type Quiz struct {
	ID               string            `json:"id" yaml:"id"`
	Title            Text              `json:"title" yaml:"title"`
	Subtitle         Text              `json:"subtitle" yaml:"subtitle"`
	StartButtonText  Text              `json:"startButtonText,omitempty" yaml:"startButtonText,omitempty"`
	WelcomeFooter    Text              `json:"welcomeFooter,omitempty" yaml:"welcomeFooter,omitempty"`
	Branding         Branding          `json:"branding" yaml:"branding"`
	Behavior         Behavior          `json:"behavior" yaml:"behavior"`
	Questions        []Question        `json:"questions" yaml:"questions"`
	ConditionalLogic []ConditionalRule `json:"conditionalLogic,omitempty" yaml:"conditionalLogic,omitempty"`
	ResultLogic      ResultLogic       `json:"resultLogic" yaml:"resultLogic"`
	Results          []Result          `json:"results" yaml:"results"`
	LeadCapture      LeadCapture       `json:"leadCapture" yaml:"leadCapture"`
	ThankYouMessage  Text              `json:"thankYouMessage,omitempty" yaml:"thankYouMessage,omitempty"`
	I18n             *I18n             `json:"i18n,omitempty" yaml:"i18n,omitempty"`
}

// Question looks up a configured question by ID.
func (q Quiz) Question(id ID) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// Result looks up a result definition by key.
func (q Quiz) Result(key string) (Result, bool) {
	for _, r := range q.Results {
		if r.Key == key {
			return r, true
		}
	}
	return Result{}, false
}

// ResultKeys returns result keys in declaration order.
func (q Quiz) ResultKeys() []string {
	keys := make([]string, 0, len(q.Results))
	for _, r := range q.Results {
		keys = append(keys, r.Key)
	}
	return keys
}

// Submission is what a completed session hands to the submit callback.
type Submission struct {
	QuizID      string            `json:"quizId"`
	SessionID   string            `json:"sessionId"`
	ResultKey   string            `json:"resultKey"`
	LeadData    map[string]string `json:"leadData"`
	Answers     map[ID]Answer     `json:"answers"`
	SubmittedAt time.Time         `json:"submittedAt"`
}
