// Package share builds the result screen payload and plans how a result is
// shared on each target when no native share sheet is available.
package share

import (
	"context"
	"fmt"
	"net/url"

	"quizflow/internal/domain"
	"quizflow/internal/i18n"
)

type Aspect string

const (
	Square Aspect = "square"
	Story  Aspect = "story"
	Tweet  Aspect = "tweet"
)

type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Size returns the export dimensions in pixels. Unknown aspects are square.
func (a Aspect) Size() Size {
	switch a {
	case Story:
		return Size{Width: 1080, Height: 1920}
	case Tweet:
		return Size{Width: 1600, Height: 900}
	default:
		return Size{Width: 1080, Height: 1080}
	}
}

// Normalize maps unknown or empty aspects to Square.
func (a Aspect) Normalize() Aspect {
	switch a {
	case Story, Tweet:
		return a
	}
	return Square
}

type Target string

const (
	X         Target = "x"
	WhatsApp  Target = "whatsapp"
	Instagram Target = "instagram"
	TikTok    Target = "tiktok"
)

// Targets lists share targets in display order.
var Targets = []Target{X, WhatsApp, Instagram, TikTok}

type Kind string

const (
	KindNative   Kind = "native"
	KindLink     Kind = "link"
	KindDownload Kind = "download"
)

// Action says what the client should do to share on a target.
type Action struct {
	Target   Target `json:"target"`
	Label    string `json:"label"`
	Kind     Kind   `json:"kind"`
	URL      string `json:"url,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// View is the fully resolved result screen.
type View struct {
	QuizID          string   `json:"quizId"`
	ResultKey       string   `json:"resultKey"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Recommendations []string `json:"recommendations,omitempty"`
	Color           string   `json:"color,omitempty"`
	CTA             string   `json:"cta,omitempty"`
	ShareText       string   `json:"shareText"`
	Aspect          Aspect   `json:"aspect"`
	Size            Size     `json:"size"`
	Filename        string   `json:"filename"`
	Targets         []Action `json:"targets"`
}

// BuildView resolves result texts for one locale. tr may be nil, in which case
// the built-in English messages are used.
func BuildView(quiz domain.Quiz, resultKey string, aspect Aspect, tr domain.TranslateFunc) (View, error) {
	result, ok := quiz.Result(resultKey)
	if !ok {
		return View{}, fmt.Errorf("%w: %q", domain.ErrResultNotFound, resultKey)
	}
	if tr == nil {
		tr = i18n.NewCatalog().Translator(i18n.DefaultLocale)
	}
	aspect = aspect.Normalize()

	view := View{
		QuizID:      quiz.ID,
		ResultKey:   result.Key,
		Title:       result.Title.Resolve(tr),
		Description: result.Description.Resolve(tr),
		Color:       result.Color,
		CTA:         result.CTA.Resolve(tr),
		Aspect:      aspect,
		Size:        aspect.Size(),
		Filename:    Filename(quiz.ID, result.Key, aspect),
	}
	for _, rec := range result.Recommendations {
		view.Recommendations = append(view.Recommendations, rec.Resolve(tr))
	}
	view.ShareText = Text(view.Title, tr)
	for _, target := range Targets {
		view.Targets = append(view.Targets, view.Plan(target, tr))
	}
	return view, nil
}

// Text is the message posted alongside a shared result.
func Text(title string, tr domain.TranslateFunc) string {
	const key = "ui.shareText"
	if tr != nil {
		if msg := tr(key, domain.Params{"title": title}); msg != "" && msg != key {
			return msg
		}
	}
	return fmt.Sprintf("I got %q. Try this quiz!", title)
}

// Filename is the download name for an exported result image.
func Filename(quizID, resultKey string, aspect Aspect) string {
	return fmt.Sprintf("%s-%s-%s.png", quizID, resultKey, aspect)
}

// Plan returns the fallback action for target: a web intent link for X and
// WhatsApp, a download for targets that only accept uploads.
func (v View) Plan(target Target, tr domain.TranslateFunc) Action {
	action := Action{Target: target, Label: label(target, tr)}
	query := url.Values{"text": {v.ShareText}}.Encode()
	switch target {
	case X:
		action.Kind = KindLink
		action.URL = "https://twitter.com/intent/tweet?" + query
	case WhatsApp:
		action.Kind = KindLink
		action.URL = "https://wa.me/?" + query
	default:
		action.Kind = KindDownload
		action.Filename = v.Filename
	}
	return action
}

func label(target Target, tr domain.TranslateFunc) string {
	keys := map[Target]string{
		X:         "ui.shareX",
		WhatsApp:  "ui.shareWhatsApp",
		Instagram: "ui.shareInstagram",
		TikTok:    "ui.shareTikTok",
	}
	key, ok := keys[target]
	if !ok || tr == nil {
		return string(target)
	}
	return tr(key, nil)
}

// Payload is handed to a native share implementation.
type Payload struct {
	Text     string
	Filename string
	Image    []byte
}

// Sharer is an optional native share integration.
type Sharer interface {
	Share(ctx context.Context, p Payload) error
}

// Share tries the native sharer first. Any failure, including a nil sharer,
// falls back to the planned action for target without surfacing an error.
func Share(ctx context.Context, sharer Sharer, v View, target Target, image []byte, tr domain.TranslateFunc) Action {
	if sharer != nil {
		err := sharer.Share(ctx, Payload{Text: v.ShareText, Filename: v.Filename, Image: image})
		if err == nil {
			return Action{Target: target, Label: label(target, tr), Kind: KindNative}
		}
	}
	return v.Plan(target, tr)
}
