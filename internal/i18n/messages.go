package i18n

// English holds the built-in messages. Quizzes may override or extend them per locale.
var English = map[string]string{
	"validation.required":            "This field is required",
	"validation.email":               "Please enter a valid email address",
	"validation.phone":               "Please enter a valid phone number",
	"validation.minLength":           "Must be at least {{count}} characters long",
	"validation.maxLength":           "Must be no more than {{count}} characters long",
	"validation.pattern":             "Invalid format",
	"validation.name":                "Please enter a valid name (letters, spaces, hyphens, and apostrophes only)",
	"validation.url":                 "Please enter a valid URL",
	"validation.questionRequired":    "Please answer this question",
	"validation.matrixRequired":      "Please answer every row",
	"validation.matrixRequiredCount": "Please answer all {{count}} rows ({{missing}} missing)",
	"validation.minCharacters":       "Please enter at least {{count}} characters",
	"validation.maxCharacters":       "Please enter no more than {{count}} characters",

	"ui.questionProgress":    "Question {{current}} of {{total}}",
	"ui.progressComplete":    "{{percent}}% complete",
	"ui.almostThere":         "Almost there!",
	"ui.enterAnswer":         "Enter your answer...",
	"ui.characters":          "{{current}}/{{max}} characters",
	"ui.stronglyDisagree":    "Strongly disagree",
	"ui.stronglyAgree":       "Strongly agree",
	"ui.quizComplete":        "Quiz complete!",
	"ui.recommendations":     "Recommendations",
	"ui.topRecommendations":  "Top recommendations",
	"ui.shareYourResult":     "Share your result",
	"ui.shareText":           "I got \"{{title}}\". Try this quiz!",
	"ui.shareX":              "Share on X",
	"ui.shareWhatsApp":       "Share on WhatsApp",
	"ui.shareInstagram":      "Share on Instagram",
	"ui.shareTikTok":         "Share on TikTok",
	"ui.downloadPNG":         "Download PNG",
	"ui.takeQuizAgain":       "Take quiz again",
	"ui.timeRemaining":       "{{seconds}}s remaining",
	"ui.timeUp":              "Time's up!",
}
