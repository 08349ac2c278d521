// Package classify implements keyword-based message classification.
package classify

import "strings"

// ReportType categorizes a report. Assignment follows a fixed priority
// order so a message matching several category sets is deterministic.
type ReportType string

const (
	ReportTypeSpam          ReportType = "spam"
	ReportTypeViolation     ReportType = "violation"
	ReportTypeInappropriate ReportType = "inappropriate"
	ReportTypeGeneral       ReportType = "general"
)

// Severity levels. Urgency keywords override importance keywords.
const (
	SeverityLow    = 1
	SeverityMedium = 2
	SeverityHigh   = 3
)

// Result is the outcome of classifying a single message. Report and
// request are independent: a message may be either, both, or neither.
type Result struct {
	IsReport   bool
	IsRequest  bool
	Severity   int
	ReportType ReportType
	Confidence float64
}

var reportKeywords = []string{
	"report", "spam", "scam", "abuse", "violation", "inappropriate",
	"offensive", "harass", "fraud", "phishing", "fake news", "misinformation",
}

var requestKeywords = []string{
	"please help", "need help", "can you", "could you", "how do i",
	"how can i", "request", "question", "assist",
}

var urgentKeywords = []string{
	"urgent", "emergency", "asap", "immediately", "critical", "danger",
	"right now",
}

var importantKeywords = []string{
	"important", "serious", "priority", "attention", "escalate",
}

// Category keyword sets, checked in priority order: spam first, then
// violation, then inappropriate. First match wins; no match is general.
var categoryOrder = []struct {
	kind     ReportType
	keywords []string
}{
	{ReportTypeSpam, []string{"spam", "scam", "phishing", "advertis", "promotion", "unsolicited"}},
	{ReportTypeViolation, []string{"violation", "illegal", "threat", "harass", "fraud", "impersonat"}},
	{ReportTypeInappropriate, []string{"inappropriate", "offensive", "explicit", "nsfw", "vulgar", "abusive"}},
}

// Secondary phrases add a small confidence bonus when present alongside a
// report keyword. Advisory only.
var secondaryPhrases = []string{
	"please remove", "take action", "ban this", "block this", "kick this",
	"getting worse", "keeps happening",
}

// Classify maps message content to a classification result. Matching is a
// case-insensitive substring check, not tokenized.
func Classify(content string) Result {
	lower := strings.ToLower(content)

	res := Result{
		Severity:   SeverityLow,
		ReportType: ReportTypeGeneral,
	}

	res.IsReport = containsAny(lower, reportKeywords)
	res.IsRequest = containsAny(lower, requestKeywords)

	if containsAny(lower, urgentKeywords) {
		res.Severity = SeverityHigh
	} else if containsAny(lower, importantKeywords) {
		res.Severity = SeverityMedium
	}

	if res.IsReport {
		for _, cat := range categoryOrder {
			if containsAny(lower, cat.keywords) {
				res.ReportType = cat.kind
				break
			}
		}
		res.Confidence = confidence(lower)
	}

	return res
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// confidence scores a report heuristically: a base for the keyword match,
// plus a bonus per secondary phrase, clamped to [0, 1].
func confidence(lower string) float64 {
	score := 0.5
	for _, phrase := range secondaryPhrases {
		if strings.Contains(lower, phrase) {
			score += 0.15
		}
	}
	if score > 1 {
		score = 1
	}
	return score
}
