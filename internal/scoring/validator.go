package scoring

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gokatarajesh/livequiz/internal/quiz"
)

// NoAnswer is the sentinel clients send when the timer ran out.
const NoAnswer = "No Answer"

var markupPattern = regexp.MustCompile(`<.*?>`)

// Response is a parsed submission value.
type Response struct {
	Value      string
	Selections []string
}

// Empty reports whether nothing was answered.
func (r Response) Empty() bool {
	v := strings.TrimSpace(r.Value)
	return (v == "" || v == NoAnswer) && len(r.Selections) == 0
}

// Encode renders the response for storage.
func (r Response) Encode() string {
	if len(r.Selections) > 0 {
		sorted := append([]string(nil), r.Selections...)
		sort.Strings(sorted)
		data, _ := json.Marshal(sorted)
		return string(data)
	}
	return r.Value
}

// ParseResponse turns raw submission fields into a Response for q.
// Multi-select accepts explicit selections or a JSON array in value.
// Choice selections must be option indices within range.
func ParseResponse(q quiz.Question, value string, selections []string) (Response, error) {
	resp := Response{Value: value}

	switch q.Type {
	case quiz.TypeMultiSelect:
		if selections == nil {
			trimmed := strings.TrimSpace(value)
			if trimmed != "" && trimmed != NoAnswer {
				parsed, err := parseSelectionList(trimmed)
				if err != nil {
					return Response{}, quiz.Invalid("answer", "selection must be a list of option indices")
				}
				selections = parsed
			}
		}
		resp.Value = ""
		for _, sel := range selections {
			if err := checkOptionIndex(q, sel); err != nil {
				return Response{}, err
			}
		}
		resp.Selections = selections
	case quiz.TypeSingleChoice:
		trimmed := strings.TrimSpace(value)
		if trimmed == "" && len(selections) == 1 {
			trimmed = strings.TrimSpace(selections[0])
			resp.Value = trimmed
		}
		if trimmed != "" && trimmed != NoAnswer {
			if err := checkOptionIndex(q, trimmed); err != nil {
				return Response{}, err
			}
		}
	}
	return resp, nil
}

func parseSelectionList(raw string) ([]string, error) {
	var asStrings []string
	if err := json.Unmarshal([]byte(raw), &asStrings); err == nil {
		return asStrings, nil
	}
	var asInts []int
	if err := json.Unmarshal([]byte(raw), &asInts); err != nil {
		return nil, err
	}
	out := make([]string, len(asInts))
	for i, n := range asInts {
		out[i] = strconv.Itoa(n)
	}
	return out, nil
}

func checkOptionIndex(q quiz.Question, raw string) error {
	idx, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return quiz.Invalid("answer", "selection must be an option index")
	}
	if idx < 0 || idx >= len(q.Options) {
		return quiz.Invalid("answer", "selection is out of range")
	}
	return nil
}

// Validate reports whether resp answers q correctly. It is pure and deterministic.
func Validate(q quiz.Question, resp Response) bool {
	if resp.Empty() {
		return false
	}

	switch q.Type {
	case quiz.TypeSingleChoice:
		value := strings.TrimSpace(resp.Value)
		for _, marker := range q.CorrectAnswers {
			if strings.TrimSpace(marker) == value {
				return true
			}
		}
		return false
	case quiz.TypeMultiSelect:
		got := normalizedSet(resp.Selections)
		want := normalizedSet(q.CorrectAnswers)
		if len(got) != len(want) {
			return false
		}
		for k := range want {
			if _, ok := got[k]; !ok {
				return false
			}
		}
		return true
	case quiz.TypeShortAnswer, quiz.TypeParagraph:
		value := NormalizeText(resp.Value)
		for _, accepted := range q.CorrectAnswers {
			if NormalizeText(accepted) == value {
				return true
			}
		}
		return false
	default:
		return q.LegacyAnswer != "" && resp.Value == q.LegacyAnswer
	}
}

// NormalizeText strips markup, trims and lower-cases free text.
func NormalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(markupPattern.ReplaceAllString(s, "")))
}

// CorrectAnswerText renders the correct answer for feedback.
func CorrectAnswerText(q quiz.Question) string {
	if !q.Type.Known() {
		return q.LegacyAnswer
	}
	if !q.Type.IsChoice() {
		return strings.Join(q.CorrectAnswers, ", ")
	}
	texts := make([]string, 0, len(q.CorrectAnswers))
	for _, marker := range q.CorrectAnswers {
		idx, err := strconv.Atoi(strings.TrimSpace(marker))
		if err != nil || idx < 0 || idx >= len(q.Options) {
			continue
		}
		texts = append(texts, q.Options[idx].Text)
	}
	return strings.Join(texts, ", ")
}

func normalizedSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.TrimSpace(v)] = struct{}{}
	}
	return set
}
