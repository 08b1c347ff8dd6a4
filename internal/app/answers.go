package app

import (
	"fmt"
	"strings"

	"trivia-bot/internal/domain"

	"golang.org/x/text/cases"
)

// Response is a parsed answer attempt; only the field matching the question type is set.
type Response struct {
	Choice int
	Truth  bool
	Text   string
}

var (
	choiceSelectors = map[string]int{
		"1": 0, "2": 1, "3": 2, "4": 3,
		"a": 0, "b": 1, "c": 2, "d": 3,
		"🇦": 0, "🇧": 1, "🇨": 2, "🇩": 3,
		"1️⃣": 0, "2️⃣": 1, "3️⃣": 2, "4️⃣": 3,
	}
	truthSelectors = map[string]bool{
		"✅": true, "✔️": true, "true": true, "t": true, "yes": true, "y": true,
		"❌": false, "✖️": false, "false": false, "f": false, "no": false, "n": false,
	}
)

// Affordances lists the reaction selectors offered with a question.
func Affordances(t domain.QuestionType) []string {
	switch t {
	case domain.TypeMultipleChoice:
		return []string{"🇦", "🇧", "🇨", "🇩"}
	case domain.TypeTrueFalse:
		return []string{"✅", "❌"}
	}
	return nil
}

// NormalizeText trims, collapses inner whitespace and case-folds free text.
func NormalizeText(raw string) string {
	return cases.Fold().String(strings.Join(strings.Fields(raw), " "))
}

// ParseAnswer interprets raw input for the question type. Input that is not a
// valid selector (or empty text for fill blank) yields ErrInvalidAnswerFormat.
func ParseAnswer(q domain.Question, raw string) (Response, error) {
	input := NormalizeText(raw)
	if input == "" {
		return Response{}, fmt.Errorf("%w: empty answer", domain.ErrInvalidAnswerFormat)
	}
	switch a := q.Answer.(type) {
	case domain.MultipleChoice:
		input = strings.TrimSuffix(input, ")")
		input = strings.TrimSuffix(input, ".")
		if idx, ok := choiceSelectors[input]; ok {
			return Response{Choice: idx}, nil
		}
		for i, opt := range a.Options {
			if NormalizeText(opt) == input {
				return Response{Choice: i}, nil
			}
		}
		return Response{}, fmt.Errorf("%w: pick A-D or 1-4", domain.ErrInvalidAnswerFormat)
	case domain.TrueFalse:
		if b, ok := truthSelectors[input]; ok {
			return Response{Truth: b}, nil
		}
		return Response{}, fmt.Errorf("%w: answer true or false", domain.ErrInvalidAnswerFormat)
	case domain.FillBlank:
		return Response{Text: input}, nil
	}
	return Response{}, fmt.Errorf("%w: unsupported question type %q", domain.ErrInvalidAnswerFormat, q.Type())
}

// CheckAnswer reports whether a parsed response is correct.
func CheckAnswer(q domain.Question, r Response) bool {
	switch a := q.Answer.(type) {
	case domain.MultipleChoice:
		return r.Choice == a.Correct
	case domain.TrueFalse:
		return r.Truth == a.Correct
	case domain.FillBlank:
		if r.Text == NormalizeText(a.Canonical) {
			return true
		}
		for _, v := range a.Variants {
			if r.Text == NormalizeText(v) {
				return true
			}
		}
	}
	return false
}
