package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Difficulty of a question; drives its base point value.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists every difficulty in ascending order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// ParseDifficulty accepts the lowercase difficulty names.
func ParseDifficulty(raw string) (Difficulty, bool) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(raw))); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, true
	}
	return "", false
}

// Points returns the base point value for the difficulty.
func (d Difficulty) Points() int {
	switch d {
	case DifficultyEasy:
		return 10
	case DifficultyMedium:
		return 20
	case DifficultyHard:
		return 30
	}
	return 0
}

// QuestionType identifies the answer variant.
type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeTrueFalse      QuestionType = "true_false"
	TypeFillBlank      QuestionType = "fill_blank"
)

// ParseQuestionType accepts the canonical type names.
func ParseQuestionType(raw string) (QuestionType, bool) {
	switch t := QuestionType(strings.ToLower(strings.TrimSpace(raw))); t {
	case TypeMultipleChoice, TypeTrueFalse, TypeFillBlank:
		return t, true
	}
	return "", false
}

// Answer is the per-type correct answer of a question.
// Implementations: MultipleChoice, TrueFalse, FillBlank.
type Answer interface {
	Type() QuestionType
	isAnswer()
}

// MultipleChoice carries exactly four options; Correct is a 0-based index.
type MultipleChoice struct {
	Options [4]string
	Correct int
}

// TrueFalse is a boolean statement.
type TrueFalse struct {
	Correct bool
}

// FillBlank accepts the canonical string or any variant.
type FillBlank struct {
	Canonical string
	Variants  []string
}

func (MultipleChoice) Type() QuestionType { return TypeMultipleChoice }
func (TrueFalse) Type() QuestionType      { return TypeTrueFalse }
func (FillBlank) Type() QuestionType      { return TypeFillBlank }

func (MultipleChoice) isAnswer() {}
func (TrueFalse) isAnswer()      {}
func (FillBlank) isAnswer()      {}

// Question is a catalog entry. Counters are a snapshot at read time.
type Question struct {
	ID           string
	Text         string
	Category     string
	Explanation  string
	Difficulty   Difficulty
	Answer       Answer
	TimesAsked   int64
	TimesCorrect int64
}

// Type returns the answer variant of the question.
func (q Question) Type() QuestionType {
	if q.Answer == nil {
		return ""
	}
	return q.Answer.Type()
}

// BasePoints is derived from the difficulty.
func (q Question) BasePoints() int {
	return q.Difficulty.Points()
}

// Options returns the answer options for multiple choice questions and nil otherwise.
func (q Question) Options() []string {
	if mc, ok := q.Answer.(MultipleChoice); ok {
		return mc.Options[:]
	}
	return nil
}

// CorrectAnswerText renders the correct answer for result messages.
func (q Question) CorrectAnswerText() string {
	switch a := q.Answer.(type) {
	case MultipleChoice:
		if a.Correct < 0 || a.Correct >= len(a.Options) {
			return ""
		}
		return fmt.Sprintf("%c) %s", 'A'+a.Correct, a.Options[a.Correct])
	case TrueFalse:
		if a.Correct {
			return "True"
		}
		return "False"
	case FillBlank:
		return a.Canonical
	}
	return ""
}

// QuestionRecord is the flat authoring/storage form of a question.
// Correct holds "1"-"4" or "A"-"D" for multiple choice, "true"/"false" for
// true/false, and the canonical answer for fill blank.
type QuestionRecord struct {
	ID           string       `json:"id" yaml:"id"`
	Text         string       `json:"text" yaml:"text" validate:"required,min=5,max=500"`
	Type         QuestionType `json:"type" yaml:"type" validate:"required,oneof=multiple_choice true_false fill_blank"`
	Difficulty   Difficulty   `json:"difficulty" yaml:"difficulty" validate:"required,oneof=easy medium hard"`
	Category     string       `json:"category,omitempty" yaml:"category,omitempty" validate:"max=64"`
	Options      []string     `json:"options,omitempty" yaml:"options,omitempty" validate:"omitempty,len=4,dive,required,max=200"`
	Correct      string       `json:"correct" yaml:"correct" validate:"required,max=200"`
	Variants     []string     `json:"variants,omitempty" yaml:"variants,omitempty" validate:"omitempty,dive,required,max=200"`
	Explanation  string       `json:"explanation,omitempty" yaml:"explanation,omitempty" validate:"max=500"`
	TimesAsked   int64        `json:"timesAsked,omitempty" yaml:"-"`
	TimesCorrect int64        `json:"timesCorrect,omitempty" yaml:"-"`
}

// Question converts the record, applying the type-specific checks.
func (r QuestionRecord) Question() (Question, error) {
	q := Question{
		ID:           strings.TrimSpace(r.ID),
		Text:         strings.TrimSpace(r.Text),
		Category:     strings.TrimSpace(r.Category),
		Explanation:  strings.TrimSpace(r.Explanation),
		TimesAsked:   r.TimesAsked,
		TimesCorrect: r.TimesCorrect,
	}
	if q.Text == "" {
		return Question{}, fmt.Errorf("%w: missing text", ErrInvalidQuestion)
	}
	difficulty, ok := ParseDifficulty(string(r.Difficulty))
	if !ok {
		return Question{}, fmt.Errorf("%w: unknown difficulty %q", ErrInvalidQuestion, r.Difficulty)
	}
	q.Difficulty = difficulty
	if q.Category == "" {
		q.Category = "general"
	}

	correct := strings.TrimSpace(r.Correct)
	if correct == "" {
		return Question{}, fmt.Errorf("%w: missing correct answer", ErrInvalidQuestion)
	}

	qt, ok := ParseQuestionType(string(r.Type))
	if !ok {
		return Question{}, fmt.Errorf("%w: unknown type %q", ErrInvalidQuestion, r.Type)
	}
	switch qt {
	case TypeMultipleChoice:
		if len(r.Options) != 4 {
			return Question{}, fmt.Errorf("%w: multiple choice needs exactly 4 options, got %d", ErrInvalidQuestion, len(r.Options))
		}
		var mc MultipleChoice
		for i, opt := range r.Options {
			opt = strings.TrimSpace(opt)
			if opt == "" {
				return Question{}, fmt.Errorf("%w: option %d is empty", ErrInvalidQuestion, i+1)
			}
			mc.Options[i] = opt
		}
		idx, ok := optionIndex(correct)
		if !ok {
			return Question{}, fmt.Errorf("%w: correct option %q must be 1-4 or A-D", ErrInvalidQuestion, correct)
		}
		mc.Correct = idx
		q.Answer = mc
	case TypeTrueFalse:
		b, err := strconv.ParseBool(strings.ToLower(correct))
		if err != nil {
			return Question{}, fmt.Errorf("%w: true/false answer %q", ErrInvalidQuestion, correct)
		}
		q.Answer = TrueFalse{Correct: b}
	case TypeFillBlank:
		variants := make([]string, 0, len(r.Variants))
		for _, v := range r.Variants {
			if v = strings.TrimSpace(v); v != "" {
				variants = append(variants, v)
			}
		}
		q.Answer = FillBlank{Canonical: correct, Variants: variants}
	}
	return q, nil
}

// RecordFromQuestion flattens a question back into its storage form.
func RecordFromQuestion(q Question) QuestionRecord {
	r := QuestionRecord{
		ID:           q.ID,
		Text:         q.Text,
		Type:         q.Type(),
		Difficulty:   q.Difficulty,
		Category:     q.Category,
		Explanation:  q.Explanation,
		TimesAsked:   q.TimesAsked,
		TimesCorrect: q.TimesCorrect,
	}
	switch a := q.Answer.(type) {
	case MultipleChoice:
		r.Options = append([]string(nil), a.Options[:]...)
		r.Correct = strconv.Itoa(a.Correct + 1)
	case TrueFalse:
		r.Correct = strconv.FormatBool(a.Correct)
	case FillBlank:
		r.Correct = a.Canonical
		r.Variants = append([]string(nil), a.Variants...)
	}
	return r
}

func optionIndex(raw string) (int, bool) {
	switch strings.ToUpper(raw) {
	case "1", "A":
		return 0, true
	case "2", "B":
		return 1, true
	case "3", "C":
		return 2, true
	case "4", "D":
		return 3, true
	}
	return 0, false
}
