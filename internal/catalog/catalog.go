// Package catalog holds the bundled question and achievement data and the
// YAML codecs used to load custom catalogs.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"trivia-bot/internal/domain"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed questions.yaml
var defaultQuestions []byte

//go:embed achievements.yaml
var defaultAchievements []byte

var validate = validator.New()

type questionFile struct {
	Questions []domain.QuestionRecord `yaml:"questions"`
}

type achievementFile struct {
	Achievements []domain.Achievement `yaml:"achievements"`
}

// Compile validates an authored record and converts it into a question.
func Compile(r domain.QuestionRecord) (domain.Question, error) {
	if err := validate.Struct(r); err != nil {
		return domain.Question{}, fmt.Errorf("%w: %v", domain.ErrInvalidQuestion, err)
	}
	return r.Question()
}

// ParseQuestions decodes a YAML question file. Ids must be unique; missing ids
// are assigned from the position in the file.
func ParseQuestions(data []byte) ([]domain.Question, error) {
	var file questionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	seen := make(map[string]struct{}, len(file.Questions))
	out := make([]domain.Question, 0, len(file.Questions))
	for i, rec := range file.Questions {
		if rec.ID == "" {
			rec.ID = fmt.Sprintf("q-%03d", i+1)
		}
		if _, dup := seen[rec.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", domain.ErrInvalidQuestion, rec.ID)
		}
		seen[rec.ID] = struct{}{}
		q, err := Compile(rec)
		if err != nil {
			return nil, fmt.Errorf("question %s: %w", rec.ID, err)
		}
		out = append(out, q)
	}
	return out, nil
}

// EncodeQuestions renders questions in the same YAML layout ParseQuestions reads.
func EncodeQuestions(questions []domain.Question) ([]byte, error) {
	file := questionFile{Questions: make([]domain.QuestionRecord, 0, len(questions))}
	for _, q := range questions {
		file.Questions = append(file.Questions, domain.RecordFromQuestion(q))
	}
	return yaml.Marshal(file)
}

// DefaultQuestions returns the bundled catalog.
func DefaultQuestions() ([]domain.Question, error) {
	return ParseQuestions(defaultQuestions)
}

// ParseAchievements decodes and checks an achievement catalog.
func ParseAchievements(data []byte) ([]domain.Achievement, error) {
	var file achievementFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode achievements: %w", err)
	}
	seen := make(map[string]struct{}, len(file.Achievements))
	for _, a := range file.Achievements {
		if a.ID == "" || a.Name == "" {
			return nil, fmt.Errorf("achievement missing id or name: %+v", a)
		}
		if _, dup := seen[a.ID]; dup {
			return nil, fmt.Errorf("duplicate achievement %q", a.ID)
		}
		seen[a.ID] = struct{}{}
		if err := checkRequirement(a.Requirement); err != nil {
			return nil, fmt.Errorf("achievement %s: %w", a.ID, err)
		}
		if a.Reward < 0 {
			return nil, fmt.Errorf("achievement %s: negative reward", a.ID)
		}
	}
	return file.Achievements, nil
}

// DefaultAchievements returns the bundled achievement catalog.
func DefaultAchievements() ([]domain.Achievement, error) {
	return ParseAchievements(defaultAchievements)
}

func checkRequirement(r domain.Requirement) error {
	if r.Value <= 0 {
		return fmt.Errorf("requirement value must be positive")
	}
	switch r.Kind {
	case domain.RequireStreak, domain.RequireDailyStreak, domain.RequireTotalPoints,
		domain.RequireTotalQuestions, domain.RequireWeeklyScore:
		return nil
	case domain.RequireAccuracy:
		if r.Value > 100 {
			return fmt.Errorf("accuracy above 100")
		}
		return nil
	case domain.RequireDifficultyCorrect:
		if _, ok := domain.ParseDifficulty(string(r.Difficulty)); !ok {
			return fmt.Errorf("unknown difficulty %q", r.Difficulty)
		}
		return nil
	case domain.RequireChallengeCompletion:
		if r.Challenge != domain.KindDaily && r.Challenge != domain.KindWeekly {
			return fmt.Errorf("unknown challenge %q", r.Challenge)
		}
		return nil
	}
	return fmt.Errorf("unknown requirement kind %q", r.Kind)
}

// FileLoader reads questions from a YAML file on every load.
type FileLoader struct {
	path string
}

func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

func (l *FileLoader) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read question file: %w", err)
	}
	return ParseQuestions(data)
}
