package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"trivia-bot/internal/domain"
	"trivia-bot/internal/infra/memory"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionRepository loads the question catalog (JSONB records) from Postgres
// and keeps the per-question counters there.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

var (
	_ memory.QuestionLoader = (*QuestionRepository)(nil)
	_ memory.OutcomeSink    = (*QuestionRepository)(nil)
	_ memory.QuestionWriter = (*QuestionRepository)(nil)
)

func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

func (r *QuestionRepository) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, data, times_asked, times_correct FROM questions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		var (
			id  string
			raw []byte
			rec domain.QuestionRecord
		)
		var asked, correct int64
		if err := rows.Scan(&id, &raw, &asked, &correct); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal question %s: %w", id, err)
		}
		rec.ID = id
		rec.TimesAsked = asked
		rec.TimesCorrect = correct
		q, err := rec.Question()
		if err != nil {
			return nil, fmt.Errorf("question %s: %w", id, err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *QuestionRepository) RecordOutcome(ctx context.Context, questionID string, correct bool) error {
	inc := 0
	if correct {
		inc = 1
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE questions SET times_asked = times_asked + 1, times_correct = times_correct + $2 WHERE id = $1`,
		questionID, inc)
	return err
}

func (r *QuestionRepository) SaveQuestion(ctx context.Context, q domain.Question) error {
	_, err := r.ImportQuestions(ctx, []domain.Question{q})
	return err
}

// ImportQuestions upserts the question bodies in one batch. Counters of
// existing rows are left untouched.
func (r *QuestionRepository) ImportQuestions(ctx context.Context, questions []domain.Question) (int, error) {
	batch := &pgx.Batch{}
	for _, q := range questions {
		rec := domain.RecordFromQuestion(q)
		rec.TimesAsked, rec.TimesCorrect = 0, 0
		raw, err := json.Marshal(rec)
		if err != nil {
			return 0, fmt.Errorf("marshal question %s: %w", q.ID, err)
		}
		batch.Queue(`INSERT INTO questions (id, data) VALUES ($1, $2::jsonb)
			ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`, q.ID, string(raw))
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for i := range questions {
		if _, err := results.Exec(); err != nil {
			return i, fmt.Errorf("import question %s: %w", questions[i].ID, err)
		}
	}
	return len(questions), nil
}
