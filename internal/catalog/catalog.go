// internal/catalog/catalog.go
package catalog

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quizwire/quizwire/internal/models"
)

// Provider supplies the question list a session is materialized from. The
// sample must be random without duplicates within one call.
type Provider interface {
	Fetch(ctx context.Context, amount int, sets []string) ([]models.Question, error)
}

// split decides how many questions come from the host-selected sets versus
// the general pool: half and half when sets were selected, everything from
// the general pool otherwise.
func split(amount int, hasSets bool) (fromSets, fromGeneral int) {
	if !hasSets {
		return 0, amount
	}
	fromSets = amount / 2
	return fromSets, amount - fromSets
}

// Postgres samples questions with ORDER BY random(), which keeps selection
// uniform and duplicate-free within a single query.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres wraps a pgx pool as a catalog provider.
func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// Fetch returns up to amount questions, mixed per split and shuffled so set
// questions and general questions interleave.
func (p *Postgres) Fetch(ctx context.Context, amount int, sets []string) ([]models.Question, error) {
	if amount <= 0 {
		return nil, nil
	}
	fromSets, fromGeneral := split(amount, len(sets) > 0)

	var questions []models.Question

	if fromGeneral > 0 {
		q := `SELECT id, question, answer FROM questions ORDER BY random() LIMIT $1`
		args := []interface{}{fromGeneral}
		if len(sets) > 0 {
			q = `SELECT id, question, answer FROM questions
			     WHERE set_id IS NULL OR NOT (set_id = ANY($2))
			     ORDER BY random() LIMIT $1`
			args = append(args, sets)
		}
		general, err := p.query(ctx, q, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to sample general pool: %w", err)
		}
		questions = append(questions, general...)
	}

	if fromSets > 0 {
		q := `SELECT id, question, answer FROM questions
		      WHERE set_id = ANY($2)
		      ORDER BY random() LIMIT $1`
		setQuestions, err := p.query(ctx, q, fromSets, sets)
		if err != nil {
			return nil, fmt.Errorf("failed to sample selected sets: %w", err)
		}
		questions = append(questions, setQuestions...)
	}

	rand.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
	return questions, nil
}

func (p *Postgres) query(ctx context.Context, q string, args ...interface{}) ([]models.Question, error) {
	rows, err := p.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		var question models.Question
		if err := rows.Scan(&question.ID, &question.Question, &question.Answer); err != nil {
			return nil, err
		}
		questions = append(questions, question)
	}
	return questions, rows.Err()
}
