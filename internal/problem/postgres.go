package problem

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSource reads problems from a read-only problems table.
type PostgresSource struct {
	pool *pgxpool.Pool
}

func NewPostgresSource(ctx context.Context, databaseURL string) (*PostgresSource, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresSource{pool: pool}, nil
}

const randomProblemQuery = `SELECT slug, title, difficulty, body, examples, constraints, hints, topics
	FROM problems WHERE NOT is_paid ORDER BY random() LIMIT 1`

func (s *PostgresSource) Random(ctx context.Context) (Problem, error) {
	var p Problem
	err := s.pool.QueryRow(ctx, randomProblemQuery).Scan(
		&p.Slug,
		&p.Title,
		&p.Difficulty,
		&p.Statement,
		&p.Examples,
		&p.Constraints,
		&p.Hints,
		&p.Topics,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Problem{}, ErrNoProblems
		}
		return Problem{}, fmt.Errorf("query random problem: %w", err)
	}
	return p, nil
}

func (s *PostgresSource) Close() error {
	s.pool.Close()
	return nil
}
