package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"efti-gate/internal/gate/models"
	"efti-gate/pkg/platform/sentinel"
)

// PostgresStore reads the gate directory from the gates table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Save upserts a directory entry.
func (s *PostgresStore) Save(ctx context.Context, gate models.Gate) error {
	query := `
		INSERT INTO gates (id, country, party_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			country = EXCLUDED.country,
			party_id = EXCLUDED.party_id
	`
	if _, err := s.db.ExecContext(ctx, query, gate.ID, string(gate.Country), gate.PartyID); err != nil {
		return fmt.Errorf("save gate: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, gateID string) (*models.Gate, error) {
	query := `SELECT id, country, party_id FROM gates WHERE LOWER(id) = LOWER($1)`
	gate, err := scanGate(s.db.QueryRowContext(ctx, query, gateID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find gate by id: %w", err)
	}
	return gate, nil
}

func (s *PostgresStore) FindByCountries(ctx context.Context, countries []models.CountryIndicator) ([]models.Gate, error) {
	codes := make([]string, len(countries))
	for i, c := range countries {
		codes[i] = string(c)
	}
	query := `SELECT id, country, party_id FROM gates WHERE country = ANY($1) ORDER BY id`
	return s.query(ctx, "find gates by countries", query, pq.Array(codes))
}

func (s *PostgresStore) List(ctx context.Context) ([]models.Gate, error) {
	return s.query(ctx, "list gates", `SELECT id, country, party_id FROM gates ORDER BY id`)
}

func (s *PostgresStore) query(ctx context.Context, op, query string, args ...any) ([]models.Gate, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var gates []models.Gate
	for rows.Next() {
		g, err := scanGate(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		gates = append(gates, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return gates, nil
}

func scanGate(row interface{ Scan(...any) error }) (*models.Gate, error) {
	var (
		g       models.Gate
		country string
	)
	if err := row.Scan(&g.ID, &country, &g.PartyID); err != nil {
		return nil, err
	}
	g.Country = models.CountryIndicator(country)
	return &g, nil
}
