package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"efti-gate/internal/control/models"
	idmodels "efti-gate/internal/identifiers/models"
	"efti-gate/internal/platform/postgres"
	"efti-gate/pkg/platform/sentinel"
	"efti-gate/pkg/platform/tx"
)

// PostgresStore persists Controls and Requests. Transitions out of PENDING are
// conditional updates and report whether they applied.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const controlColumns = `id, request_id, request_type, status, dataset_id, platform_id, gate_id, from_gate_id,
	subset_ids, search_params, authority, error_code, error_description, created_at, updated_at`

const requestColumns = `id, control_id, kind, status, gate_id_dest, correlation_id, data, consignments, note,
	error_code, error_description, created_at, updated_at`

// CreateControl inserts the Control and its initial Requests in one transaction.
func (s *PostgresStore) CreateControl(ctx context.Context, c *models.Control, reqs []*models.Request) error {
	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		q := tx.Or(ctx, s.db)
		search, err := jsonColumn(c.Search)
		if err != nil {
			return fmt.Errorf("encode search parameters: %w", err)
		}
		authority, err := jsonColumn(c.Authority)
		if err != nil {
			return fmt.Errorf("encode authority: %w", err)
		}
		code, desc := errorColumns(c.Error)
		subsets := c.SubsetIDs
		if subsets == nil {
			subsets = []string{}
		}

		err = q.QueryRowContext(ctx, `
			INSERT INTO controls (request_id, request_type, status, dataset_id, platform_id, gate_id, from_gate_id,
				subset_ids, search_params, authority, error_code, error_description, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			RETURNING id`,
			c.RequestID, c.Type, c.Status, c.DatasetID, c.PlatformID, c.GateID, c.FromGateID,
			pq.Array(subsets), search, authority, code, desc, c.CreatedAt, c.UpdatedAt,
		).Scan(&c.ID)
		if err != nil {
			if postgres.IsUniqueViolation(err) {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("insert control: %w", err)
		}

		c.RequestIDs = c.RequestIDs[:0]
		for _, r := range reqs {
			r.ControlID = c.ID
			if err := s.insertRequest(ctx, q, r); err != nil {
				return err
			}
			c.RequestIDs = append(c.RequestIDs, r.ID)
		}
		return nil
	})
}

func (s *PostgresStore) AddRequest(ctx context.Context, r *models.Request) error {
	return s.insertRequest(ctx, tx.Or(ctx, s.db), r)
}

func (s *PostgresStore) insertRequest(ctx context.Context, q tx.Querier, r *models.Request) error {
	consignments, err := jsonColumn(r.Payload.Consignments)
	if err != nil {
		return fmt.Errorf("encode consignments: %w", err)
	}
	code, desc := errorColumns(r.Error)
	err = q.QueryRowContext(ctx, `
		INSERT INTO requests (control_id, kind, status, gate_id_dest, correlation_id, data, consignments, note,
			error_code, error_description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		r.ControlID, r.Kind, r.Status, r.GateIDDest, nullString(r.CorrelationID), r.Payload.Data, consignments,
		r.Payload.Note, code, desc, r.CreatedAt, r.UpdatedAt,
	).Scan(&r.ID)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindControlByRequestID(ctx context.Context, requestID string) (*models.Control, error) {
	return s.findControl(ctx, `SELECT `+controlColumns+` FROM controls WHERE request_id = $1`, requestID)
}

func (s *PostgresStore) FindControlByID(ctx context.Context, id int64) (*models.Control, error) {
	return s.findControl(ctx, `SELECT `+controlColumns+` FROM controls WHERE id = $1`, id)
}

func (s *PostgresStore) findControl(ctx context.Context, query string, arg any) (*models.Control, error) {
	q := tx.Or(ctx, s.db)
	c, err := scanControl(q.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find control: %w", err)
	}

	rows, err := q.QueryContext(ctx, `SELECT id FROM requests WHERE control_id = $1 ORDER BY id`, c.ID)
	if err != nil {
		return nil, fmt.Errorf("list request ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan request id: %w", err)
		}
		c.RequestIDs = append(c.RequestIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list request ids: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListRequests(ctx context.Context, controlID int64) ([]models.Request, error) {
	rows, err := tx.Or(ctx, s.db).QueryContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE control_id = $1 ORDER BY id`, controlID)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()
	var out []models.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SetCorrelationID(ctx context.Context, requestID int64, correlationID string) error {
	res, err := tx.Or(ctx, s.db).ExecContext(ctx,
		`UPDATE requests SET correlation_id = $2 WHERE id = $1`, requestID, correlationID)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("set correlation id: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set correlation id rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindRequestByCorrelationID(ctx context.Context, correlationID string) (*models.Request, error) {
	r, err := scanRequest(tx.Or(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE correlation_id = $1`, correlationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find request by correlation id: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) FindPendingRequest(ctx context.Context, controlID int64, gateIDDest string, kind models.RequestKind) (*models.Request, error) {
	r, err := scanRequest(tx.Or(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+requestColumns+` FROM requests
		WHERE control_id = $1 AND LOWER(gate_id_dest) = LOWER($2) AND kind = $3 AND status = 'PENDING'
		ORDER BY id LIMIT 1`, controlID, gateIDDest, kind))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find pending request: %w", err)
	}
	return r, nil
}

// ResolveRequest applies o when the Request is still PENDING.
func (s *PostgresStore) ResolveRequest(ctx context.Context, id int64, o models.Outcome, now time.Time) (bool, error) {
	var (
		data         []byte
		consignments sql.NullString
		note         string
		err          error
	)
	if o.Status == models.StatusComplete {
		data = o.Payload.Data
		note = o.Payload.Note
		if consignments, err = jsonColumn(o.Payload.Consignments); err != nil {
			return false, fmt.Errorf("encode consignments: %w", err)
		}
	}
	code, desc := errorColumns(o.Error)
	res, err := tx.Or(ctx, s.db).ExecContext(ctx, `
		UPDATE requests
		SET status = $2, data = $3, consignments = $4,
		    note = CASE WHEN $5::text = '' THEN note ELSE $5::text END,
		    error_code = $6, error_description = $7, updated_at = $8
		WHERE id = $1 AND status = 'PENDING'`,
		id, o.Status, data, consignments, note, code, desc, now)
	if err != nil {
		return false, fmt.Errorf("resolve request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve request rows affected: %w", err)
	}
	return n > 0, nil
}

// ResolveControl moves a PENDING Control to a terminal status.
func (s *PostgresStore) ResolveControl(ctx context.Context, id int64, status models.Status, errInfo *models.ErrorInfo, now time.Time) (bool, error) {
	if !status.IsTerminal() {
		return false, nil
	}
	code, desc := errorColumns(errInfo)
	res, err := tx.Or(ctx, s.db).ExecContext(ctx, `
		UPDATE controls
		SET status = $2, error_code = $3, error_description = $4, updated_at = $5
		WHERE id = $1 AND status = 'PENDING'`,
		id, status, code, desc, now)
	if err != nil {
		return false, fmt.Errorf("resolve control: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve control rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) ExpirePendingRequests(ctx context.Context, cutoff, now time.Time) ([]int64, error) {
	rows, err := tx.Or(ctx, s.db).QueryContext(ctx, `
		WITH expired AS (
			UPDATE requests SET status = 'TIMEOUT', updated_at = $2
			WHERE status = 'PENDING' AND created_at < $1
			RETURNING control_id
		)
		SELECT DISTINCT control_id FROM expired ORDER BY control_id`, cutoff, now)
	if err != nil {
		return nil, fmt.Errorf("expire pending requests: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired control id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("expire pending requests: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) ExpirePendingControls(ctx context.Context, cutoff, now time.Time) (int, error) {
	res, err := tx.Or(ctx, s.db).ExecContext(ctx, `
		UPDATE controls SET status = 'TIMEOUT', updated_at = $2
		WHERE status = 'PENDING' AND created_at < $1`, cutoff, now)
	if err != nil {
		return 0, fmt.Errorf("expire pending controls: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire pending controls rows affected: %w", err)
	}
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanControl(row rowScanner) (*models.Control, error) {
	var (
		c                 models.Control
		subsets           pq.StringArray
		search, authority []byte
		code, desc        sql.NullString
	)
	if err := row.Scan(&c.ID, &c.RequestID, &c.Type, &c.Status, &c.DatasetID, &c.PlatformID, &c.GateID,
		&c.FromGateID, &subsets, &search, &authority, &code, &desc, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.SubsetIDs = []string(subsets)
	if len(search) > 0 {
		c.Search = &models.SearchParameter{}
		if err := json.Unmarshal(search, c.Search); err != nil {
			return nil, fmt.Errorf("decode search parameters: %w", err)
		}
	}
	if len(authority) > 0 {
		c.Authority = &models.Authority{}
		if err := json.Unmarshal(authority, c.Authority); err != nil {
			return nil, fmt.Errorf("decode authority: %w", err)
		}
	}
	c.Error = errorInfo(code, desc)
	return &c, nil
}

func scanRequest(row rowScanner) (*models.Request, error) {
	var (
		r             models.Request
		correlationID sql.NullString
		consignments  []byte
		code, desc    sql.NullString
	)
	if err := row.Scan(&r.ID, &r.ControlID, &r.Kind, &r.Status, &r.GateIDDest, &correlationID, &r.Payload.Data,
		&consignments, &r.Payload.Note, &code, &desc, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.CorrelationID = correlationID.String
	if len(consignments) > 0 {
		if err := json.Unmarshal(consignments, &r.Payload.Consignments); err != nil {
			return nil, fmt.Errorf("decode consignments: %w", err)
		}
	}
	r.Error = errorInfo(code, desc)
	return &r, nil
}

// jsonColumn encodes v for a JSONB parameter. lib/pq sends []byte as bytea, so
// the document goes over the wire as text.
func jsonColumn(v any) (sql.NullString, error) {
	switch t := v.(type) {
	case *models.SearchParameter:
		if t == nil {
			return sql.NullString{}, nil
		}
	case *models.Authority:
		if t == nil {
			return sql.NullString{}, nil
		}
	case []idmodels.Consignment:
		if t == nil {
			return sql.NullString{}, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func errorColumns(e *models.ErrorInfo) (sql.NullString, sql.NullString) {
	if e == nil {
		return sql.NullString{}, sql.NullString{}
	}
	return sql.NullString{String: string(e.Code), Valid: true}, sql.NullString{String: e.Description, Valid: true}
}

func errorInfo(code, desc sql.NullString) *models.ErrorInfo {
	if !code.Valid {
		return nil
	}
	return &models.ErrorInfo{Code: models.ErrorCode(code.String), Description: desc.String}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
