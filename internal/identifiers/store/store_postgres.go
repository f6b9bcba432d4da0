package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"efti-gate/internal/identifiers/models"
	"efti-gate/pkg/platform/sentinel"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is the identifier registry backed by the consignment tables.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Match runs one strategy and loads the matching aggregates.
func (s *PostgresStore) Match(ctx context.Context, t models.IdentifierType, c models.Criteria) ([]models.Consignment, error) {
	frag, err := FragmentFor(t, c)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, frag.SQL, frag.Args...)
	if err != nil {
		return nil, fmt.Errorf("match %s: %w", t, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("match %s: %w", t, err)
	}
	return load(ctx, s.pool, ids)
}

// FindByUIL returns the consignment registered under the locator.
func (s *PostgresStore) FindByUIL(ctx context.Context, gateID, datasetID, platformID string) (*models.Consignment, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM consignment WHERE gate_id = $1 AND dataset_id = $2 AND platform_id = $3`,
		gateID, datasetID, platformID,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find consignment by uil: %w", err)
	}
	list, err := load(ctx, s.pool, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return &list[0], nil
}

// Save replaces the aggregate registered under the consignment's locator.
func (s *PostgresStore) Save(ctx context.Context, c *models.Consignment) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM consignment WHERE gate_id = $1 AND dataset_id = $2 AND platform_id = $3`,
			c.GateID, c.DatasetID, c.PlatformID,
		); err != nil {
			return fmt.Errorf("delete previous consignment: %w", err)
		}

		err := tx.QueryRow(ctx, `
			INSERT INTO consignment (gate_id, platform_id, dataset_id, carrier_acceptance_datetime, delivery_event_actual_occurrence_datetime)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			c.GateID, c.PlatformID, c.DatasetID, c.CarrierAcceptanceDatetime, c.DeliveryEventActualOccurrenceDatetime,
		).Scan(&c.ID)
		if err != nil {
			return fmt.Errorf("insert consignment: %w", err)
		}

		batch := &pgx.Batch{}
		for _, m := range c.Movements {
			batch.Queue(`
				INSERT INTO main_carriage_transport_movement
					(consignment_id, mode_code, dangerous_goods_indicator, used_transport_means_id, used_transport_means_registration_country, id_scheme_agency_id)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				c.ID, m.ModeCode, m.DangerousGoodsIndicator, m.UsedTransportMeansID, m.UsedTransportMeansRegistrationCountry, m.SchemeAgencyID)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert movements: %w", err)
		}

		for _, ue := range c.UsedTransportEquipments {
			var ueID int64
			if err := tx.QueryRow(ctx, `
				INSERT INTO used_transport_equipment
					(consignment_id, sequence_number, equipment_id, id_scheme_agency_id, registration_country, category_code)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id`,
				c.ID, ue.SequenceNumber, ue.EquipmentID, ue.SchemeAgencyID, ue.RegistrationCountry, ue.CategoryCode,
			).Scan(&ueID); err != nil {
				return fmt.Errorf("insert used equipment: %w", err)
			}
			for _, ce := range ue.CarriedTransportEquipments {
				if _, err := tx.Exec(ctx, `
					INSERT INTO carried_transport_equipment
						(used_transport_equipment_id, sequence_number, equipment_id, id_scheme_agency_id)
					VALUES ($1, $2, $3, $4)`,
					ueID, ce.SequenceNumber, ce.EquipmentID, ce.SchemeAgencyID,
				); err != nil {
					return fmt.Errorf("insert carried equipment: %w", err)
				}
			}
		}
		return nil
	})
}

func load(ctx context.Context, q querier, ids []int64) ([]models.Consignment, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := q.Query(ctx, `
		SELECT id, gate_id, platform_id, dataset_id, carrier_acceptance_datetime, delivery_event_actual_occurrence_datetime
		FROM consignment WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("load consignments: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Consignment, error) {
		var (
			c                   models.Consignment
			accepted, delivered *time.Time
		)
		err := row.Scan(&c.ID, &c.GateID, &c.PlatformID, &c.DatasetID, &accepted, &delivered)
		c.CarrierAcceptanceDatetime = accepted
		c.DeliveryEventActualOccurrenceDatetime = delivered
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("load consignments: %w", err)
	}

	index := make(map[int64]int, len(out))
	for i, c := range out {
		index[c.ID] = i
	}
	if err := loadMovements(ctx, q, ids, out, index); err != nil {
		return nil, err
	}
	if err := loadEquipment(ctx, q, ids, out, index); err != nil {
		return nil, err
	}
	return out, nil
}

func loadMovements(ctx context.Context, q querier, ids []int64, out []models.Consignment, index map[int64]int) error {
	rows, err := q.Query(ctx, `
		SELECT consignment_id, COALESCE(mode_code, ''), COALESCE(dangerous_goods_indicator, FALSE),
		       COALESCE(used_transport_means_id, ''), COALESCE(used_transport_means_registration_country, ''),
		       COALESCE(id_scheme_agency_id, '')
		FROM main_carriage_transport_movement WHERE consignment_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("load movements: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid int64
			m   models.Movement
		)
		if err := rows.Scan(&cid, &m.ModeCode, &m.DangerousGoodsIndicator, &m.UsedTransportMeansID,
			&m.UsedTransportMeansRegistrationCountry, &m.SchemeAgencyID); err != nil {
			return fmt.Errorf("load movements: scan: %w", err)
		}
		i := index[cid]
		out[i].Movements = append(out[i].Movements, m)
	}
	return rows.Err()
}

func loadEquipment(ctx context.Context, q querier, ids []int64, out []models.Consignment, index map[int64]int) error {
	rows, err := q.Query(ctx, `
		SELECT id, consignment_id, sequence_number, COALESCE(equipment_id, ''), COALESCE(id_scheme_agency_id, ''),
		       COALESCE(registration_country, ''), COALESCE(category_code, '')
		FROM used_transport_equipment WHERE consignment_id = ANY($1) ORDER BY sequence_number, id`, ids)
	if err != nil {
		return fmt.Errorf("load used equipment: %w", err)
	}
	type ref struct{ consignment, pos int }
	var (
		ueIDs []int64
		refs  = make(map[int64]ref)
	)
	for rows.Next() {
		var (
			id, cid int64
			ue      models.UsedTransportEquipment
		)
		if err := rows.Scan(&id, &cid, &ue.SequenceNumber, &ue.EquipmentID, &ue.SchemeAgencyID,
			&ue.RegistrationCountry, &ue.CategoryCode); err != nil {
			rows.Close()
			return fmt.Errorf("load used equipment: scan: %w", err)
		}
		i := index[cid]
		out[i].UsedTransportEquipments = append(out[i].UsedTransportEquipments, ue)
		refs[id] = ref{consignment: i, pos: len(out[i].UsedTransportEquipments) - 1}
		ueIDs = append(ueIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load used equipment: %w", err)
	}
	if len(ueIDs) == 0 {
		return nil
	}

	carried, err := q.Query(ctx, `
		SELECT used_transport_equipment_id, sequence_number, COALESCE(equipment_id, ''), COALESCE(id_scheme_agency_id, '')
		FROM carried_transport_equipment WHERE used_transport_equipment_id = ANY($1) ORDER BY sequence_number, id`, ueIDs)
	if err != nil {
		return fmt.Errorf("load carried equipment: %w", err)
	}
	defer carried.Close()
	for carried.Next() {
		var (
			ueID int64
			ce   models.CarriedTransportEquipment
		)
		if err := carried.Scan(&ueID, &ce.SequenceNumber, &ce.EquipmentID, &ce.SchemeAgencyID); err != nil {
			return fmt.Errorf("load carried equipment: scan: %w", err)
		}
		r := refs[ueID]
		ue := &out[r.consignment].UsedTransportEquipments[r.pos]
		ue.CarriedTransportEquipments = append(ue.CarriedTransportEquipments, ce)
	}
	return carried.Err()
}
