// Package repository persists HL7 standards tables in PostgreSQL.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/hl7-synth-server/internal/domain"
)

// TableRepository handles HL7 table persistence. It implements
// domain.TableProvider so the database can back table lookups directly.
type TableRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewTableRepository creates a new table repository
func NewTableRepository(db *pgxpool.Pool, logger *logrus.Logger) *TableRepository {
	return &TableRepository{
		db:  db,
		log: logger,
	}
}

// GetTable retrieves a table with its values in display order
func (r *TableRepository) GetTable(ctx context.Context, tableID string) (*domain.Table, error) {
	query := `
		SELECT table_name, code, text
		FROM hl7_tables
		WHERE table_id = $1
		ORDER BY sort_order, code`

	rows, err := r.db.Query(ctx, query, tableID)
	if err != nil {
		return nil, fmt.Errorf("querying table %s: %w", tableID, err)
	}
	defer rows.Close()

	table := &domain.Table{ID: tableID}
	for rows.Next() {
		var v domain.TableValue
		if err := rows.Scan(&table.Name, &v.Code, &v.Text); err != nil {
			return nil, fmt.Errorf("scanning table %s: %w", tableID, err)
		}
		table.Values = append(table.Values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating table %s: %w", tableID, err)
	}

	if len(table.Values) == 0 {
		return nil, fmt.Errorf("table %s: %w", tableID, domain.ErrNotFound)
	}
	return table, nil
}

// UpsertTable replaces every value of a table in one transaction
func (r *TableRepository) UpsertTable(ctx context.Context, table *domain.Table) error {
	if table == nil || table.ID == "" {
		return domain.NewValidationError("table_id", "table id is required", nil)
	}

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM hl7_tables WHERE table_id = $1", table.ID); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for i, v := range table.Values {
			batch.Queue(`
				INSERT INTO hl7_tables (table_id, table_name, code, text, sort_order)
				VALUES ($1, $2, $3, $4, $5)`,
				table.ID, table.Name, v.Code, v.Text, i,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"table_id": table.ID,
			"error":    err,
		}).Error("Failed to upsert table")
		return fmt.Errorf("upserting table %s: %w", table.ID, err)
	}

	r.log.WithFields(logrus.Fields{
		"table_id": table.ID,
		"values":   len(table.Values),
	}).Debug("Table stored")
	return nil
}

// DeleteTable removes a table
func (r *TableRepository) DeleteTable(ctx context.Context, tableID string) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM hl7_tables WHERE table_id = $1", tableID)
	if err != nil {
		return fmt.Errorf("deleting table %s: %w", tableID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("table %s: %w", tableID, domain.ErrNotFound)
	}
	return nil
}

// ListTableIDs returns the ids of every stored table
func (r *TableRepository) ListTableIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, "SELECT DISTINCT table_id FROM hl7_tables ORDER BY table_id")
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	return ids, nil
}

// Seed stores every table that is not present yet. It returns how many
// tables were written.
func (r *TableRepository) Seed(ctx context.Context, tables map[string]*domain.Table) (int, error) {
	existing, err := r.ListTableIDs(ctx)
	if err != nil {
		return 0, err
	}
	have := make(map[string]bool, len(existing))
	for _, id := range existing {
		have[id] = true
	}

	written := 0
	for id, t := range tables {
		if have[id] {
			continue
		}
		if err := r.UpsertTable(ctx, t); err != nil {
			return written, err
		}
		written++
	}

	r.log.WithFields(logrus.Fields{
		"written": written,
		"skipped": len(tables) - written,
	}).Info("Seeded HL7 tables")
	return written, nil
}
