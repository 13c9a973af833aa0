package audit

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists and queries audit rows in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends one audit row. Snapshots and the field diff are stored as
// JSONB so the timeline can render them without re-deriving.
func (r *Repository) Insert(ctx context.Context, entry LogEntry) (int64, error) {
	oldData, err := marshalNullable(entry.OldData)
	if err != nil {
		return 0, err
	}
	newData, err := marshalNullable(entry.NewData)
	if err != nil {
		return 0, err
	}
	var changes []byte
	if len(entry.FieldChanges) > 0 {
		changes, err = json.Marshal(entry.FieldChanges)
		if err != nil {
			return 0, err
		}
	}

	var id int64
	err = r.pool.QueryRow(ctx,
		`INSERT INTO audit_logs
			(table_name, record_id, action, old_data, new_data, field_changes, change_summary, performed_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		entry.TableName, entry.RecordID, entry.Action, oldData, newData, changes,
		entry.ChangeSummary, entry.PerformedBy, entry.CreatedAt).Scan(&id)
	return id, err
}

// Timeline returns audit rows matching the filters, newest first.
func (r *Repository) Timeline(ctx context.Context, filters TimelineFilters, limit, offset int) ([]LogEntry, error) {
	query := `SELECT id, table_name, record_id, action, old_data, new_data, field_changes, change_summary, performed_by, created_at
		FROM audit_logs WHERE 1=1`
	args := []any{}
	add := func(clause string, value any) {
		args = append(args, value)
		query += ` AND ` + clause + ` $` + strconv.Itoa(len(args))
	}
	if filters.TableName != "" {
		add(`table_name =`, filters.TableName)
	}
	if filters.RecordID != "" {
		add(`record_id =`, filters.RecordID)
	}
	if filters.Action != "" {
		add(`action =`, filters.Action)
	}
	if filters.PerformedBy != "" {
		add(`performed_by =`, filters.PerformedBy)
	}
	if !filters.From.IsZero() {
		add(`created_at >=`, filters.From)
	}
	if !filters.To.IsZero() {
		add(`created_at <=`, filters.To)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))
	args = append(args, offset)
	query += ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		var oldData, newData, changes []byte
		if err := rows.Scan(&e.ID, &e.TableName, &e.RecordID, &e.Action, &oldData, &newData,
			&changes, &e.ChangeSummary, &e.PerformedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := unmarshalNullable(oldData, &e.OldData); err != nil {
			return nil, err
		}
		if err := unmarshalNullable(newData, &e.NewData); err != nil {
			return nil, err
		}
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &e.FieldChanges); err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func marshalNullable(data map[string]any) ([]byte, error) {
	if data == nil {
		return nil, nil
	}
	return json.Marshal(data)
}

func unmarshalNullable(raw []byte, dst *map[string]any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
