package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/good-yellow-bee/focusdial/internal/models"
)

type sqliteEntryRepo struct {
	db *sql.DB
}

const entryColumns = `id, project_id, user_id, start_time, end_time, duration, description, invoiced, created_at, updated_at`

func scanEntry(row rowScanner) (*models.TimeEntry, error) {
	e := &models.TimeEntry{}
	var (
		endTime     sql.NullTime
		duration    sql.NullInt64
		description sql.NullString
		invoiced    int
	)
	err := row.Scan(
		&e.ID,
		&e.ProjectID,
		&e.UserID,
		&e.StartTime,
		&endTime,
		&duration,
		&description,
		&invoiced,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if endTime.Valid {
		e.EndTime = &endTime.Time
	}
	if duration.Valid {
		e.Duration = &duration.Int64
	}
	e.Description = description.String
	e.Invoiced = invoiced != 0
	return e, nil
}

func (r *sqliteEntryRepo) Create(ctx context.Context, entry *models.TimeEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	query := `
		INSERT INTO time_entries (` + entryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.ProjectID,
		entry.UserID,
		entry.StartTime.UTC(),
		nullTime(entry.EndTime),
		nullInt64(entry.Duration),
		nullString(entry.Description),
		boolToInt(entry.Invoiced),
		entry.CreatedAt.UTC(),
		entry.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert time entry: %w", translateError(err))
	}
	return nil
}

func (r *sqliteEntryRepo) GetByID(ctx context.Context, id string) (*models.TimeEntry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM time_entries WHERE id = ?", id))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get time entry: %w", err)
	}
	return e, nil
}

func (r *sqliteEntryRepo) Update(ctx context.Context, entry *models.TimeEntry) error {
	query := `
		UPDATE time_entries
		SET project_id = ?, start_time = ?, end_time = ?, duration = ?,
			description = ?, invoiced = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		entry.ProjectID,
		entry.StartTime.UTC(),
		nullTime(entry.EndTime),
		nullInt64(entry.Duration),
		nullString(entry.Description),
		boolToInt(entry.Invoiced),
		entry.UpdatedAt.UTC(),
		entry.ID,
	)
	if err != nil {
		return fmt.Errorf("update time entry: %w", translateError(err))
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("time entry %s: %w", entry.ID, ErrNotFound)
	}
	return nil
}

func (r *sqliteEntryRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM time_entries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete time entry: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("time entry %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *sqliteEntryRepo) List(ctx context.Context, filter EntryFilter) ([]*models.TimeEntry, error) {
	var (
		conds []string
		args  []any
	)
	if filter.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.ProjectID != "" {
		conds = append(conds, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.From != nil {
		conds = append(conds, "start_time >= ?")
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		conds = append(conds, "start_time <= ?")
		args = append(args, filter.To.UTC())
	}
	if filter.Active != nil {
		if *filter.Active {
			conds = append(conds, "end_time IS NULL")
		} else {
			conds = append(conds, "end_time IS NOT NULL")
		}
	}
	if filter.Invoiced != nil {
		conds = append(conds, "invoiced = ?")
		args = append(args, boolToInt(*filter.Invoiced))
	}

	query := "SELECT " + entryColumns + " FROM time_entries"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY start_time DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list time entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.TimeEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan time entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *sqliteEntryRepo) LatestActive(ctx context.Context, userID, projectID string) (*models.TimeEntry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM time_entries
		WHERE user_id = ? AND project_id = ? AND end_time IS NULL
		ORDER BY start_time DESC
		LIMIT 1
	`
	e, err := scanEntry(r.db.QueryRowContext(ctx, query, userID, projectID))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active time entry: %w", err)
	}
	return e, nil
}

func (r *sqliteEntryRepo) TotalDuration(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(duration), 0) FROM time_entries WHERE user_id = ? AND duration IS NOT NULL",
		userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum durations: %w", err)
	}
	return total, nil
}

