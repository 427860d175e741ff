package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/good-yellow-bee/focusdial/internal/models"
)

type sqliteProjectRepo struct {
	db *sql.DB
}

const projectColumns = `id, user_id, name, color, device_project_id, created_at, updated_at`

func scanProject(row rowScanner) (*models.Project, error) {
	p := &models.Project{}
	var deviceID sql.NullString
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Color, &deviceID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.DeviceProjectID = deviceID.String
	return p, nil
}

func (r *sqliteProjectRepo) queryOne(ctx context.Context, query string, args ...any) (*models.Project, error) {
	p, err := scanProject(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// Create inserts a project. A duplicate device id, or a duplicate name among
// projects without a device id, yields ErrConflict for the same user.
func (r *sqliteProjectRepo) Create(ctx context.Context, project *models.Project) error {
	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	query := `
		INSERT INTO projects (` + projectColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		project.ID,
		project.UserID,
		project.Name,
		project.Color,
		nullString(project.DeviceProjectID),
		project.CreatedAt.UTC(),
		project.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", translateError(err))
	}
	return nil
}

func (r *sqliteProjectRepo) GetByID(ctx context.Context, id string) (*models.Project, error) {
	return r.queryOne(ctx, "SELECT "+projectColumns+" FROM projects WHERE id = ?", id)
}

func (r *sqliteProjectRepo) GetByName(ctx context.Context, userID, name string) (*models.Project, error) {
	return r.queryOne(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE user_id = ? AND name = ?",
		userID, name)
}

func (r *sqliteProjectRepo) GetByDeviceID(ctx context.Context, userID, deviceProjectID string) (*models.Project, error) {
	return r.queryOne(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE user_id = ? AND device_project_id = ?",
		userID, deviceProjectID)
}

func (r *sqliteProjectRepo) Update(ctx context.Context, project *models.Project) error {
	query := `
		UPDATE projects SET name = ?, color = ?, device_project_id = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		project.Name,
		project.Color,
		nullString(project.DeviceProjectID),
		project.UpdatedAt.UTC(),
		project.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", translateError(err))
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("project %s: %w", project.ID, ErrNotFound)
	}
	return nil
}

// Delete removes a project. Projects that still own time entries yield ErrReferenced.
func (r *sqliteProjectRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project: %w", translateError(err))
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *sqliteProjectRepo) ListByUser(ctx context.Context, userID string) ([]*models.Project, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE user_id = ? ORDER BY name",
		userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *sqliteProjectRepo) CountEntries(ctx context.Context, projectID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM time_entries WHERE project_id = ?", projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count project entries: %w", err)
	}
	return count, nil
}
