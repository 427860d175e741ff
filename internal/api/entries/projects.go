package entries

import (
	"context"

	"github.com/good-yellow-bee/focusdial/internal/models"
	"github.com/good-yellow-bee/focusdial/internal/storage"
)

// ProjectIndex maps the ids of userID's projects to the projects.
func ProjectIndex(ctx context.Context, repo storage.ProjectRepository, userID string) (map[string]*models.Project, error) {
	list, err := repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := make(map[string]*models.Project, len(list))
	for _, p := range list {
		idx[p.ID] = p
	}
	return idx, nil
}
