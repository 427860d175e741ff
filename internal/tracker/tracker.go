// Package tracker turns device webhook calls into project and time entry
// changes.
package tracker

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/good-yellow-bee/focusdial/internal/events"
	"github.com/good-yellow-bee/focusdial/internal/metrics"
	"github.com/good-yellow-bee/focusdial/internal/models"
	"github.com/good-yellow-bee/focusdial/internal/storage"
)

// Action is a timer command sent by the device.
type Action string

const (
	ActionStart Action = "start_timer"
	ActionStop  Action = "stop_timer"
	// ActionDone is sent by older firmware and behaves like ActionStop.
	ActionDone Action = "done_timer"
)

// ParseAction validates a raw action string.
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionStart, ActionStop:
		return a, true
	case ActionDone:
		return ActionStop, true
	default:
		return "", false
	}
}

// Request is one decoded webhook call.
type Request struct {
	UserID          string
	Action          string
	DeviceProjectID string
	ProjectName     string
	ProjectColor    string
	Description     string
}

// Result describes the entry touched by a request.
type Result struct {
	Action         Action
	EntryID        string
	ProjectID      string
	ProjectCreated bool
	// Duration is set for stop actions, in whole seconds.
	Duration *int64
}

// Message is the human-readable summary returned to the device.
func (r *Result) Message() string {
	if r.Action == ActionStop {
		return "Timer stopped"
	}
	return "Timer started"
}

// Service implements the webhook timer upsert.
//
// Starting a timer never checks for an already running entry on the
// project; several open entries may coexist and stop closes the newest.
type Service struct {
	store  storage.Storage
	events events.Publisher

	mu     sync.RWMutex
	policy ProjectUpdatePolicy
	now    func() time.Time
}

// NewService creates a tracker backed by store. A nil publisher discards
// change events.
func NewService(store storage.Storage, publisher events.Publisher, policy ProjectUpdatePolicy) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if policy == "" {
		policy = UpdateNever
	}
	return &Service{
		store:  store,
		events: publisher,
		policy: policy,
		now:    time.Now,
	}
}

// SetPolicy swaps the project update policy; used on config reload.
func (s *Service) SetPolicy(p ProjectUpdatePolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy = p
}

// Policy returns the active project update policy.
func (s *Service) Policy() ProjectUpdatePolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Service) clock() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now()
}

// Authenticate resolves a bearer API key to its owner and records the use.
func (s *Service) Authenticate(ctx context.Context, apiKey string) (string, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return "", newError(KindUnauthorized, "missing API key", nil)
	}

	key, err := s.store.APIKeys().GetByKeyHash(ctx, models.HashAPIKey(apiKey))
	if err != nil {
		return "", newError(KindInternal, "failed to verify API key", err)
	}
	if key == nil {
		return "", newError(KindUnauthorized, "invalid API key", nil)
	}

	if err := s.store.APIKeys().TouchLastUsed(ctx, key.ID, s.clock()); err != nil {
		log.Printf("webhook: record api key use %s: %v", key.ID, err)
	}
	return key.UserID, nil
}

// Handle applies req for req.UserID.
func (s *Service) Handle(ctx context.Context, req Request) (*Result, error) {
	action, err := validate(req)
	if err != nil {
		return nil, err
	}

	project, created, err := s.resolveProject(ctx, req)
	if err != nil {
		return nil, err
	}

	var res *Result
	if action == ActionStart {
		res, err = s.start(ctx, req, project)
	} else {
		res, err = s.stop(ctx, req, project)
	}
	if err != nil {
		return nil, err
	}
	res.ProjectCreated = created
	return res, nil
}

func validate(req Request) (Action, error) {
	var missing []string
	if req.Action == "" {
		missing = append(missing, "action")
	}
	if req.DeviceProjectID == "" {
		missing = append(missing, "device_project_id")
	}
	if req.ProjectName == "" {
		missing = append(missing, "project_name")
	}
	if req.ProjectColor == "" {
		missing = append(missing, "project_color")
	}
	if len(missing) > 0 {
		return "", newError(KindValidation, "missing required fields: "+strings.Join(missing, ", "), nil)
	}

	action, ok := ParseAction(req.Action)
	if !ok {
		return "", newError(KindValidation, "invalid action specified", nil)
	}
	if !models.ValidColor(req.ProjectColor) {
		return "", newError(KindValidation, "project_color must be a #RRGGBB hex colour", nil)
	}
	return action, nil
}

// resolveProject finds the project for the device id, creating it on first
// sighting. A concurrent creation that wins the unique index surfaces as a
// conflict rather than being retried.
func (s *Service) resolveProject(ctx context.Context, req Request) (*models.Project, bool, error) {
	projects := s.store.Projects()

	project, err := projects.GetByDeviceID(ctx, req.UserID, req.DeviceProjectID)
	if err != nil {
		return nil, false, newError(KindInternal, "database error checking project", err)
	}

	if project == nil {
		project = models.NewProject(req.UserID, req.ProjectName, req.ProjectColor)
		project.DeviceProjectID = req.DeviceProjectID
		if err := projects.Create(ctx, project); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return nil, false, newError(KindConflict, "project creation conflict, please retry", err)
			}
			return nil, false, newError(KindInternal, "failed to create project", err)
		}
		log.Printf("webhook: created project %s for device id %s (user %s)", project.ID, req.DeviceProjectID, req.UserID)
		metrics.WebhookProjectsCreated.Inc()
		s.publish(events.TableProjects, events.ActionInsert, project.ID, req.UserID)
		return project, true, nil
	}

	if s.shouldUpdate(project, req) {
		project.Name = req.ProjectName
		project.Color = req.ProjectColor
		project.UpdatedAt = s.clock()
		if err := projects.Update(ctx, project); err != nil {
			return nil, false, newError(KindInternal, "failed to update project", err)
		}
		s.publish(events.TableProjects, events.ActionUpdate, project.ID, req.UserID)
	}
	return project, false, nil
}

func (s *Service) shouldUpdate(p *models.Project, req Request) bool {
	switch s.Policy() {
	case UpdateAlways:
		return true
	case UpdateIfChanged:
		return p.Name != req.ProjectName || !strings.EqualFold(p.Color, req.ProjectColor)
	default:
		return false
	}
}

func (s *Service) start(ctx context.Context, req Request, project *models.Project) (*Result, error) {
	entry := models.NewTimeEntry(req.UserID, project.ID, s.clock())
	entry.Description = req.Description
	if err := s.store.Entries().Create(ctx, entry); err != nil {
		return nil, newError(KindInternal, "failed to start timer", err)
	}

	log.Printf("webhook: timer started for user %s, project %s, entry %s", req.UserID, project.ID, entry.ID)
	s.publish(events.TableTimeEntries, events.ActionInsert, entry.ID, req.UserID)
	return &Result{Action: ActionStart, EntryID: entry.ID, ProjectID: project.ID}, nil
}

func (s *Service) stop(ctx context.Context, req Request, project *models.Project) (*Result, error) {
	entries := s.store.Entries()

	entry, err := entries.LatestActive(ctx, req.UserID, project.ID)
	if err != nil {
		return nil, newError(KindInternal, "error finding active timer", err)
	}
	if entry == nil {
		log.Printf("webhook: no active timer for user %s, project %s", req.UserID, project.ID)
		return nil, newError(KindNotFound, "no active timer found for this project", nil)
	}

	now := s.clock()
	entry.Stop(now)
	entry.UpdatedAt = now
	if req.Description != "" {
		entry.Description = req.Description
	}
	if err := entries.Update(ctx, entry); err != nil {
		return nil, newError(KindInternal, "failed to stop timer", err)
	}

	log.Printf("webhook: timer stopped for user %s, project %s, entry %s (%ds)", req.UserID, project.ID, entry.ID, *entry.Duration)
	metrics.TimerDuration.Observe(float64(*entry.Duration))
	s.publish(events.TableTimeEntries, events.ActionUpdate, entry.ID, req.UserID)
	return &Result{Action: ActionStop, EntryID: entry.ID, ProjectID: project.ID, Duration: entry.Duration}, nil
}

func (s *Service) publish(table events.Table, action events.Action, id, userID string) {
	s.events.Publish(events.Event{Table: table, Action: action, ID: id, UserID: userID})
}
