package users

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/good-yellow-bee/focusdial/internal/api/auth"
	"github.com/good-yellow-bee/focusdial/internal/api/middleware"
	"github.com/good-yellow-bee/focusdial/internal/api/render"
	"github.com/good-yellow-bee/focusdial/internal/models"
	"github.com/good-yellow-bee/focusdial/internal/storage"
)

var errUserNotFound = render.NewNotFound("user not found")

// UserResponse is a user without sensitive fields.
type UserResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func userToResponse(u *models.User) *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
		UpdatedAt: u.UpdatedAt.Format(time.RFC3339),
	}
}

// Handler handles user management endpoints.
type Handler struct {
	users  storage.UserRepository
	tokens storage.TokenRepository
	cost   int
}

// NewHandler creates a new user handler.
func NewHandler(store storage.Storage) *Handler {
	return &Handler{users: store.Users(), tokens: store.Tokens(), cost: bcrypt.DefaultCost}
}

// CreateRequest is the request body for creating a user.
type CreateRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// UpdateRequest is the request body for updating a user.
type UpdateRequest struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// ChangePasswordRequest is the request body for changing password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// List returns all users (admin only).
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		render.Internal(w, "list users", err)
		return
	}

	resp := make([]*UserResponse, len(users))
	for i, u := range users {
		resp[i] = userToResponse(u)
	}
	render.OK(w, resp)
}

// Create creates a new user (admin only).
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !render.Decode(w, r, &req) {
		return
	}

	role, err := ValidateRole(req.Role)
	if err == nil {
		err = errors.Join(ValidateUsername(req.Username), ValidateEmail(req.Email), auth.ValidatePasswordOrError(req.Password))
	}
	if err != nil {
		render.Fail(w, render.NewValidationError(firstLine(err)))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.cost)
	if err != nil {
		render.Internal(w, "create user: hash password", err)
		return
	}

	user := models.NewUser(strings.TrimSpace(req.Username), strings.TrimSpace(req.Email), role)
	user.PasswordHash = string(hash)

	if err := h.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			render.Fail(w, render.NewConflict("username or email already exists"))
			return
		}
		render.Internal(w, "create user", err)
		return
	}

	log.Printf("user created: %s (%s)", user.Username, user.ID)
	render.Created(w, userToResponse(user))
}

// GetByID returns a user by ID (admin or self).
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	user, ok := h.load(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	render.OK(w, userToResponse(user))
}

// Update changes email and, for admins, role.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !render.Decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	userID := chi.URLParam(r, "id")
	user, ok := h.load(w, r, userID)
	if !ok {
		return
	}

	if req.Email != "" {
		if err := ValidateEmail(req.Email); err != nil {
			render.Fail(w, render.NewValidationError(err.Error()))
			return
		}
		user.Email = strings.TrimSpace(req.Email)
	}

	if req.Role != "" {
		if middleware.GetRole(ctx) != models.RoleAdmin {
			render.Fail(w, render.ErrForbidden)
			return
		}
		role, err := ValidateRole(req.Role)
		if err != nil {
			render.Fail(w, render.NewValidationError(err.Error()))
			return
		}
		if userID == middleware.GetUserID(ctx) && role != models.RoleAdmin {
			render.Fail(w, render.NewBadRequest("cannot change own role"))
			return
		}
		user.Role = role
	}

	user.UpdatedAt = time.Now()
	if err := h.users.Update(ctx, user); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			render.Fail(w, render.NewConflict("email already exists"))
			return
		}
		render.Internal(w, "update user", err)
		return
	}

	log.Printf("user updated: %s (%s)", user.Username, user.ID)
	render.OK(w, userToResponse(user))
}

// Delete removes a user together with their projects, entries and keys.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == middleware.GetUserID(r.Context()) {
		render.Fail(w, render.NewBadRequest("cannot delete own account"))
		return
	}

	user, ok := h.load(w, r, userID)
	if !ok {
		return
	}
	if err := h.users.Delete(r.Context(), userID); err != nil {
		render.Internal(w, "delete user", err)
		return
	}

	log.Printf("user deleted: %s (%s)", user.Username, user.ID)
	render.NoContent(w)
}

// GetCurrentUser returns the current authenticated user.
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.load(w, r, middleware.GetUserID(r.Context()))
	if !ok {
		return
	}
	render.OK(w, userToResponse(user))
}

// ChangePassword changes the current user's password and signs out every
// other session.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !render.Decode(w, r, &req) {
		return
	}
	if req.CurrentPassword == "" {
		render.Fail(w, render.NewValidationError("current_password is required"))
		return
	}
	if err := auth.ValidatePasswordOrError(req.NewPassword); err != nil {
		render.Fail(w, render.NewValidationError(err.Error()))
		return
	}

	ctx := r.Context()
	user, ok := h.load(w, r, middleware.GetUserID(ctx))
	if !ok {
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)) != nil {
		render.Fail(w, render.NewValidationError("current password is incorrect"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), h.cost)
	if err != nil {
		render.Internal(w, "change password: hash password", err)
		return
	}
	user.PasswordHash = string(hash)
	user.UpdatedAt = time.Now()

	if err := h.users.Update(ctx, user); err != nil {
		render.Internal(w, "change password", err)
		return
	}
	if err := h.tokens.RevokeAllForUser(ctx, user.ID); err != nil {
		log.Printf("change password: revoke tokens: %v", err)
	}

	log.Printf("password changed: user %s", user.Username)
	render.NoContent(w)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request, id string) (*models.User, bool) {
	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		render.Internal(w, "get user", err)
		return nil, false
	}
	if user == nil {
		render.Fail(w, errUserNotFound)
		return nil, false
	}
	return user, true
}

func firstLine(err error) string {
	msg, _, _ := strings.Cut(err.Error(), "\n")
	return msg
}
