package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"launchline/internal/delivery/http/helpers"
	"launchline/internal/delivery/http/middleware"
	"launchline/internal/domain"
)

// CreateWorkspaceRequest is the request body for POST /workspaces
type CreateWorkspaceRequest struct {
	Name string `json:"name"`
}

// Validate implements Validator.
func (c CreateWorkspaceRequest) Validate() []string {
	if strings.TrimSpace(c.Name) == "" {
		return []string{"name is required"}
	}
	return nil
}

// CreateInvitationRequest is the request body for POST /workspaces/invitations
type CreateInvitationRequest struct {
	Email     string     `json:"email"`
	FullName  string     `json:"full_name"`
	Role      string     `json:"role"` // optional: "ADMIN" or "MEMBER" (defaults to "MEMBER")
	ExpiresAt *time.Time `json:"expires_at"`
}

// Validate implements Validator.
func (c CreateInvitationRequest) Validate() []string {
	var errs []string
	email := strings.TrimSpace(strings.ToLower(c.Email))
	if email != "" && !emailRegexp.MatchString(email) {
		errs = append(errs, "invalid email format")
	}
	role := strings.TrimSpace(strings.ToUpper(c.Role))
	if role != "" && role != string(domain.RoleAdmin) && role != string(domain.RoleMember) {
		errs = append(errs, "role must be \"ADMIN\" or \"MEMBER\"")
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(time.Now()) {
		errs = append(errs, "expires_at must be in the future")
	}
	return errs
}

// CreateInvitationResponse is the response body for POST /workspaces/invitations.
// Token is the raw invite token; it is returned exactly once.
type CreateInvitationResponse struct {
	Token string `json:"token"`
}

// RedeemInvitationRequest is the request body for POST /invitations/{token}/redeem
type RedeemInvitationRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// Validate implements Validator.
func (r RedeemInvitationRequest) Validate() []string {
	var errs []string
	email := strings.TrimSpace(strings.ToLower(r.Email))
	if email != "" && !emailRegexp.MatchString(email) {
		errs = append(errs, "invalid email format")
	}
	return errs
}

// WorkspaceController handles workspace, membership, and invitation endpoints.
type WorkspaceController struct {
	Logger  *slog.Logger
	Service domain.WorkspaceService
}

// NewWorkspaceController creates a WorkspaceController with the given logger and service.
func NewWorkspaceController(logger *slog.Logger, svc domain.WorkspaceService) *WorkspaceController {
	return &WorkspaceController{
		Logger:  logger,
		Service: svc,
	}
}

func (c *WorkspaceController) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInviteNotFound),
		errors.Is(err, domain.ErrWorkspaceNotFound),
		errors.Is(err, domain.ErrMembershipNotFound):
		helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, err.Error())
	case errors.Is(err, domain.ErrInviteExpired),
		errors.Is(err, domain.ErrInviteDisabled),
		errors.Is(err, domain.ErrInviteConsumed),
		errors.Is(err, domain.ErrWorkspaceDeactivated),
		errors.Is(err, domain.ErrMembershipDeactivated):
		helpers.WriteJSONError(w, http.StatusGone, helpers.ErrCodeGone, err.Error())
	case errors.Is(err, domain.ErrEmailInUse):
		helpers.WriteJSONError(w, http.StatusConflict, helpers.ErrCodeConflict, err.Error())
	case errors.Is(err, domain.ErrAmbiguousWorkspace), errors.Is(err, domain.ErrForbidden):
		helpers.WriteJSONError(w, http.StatusForbidden, helpers.ErrCodeForbidden, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, err.Error())
	default:
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
	}
}

// CreateWorkspace godoc
// @Summary Create a workspace
// @Description Create a workspace with the caller as its admin member. Requires Bearer token.
// @Tags workspaces
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateWorkspaceRequest true "Workspace data"
// @Success 201 {object} helpers.APIResponse "data contains the created workspace"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /workspaces [post]
func (c *WorkspaceController) CreateWorkspace(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	var req CreateWorkspaceRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	ws, err := c.Service.CreateWorkspace(r.Context(), userID, req.Name)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, ws)
}

// GetMyWorkspace godoc
// @Summary Get the caller's workspace
// @Description Returns the single workspace the authenticated user belongs to. Requires Bearer token.
// @Tags workspaces
// @Produce json
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse "data contains the workspace"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /workspaces/me [get]
func (c *WorkspaceController) GetMyWorkspace(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	ws, err := c.Service.GetUserWorkspace(r.Context(), userID)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, ws)
}

// DeactivateWorkspace godoc
// @Summary Deactivate a workspace
// @Description Soft-deletes the workspace; memberships and invites stop resolving. Requires Bearer token.
// @Tags workspaces
// @Produce json
// @Security BearerAuth
// @Param workspaceID path string true "Workspace ID"
// @Success 200 {object} helpers.APIResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /workspaces/{workspaceID} [delete]
func (c *WorkspaceController) DeactivateWorkspace(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	workspaceID := r.PathValue("workspaceID")
	if err := c.Service.DeactivateWorkspace(r.Context(), userID, workspaceID); err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// CreateInvitation godoc
// @Summary Invite a member
// @Description Create an invitation in the caller's workspace. The raw invite token is returned once; if an email is supplied the invite link is also emailed. Requires Bearer token.
// @Tags invitations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateInvitationRequest true "Invitation data (all fields optional)"
// @Success 201 {object} helpers.APIResponse "data contains the raw invite token"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /workspaces/invitations [post]
func (c *WorkspaceController) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	var req CreateInvitationRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	token, err := c.Service.CreateWorkspaceInvitation(r.Context(), userID, domain.CreateInvitationInput{
		Email:     req.Email,
		FullName:  req.FullName,
		Role:      domain.MembershipRole(strings.TrimSpace(strings.ToUpper(req.Role))),
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, CreateInvitationResponse{Token: token})
}

// GetInvitation godoc
// @Summary Look up an invitation
// @Description Public lookup of an invitation by token, for rendering the redemption page. Returns workspace name, role, and email hint for a valid invite.
// @Tags invitations
// @Produce json
// @Param token path string true "Raw invite token"
// @Success 200 {object} helpers.APIResponse "data contains the invitation projection"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 410 {object} helpers.APIResponse "error.code: gone"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /invitations/{token} [get]
func (c *WorkspaceController) GetInvitation(w http.ResponseWriter, r *http.Request) {
	proj, err := c.Service.GetWorkspaceInvitation(r.Context(), r.PathValue("token"))
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, proj)
}

// RedeemInvitation godoc
// @Summary Redeem an invitation
// @Description Public redemption of an invitation by token. Succeeds at most once per invite; the membership becomes ACTIVE.
// @Tags invitations
// @Accept json
// @Produce json
// @Param token path string true "Raw invite token"
// @Param body body RedeemInvitationRequest true "Redeemer details (email required unless the invite pinned one)"
// @Success 200 {object} helpers.APIResponse "data contains the activated membership"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 410 {object} helpers.APIResponse "error.code: gone"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /invitations/{token}/redeem [post]
func (c *WorkspaceController) RedeemInvitation(w http.ResponseWriter, r *http.Request) {
	var req RedeemInvitationRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	membership, err := c.Service.RedeemWorkspaceInvitation(r.Context(), domain.RedeemInvitationInput{
		Token:    r.PathValue("token"),
		Email:    req.Email,
		FullName: req.FullName,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, membership)
}

// DisableInvitation godoc
// @Summary Disable an invitation
// @Description Disable a pending invitation so it can no longer be redeemed. The invite record is kept for the audit trail. Requires Bearer token.
// @Tags invitations
// @Produce json
// @Security BearerAuth
// @Param inviteID path string true "Invitation ID"
// @Success 200 {object} helpers.APIResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /workspaces/invitations/{inviteID}/disable [post]
func (c *WorkspaceController) DisableInvitation(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	if err := c.Service.DisableWorkspaceInvitation(r.Context(), userID, r.PathValue("inviteID")); err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, map[string]string{"status": "disabled"})
}

// ListMembers godoc
// @Summary List workspace members
// @Description Cursor-paginated list of memberships, newest first. Pass next_cursor to fetch the following page and sync_token to fetch only records changed since a previous response. Requires Bearer token.
// @Tags workspaces
// @Produce json
// @Security BearerAuth
// @Param workspaceID path string true "Workspace ID"
// @Param limit query int false "Page size (default 20, max 100)"
// @Param cursor query string false "Opaque cursor from a previous response"
// @Param sync_token query string false "Opaque sync token from a previous response"
// @Success 200 {object} helpers.APIResponse "data contains items, has_more, next_cursor, sync_token"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /workspaces/{workspaceID}/members [get]
func (c *WorkspaceController) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	params := helpers.ParsePagination(r)
	page, syncToken, err := c.Service.ListWorkspaceMembers(r.Context(), userID, r.PathValue("workspaceID"), params)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, helpers.NewListResponse(page, syncToken))
}

// ListInvitations godoc
// @Summary List workspace invitations
// @Description Cursor-paginated list of invitations, newest first. Requires Bearer token.
// @Tags invitations
// @Produce json
// @Security BearerAuth
// @Param workspaceID path string true "Workspace ID"
// @Param limit query int false "Page size (default 20, max 100)"
// @Param cursor query string false "Opaque cursor from a previous response"
// @Param sync_token query string false "Opaque sync token from a previous response"
// @Success 200 {object} helpers.APIResponse "data contains items, has_more, next_cursor, sync_token"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /workspaces/{workspaceID}/invitations [get]
func (c *WorkspaceController) ListInvitations(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	params := helpers.ParsePagination(r)
	page, syncToken, err := c.Service.ListWorkspaceInvitations(r.Context(), userID, r.PathValue("workspaceID"), params)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, helpers.NewListResponse(page, syncToken))
}

// RevokeMembership godoc
// @Summary Revoke a membership
// @Description Revoke an INVITED or ACTIVE membership in the caller's workspace. Requires Bearer token.
// @Tags workspaces
// @Produce json
// @Security BearerAuth
// @Param membershipID path string true "Membership ID"
// @Success 200 {object} helpers.APIResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /workspaces/members/{membershipID} [delete]
func (c *WorkspaceController) RevokeMembership(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	if err := c.Service.RevokeWorkspaceMembership(r.Context(), userID, r.PathValue("membershipID")); err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, map[string]string{"status": "revoked"})
}
