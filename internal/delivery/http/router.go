package http

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"launchline/internal/delivery/http/controllers"
)

// Middleware wraps a handler func, e.g. to require authentication.
type Middleware func(http.HandlerFunc) http.HandlerFunc

// NewRouter initializes the HTTP router with all application routes.
func NewRouter(
	authController *controllers.AuthController,
	workspaceController *controllers.WorkspaceController,
	requireAuth Middleware,
) *http.ServeMux {
	mux := http.NewServeMux()

	// Auth
	mux.HandleFunc("POST /auth/request-code", authController.RequestLoginCode)
	mux.HandleFunc("POST /auth/verify-code", authController.VerifyLoginCode)
	mux.HandleFunc("POST /auth/signup", authController.SignUp)
	mux.HandleFunc("POST /auth/login", authController.Login)

	// Users
	mux.HandleFunc("GET /users/me", requireAuth(authController.GetMe))
	mux.HandleFunc("PATCH /users/me", requireAuth(authController.UpdateMe))

	// Workspaces
	mux.HandleFunc("POST /workspaces", requireAuth(workspaceController.CreateWorkspace))
	mux.HandleFunc("GET /workspaces/me", requireAuth(workspaceController.GetMyWorkspace))
	mux.HandleFunc("DELETE /workspaces/{workspaceID}", requireAuth(workspaceController.DeactivateWorkspace))
	mux.HandleFunc("GET /workspaces/{workspaceID}/members", requireAuth(workspaceController.ListMembers))
	mux.HandleFunc("GET /workspaces/{workspaceID}/invitations", requireAuth(workspaceController.ListInvitations))
	mux.HandleFunc("DELETE /workspaces/members/{membershipID}", requireAuth(workspaceController.RevokeMembership))

	// Invitations
	mux.HandleFunc("POST /workspaces/invitations", requireAuth(workspaceController.CreateInvitation))
	mux.HandleFunc("POST /workspaces/invitations/{inviteID}/disable", requireAuth(workspaceController.DisableInvitation))
	// Public: token is the credential.
	mux.HandleFunc("GET /invitations/{token}", workspaceController.GetInvitation)
	mux.HandleFunc("POST /invitations/{token}/redeem", workspaceController.RedeemInvitation)

	// Health
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}
