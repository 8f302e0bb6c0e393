package controllers

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"

	"gitea.com/go-chi/session"

	"github.com/blogem/memorial-registry/apperr"
	"github.com/blogem/memorial-registry/authenticator"
	"github.com/blogem/memorial-registry/logging"
	"github.com/blogem/memorial-registry/middleware"
	"github.com/blogem/memorial-registry/models"
	"github.com/blogem/memorial-registry/services"
	"github.com/blogem/memorial-registry/userctx"
)

const sessionState = "state"

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthController handles sign-in and sign-out
type AuthController struct {
	services    *services.Services
	adminEmails []string
}

// NewAuthController creates a new auth controller. OIDC users whose email is
// in adminEmails sign in as admins.
func NewAuthController(services *services.Services, adminEmails []string) *AuthController {
	return &AuthController{
		services:    services,
		adminEmails: adminEmails,
	}
}

// Login handles POST /login with a JSON or form encoded username and password
func (ac *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "application/json" {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	} else {
		req.Username = r.FormValue("username")
		req.Password = r.FormValue("password")
	}

	actor, err := ac.services.Auth.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := signIn(w, r, actor); err != nil {
		writeError(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Info("user signed in", "user", actor.DisplayName(), "method", "password")
	writeJSON(w, r, http.StatusOK, actor)
}

// Logout handles POST /logout
func (ac *AuthController) Logout(w http.ResponseWriter, r *http.Request) {
	sess := session.GetSession(r)
	sess.Delete(middleware.SessionUserID)
	sess.Delete(middleware.SessionUserName)
	sess.Delete(middleware.SessionUserRole)

	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /me and returns the signed-in actor
func (ac *AuthController) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := userctx.GetActor(r.Context())
	if !ok {
		writeError(w, r, apperr.Unauthorized("authentication required"))
		return
	}
	writeJSON(w, r, http.StatusOK, actor)
}

// OIDCLogin initiates the OpenID Connect authentication process
func (ac *AuthController) OIDCLogin(auth authenticator.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Generate random state
		state, err := generateRandomState()
		if err != nil {
			writeError(w, r, err)
			return
		}

		// Save the state in the session to validate in callback
		sess := session.GetSession(r)
		sess.Set(sessionState, state)

		http.Redirect(w, r, auth.GetAuthURL(state), http.StatusTemporaryRedirect)
	}
}

// Callback handles the redirect back from the identity provider
func (ac *AuthController) Callback(auth authenticator.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := session.GetSession(r)

		// Verify state
		storedState, _ := sess.Get(sessionState).(string)
		if storedState == "" || r.URL.Query().Get("state") != storedState {
			writeError(w, r, apperr.Unauthorized("invalid state parameter"))
			return
		}
		sess.Delete(sessionState)

		// Exchange the code for a token
		token, err := auth.ExchangeCode(r.Context(), r.URL.Query().Get("code"))
		if err != nil {
			writeError(w, r, &apperr.Error{Kind: apperr.KindUnauthorized, Message: "failed to exchange authorization code", Err: err})
			return
		}

		claims, err := auth.GetClaims(r.Context(), token)
		if err != nil {
			writeError(w, r, &apperr.Error{Kind: apperr.KindUnauthorized, Message: "failed to verify ID token", Err: err})
			return
		}

		actor, err := services.ActorFromClaims(claims, ac.adminEmails)
		if err != nil {
			writeError(w, r, err)
			return
		}

		if err := signIn(w, r, actor); err != nil {
			writeError(w, r, err)
			return
		}
		logging.FromContext(r.Context()).Info("user signed in", "user", actor.DisplayName(), "method", "oidc", "role", actor.Role)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// signIn moves the caller to a fresh session id before storing the actor,
// so an id handed out before authentication never carries a role.
func signIn(w http.ResponseWriter, r *http.Request, actor models.Actor) error {
	sess, err := session.GetSession(r).RegenerateID(w, r)
	if err != nil {
		return fmt.Errorf("failed to regenerate session: %w", err)
	}
	sess.Set(middleware.SessionUserID, actor.ID)
	sess.Set(middleware.SessionUserName, actor.Name)
	sess.Set(middleware.SessionUserRole, actor.Role)
	return nil
}

// generateRandomState generates a random state value for CSRF protection
func generateRandomState() (string, error) {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
