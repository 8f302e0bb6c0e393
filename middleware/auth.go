package middleware

import (
	"net/http"

	"gitea.com/go-chi/session"

	"github.com/blogem/memorial-registry/models"
	"github.com/blogem/memorial-registry/userctx"
)

// Session keys holding the signed-in actor
const (
	SessionUserID   = "user_id"
	SessionUserName = "user_nickname"
	SessionUserRole = "user_role"
)

// LoadActor puts the signed-in actor, if any, into the request context.
// Requests without a session pass through anonymously; the services decide
// what an anonymous caller may do.
func LoadActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := session.GetSession(r)
		if sess == nil {
			next.ServeHTTP(w, r)
			return
		}

		userID, _ := sess.Get(SessionUserID).(string)
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		name, _ := sess.Get(SessionUserName).(string)
		role, _ := sess.Get(SessionUserRole).(string)
		if role == "" {
			role = models.RoleViewer
		}

		// Add actor to request context for use in services
		ctx := userctx.SetActor(r.Context(), models.Actor{ID: userID, Name: name, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
