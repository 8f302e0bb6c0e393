package services

import (
	"context"
	"errors"
	"slices"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/blogem/memorial-registry/apperr"
	"github.com/blogem/memorial-registry/authenticator"
	"github.com/blogem/memorial-registry/models"
	"github.com/blogem/memorial-registry/repositories"
)

const minPasswordLength = 8

// AuthService interface defines local account authentication
type AuthService interface {
	Authenticate(ctx context.Context, username, password string) (models.Actor, error)
	CreateUser(ctx context.Context, username, password, role string) (*models.User, error)
}

type authService struct {
	users repositories.UserRepository
	cost  int
}

// NewAuthService creates a new auth service. A cost of 0 uses bcrypt.DefaultCost.
func NewAuthService(users repositories.UserRepository, cost int) AuthService {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &authService{users: users, cost: cost}
}

// Authenticate checks the password against the stored hash. Unknown users
// and wrong passwords fail identically.
func (s *authService) Authenticate(ctx context.Context, username, password string) (models.Actor, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return models.Actor{}, apperr.Unauthorized("invalid username or password")
		}
		return models.Actor{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.Actor{}, apperr.Unauthorized("invalid username or password")
	}
	return user.Actor(), nil
}

// CreateUser registers a local account with a bcrypt-hashed password
func (s *authService) CreateUser(ctx context.Context, username, password, role string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperr.Validation("username is required")
	}
	if len(password) < minPasswordLength {
		return nil, apperr.Validation("password must be at least 8 characters")
	}
	if role != models.RoleAdmin && role != models.RoleViewer {
		return nil, apperr.Validation("role must be admin or viewer")
	}

	_, err := s.users.GetByUsername(ctx, username)
	if err == nil {
		return nil, apperr.Validation("username already exists")
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}

	user := &models.User{Username: username, PasswordHash: string(hash), Role: role}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ActorFromClaims builds the actor for an OpenID Connect login. A verified
// email listed in adminEmails gets the admin role, everyone else is a viewer.
func ActorFromClaims(claims authenticator.Claims, adminEmails []string) (models.Actor, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return models.Actor{}, apperr.Unauthorized("id token has no subject")
	}

	actor := models.Actor{ID: sub, Role: models.RoleViewer}

	// Try to get nickname, fallback to name, then email, then sub
	email, _ := claims["email"].(string)
	for _, key := range []string{"nickname", "name", "email"} {
		if v, ok := claims[key].(string); ok && v != "" {
			actor.Name = v
			break
		}
	}

	if email != "" && emailVerified(claims) && slices.ContainsFunc(adminEmails, func(e string) bool {
		return strings.EqualFold(e, email)
	}) {
		actor.Role = models.RoleAdmin
	}
	return actor, nil
}

// emailVerified accepts the boolean claim and the "true" string some
// providers send instead.
func emailVerified(claims authenticator.Claims) bool {
	switch v := claims["email_verified"].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}
