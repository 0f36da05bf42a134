package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/Skotchmaster/taskpilot/internal/authz"
	"github.com/Skotchmaster/taskpilot/internal/models"
	"github.com/Skotchmaster/taskpilot/internal/mykafka"
	"github.com/Skotchmaster/taskpilot/internal/storage"
	"github.com/Skotchmaster/taskpilot/pkg/hash"
	"github.com/Skotchmaster/taskpilot/pkg/logging"
	"github.com/Skotchmaster/taskpilot/pkg/tokens"
)

// CredentialStore is the persistence the session lifecycle needs. The refresh
// token column is written only through the three token methods.
type CredentialStore interface {
	FindByLogin(ctx context.Context, identifier string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UserExists(ctx context.Context, username, email string) (bool, error)
	CreateUser(ctx context.Context, u *models.User) error

	SetRefreshToken(ctx context.Context, userID uuid.UUID, token string) error
	SwapRefreshToken(ctx context.Context, userID uuid.UUID, old, next string) (bool, error)
	ClearRefreshToken(ctx context.Context, userID uuid.UUID) error
}

type TokenCodec interface {
	Issue(subject, role string, kind tokens.Kind) (string, time.Time, error)
	Verify(token string, kind tokens.Kind) (*tokens.Claims, error)
}

type AuthService struct {
	Store   CredentialStore
	Tokens  TokenCodec
	Events  mykafka.Publisher
	Objects storage.ObjectStore
}

type Session struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
	User         *models.User
}

type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

type RegisterInput struct {
	Username string
	Email    string
	FullName string
	Password string
	Role     string
	Avatar   *Upload
}

func (s *AuthService) issuePair(u *models.User) (*Session, error) {
	access, accessExp, err := s.Tokens.Issue(u.ID.String(), u.Role, tokens.Access)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, refreshExp, err := s.Tokens.Issue(u.ID.String(), "", tokens.Refresh)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
		User:         u,
	}, nil
}

// dummyHash is compared against on unknown-user logins; it matches no password.
var dummyHash = sync.OnceValue(func() string {
	h, _ := hash.HashPassword(uuid.NewString())
	return h
})

// Login starts a new session, superseding any session the user already had.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*Session, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	if strings.TrimSpace(identifier) == "" || password == "" {
		return nil, validation("username or email and password are required")
	}

	user, err := s.Store.FindByLogin(ctx, identifier)
	if err != nil {
		err = storeErr("login", err)
		if errors.Is(err, ErrNotFound) {
			// Pay the same bcrypt cost as a wrong password.
			hash.CheckPassword(dummyHash(), password)
			l.Warn("login_failed", "status", 401, "reason", "unknown user")
		} else {
			l.Error("login_failed", "error", err)
		}
		return nil, err
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login_failed", "status", 401, "reason", "bad password", "user_id", user.ID.String())
		return nil, ErrInvalidCredentials
	}

	sess, err := s.issuePair(user)
	if err != nil {
		l.Error("login_failed", "status", 500, "error", err)
		return nil, err
	}
	if err := s.Store.SetRefreshToken(ctx, user.ID, sess.RefreshToken); err != nil {
		l.Error("login_failed", "reason", "cannot persist refresh token", "error", err)
		return nil, storeErr("login", err)
	}

	s.publish(ctx, mykafka.TopicUserEvents, user.ID.String(), mykafka.UserEvent{
		Type: mykafka.UserLoggedIn, UserID: user.ID, Username: user.Username, At: time.Now().UTC(),
	})
	l.Info("login_successful", "user_id", user.ID.String())
	return sess, nil
}

// Refresh rotates both tokens. The presented refresh token must still be the
// stored one; the swap is a single conditional update so two concurrent
// refreshes with the same token cannot both win.
func (s *AuthService) Refresh(ctx context.Context, presented string) (*Session, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	if presented == "" {
		l.Warn("refresh_failed", "status", 401, "reason", "missing token")
		return nil, ErrUnauthorized
	}
	claims, err := s.Tokens.Verify(presented, tokens.Refresh)
	if err != nil {
		l.Warn("refresh_failed", "status", 401, "reason", "unverifiable", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		l.Warn("refresh_failed", "status", 401, "reason", "bad subject")
		return nil, ErrUnauthorized
	}

	user, err := s.Store.GetUserByID(ctx, userID)
	if err != nil {
		err = storeErr("refresh", err)
		if errors.Is(err, ErrNotFound) {
			l.Warn("refresh_failed", "status", 401, "reason", "unknown user")
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	sess, err := s.issuePair(user)
	if err != nil {
		l.Error("refresh_failed", "status", 500, "error", err)
		return nil, err
	}

	swapped, err := s.Store.SwapRefreshToken(ctx, userID, presented, sess.RefreshToken)
	if err != nil {
		l.Error("refresh_failed", "reason", "store", "error", err)
		return nil, storeErr("refresh", err)
	}
	if !swapped {
		l.Warn("refresh_failed", "status", 401, "reason", "stale", "user_id", userID.String())
		return nil, ErrTokenStale
	}

	l.Info("refresh_successful", "user_id", userID.String())
	return sess, nil
}

// Logout ends the user's session. It is safe to call repeatedly.
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	l := logging.FromContext(ctx).With("svc", "auth.logout")

	if err := s.Store.ClearRefreshToken(ctx, userID); err != nil {
		l.Error("logout_failed", "error", err)
		return storeErr("logout", err)
	}
	s.publish(ctx, mykafka.TopicUserEvents, userID.String(), mykafka.UserEvent{
		Type: mykafka.UserLoggedOut, UserID: userID, At: time.Now().UTC(),
	})
	l.Info("logout_successful", "user_id", userID.String())
	return nil
}

// Me returns the caller's own profile.
func (s *AuthService) Me(ctx context.Context) (*models.User, error) {
	id, ok := authz.FromContext(ctx)
	if !ok {
		return nil, authz.ErrForbidden
	}
	u, err := s.Store.GetUserByID(ctx, id.ID)
	if err != nil {
		return nil, storeErr("me", err)
	}
	return u, nil
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)

	if err := validateRegistration(in); err != nil {
		l.Warn("register_failed", "status", 400, "error", err)
		return nil, err
	}

	role := in.Role
	switch role {
	case "":
		role = models.RoleUser
	case models.RoleUser:
	case models.RoleAdmin:
		if err := authz.CheckAdmin(ctx); err != nil {
			l.Warn("register_failed", "status", 403, "reason", "admin role requested by non-admin")
			return nil, err
		}
	default:
		return nil, validation("unknown role %q", role)
	}

	exists, err := s.Store.UserExists(ctx, in.Username, in.Email)
	if err != nil {
		return nil, storeErr("register", err)
	}
	if exists {
		l.Warn("register_failed", "status", 409, "reason", "user already exists")
		return nil, fmt.Errorf("user with email or username: %w", ErrConflict)
	}

	pwHash, err := hash.HashPassword(in.Password)
	if err != nil {
		l.Error("register_failed", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		PasswordHash: pwHash,
		Role:         role,
	}

	if in.Avatar != nil && s.Objects != nil {
		key := storage.Key("avatars", in.Avatar.Name)
		if err := s.Objects.Put(ctx, key, in.Avatar.Body, in.Avatar.Size, in.Avatar.ContentType); err != nil {
			l.Error("register_failed", "reason", "avatar upload", "error", err)
			return nil, fmt.Errorf("avatar upload: %w", ErrUnavailable)
		}
		user.Avatar = key
	}

	if err := s.Store.CreateUser(ctx, user); err != nil {
		if user.Avatar != "" {
			_ = s.Objects.Delete(context.WithoutCancel(ctx), user.Avatar)
		}
		return nil, storeErr("register", err)
	}

	s.publish(ctx, mykafka.TopicUserEvents, user.ID.String(), mykafka.UserEvent{
		Type: mykafka.UserRegistered, UserID: user.ID, Username: user.Username, At: time.Now().UTC(),
	})
	l.Info("register_successful", "user_id", user.ID.String())
	return user, nil
}

func (s *AuthService) publish(ctx context.Context, topic, key string, ev any) {
	publish(ctx, s.Events, topic, key, ev)
}

// publish is fire-and-forget: a broker outage never fails the request.
func publish(ctx context.Context, p mykafka.Publisher, topic, key string, ev any) {
	if p == nil {
		return
	}
	if err := p.PublishEvent(ctx, topic, key, ev); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed", "topic", topic, "error", err)
	}
}

func validateRegistration(in RegisterInput) error {
	if in.Username == "" || in.Email == "" || in.FullName == "" || in.Password == "" {
		return validation("all fields are required")
	}
	if err := validateUsername(in.Username); err != nil {
		return err
	}
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	return validatePassword(in.Password)
}

// Usernames never contain '@' and emails always do, so a login identifier
// can match at most one of the two columns.
func validateUsername(username string) error {
	if len(username) < 3 || len(username) > 50 {
		return validation("username must be 3-50 characters")
	}
	if strings.ContainsAny(username, "@ \t") {
		return validation("username must not contain '@' or spaces")
	}
	return nil
}

func validateEmail(email string) error {
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return validation("invalid email address")
	}
	return nil
}

func validatePassword(pw string) error {
	if len(pw) < 8 || len(pw) > hash.MaxPasswordBytes {
		return validation("password must be 8-%d characters long", hash.MaxPasswordBytes)
	}
	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r):
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return validation("password must include an uppercase letter, a lowercase letter, a number and a special character")
	}
	return nil
}
