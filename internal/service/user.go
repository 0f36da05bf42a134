package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/taskpilot/internal/authz"
	"github.com/Skotchmaster/taskpilot/internal/models"
	"github.com/Skotchmaster/taskpilot/internal/mykafka"
	"github.com/Skotchmaster/taskpilot/internal/repo"
	"github.com/Skotchmaster/taskpilot/pkg/logging"
)

type UserStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListUsers(ctx context.Context, f repo.UserFilter) (int64, []models.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, updates map[string]any) (*models.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

type UserService struct {
	Store  UserStore
	Events mykafka.Publisher
}

type UserList struct {
	Users      []models.User `json:"users"`
	Pagination Pagination    `json:"pagination"`
}

type UserUpdate struct {
	Username *string
	Email    *string
	FullName *string
	Role     *string
}

func (s *UserService) List(ctx context.Context, q PageQuery) (*UserList, error) {
	if _, ok := authz.FromContext(ctx); !ok {
		return nil, authz.ErrForbidden
	}
	page, offset, limit := q.bounds()
	total, users, err := s.Store.ListUsers(ctx, repo.UserFilter{
		Search:    q.Search,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
		Offset:    offset,
		Limit:     limit,
	})
	if err != nil {
		return nil, storeErr("list users", err)
	}
	return &UserList{Users: users, Pagination: newPagination(page, limit, total)}, nil
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if _, ok := authz.FromContext(ctx); !ok {
		return nil, authz.ErrForbidden
	}
	u, err := s.Store.GetUserByID(ctx, id)
	if err != nil {
		return nil, storeErr("get user", err)
	}
	return u, nil
}

// Update edits a profile. Owners may edit their own profile; only admins may
// change a role.
func (s *UserService) Update(ctx context.Context, id uuid.UUID, in UserUpdate) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "user.update", "target_id", id.String())

	if err := authz.Check(ctx, id); err != nil {
		l.Warn("update_denied", "status", 403)
		return nil, err
	}
	if _, err := s.Store.GetUserByID(ctx, id); err != nil {
		return nil, storeErr("update user", err)
	}

	updates := map[string]any{}
	if in.FullName != nil && strings.TrimSpace(*in.FullName) != "" {
		updates["full_name"] = strings.TrimSpace(*in.FullName)
	}
	if in.Username != nil && strings.TrimSpace(*in.Username) != "" {
		username := strings.ToLower(strings.TrimSpace(*in.Username))
		if err := validateUsername(username); err != nil {
			l.Warn("update_failed", "status", 400, "error", err)
			return nil, err
		}
		updates["username"] = username
	}
	if in.Email != nil && strings.TrimSpace(*in.Email) != "" {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if err := validateEmail(email); err != nil {
			l.Warn("update_failed", "status", 400, "error", err)
			return nil, err
		}
		updates["email"] = email
	}
	if in.Role != nil && *in.Role != "" {
		if err := authz.CheckAdmin(ctx); err != nil {
			l.Warn("update_denied", "status", 403, "reason", "role change by non-admin")
			return nil, err
		}
		if *in.Role != models.RoleUser && *in.Role != models.RoleAdmin {
			return nil, validation("unknown role %q", *in.Role)
		}
		updates["role"] = *in.Role
	}

	u, err := s.Store.UpdateUser(ctx, id, updates)
	if err != nil {
		return nil, storeErr("update user", err)
	}
	publish(ctx, s.Events, mykafka.TopicUserEvents, id.String(), mykafka.UserEvent{
		Type: mykafka.UserUpdated, UserID: id, Username: u.Username, At: time.Now().UTC(),
	})
	return u, nil
}

func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	l := logging.FromContext(ctx).With("svc", "user.delete", "target_id", id.String())

	if err := authz.CheckAdmin(ctx); err != nil {
		l.Warn("delete_denied", "status", 403)
		return err
	}
	if err := s.Store.DeleteUser(ctx, id); err != nil {
		return storeErr("delete user", err)
	}
	publish(ctx, s.Events, mykafka.TopicUserEvents, id.String(), mykafka.UserEvent{
		Type: mykafka.UserDeleted, UserID: id, At: time.Now().UTC(),
	})
	l.Info("user_deleted")
	return nil
}
