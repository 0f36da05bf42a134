package repo

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/Skotchmaster/taskpilot/internal/models"
)

type UserFilter struct {
	Search    string
	SortBy    string
	SortOrder string
	Offset    int
	Limit     int
}

var userSortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"username":  "username",
	"email":     "email",
	"fullName":  "full_name",
}

func (r *GormRepo) CreateUser(ctx context.Context, u *models.User) error {
	db, cancel := r.conn(ctx)
	defer cancel()
	return mapErr("create user", db.Create(u).Error)
}

// FindByLogin looks a user up by username or email.
func (r *GormRepo) FindByLogin(ctx context.Context, identifier string) (*models.User, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	id := strings.ToLower(strings.TrimSpace(identifier))
	var user models.User
	if err := db.Where("username = ? OR email = ?", id, id).First(&user).Error; err != nil {
		return nil, mapErr("find user by login", err)
	}
	return &user, nil
}

func (r *GormRepo) UserExists(ctx context.Context, username, email string) (bool, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var count int64
	if err := db.Model(&models.User{}).
		Where("username = ? OR email = ?", strings.ToLower(username), strings.ToLower(email)).
		Count(&count).Error; err != nil {
		return false, mapErr("user exists", err)
	}
	return count > 0, nil
}

func (r *GormRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var user models.User
	if err := db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, mapErr("get user", err)
	}
	return &user, nil
}

func (r *GormRepo) ListUsers(ctx context.Context, f UserFilter) (int64, []models.User, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	q := db.Model(&models.User{})
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ? OR LOWER(full_name) LIKE ?", like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, mapErr("count users", err)
	}

	items := make([]models.User, 0, f.Limit)
	if err := q.Order(orderClause(userSortColumns, f.SortBy, f.SortOrder, "created_at")).
		Offset(f.Offset).Limit(f.Limit).Find(&items).Error; err != nil {
		return 0, nil, mapErr("list users", err)
	}
	return total, items, nil
}

// UpdateUser applies the non-empty column updates and returns the fresh row.
func (r *GormRepo) UpdateUser(ctx context.Context, id uuid.UUID, updates map[string]any) (*models.User, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	if len(updates) > 0 {
		res := db.Model(&models.User{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, mapErr("update user", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}

	var user models.User
	if err := db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, mapErr("reload user", err)
	}
	return &user, nil
}

func (r *GormRepo) DeleteUser(ctx context.Context, id uuid.UUID) error {
	db, cancel := r.conn(ctx)
	defer cancel()

	res := db.Where("id = ?", id).Delete(&models.User{})
	if res.Error != nil {
		return mapErr("delete user", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func orderClause(columns map[string]string, sortBy, sortOrder, def string) string {
	col, ok := columns[sortBy]
	if !ok {
		col = def
	}
	dir := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		dir = "ASC"
	}
	return col + " " + dir
}
