package repo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/taskpilot/internal/models"
	"github.com/Skotchmaster/taskpilot/internal/testutil"
)

func newTestRepo(t *testing.T) *GormRepo {
	t.Helper()
	return New(testutil.InitTestDB(t), time.Second)
}

func seedUser(t *testing.T, r *GormRepo, username string) *models.User {
	t.Helper()
	u := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		FullName:     "User " + username,
		PasswordHash: "hash",
		Role:         models.RoleUser,
	}
	require.NoError(t, r.CreateUser(context.Background(), u))
	return u
}

func storedToken(t *testing.T, r *GormRepo, id uuid.UUID) *string {
	t.Helper()
	u, err := r.GetUserByID(context.Background(), id)
	require.NoError(t, err)
	return u.RefreshToken
}

func TestFindByLogin_UsernameOrEmail(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "alice")

	byName, err := r.FindByLogin(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	byEmail, err := r.FindByLogin(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	_, err = r.FindByLogin(ctx, "bob")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserExists(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, r, "alice")

	ok, err := r.UserExists(ctx, "alice", "other@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.UserExists(ctx, "bob", "bob@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetRefreshToken_Overwrites(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "alice")

	assert.Nil(t, storedToken(t, r, u.ID))

	require.NoError(t, r.SetRefreshToken(ctx, u.ID, "t1"))
	require.NoError(t, r.SetRefreshToken(ctx, u.ID, "t2"))
	got := storedToken(t, r, u.ID)
	require.NotNil(t, got)
	assert.Equal(t, "t2", *got)

	assert.ErrorIs(t, r.SetRefreshToken(ctx, uuid.New(), "t3"), ErrNotFound)
}

func TestSwapRefreshToken_CompareAndSet(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "alice")
	require.NoError(t, r.SetRefreshToken(ctx, u.ID, "t1"))

	ok, err := r.SwapRefreshToken(ctx, u.ID, "t1", "t2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.SwapRefreshToken(ctx, u.ID, "t1", "t3")
	require.NoError(t, err)
	assert.False(t, ok, "stale value must not swap")

	got := storedToken(t, r, u.ID)
	require.NotNil(t, got)
	assert.Equal(t, "t2", *got)
}

func TestSwapRefreshToken_NullStoredNeverMatches(t *testing.T) {
	r := newTestRepo(t)
	u := seedUser(t, r, "alice")

	ok, err := r.SwapRefreshToken(context.Background(), u.ID, "", "t1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClearRefreshToken_Idempotent(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "alice")
	require.NoError(t, r.SetRefreshToken(ctx, u.ID, "t1"))

	require.NoError(t, r.ClearRefreshToken(ctx, u.ID))
	assert.Nil(t, storedToken(t, r, u.ID))
	require.NoError(t, r.ClearRefreshToken(ctx, u.ID))
	require.NoError(t, r.ClearRefreshToken(ctx, uuid.New()))
}

func TestUpdateAndDeleteUser(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "alice")

	updated, err := r.UpdateUser(ctx, u.ID, map[string]any{"full_name": "Alice A."})
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", updated.FullName)

	_, err = r.UpdateUser(ctx, uuid.New(), map[string]any{"full_name": "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, r.DeleteUser(ctx, u.ID))
	assert.ErrorIs(t, r.DeleteUser(ctx, u.ID), ErrNotFound)
}

func TestListUsers_SearchAndPaging(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, r, "alice")
	seedUser(t, r, "alina")
	seedUser(t, r, "bob")

	total, items, err := r.ListUsers(ctx, UserFilter{Search: "ali", SortBy: "username", SortOrder: "asc", Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, items, 1)
	assert.Equal(t, "alice", items[0].Username)
}

func newTask(owner uuid.UUID, title, status, priority string) *models.Task {
	return &models.Task{
		Title:       title,
		Description: "desc " + title,
		Status:      status,
		Priority:    priority,
		DueDate:     time.Now().Add(24 * time.Hour),
		AssignedTo:  owner,
	}
}

func TestTasks_CRUDAndFilter(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	alice := seedUser(t, r, "alice")
	bob := seedUser(t, r, "bob")

	t1, err := r.CreateTask(ctx, newTask(alice.ID, "Write report", models.StatusPending, models.PriorityHigh))
	require.NoError(t, err)
	require.NotNil(t, t1.Assignee)
	assert.Equal(t, "alice", t1.Assignee.Username)

	_, err = r.CreateTask(ctx, newTask(alice.ID, "Review PR", models.StatusCompleted, models.PriorityLow))
	require.NoError(t, err)
	_, err = r.CreateTask(ctx, newTask(bob.ID, "Deploy", models.StatusInProgress, models.PriorityHigh))
	require.NoError(t, err)

	total, items, err := r.ListTasks(ctx, TaskFilter{AssignedTo: &alice.ID, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, items, 2)

	total, _, err = r.ListTasks(ctx, TaskFilter{Priority: models.PriorityHigh, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	total, items, err = r.ListTasks(ctx, TaskFilter{Search: "REPORT", Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, t1.ID, items[0].ID)

	updated, err := r.UpdateTask(ctx, t1.ID, map[string]any{"status": models.StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, updated.Status)

	require.NoError(t, r.DeleteTask(ctx, t1.ID))
	_, err = r.GetTask(ctx, t1.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, r.DeleteTask(ctx, t1.ID), ErrNotFound)
}

func TestTaskStats(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	alice := seedUser(t, r, "alice")
	bob := seedUser(t, r, "bob")

	for _, tk := range []*models.Task{
		newTask(alice.ID, "a", models.StatusPending, models.PriorityHigh),
		newTask(alice.ID, "b", models.StatusInProgress, models.PriorityMedium),
		newTask(alice.ID, "c", models.StatusCompleted, models.PriorityMedium),
		newTask(bob.ID, "d", models.StatusPending, models.PriorityLow),
	} {
		_, err := r.CreateTask(ctx, tk)
		require.NoError(t, err)
	}

	all, err := r.TaskStats(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, TaskStats{Total: 4, Pending: 2, InProgress: 1, Completed: 1, HighPriority: 1, MediumPriority: 2, LowPriority: 1}, *all)

	mine, err := r.TaskStats(ctx, &alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, mine.Total)
	assert.EqualValues(t, 1, mine.Pending)

	none, err := r.TaskStats(ctx, ptr(uuid.New()))
	require.NoError(t, err)
	assert.Equal(t, TaskStats{}, *none)
}

func TestDocuments(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	alice := seedUser(t, r, "alice")
	task, err := r.CreateTask(ctx, newTask(alice.ID, "a", models.StatusPending, models.PriorityHigh))
	require.NoError(t, err)

	doc := &models.Document{TaskID: task.ID, Key: "tasks/a/doc.pdf", Name: "doc.pdf", UploadedBy: alice.ID}
	require.NoError(t, r.AddDocument(ctx, doc))

	docs, err := r.ListDocuments(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	got, err := r.GetDocument(ctx, task.ID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "doc.pdf", got.Name)

	_, err = r.GetDocument(ctx, uuid.New(), doc.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	reloaded, err := r.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, reloaded.Documents, 1)

	require.NoError(t, r.DeleteDocument(ctx, task.ID, doc.ID))
	assert.ErrorIs(t, r.DeleteDocument(ctx, task.ID, doc.ID), ErrNotFound)
}

func ptr[T any](v T) *T { return &v }
