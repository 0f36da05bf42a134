package repo

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Skotchmaster/taskpilot/internal/models"
)

func newPostgresRepo(t *testing.T) *GormRepo {
	t.Helper()

	dsn := os.Getenv("TASKPILOT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TASKPILOT_TEST_DATABASE_URL is required for integration tests")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	t.Cleanup(func() {
		require.NoError(t, db.Exec("TRUNCATE TABLE documents, tasks, users CASCADE").Error)
	})
	return New(db, 3*time.Second)
}

func TestPostgres_SwapRefreshTokenIsAtomic(t *testing.T) {
	r := newPostgresRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "racer")
	require.NoError(t, r.SetRefreshToken(ctx, u.ID, "seed"))

	const workers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := r.SwapRefreshToken(ctx, u.ID, "seed", "next-"+string(rune('a'+i)))
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	stored := storedToken(t, r, u.ID)
	require.NotNil(t, stored)
	assert.NotEqual(t, "seed", *stored)
}

func TestPostgres_DuplicateUserIsConflict(t *testing.T) {
	r := newPostgresRepo(t)
	seedUser(t, r, "dup")

	err := r.CreateUser(context.Background(), &models.User{
		Username: "dup", Email: "other@example.com", FullName: "x", PasswordHash: "h", Role: models.RoleUser,
	})
	assert.ErrorIs(t, err, ErrConflict)
}
