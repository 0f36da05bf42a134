package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/taskpilot/internal/authz"
	"github.com/Skotchmaster/taskpilot/internal/models"
	"github.com/Skotchmaster/taskpilot/internal/mykafka"
	"github.com/Skotchmaster/taskpilot/internal/repo"
	"github.com/Skotchmaster/taskpilot/internal/testutil"
	"github.com/Skotchmaster/taskpilot/pkg/tokens"
)

const testPassword = "Passw0rd!"

type recordedEvent struct {
	Topic string
	Key   string
	Event any
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *eventRecorder) PublishEvent(_ context.Context, topic, key string, ev any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Topic: topic, Key: key, Event: ev})
	return nil
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		switch ev := e.Event.(type) {
		case mykafka.UserEvent:
			out = append(out, ev.Type)
		case mykafka.TaskEvent:
			out = append(out, ev.Type)
		}
	}
	return out
}

func newTestCodec(t *testing.T) *tokens.Codec {
	t.Helper()
	c, err := tokens.NewCodec(tokens.Config{
		AccessSecret:  []byte("service-test-access"),
		RefreshSecret: []byte("service-test-refresh"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})
	require.NoError(t, err)
	return c
}

type fixture struct {
	repo   *repo.GormRepo
	codec  *tokens.Codec
	events *eventRecorder
	auth   *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	r := repo.New(testutil.InitTestDB(t), time.Second)
	codec := newTestCodec(t)
	events := &eventRecorder{}
	return &fixture{
		repo:   r,
		codec:  codec,
		events: events,
		auth:   &AuthService{Store: r, Tokens: codec, Events: events},
	}
}

func (f *fixture) seedUser(t *testing.T, username, role string) *models.User {
	t.Helper()
	ctx := context.Background()
	if role == models.RoleAdmin {
		ctx = asAdmin()
	}
	u, err := f.auth.Register(ctx, RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		FullName: "Test " + username,
		Password: testPassword,
		Role:     role,
	})
	require.NoError(t, err)
	return u
}

func asAdmin() context.Context {
	return authz.IntoContext(context.Background(), authz.Identity{ID: uuid.New(), Role: models.RoleAdmin})
}

func as(u *models.User) context.Context {
	return authz.IntoContext(context.Background(), authz.Identity{ID: u.ID, Role: u.Role})
}

func stringsReader(s string) *strings.Reader { return strings.NewReader(s) }
