//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/geocoder89/attendhub/internal/db"
	"github.com/geocoder89/attendhub/internal/domain/event"
	"github.com/geocoder89/attendhub/internal/domain/user"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupDB uses TEST_DATABASE_URL when set, otherwise a throwaway container.
func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		ctr, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("attendhub_test"),
			tcpostgres.WithUsername("attendhub"),
			tcpostgres.WithPassword("attendhub-test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		require.NoError(t, err, "failed to start postgres container")
		t.Cleanup(func() {
			if err := testcontainers.TerminateContainer(ctr); err != nil {
				t.Logf("failed to terminate postgres container: %v", err)
			}
		})

		dbURL, err = ctr.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	require.NoError(t, db.MigrateUp(dbURL))

	pool, err := db.NewPool(ctx, dbURL, db.PoolConfig{MaxConns: 5})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE event_attendants, events, users`)
	require.NoError(t, err)

	return pool
}

func TestPostgres_UsersAndEvents(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()

	users := NewUsersRepo(pool, nil)
	events := NewEventsRepo(pool, nil)

	u, err := users.Create(ctx, user.NewUser{UserName: "ana", Email: "ana@example.com", PasswordHash: "h"})
	require.NoError(t, err)
	assert.Equal(t, user.RoleUser, u.Role)

	_, err = users.Create(ctx, user.NewUser{UserName: "ana", Email: "other@example.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, user.ErrUserNameTaken)

	e, err := events.Create(ctx, event.NewEvent{
		Title:       "Launch",
		Description: "d",
		Date:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		CreatedBy:   &u.ID,
	})
	require.NoError(t, err)

	require.NoError(t, events.AddAttendant(ctx, e.ID, u.ID))
	assert.ErrorIs(t, events.AddAttendant(ctx, e.ID, u.ID), event.ErrAlreadyAttending)

	v, err := events.GetByID(ctx, e.ID)
	require.NoError(t, err)
	require.NotNil(t, v.CreatedBy)
	assert.Equal(t, "ana", v.CreatedBy.UserName)
	assert.Equal(t, []event.UserRef{{ID: u.ID, UserName: "ana"}}, v.Attendants)

	got, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{e.ID}, got.AttendingEvents)

	list, err := users.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []user.EventRef{{ID: e.ID, Title: "Launch"}}, list[0].AttendingEvents)

	detail, err := users.GetDetail(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, detail.AttendingEvents, 1)
	assert.Equal(t, []string{u.ID}, detail.AttendingEvents[0].Attendants)

	title := "Relaunch"
	updated, err := events.Update(ctx, e.ID, event.Patch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Relaunch", updated.Title)
	assert.Equal(t, "d", updated.Description)

	view, err := events.RemoveAttendant(ctx, e.ID, u.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Attendants)

	_, err = events.RemoveAttendant(ctx, e.ID, u.ID)
	assert.ErrorIs(t, err, event.ErrNotAttending)
}

func TestPostgres_DeleteCascades(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()

	users := NewUsersRepo(pool, nil)
	events := NewEventsRepo(pool, nil)

	u, err := users.Create(ctx, user.NewUser{UserName: "bo", Email: "bo@example.com", PasswordHash: "h"})
	require.NoError(t, err)

	e1, err := events.Create(ctx, event.NewEvent{Title: "a", Description: "d", Date: time.Now(), CreatedBy: &u.ID})
	require.NoError(t, err)
	e2, err := events.Create(ctx, event.NewEvent{Title: "b", Description: "d", Date: time.Now()})
	require.NoError(t, err)

	require.NoError(t, events.AddAttendant(ctx, e1.ID, u.ID))
	require.NoError(t, events.AddAttendant(ctx, e2.ID, u.ID))

	removed, err := events.Delete(ctx, e2.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{u.ID}, removed.Attendants)

	got, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{e1.ID}, got.AttendingEvents)

	_, err = users.Delete(ctx, u.ID)
	require.NoError(t, err)

	left, err := events.Get(ctx, e1.ID)
	require.NoError(t, err)
	assert.Empty(t, left.Attendants)
	assert.Nil(t, left.CreatedBy)
}
