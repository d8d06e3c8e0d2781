package tasks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/medtechbot/internal/config"
	"github.com/edgard/medtechbot/internal/database"
)

type fakeRedeliverer struct {
	limit     int
	attempted int
	delivered int
	err       error
}

func (f *fakeRedeliverer) Redeliver(_ context.Context, limit int) (int, int, error) {
	f.limit = limit
	return f.attempted, f.delivered, f.err
}

func newDeps(t *testing.T, router Redeliverer) TaskDeps {
	t.Helper()
	db, err := database.NewDB(database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return TaskDeps{
		Logger: log,
		Store:  database.NewStore(db, log),
		Router: router,
		Config: &config.Config{Delivery: config.DeliveryConfig{BatchSize: 25}},
	}
}

func TestRegisterAllTasks(t *testing.T) {
	t.Parallel()

	registered := RegisterAllTasks(newDeps(t, &fakeRedeliverer{}))
	assert.Len(t, registered, 2)
	for name := range config.DefaultTasks {
		assert.Contains(t, registered, name)
	}
}

func TestRequestRedeliveryTask(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		router  *fakeRedeliverer
		wantErr bool
	}{
		{name: "nothing pending", router: &fakeRedeliverer{}},
		{name: "partial", router: &fakeRedeliverer{attempted: 3, delivered: 2}},
		{name: "journal error", router: &fakeRedeliverer{err: errors.New("db locked")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			task := newRequestRedeliveryTask(newDeps(t, tt.router))

			err := task(context.Background())
			if tt.wantErr {
				assert.ErrorIs(t, err, tt.router.err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, 25, tt.router.limit)
		})
	}
}

func TestSQLMaintenanceTask(t *testing.T) {
	t.Parallel()
	task := newSQLMaintenanceTask(newDeps(t, &fakeRedeliverer{}))

	require.NoError(t, task(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, task(ctx))
}
