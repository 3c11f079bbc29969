package janitor

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todoweb/internal/metrics"
	"github.com/nhle/todoweb/internal/model"
	"github.com/nhle/todoweb/internal/store"
	"github.com/nhle/todoweb/tests/testutil"
)

func TestSweep_PrunesIdleSessionsButKeepsGuests(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	guest, token := testutil.NewGuest(t, s)
	_, err := s.CreateTask(ctx, model.Task{UserID: guest.ID, Text: "keep me"})
	require.NoError(t, err)
	m := metrics.New(prometheus.NewRegistry())

	j := New(s, m, nil, time.Hour, time.Minute)
	j.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	n, err := j.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.GetSession(ctx, token)
	assert.ErrorIs(t, err, store.ErrNotFound)

	kept, err := s.GetUserByID(ctx, guest.ID)
	require.NoError(t, err)
	assert.Equal(t, guest.Email, kept.Email)
	tasks, err := s.GetTasks(ctx, store.TaskFilter{UserID: guest.ID})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.SessionsPruned))
	assert.Equal(t, int64(1), j.Status().Pruned)
	assert.NoError(t, j.Status().Error)
}

func TestSweep_KeepsActiveSessions(t *testing.T) {
	s := testutil.NewTestStore(t)
	_, token := testutil.NewGuest(t, s)

	j := New(s, nil, nil, time.Hour, time.Minute)
	n, err := j.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.GetSession(context.Background(), token)
	assert.NoError(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := testutil.NewTestStore(t)
	j := New(s, nil, nil, 0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	require.Eventually(t, func() bool { return !j.Status().LastSweep.IsZero() },
		time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
