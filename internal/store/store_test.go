package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todoweb/internal/model"
	"github.com/nhle/todoweb/internal/store"
	"github.com/nhle/todoweb/tests/testutil"
)

func TestCreateGuestSession_IdempotentPerToken(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	token := uuid.NewString()

	first, err := s.CreateGuestSession(ctx, token, model.User{Email: "guest1", PasswordHash: "h"})
	require.NoError(t, err)

	second, err := s.CreateGuestSession(ctx, token, model.User{Email: "guest2", PasswordHash: "h"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "guest1", second.Email)

	_, err = s.GetUserByEmail(ctx, "guest2")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEnsureDefaultPage_CreatesOnce(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	user, _ := testutil.NewGuest(t, s)

	page, created, err := s.EnsureDefaultPage(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, model.DefaultPageName, page.Name)

	again, created, err := s.EnsureDefaultPage(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, page.ID, again.ID)

	pages, err := s.GetPages(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, pages, 1)
}

func TestCreatePage_DuplicateNameConflicts(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	alice, _ := testutil.NewGuest(t, s)
	bob, _ := testutil.NewGuest(t, s)

	_, err := s.CreatePage(ctx, model.Page{UserID: alice.ID, Name: "work"})
	require.NoError(t, err)

	_, err = s.CreatePage(ctx, model.Page{UserID: alice.ID, Name: "work"})
	assert.ErrorIs(t, err, store.ErrConflict)

	// Names are only unique per user.
	_, err = s.CreatePage(ctx, model.Page{UserID: bob.ID, Name: "work"})
	assert.NoError(t, err)
}

func TestSubTasks_OrderAndExactDeletion(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	user, _ := testutil.NewGuest(t, s)

	task, err := s.CreateTask(ctx, model.Task{UserID: user.ID, Text: "shopping"})
	require.NoError(t, err)

	for _, text := range []string{"egg", "eggs", "bread"} {
		_, err := s.AddSubTask(ctx, model.SubTask{TaskID: task.ID, Text: text})
		require.NoError(t, err)
	}

	got, err := s.GetTaskByID(ctx, user.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "egg, eggs, bread", got.SmallTask())

	require.NoError(t, s.DeleteSubTaskByText(ctx, task.ID, "egg"))

	got, err = s.GetTaskByID(ctx, user.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "eggs, bread", got.SmallTask())

	err = s.DeleteSubTaskByText(ctx, task.ID, "egg")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.DeleteSubTask(ctx, task.ID, got.SubTasks[1].ID))
	got, err = s.GetTaskByID(ctx, user.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "eggs", got.SmallTask())
}

func TestCompleteTask_MovesRowAndConflictsPerUser(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	alice, _ := testutil.NewGuest(t, s)
	bob, _ := testutil.NewGuest(t, s)

	first, err := s.CreateTask(ctx, model.Task{UserID: alice.ID, Text: "Buy milk"})
	require.NoError(t, err)
	_, err = s.AddSubTask(ctx, model.SubTask{TaskID: first.ID, Text: "oat"})
	require.NoError(t, err)

	done, err := s.CompleteTask(ctx, alice.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", done.Text)

	_, err = s.GetTaskByID(ctx, alice.ID, first.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	subs, err := s.GetSubTasks(ctx, first.ID)
	require.NoError(t, err)
	assert.Empty(t, subs)

	// Same text again for the same user collides and leaves the task alone.
	second, err := s.CreateTask(ctx, model.Task{UserID: alice.ID, Text: "Buy milk"})
	require.NoError(t, err)
	_, err = s.CompleteTask(ctx, alice.ID, second.ID)
	assert.ErrorIs(t, err, store.ErrConflict)
	_, err = s.GetTaskByID(ctx, alice.ID, second.ID)
	assert.NoError(t, err)

	// Another user completing the same text is fine.
	bobs, err := s.CreateTask(ctx, model.Task{UserID: bob.ID, Text: "Buy milk"})
	require.NoError(t, err)
	_, err = s.CompleteTask(ctx, bob.ID, bobs.ID)
	assert.NoError(t, err)
}

func TestTasks_ScopedToOwner(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	alice, _ := testutil.NewGuest(t, s)
	bob, _ := testutil.NewGuest(t, s)

	task, err := s.CreateTask(ctx, model.Task{UserID: alice.ID, Text: "secret"})
	require.NoError(t, err)

	_, err = s.GetTaskByID(ctx, bob.ID, task.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.DeleteTask(ctx, bob.ID, task.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.CompleteTask(ctx, bob.ID, task.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetTasks_FiltersByPage(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	user, _ := testutil.NewGuest(t, s)

	home, _, err := s.EnsureDefaultPage(ctx, user.ID)
	require.NoError(t, err)
	work, err := s.CreatePage(ctx, model.Page{UserID: user.ID, Name: "work"})
	require.NoError(t, err)

	_, err = s.CreateTask(ctx, model.Task{UserID: user.ID, PageID: &home.ID, Text: "dishes"})
	require.NoError(t, err)
	_, err = s.CreateTask(ctx, model.Task{UserID: user.ID, PageID: &work.ID, Text: "report"})
	require.NoError(t, err)

	all, err := s.GetTasks(ctx, store.TaskFilter{UserID: user.ID})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyWork, err := s.GetTasks(ctx, store.TaskFilter{UserID: user.ID, PageID: &work.ID})
	require.NoError(t, err)
	require.Len(t, onlyWork, 1)
	assert.Equal(t, "report", onlyWork[0].Text)
}

func TestFindTaskByText_FirstMatchWins(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	user, _ := testutil.NewGuest(t, s)

	first, err := s.CreateTask(ctx, model.Task{UserID: user.ID, Text: "same"})
	require.NoError(t, err)
	_, err = s.CreateTask(ctx, model.Task{UserID: user.ID, Text: "same"})
	require.NoError(t, err)

	got, err := s.FindTaskByText(ctx, user.ID, "same")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	_, err = s.FindTaskByText(ctx, user.ID, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRegisterUser_MigratesGuestRows(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	guest, _ := testutil.NewGuest(t, s)

	page, _, err := s.EnsureDefaultPage(ctx, guest.ID)
	require.NoError(t, err)
	task, err := s.CreateTask(ctx, model.Task{UserID: guest.ID, PageID: &page.ID, Text: "keep me"})
	require.NoError(t, err)
	done, err := s.CreateTask(ctx, model.Task{UserID: guest.ID, PageID: &page.ID, Text: "finished"})
	require.NoError(t, err)
	_, err = s.CompleteTask(ctx, guest.ID, done.ID)
	require.NoError(t, err)

	user, moved, err := s.RegisterUser(ctx,
		model.User{Email: "a@example.com", PasswordHash: "h"}, &guest.ID)
	require.NoError(t, err)
	assert.Equal(t, store.MigrationResult{Tasks: 1, DoneTasks: 1, Pages: 1}, moved)

	got, err := s.GetTaskByID(ctx, user.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "keep me", got.Text)

	guestTasks, err := s.GetTasks(ctx, store.TaskFilter{UserID: guest.ID})
	require.NoError(t, err)
	assert.Empty(t, guestTasks)

	// The guest row itself stays.
	_, err = s.GetUserByID(ctx, guest.ID)
	assert.NoError(t, err)
}

func TestRegisterUser_DuplicateEmail(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_, _, err := s.RegisterUser(ctx, model.User{Email: "a@example.com", PasswordHash: "h"}, nil)
	require.NoError(t, err)

	_, _, err = s.RegisterUser(ctx, model.User{Email: "a@example.com", PasswordHash: "h2"}, nil)
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestSessions_RebindAndFlashes(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	guest, token := testutil.NewGuest(t, s)

	require.NoError(t, s.AppendFlash(ctx, token, "hello"))
	require.NoError(t, s.AppendFlash(ctx, token, "again"))

	user, _, err := s.RegisterUser(ctx, model.User{Email: "b@example.com", PasswordHash: "h"}, &guest.ID)
	require.NoError(t, err)

	newToken := uuid.NewString()
	require.NoError(t, s.RebindSession(ctx, token, newToken, user.ID))

	_, err = s.GetSession(ctx, token)
	assert.ErrorIs(t, err, store.ErrNotFound)

	sess, err := s.GetSession(ctx, newToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, sess.UserID)
	assert.Equal(t, []string{"hello", "again"}, sess.Flashes)

	flashes, err := s.PopFlashes(ctx, newToken)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "again"}, flashes)

	flashes, err = s.PopFlashes(ctx, newToken)
	require.NoError(t, err)
	assert.Empty(t, flashes)

	require.NoError(t, s.DeleteSession(ctx, newToken))
	assert.ErrorIs(t, s.TouchSession(ctx, newToken), store.ErrNotFound)
}

func TestClearDoneTasks_OnlyOwner(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	alice, _ := testutil.NewGuest(t, s)
	bob, _ := testutil.NewGuest(t, s)

	for _, u := range []*model.User{alice, bob} {
		task, err := s.CreateTask(ctx, model.Task{UserID: u.ID, Text: "t"})
		require.NoError(t, err)
		_, err = s.CompleteTask(ctx, u.ID, task.ID)
		require.NoError(t, err)
	}

	n, err := s.ClearDoneTasks(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left, err := s.GetDoneTasks(ctx, store.TaskFilter{UserID: bob.ID})
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestPruneSessions_KeepsUsersAndTheirData(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	guest, guestToken := testutil.NewGuest(t, s)
	_, err := s.CreateTask(ctx, model.Task{UserID: guest.ID, Text: "keep me"})
	require.NoError(t, err)

	member, _, err := s.RegisterUser(ctx, model.User{Email: "me@example.com", PasswordHash: "h"}, nil)
	require.NoError(t, err)
	memberToken := uuid.NewString()
	require.NoError(t, s.RebindSession(ctx, uuid.NewString(), memberToken, member.ID))

	// Everything created so far counts as idle.
	n, err := s.PruneSessions(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for _, tok := range []string{guestToken, memberToken} {
		_, err := s.GetSession(ctx, tok)
		assert.ErrorIs(t, err, store.ErrNotFound)
	}

	kept, err := s.GetUserByID(ctx, guest.ID)
	require.NoError(t, err)
	assert.True(t, kept.IsGuest())
	_, err = s.GetUserByID(ctx, member.ID)
	require.NoError(t, err)

	tasks, err := s.GetTasks(ctx, store.TaskFilter{UserID: guest.ID})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "keep me", tasks[0].Text)
}

func TestPruneSessions_KeepsRecentSessions(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	guest, token := testutil.NewGuest(t, s)

	n, err := s.PruneSessions(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	sess, err := s.GetSession(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, guest.ID, sess.UserID)
}
