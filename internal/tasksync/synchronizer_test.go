package tasksync

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"taskboard/internal/auth"
	"taskboard/internal/errs"
	"taskboard/internal/service"
	"taskboard/internal/testutil"
)

var (
	ctx       = context.Background()
	now       = time.Date(2026, 10, 21, 10, 0, 0, 0, time.UTC)
	alice     = service.User{UID: "u1", Email: "alice@example.com"}
	errRemote = fmt.Errorf("%w: backend unavailable", errs.ErrRemote)
)

type recordingNotifier struct {
	mu      sync.Mutex
	created []service.Task
	deleted []service.Task
}

func (n *recordingNotifier) TaskCreated(_ context.Context, _ *service.User, t service.Task) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, t)
}

func (n *recordingNotifier) TaskDeleted(_ context.Context, _ *service.User, t service.Task) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deleted = append(n.deleted, t)
}

func (n *recordingNotifier) counts() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.created), len(n.deleted)
}

type fixture struct {
	sync     *Synchronizer
	store    *testutil.FakeStore
	identity *auth.Provider
	notifier *recordingNotifier
}

func newFixture(t *testing.T, seed ...service.Task) *fixture {
	t.Helper()
	f := &fixture{
		store:    testutil.NewFakeStore(),
		identity: auth.NewProvider(),
		notifier: &recordingNotifier{},
	}
	for _, task := range seed {
		f.store.Put(task)
	}
	f.sync = New(f.store, f.identity,
		WithLogger(zaptest.NewLogger(t)),
		WithNotifier(f.notifier),
	)
	f.sync.SetClock(func() time.Time { return now })
	return f
}

func startedFixture(t *testing.T, seed ...service.Task) *fixture {
	t.Helper()
	f := newFixture(t, seed...)
	f.identity.SignIn(alice)
	require.NoError(t, f.sync.Start(ctx))
	return f
}

func seedTask(id string, age time.Duration, completed bool) service.Task {
	return service.Task{
		ID:        id,
		Title:     "task " + id,
		DueDate:   civil.DateOf(now),
		CreatedAt: now.Add(-age),
		Completed: completed,
		UserID:    alice.UID,
	}
}

func find(tasks []service.Task, id string) (service.Task, bool) {
	for _, t := range tasks {
		if t.ID == id {
			return t, true
		}
	}
	return service.Task{}, false
}

func waitEntered(t *testing.T, store *testutil.FakeStore, method string) {
	t.Helper()
	for {
		select {
		case m := <-store.Entered:
			if m == method {
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s never reached the store", method)
		}
	}
}

func TestMutationsBeforeReady(t *testing.T) {
	f := newFixture(t, seedTask("t1", time.Hour, false))
	task := seedTask("t1", time.Hour, false)

	_, err := f.sync.AddTask(ctx, service.Draft{Title: "x"})
	require.ErrorIs(t, err, errs.ErrUnauthenticated)
	require.ErrorIs(t, f.sync.ToggleTask(ctx, task), errs.ErrUnauthenticated)
	require.ErrorIs(t, f.sync.DeleteTask(ctx, task), errs.ErrUnauthenticated)
	require.ErrorIs(t, f.sync.ToggleTask(ctx, service.Task{}), errs.ErrUnauthenticated)
	require.ErrorIs(t, f.sync.DeleteTask(ctx, service.Task{}), errs.ErrUnauthenticated)

	prompted := false
	_, err = f.sync.ClearAll(ctx, func() bool { prompted = true; return true })
	require.ErrorIs(t, err, errs.ErrUnauthenticated)
	require.False(t, prompted, "confirmation must not be asked before sign-in")
	require.ErrorIs(t, f.sync.Refresh(ctx), errs.ErrUnauthenticated)

	require.Equal(t, 0, f.store.TotalCalls())
}

func TestStart_WaitsForSignIn(t *testing.T) {
	f := newFixture(t, seedTask("t1", time.Hour, false))

	done := make(chan error, 1)
	go func() { done <- f.sync.Start(ctx) }()

	select {
	case <-done:
		t.Fatal("Start returned before sign-in")
	case <-time.After(20 * time.Millisecond):
	}
	require.Equal(t, 0, f.store.Calls("List"))

	f.identity.SignIn(alice)
	require.NoError(t, <-done)
	require.Equal(t, 1, f.sync.AllCount())
}

func TestStart_ContextCancelled(t *testing.T) {
	f := newFixture(t)
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	require.ErrorIs(t, f.sync.Start(cctx), context.Canceled)
}

func TestAddTask_ThenRefreshOrdering(t *testing.T) {
	f := startedFixture(t)

	clock := now
	f.sync.SetClock(func() time.Time { return clock })
	for _, title := range []string{"A", "B", "C"} {
		clock = clock.Add(time.Minute)
		_, err := f.sync.AddTask(ctx, service.Draft{Title: title, DueDate: civil.DateOf(now)})
		require.NoError(t, err)
	}

	titles := func() []string {
		var out []string
		for _, task := range f.sync.View() {
			out = append(out, task.Title)
		}
		return out
	}
	require.Equal(t, []string{"C", "B", "A"}, titles())

	require.NoError(t, f.sync.Refresh(ctx))
	require.Equal(t, []string{"C", "B", "A"}, titles())
}

func TestAddTask_Fields(t *testing.T) {
	f := startedFixture(t)

	got, err := f.sync.AddTask(ctx, service.Draft{Title: "  Buy milk ", City: " Berlin "})
	require.NoError(t, err)
	require.NotEmpty(t, got.ID)
	require.Equal(t, "Buy milk", got.Title)
	require.Equal(t, "Berlin", got.City)
	require.Equal(t, now, got.CreatedAt)
	require.Equal(t, civil.DateOf(now), got.DueDate)
	require.False(t, got.Completed)
	require.Equal(t, alice.UID, got.UserID)

	stored, ok := f.store.Get(got.ID)
	require.True(t, ok)
	require.Equal(t, got.Title, stored.Title)

	created, _ := f.notifier.counts()
	require.Equal(t, 1, created)
}

func TestAddTask_BlankTitle(t *testing.T) {
	f := startedFixture(t)
	_, err := f.sync.AddTask(ctx, service.Draft{Title: "   "})
	require.ErrorIs(t, err, errs.ErrInvalidTask)
	require.Equal(t, 0, f.store.Calls("Create"))
}

func TestAddTask_RemoteFailureLeavesSetUnchanged(t *testing.T) {
	f := startedFixture(t, seedTask("t1", time.Hour, false))
	f.store.CreateErr = errRemote

	_, err := f.sync.AddTask(ctx, service.Draft{Title: "x"})
	require.ErrorIs(t, err, errs.ErrRemote)
	require.Equal(t, 1, f.sync.AllCount())
	require.NotEmpty(t, f.sync.Notice())

	created, _ := f.notifier.counts()
	require.Equal(t, 0, created)
}

func TestToggleTask_Success(t *testing.T) {
	f := startedFixture(t, seedTask("t1", time.Hour, false))

	require.NoError(t, f.sync.ToggleTask(ctx, seedTask("t1", time.Hour, false)))

	local, _ := find(f.sync.View(), "t1")
	require.True(t, local.Completed)
	remote, _ := f.store.Get("t1")
	require.True(t, remote.Completed)
	require.Empty(t, f.sync.Notice())
}

func TestToggleTask_RollbackOnFailure(t *testing.T) {
	f := startedFixture(t, seedTask("t1", time.Hour, false), seedTask("t2", 2*time.Hour, false))
	f.store.UpdateErr = errRemote

	err := f.sync.ToggleTask(ctx, seedTask("t1", time.Hour, false))
	require.ErrorIs(t, err, errs.ErrRemote)

	local, ok := find(f.sync.View(), "t1")
	require.True(t, ok)
	require.False(t, local.Completed)
	require.NotEmpty(t, f.sync.Notice())

	f.sync.DismissNotice()
	require.Empty(t, f.sync.Notice())

	// pending flag was cleared
	f.store.UpdateErr = nil
	require.NoError(t, f.sync.ToggleTask(ctx, local))
	require.Equal(t, 2, f.store.Calls("Update"))
}

func TestToggleTask_NotFoundRemoves(t *testing.T) {
	f := startedFixture(t, seedTask("t1", time.Hour, false))
	f.store.Remove("t1")

	require.NoError(t, f.sync.ToggleTask(ctx, seedTask("t1", time.Hour, false)))
	require.Equal(t, 0, f.sync.AllCount())
	require.Empty(t, f.sync.Notice())
}

func TestToggleTask_Guards(t *testing.T) {
	f := startedFixture(t, seedTask("t1", time.Hour, false))

	require.NoError(t, f.sync.ToggleTask(ctx, service.Task{}))
	require.ErrorIs(t, f.sync.ToggleTask(ctx, seedTask("missing", 0, false)), errs.ErrNotFound)
	require.Equal(t, 0, f.store.Calls("Update"))
}

func TestToggleTask_DuplicateWhilePending(t *testing.T) {
	f := startedFixture(t, seedTask("t1", time.Hour, false))
	f.store.UpdateGate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- f.sync.ToggleTask(ctx, seedTask("t1", time.Hour, false)) }()
	waitEntered(t, f.store, "Update")

	local, _ := find(f.sync.View(), "t1")
	require.True(t, local.Completed, "optimistic flip visible while pending")

	require.NoError(t, f.sync.ToggleTask(ctx, local))

	close(f.store.UpdateGate)
	require.NoError(t, <-done)
	require.Equal(t, 1, f.store.Calls("Update"))
}

func TestDeleteTask_DuplicateSubmission(t *testing.T) {
	f := startedFixture(t, seedTask("t1", time.Hour, false))
	f.store.DeleteGate = make(chan struct{})
	task := seedTask("t1", time.Hour, false)

	done := make(chan error, 1)
	go func() { done <- f.sync.DeleteTask(ctx, task) }()
	waitEntered(t, f.store, "Delete")

	require.Equal(t, 0, f.sync.AllCount(), "optimistic removal visible while pending")
	require.NoError(t, f.sync.DeleteTask(ctx, task))

	close(f.store.DeleteGate)
	require.NoError(t, <-done)
	require.Equal(t, 1, f.store.Calls("Delete"))

	_, deleted := f.notifier.counts()
	require.Equal(t, 1, deleted)
}

func TestDeleteTask_AlreadyGoneRemotely(t *testing.T) {
	f := startedFixture(t, seedTask("t1", time.Hour, false))
	f.store.Remove("t1")

	require.NoError(t, f.sync.DeleteTask(ctx, seedTask("t1", time.Hour, false)))
	require.Equal(t, 0, f.sync.AllCount())
	require.Empty(t, f.sync.Notice())
}

func TestDeleteTask_RollbackRestoresPosition(t *testing.T) {
	f := startedFixture(t,
		seedTask("t1", time.Hour, false),
		seedTask("t2", 2*time.Hour, false),
		seedTask("t3", 3*time.Hour, false),
	)
	f.store.DeleteErr = errRemote

	err := f.sync.DeleteTask(ctx, seedTask("t2", 2*time.Hour, false))
	require.ErrorIs(t, err, errs.ErrRemote)
	require.Equal(t, []string{"t1", "t2", "t3"}, ids(f.sync.View()))
	require.NotEmpty(t, f.sync.Notice())

	_, deleted := f.notifier.counts()
	require.Equal(t, 0, deleted)
}

func TestDeleteTask_QueuesBehindToggle(t *testing.T) {
	f := startedFixture(t, seedTask("t1", time.Hour, false))
	f.store.UpdateGate = make(chan struct{})
	task := seedTask("t1", time.Hour, false)

	toggled := make(chan error, 1)
	go func() { toggled <- f.sync.ToggleTask(ctx, task) }()
	waitEntered(t, f.store, "Update")

	deleted := make(chan error, 1)
	go func() { deleted <- f.sync.DeleteTask(ctx, task) }()

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 0, f.store.Calls("Delete"))

	close(f.store.UpdateGate)
	require.NoError(t, <-toggled)
	require.NoError(t, <-deleted)
	require.Equal(t, 1, f.store.Calls("Delete"))
	require.Equal(t, 0, f.sync.AllCount())
	require.Equal(t, 0, f.store.Len())
}

func TestClearAll_RequiresConfirmation(t *testing.T) {
	f := startedFixture(t, seedTask("t1", time.Hour, false))

	_, err := f.sync.ClearAll(ctx, func() bool { return false })
	require.ErrorIs(t, err, errs.ErrNotConfirmed)
	_, err = f.sync.ClearAll(ctx, nil)
	require.ErrorIs(t, err, errs.ErrNotConfirmed)

	require.Equal(t, 0, f.store.Calls("Delete"))
	require.Equal(t, 1, f.sync.AllCount())
}

func TestClearAll_PartialFailure(t *testing.T) {
	f := startedFixture(t,
		seedTask("t1", time.Hour, false),
		seedTask("t2", 2*time.Hour, false),
		seedTask("t3", 3*time.Hour, false),
	)
	f.store.DeleteErrFor["t2"] = errRemote
	f.store.DeleteErrFor["t3"] = errs.ErrNotFound

	res, err := f.sync.ClearAll(ctx, func() bool { return true })
	require.ErrorIs(t, err, errs.ErrRemote)
	require.Equal(t, 2, res.Deleted)
	require.Equal(t, []string{"t2"}, res.Failed)
	require.Equal(t, []string{"t2"}, ids(f.sync.View()))
	require.NotEmpty(t, f.sync.Notice())
}

func TestClearAll_Success(t *testing.T) {
	var seed []service.Task
	for i := 0; i < 20; i++ {
		seed = append(seed, seedTask(fmt.Sprintf("t%d", i), time.Duration(i)*time.Minute, false))
	}
	f := startedFixture(t, seed...)

	res, err := f.sync.ClearAll(ctx, func() bool { return true })
	require.NoError(t, err)
	require.Equal(t, 20, res.Deleted)
	require.Empty(t, res.Failed)
	require.Equal(t, 0, f.sync.AllCount())
	require.Equal(t, 0, f.store.Len())
}

func TestRefresh_KeepsInFlightToggle(t *testing.T) {
	f := startedFixture(t, seedTask("t1", time.Hour, false))
	f.store.UpdateGate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- f.sync.ToggleTask(ctx, seedTask("t1", time.Hour, false)) }()
	waitEntered(t, f.store, "Update")

	require.NoError(t, f.sync.Refresh(ctx))
	local, _ := find(f.sync.View(), "t1")
	require.True(t, local.Completed)

	close(f.store.UpdateGate)
	require.NoError(t, <-done)
}

func TestRefresh_KeepsChangesMadeWhileListing(t *testing.T) {
	f := startedFixture(t, seedTask("t1", time.Hour, false), seedTask("t2", 2*time.Hour, false))
	f.store.ListGate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- f.sync.Refresh(ctx) }()
	waitEntered(t, f.store, "List")

	added, err := f.sync.AddTask(ctx, service.Draft{Title: "new"})
	require.NoError(t, err)
	require.NoError(t, f.sync.DeleteTask(ctx, seedTask("t2", 2*time.Hour, false)))

	close(f.store.ListGate)
	require.NoError(t, <-done)
	require.Equal(t, []string{added.ID, "t1"}, ids(f.sync.View()))
}

func TestRefresh_Failure(t *testing.T) {
	f := startedFixture(t, seedTask("t1", time.Hour, false))
	f.store.ListErr = errRemote

	require.ErrorIs(t, f.sync.Refresh(ctx), errs.ErrRemote)
	require.Equal(t, 1, f.sync.AllCount())
	require.NotEmpty(t, f.sync.Notice())
}

func TestPeriodAndCounts(t *testing.T) {
	tomorrow := seedTask("t2", 2*time.Hour, true)
	tomorrow.DueDate = civil.DateOf(now).AddDays(1)
	nextMonth := seedTask("t3", 3*time.Hour, false)
	nextMonth.DueDate = civil.Date{Year: 2026, Month: 11, Day: 2}
	f := startedFixture(t, seedTask("t1", time.Hour, false), tomorrow, nextMonth)

	var seen []ViewState
	f.sync.OnChange(func(v ViewState) { seen = append(seen, v) })

	f.sync.SetPeriod(PeriodToday)
	require.Equal(t, PeriodToday, f.sync.Period())
	require.Equal(t, "Today's Tasks", f.sync.Title())
	require.Equal(t, []string{"t1"}, ids(f.sync.View()))
	require.Equal(t, Counts{Completed: 0, Pending: 1, Total: 1}, f.sync.Counts())

	f.sync.SetPeriod(PeriodWeek)
	require.Equal(t, Counts{Completed: 1, Pending: 1, Total: 2}, f.sync.Counts())

	f.sync.SetPeriod(PeriodAll)
	require.Equal(t, 3, f.sync.Counts().Total)
	require.Equal(t, 3, f.sync.AllCount())

	require.Len(t, seen, 3)
	require.Equal(t, "This Week's Tasks", seen[1].Title)
	require.Equal(t, 2, seen[1].Counts.Total)
}

func TestViewRecomputedAfterMutation(t *testing.T) {
	f := startedFixture(t, seedTask("t1", time.Hour, false))
	f.sync.SetPeriod(PeriodToday)

	var last ViewState
	f.sync.OnChange(func(v ViewState) { last = v })

	_, err := f.sync.AddTask(ctx, service.Draft{Title: "due today"})
	require.NoError(t, err)
	require.Equal(t, 2, last.Counts.Total)

	require.NoError(t, f.sync.ToggleTask(ctx, seedTask("t1", time.Hour, false)))
	require.Equal(t, 1, last.Counts.Completed)
}

func TestWeekStartOption(t *testing.T) {
	// Sunday 2026-10-25 closes a Monday-start week but opens the next Sunday-start one.
	sunday := seedTask("sun", time.Hour, false)
	sunday.DueDate = civil.Date{Year: 2026, Month: 10, Day: 25}

	store := testutil.NewFakeStore()
	store.Put(sunday)
	p := auth.NewProvider()
	p.SignIn(alice)
	s := New(store, p, WithWeekStart(time.Monday))
	s.SetClock(func() time.Time { return now })
	require.NoError(t, s.Start(ctx))

	s.SetPeriod(PeriodWeek)
	require.Equal(t, []string{"sun"}, ids(s.View()))
}

func TestSignOut_ClearsState(t *testing.T) {
	f := startedFixture(t, seedTask("t1", time.Hour, false))
	f.store.UpdateErr = errRemote
	_ = f.sync.ToggleTask(ctx, seedTask("t1", time.Hour, false))
	require.NotEmpty(t, f.sync.Notice())

	f.sync.SignOut()
	f.identity.SignOut()

	require.Equal(t, 0, f.sync.AllCount())
	require.Empty(t, f.sync.View())
	require.Empty(t, f.sync.Notice())

	calls := f.store.TotalCalls()
	_, err := f.sync.AddTask(ctx, service.Draft{Title: "x"})
	require.ErrorIs(t, err, errs.ErrUnauthenticated)
	require.Equal(t, calls, f.store.TotalCalls())
}

func TestSignOut_InFlightDeleteDoesNotRestore(t *testing.T) {
	f := startedFixture(t, seedTask("t1", time.Hour, false))
	f.store.DeleteGate = make(chan struct{})
	f.store.DeleteErr = errRemote

	done := make(chan error, 1)
	go func() { done <- f.sync.DeleteTask(ctx, seedTask("t1", time.Hour, false)) }()
	waitEntered(t, f.store, "Delete")

	f.sync.SignOut()
	close(f.store.DeleteGate)
	<-done

	require.Equal(t, 0, f.sync.AllCount())
	require.Empty(t, f.sync.Notice())
}
