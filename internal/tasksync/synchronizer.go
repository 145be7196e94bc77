// Package tasksync keeps an in-memory copy of the user's tasks in step with the
// remote store. Mutations are applied optimistically and reconciled once the
// remote call settles.
package tasksync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"taskboard/internal/errs"
	"taskboard/internal/service"
)

// clearConcurrency bounds the deletes ClearAll keeps in flight.
const clearConcurrency = 8

// Notifier receives task lifecycle events. Implementations must not block.
type Notifier interface {
	TaskCreated(ctx context.Context, u *service.User, t service.Task)
	TaskDeleted(ctx context.Context, u *service.User, t service.Task)
}

// Identity reports the signed-in user and signals when one is first available.
type Identity interface {
	CurrentUser() *service.User
	WaitReady(ctx context.Context) (*service.User, error)
}

// Confirm asks the user to approve a destructive operation.
type Confirm func() bool

// Counts aggregates the current view.
type Counts struct {
	Completed int
	Pending   int
	Total     int
}

// ViewState is what observers receive after every recompute.
type ViewState struct {
	Period Period
	Title  string
	Tasks  []service.Task
	Counts Counts

	version uint64
}

// ClearResult reports the outcome of ClearAll.
type ClearResult struct {
	Deleted int
	Failed  []string
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithNotifier sets the receiver of created and deleted events.
func WithNotifier(n Notifier) Option {
	return func(s *Synchronizer) { s.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Synchronizer) { s.log = l }
}

// WithWeekStart sets the first day of the week used by the week period.
func WithWeekStart(d time.Weekday) Option {
	return func(s *Synchronizer) { s.weekStart = d }
}

// Synchronizer owns the task set of one session.
// Remote calls are never made while mu is held.
type Synchronizer struct {
	store     service.Store
	identity  Identity
	notifier  Notifier
	log       *zap.Logger
	weekStart time.Weekday
	now       func() time.Time
	locks     *keyedMutex

	mu       sync.Mutex
	ready    bool
	epoch    uint64
	tasks    []service.Task
	view     []service.Task
	period   Period
	toggling map[string]struct{}
	deleting map[string]struct{}
	notice   string

	// rev counts local mutations. While a refresh is running, dirty records
	// the rev at which each id was last changed locally.
	rev        uint64
	refreshing int
	dirty      map[string]uint64
	version    uint64

	obsMu     sync.Mutex
	observers []func(ViewState)
	published uint64
}

// New creates a synchronizer that is not ready until Start returns.
func New(store service.Store, identity Identity, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:    store,
		identity: identity,
		notifier: nopNotifier{},
		log:      zap.NewNop(),
		now:      time.Now,
		locks:    newKeyedMutex(),
		period:   PeriodAll,
		toggling: make(map[string]struct{}),
		deleting: make(map[string]struct{}),
		dirty:    make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetClock overrides the time source (for testing).
func (s *Synchronizer) SetClock(now func() time.Time) { s.now = now }

// OnChange registers an observer called after every recompute.
func (s *Synchronizer) OnChange(fn func(ViewState)) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, fn)
}

// Start waits for the first signed-in user, then loads the task set.
func (s *Synchronizer) Start(ctx context.Context) error {
	u, err := s.identity.WaitReady(ctx)
	if err != nil {
		return fmt.Errorf("wait for sign-in: %w", err)
	}
	s.mu.Lock()
	s.ready = true
	s.mu.Unlock()
	s.log.Debug("identity ready", zap.String("uid", u.UID))

	return s.Refresh(ctx)
}

// Refresh replaces the task set with the remote list. Local changes made
// while the list is in flight win over the listed state.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return errs.ErrUnauthenticated
	}
	epoch, start := s.epoch, s.rev
	s.refreshing++
	s.mu.Unlock()

	remote, err := s.store.List(ctx)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return errs.ErrUnauthenticated
	}
	s.refreshing--
	if err != nil {
		s.pruneLocked()
		s.notice = "tasks could not be loaded"
		s.mu.Unlock()
		s.log.Error("load tasks", zap.Error(err))
		return fmt.Errorf("load tasks: %w", err)
	}
	s.tasks = s.mergeLocked(remote, start)
	s.pruneLocked()
	v := s.recomputeLocked()
	s.mu.Unlock()

	s.log.Debug("tasks loaded", zap.Int("count", len(v.Tasks)))
	s.publish(v)
	return nil
}

func (s *Synchronizer) mergeLocked(remote []service.Task, start uint64) []service.Task {
	local := make(map[string]service.Task, len(s.tasks))
	for _, t := range s.tasks {
		local[t.ID] = t
	}

	seen := make(map[string]bool, len(remote))
	merged := make([]service.Task, 0, len(remote))
	for _, r := range remote {
		if _, ok := s.deleting[r.ID]; ok {
			continue
		}
		seen[r.ID] = true
		if s.dirty[r.ID] > start {
			if l, ok := local[r.ID]; ok {
				merged = append(merged, l)
			}
			continue
		}
		if _, ok := s.toggling[r.ID]; ok {
			if l, ok := local[r.ID]; ok {
				r.Completed = l.Completed
			}
		}
		merged = append(merged, r)
	}

	var created []service.Task
	for _, t := range s.tasks {
		if !seen[t.ID] && s.dirty[t.ID] > start {
			created = append(created, t)
		}
	}
	return append(created, merged...)
}

// pruneLocked drops change records once no refresh can need them.
func (s *Synchronizer) pruneLocked() {
	if s.refreshing == 0 && len(s.dirty) > 0 {
		s.dirty = make(map[string]uint64)
	}
}

func (s *Synchronizer) markDirtyLocked(id string) {
	s.rev++
	if s.refreshing > 0 {
		s.dirty[id] = s.rev
	}
}

// begin checks readiness and returns the current epoch and user.
func (s *Synchronizer) begin() (uint64, *service.User, error) {
	s.mu.Lock()
	ready, epoch := s.ready, s.epoch
	s.mu.Unlock()
	if !ready {
		return 0, nil, errs.ErrUnauthenticated
	}
	u := s.identity.CurrentUser()
	if u == nil {
		return 0, nil, errs.ErrUnauthenticated
	}
	return epoch, u, nil
}

// AddTask creates a task remotely and prepends it once the store assigned an id.
// A missing due date defaults to today.
func (s *Synchronizer) AddTask(ctx context.Context, d service.Draft) (service.Task, error) {
	epoch, u, err := s.begin()
	if err != nil {
		return service.Task{}, err
	}
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return service.Task{}, fmt.Errorf("%w: title is empty", errs.ErrInvalidTask)
	}

	now := s.now()
	t := service.Task{
		Title:     title,
		DueDate:   d.DueDate,
		CreatedAt: now,
		City:      strings.TrimSpace(d.City),
		UserID:    u.UID,
	}
	if !t.DueDate.IsValid() {
		t.DueDate = civil.DateOf(now)
	}

	id, err := s.store.Create(ctx, t)
	if err != nil {
		s.log.Error("create task", zap.String("title", title), zap.Error(err))
		s.setNotice(epoch, "task could not be saved")
		return service.Task{}, err
	}
	t.ID = id

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return t, nil
	}
	s.tasks = append([]service.Task{t}, s.tasks...)
	s.markDirtyLocked(id)
	v := s.recomputeLocked()
	s.mu.Unlock()

	s.log.Debug("task created", zap.String("id", id))
	s.publish(v)
	s.notifier.TaskCreated(ctx, u, t)
	return t, nil
}

// ToggleTask flips Completed optimistically and reconciles it with the store.
// It is a no-op while the id is being toggled or deleted.
func (s *Synchronizer) ToggleTask(ctx context.Context, t service.Task) error {
	id := t.ID

	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return errs.ErrUnauthenticated
	}
	if id == "" {
		s.mu.Unlock()
		return nil
	}
	if s.pendingLocked(id) {
		s.mu.Unlock()
		return nil
	}
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return errs.ErrNotFound
	}
	epoch := s.epoch
	prev := s.tasks[idx].Completed
	next := !prev
	s.tasks[idx].Completed = next
	s.toggling[id] = struct{}{}
	s.markDirtyLocked(id)
	v := s.recomputeLocked()
	s.mu.Unlock()
	s.publish(v)

	defer s.settle(epoch, func() { delete(s.toggling, id) })

	release, err := s.locks.Lock(ctx, id)
	if err != nil {
		return s.finishToggle(epoch, id, prev, err)
	}
	defer release()

	err = s.store.Update(ctx, id, service.Patch{Completed: &next})
	return s.finishToggle(epoch, id, prev, err)
}

func (s *Synchronizer) finishToggle(epoch uint64, id string, prev bool, err error) error {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return err
	}
	switch {
	case err == nil:
		s.mu.Unlock()
		return nil
	case errors.Is(err, errs.ErrNotFound):
		s.log.Warn("toggled task no longer exists, removing", zap.String("id", id))
		s.removeLocked(id)
		err = nil
	default:
		s.log.Error("update task", zap.String("id", id), zap.Error(err))
		if idx := s.indexLocked(id); idx >= 0 {
			s.tasks[idx].Completed = prev
		}
		s.notice = "task could not be updated, change reverted"
	}
	s.markDirtyLocked(id)
	v := s.recomputeLocked()
	s.mu.Unlock()
	s.publish(v)
	return err
}

// DeleteTask removes the task optimistically and deletes it remotely.
// It queues behind an in-flight toggle of the same id and is a no-op while
// the id is already being deleted.
func (s *Synchronizer) DeleteTask(ctx context.Context, t service.Task) error {
	id := t.ID

	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return errs.ErrUnauthenticated
	}
	if id == "" {
		s.mu.Unlock()
		return nil
	}
	if _, ok := s.deleting[id]; ok {
		s.mu.Unlock()
		return nil
	}
	s.deleting[id] = struct{}{}
	epoch := s.epoch
	s.mu.Unlock()

	defer s.settle(epoch, func() { delete(s.deleting, id) })

	release, err := s.locks.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return errs.ErrUnauthenticated
	}
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	snap := s.tasks[idx]
	s.removeLocked(id)
	s.markDirtyLocked(id)
	v := s.recomputeLocked()
	s.mu.Unlock()
	s.publish(v)

	err = s.store.Delete(ctx, id)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return nil
	}
	switch {
	case err == nil:
	case errors.Is(err, errs.ErrNotFound):
		s.log.Warn("deleted task was already gone", zap.String("id", id))
		err = nil
	default:
		s.log.Error("delete task", zap.String("id", id), zap.Error(err))
		if idx > len(s.tasks) {
			idx = len(s.tasks)
		}
		s.tasks = append(s.tasks[:idx], append([]service.Task{snap}, s.tasks[idx:]...)...)
		s.markDirtyLocked(id)
		s.notice = "task could not be deleted, change reverted"
		v = s.recomputeLocked()
		s.mu.Unlock()
		s.publish(v)
		return err
	}
	s.mu.Unlock()

	s.notifier.TaskDeleted(ctx, s.identity.CurrentUser(), snap)
	return nil
}

// ClearAll deletes every known task once confirm approves. Tasks leave the set
// only after all deletes settled. Ids whose delete failed stay and are reported.
func (s *Synchronizer) ClearAll(ctx context.Context, confirm Confirm) (ClearResult, error) {
	s.mu.Lock()
	ready := s.ready
	s.mu.Unlock()
	if !ready {
		return ClearResult{}, errs.ErrUnauthenticated
	}
	if confirm == nil || !confirm() {
		return ClearResult{}, errs.ErrNotConfirmed
	}

	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return ClearResult{}, errs.ErrUnauthenticated
	}
	epoch := s.epoch
	var ids []string
	for _, t := range s.tasks {
		if _, ok := s.deleting[t.ID]; ok {
			continue
		}
		s.deleting[t.ID] = struct{}{}
		ids = append(ids, t.ID)
	}
	s.mu.Unlock()

	defer s.settle(epoch, func() {
		for _, id := range ids {
			delete(s.deleting, id)
		}
	})

	var (
		failMu   sync.Mutex
		failed   = make(map[string]error)
		firstErr error
	)
	fail := func(id string, err error) {
		failMu.Lock()
		defer failMu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
		failed[id] = err
	}

	var g errgroup.Group
	g.SetLimit(clearConcurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			release, err := s.locks.Lock(ctx, id)
			if err != nil {
				fail(id, err)
				return nil
			}
			defer release()
			if err := s.store.Delete(ctx, id); err != nil && !errors.Is(err, errs.ErrNotFound) {
				fail(id, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	res := ClearResult{Deleted: len(ids) - len(failed)}
	for id := range failed {
		res.Failed = append(res.Failed, id)
	}
	sort.Strings(res.Failed)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return res, errs.ErrUnauthenticated
	}
	for _, id := range ids {
		if _, ok := failed[id]; !ok {
			s.removeLocked(id)
			s.markDirtyLocked(id)
		}
	}
	if len(failed) > 0 {
		s.notice = fmt.Sprintf("%d of %d tasks could not be deleted", len(failed), len(ids))
	}
	v := s.recomputeLocked()
	s.mu.Unlock()
	s.publish(v)

	s.log.Info("tasks cleared", zap.Int("deleted", res.Deleted), zap.Int("failed", len(res.Failed)))
	if len(failed) > 0 {
		return res, fmt.Errorf("clear: %d of %d tasks not deleted: %w", len(failed), len(ids), firstErr)
	}
	return res, nil
}

// SetPeriod changes the view's period and recomputes it.
func (s *Synchronizer) SetPeriod(p Period) {
	s.mu.Lock()
	s.period = p
	v := s.recomputeLocked()
	s.mu.Unlock()
	s.publish(v)
}

// Period returns the current period.
func (s *Synchronizer) Period() Period {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.period
}

// Title returns the heading for the current period.
func (s *Synchronizer) Title() string {
	return s.Period().Title()
}

// View returns a copy of the filtered tasks.
func (s *Synchronizer) View() []service.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]service.Task(nil), s.view...)
}

// Counts aggregates the filtered tasks.
func (s *Synchronizer) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return countTasks(s.view)
}

// AllCount returns the size of the whole task set.
func (s *Synchronizer) AllCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Notice returns the last user-facing error message, if any.
func (s *Synchronizer) Notice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notice
}

// DismissNotice clears the notice.
func (s *Synchronizer) DismissNotice() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notice = ""
}

// SignOut drops all session state. In-flight operations settle without
// touching the new state. Start must be called again before further use.
func (s *Synchronizer) SignOut() {
	s.mu.Lock()
	s.epoch++
	s.ready = false
	s.tasks = nil
	s.toggling = make(map[string]struct{})
	s.deleting = make(map[string]struct{})
	s.dirty = make(map[string]uint64)
	s.refreshing = 0
	s.notice = ""
	v := s.recomputeLocked()
	s.mu.Unlock()
	s.publish(v)
}

func (s *Synchronizer) setNotice(epoch uint64, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch == epoch {
		s.notice = msg
	}
}

// settle runs fn under mu unless the session was signed out meanwhile.
func (s *Synchronizer) settle(epoch uint64, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch == epoch {
		fn()
	}
}

func (s *Synchronizer) pendingLocked(id string) bool {
	if _, ok := s.toggling[id]; ok {
		return true
	}
	_, ok := s.deleting[id]
	return ok
}

func (s *Synchronizer) indexLocked(id string) int {
	for i, t := range s.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *Synchronizer) removeLocked(id string) {
	if i := s.indexLocked(id); i >= 0 {
		s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
	}
}

func (s *Synchronizer) recomputeLocked() ViewState {
	today := civil.DateOf(s.now())
	s.view = Filter(s.tasks, s.period, today, s.weekStart)
	s.version++
	return ViewState{
		Period:  s.period,
		Title:   s.period.Title(),
		Tasks:   append([]service.Task(nil), s.view...),
		Counts:  countTasks(s.view),
		version: s.version,
	}
}

// publish delivers v to observers unless a newer state was already delivered.
func (s *Synchronizer) publish(v ViewState) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	if v.version <= s.published {
		return
	}
	s.published = v.version
	for _, fn := range s.observers {
		fn(v)
	}
}

func countTasks(tasks []service.Task) Counts {
	c := Counts{Total: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			c.Completed++
		}
	}
	c.Pending = c.Total - c.Completed
	return c
}

type nopNotifier struct{}

func (nopNotifier) TaskCreated(context.Context, *service.User, service.Task) {}
func (nopNotifier) TaskDeleted(context.Context, *service.User, service.Task) {}
