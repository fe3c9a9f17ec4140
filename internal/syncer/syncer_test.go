package syncer

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/julianstephens/habitsync/internal/connectivity"
	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/queue"
	"github.com/julianstephens/habitsync/internal/remote"
	"github.com/julianstephens/habitsync/internal/resolver"
	"github.com/julianstephens/habitsync/internal/service"
	"github.com/julianstephens/habitsync/internal/storage/sqlite"
)

const user = "someone@example.com"

type harness struct {
	store    *sqlite.Store
	queue    *queue.Queue
	remote   *remote.Memory
	online   *connectivity.Static
	driver   *Driver
	habits   *service.HabitService
	progress *service.ProgressService
}

func setup(t *testing.T) harness {
	t.Helper()

	store := sqlite.NewStore(filepath.Join(t.TempDir(), "sync.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	q := queue.New(store)
	mem := remote.NewMemory()
	online := connectivity.NewStatic(true)
	return harness{
		store:    store,
		queue:    q,
		remote:   mem,
		online:   online,
		driver:   New(q, mem, online),
		habits:   service.NewHabitService(store, q),
		progress: service.NewProgressService(store, q),
	}
}

// statuses lists the user's task statuses oldest first.
func (h harness) statuses(t *testing.T) []models.TaskStatus {
	t.Helper()
	tasks, err := h.queue.List(context.Background(), user, nil, 0)
	if err != nil {
		t.Fatalf("failed to list tasks: %v", err)
	}
	out := make([]models.TaskStatus, len(tasks))
	for i, task := range tasks {
		out[len(tasks)-1-i] = task.Status
	}
	return out
}

func (h harness) sync(t *testing.T) Report {
	t.Helper()
	report, err := h.driver.SyncNow(context.Background(), user)
	if err != nil {
		t.Fatalf("SyncNow() failed: %v", err)
	}
	return report
}

func (h harness) lookup(t *testing.T, p remote.Path) remote.Document {
	t.Helper()
	doc, err := remote.Lookup(context.Background(), h.remote, p)
	if err != nil {
		t.Fatalf("Lookup(%s) failed: %v", p, err)
	}
	return doc
}

func (h harness) addHabit(t *testing.T, in service.HabitInput) models.Habit {
	t.Helper()
	habit, err := h.habits.Add(context.Background(), user, in)
	if err != nil {
		t.Fatalf("failed to add habit: %v", err)
	}
	return habit
}

func (h harness) upsertProgress(t *testing.T, in service.ProgressInput) models.Progress {
	t.Helper()
	p, err := h.progress.Upsert(context.Background(), user, in)
	if err != nil {
		t.Fatalf("failed to upsert progress: %v", err)
	}
	return p
}

func TestAddEditOfflineThenSync(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	h.online.Set(false)

	habit := h.addHabit(t, service.HabitInput{Title: "Read"})
	in := service.InputFrom(habit)
	in.Title = "Read daily"
	edited, err := h.habits.Update(ctx, user, habit.HabitID, in)
	if err != nil {
		t.Fatalf("failed to update habit: %v", err)
	}

	report := h.sync(t)
	if !report.Offline {
		t.Error("expected an offline report")
	}
	if h.remote.Writes() != 0 {
		t.Errorf("remote writes = %d while offline", h.remote.Writes())
	}
	want := []models.TaskStatus{models.StatusPending, models.StatusPending}
	if got := h.statuses(t); !slices.Equal(got, want) {
		t.Errorf("statuses = %v, want %v", got, want)
	}

	h.online.Set(true)
	report = h.sync(t)
	if report.Offline || report.Attempted != 2 || report.Done != 2 {
		t.Errorf("unexpected report %+v", report)
	}

	doc := h.lookup(t, remote.HabitPath(user, habit.HabitID))
	if doc["title"] != "Read daily" {
		t.Errorf("title = %v, want Read daily", doc["title"])
	}
	if doc["userId"] != user {
		t.Errorf("userId = %v, want %s", doc["userId"], user)
	}
	if got := resolver.UpdatedAt(doc); got != edited.UpdatedAt {
		t.Errorf("updatedAt = %d, want %d", got, edited.UpdatedAt)
	}
	for _, s := range h.statuses(t) {
		if !s.Terminal() {
			t.Errorf("task left in %s", s)
		}
	}
}

func TestSecondDrainIsNoop(t *testing.T) {
	h := setup(t)

	habit := h.addHabit(t, service.HabitInput{Title: "Read", Target: 1})
	h.upsertProgress(t, service.ProgressInput{HabitID: habit.HabitID, Date: "2024-03-10", Value: 1})

	h.sync(t)
	writes := h.remote.Writes()
	if writes != 2 {
		t.Fatalf("remote writes = %d, want 2", writes)
	}

	if report := h.sync(t); report.Attempted != 0 {
		t.Errorf("second drain attempted %d tasks", report.Attempted)
	}
	if h.remote.Writes() != writes {
		t.Errorf("second drain wrote to the remote")
	}
}

func TestProgressDocumentShape(t *testing.T) {
	h := setup(t)

	habit := h.addHabit(t, service.HabitInput{Title: "Water", Target: 2})
	h.upsertProgress(t, service.ProgressInput{HabitID: habit.HabitID, Date: "2024-03-10", Value: 2, Note: "ok"})
	h.sync(t)

	doc := h.lookup(t, remote.ProgressDayPath(user, habit.HabitID, "2024-03-10"))
	want := map[string]any{
		"userId":    user,
		"habitId":   habit.HabitID,
		"date":      "2024-03-10",
		"completed": true,
		"note":      "ok",
		"photoURI":  "",
	}
	for key, v := range want {
		if doc[key] != v {
			t.Errorf("%s = %v, want %v", key, doc[key], v)
		}
	}
}

func TestClearedFieldsReachRemote(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	habit := h.addHabit(t, service.HabitInput{
		Title:                 "Stretch",
		ReminderTime:          "08:00",
		ReminderIntervalHours: 4,
		NotificationID:        "n1",
	})
	h.upsertProgress(t, service.ProgressInput{HabitID: habit.HabitID, Date: "2024-03-10", Value: 1, PhotoURI: "file:///a.jpg"})
	h.sync(t)

	habitPath := remote.HabitPath(user, habit.HabitID)
	dayPath := remote.ProgressDayPath(user, habit.HabitID, "2024-03-10")
	if doc := h.lookup(t, habitPath); doc["reminderTime"] != "08:00" || doc["notificationId"] != "n1" {
		t.Fatalf("reminder not delivered: %v", doc)
	}
	if doc := h.lookup(t, dayPath); doc["photoURI"] != "file:///a.jpg" {
		t.Fatalf("photo not delivered: %v", doc)
	}

	in := service.InputFrom(habit)
	in.ReminderTime = ""
	in.ReminderIntervalHours = 0
	in.NotificationID = ""
	if _, err := h.habits.Update(ctx, user, habit.HabitID, in); err != nil {
		t.Fatalf("failed to update habit: %v", err)
	}
	h.upsertProgress(t, service.ProgressInput{HabitID: habit.HabitID, Date: "2024-03-10", Value: 1})
	if report := h.sync(t); report.Done != 2 {
		t.Fatalf("unexpected report %+v", report)
	}

	doc := h.lookup(t, habitPath)
	if doc["reminderTime"] != "" {
		t.Errorf("remote kept reminderTime %v", doc["reminderTime"])
	}
	if doc["reminderIntervalHours"] != float64(0) {
		t.Errorf("remote kept reminderIntervalHours %v", doc["reminderIntervalHours"])
	}
	if doc["notificationId"] != "" {
		t.Errorf("remote kept notificationId %v", doc["notificationId"])
	}
	if doc := h.lookup(t, dayPath); doc["photoURI"] != "" {
		t.Errorf("remote kept photoURI %v", doc["photoURI"])
	}
}

func TestMalformedTasksAreSkipped(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	tasks := []struct {
		entity models.Entity
		docID  string
		data   string
	}{
		{models.EntityProgress, "h1_", `{"habitId":"h1","value":1}`},
		{models.EntityHabit, "h2", `{not json`},
		{models.EntityHabit, "h3", `{"habitId":"h4","title":"elsewhere","updatedAt":1}`},
		{models.EntityProgress, "h1_2024-03-11", `{"habitId":"h1","date":"2024-03-10","value":1,"updatedAt":1}`},
	}
	var ids []string
	for _, tt := range tasks {
		id, err := h.queue.Append(ctx, h.store, user, models.OpUpsert, tt.entity, tt.docID, []byte(tt.data))
		if err != nil {
			t.Fatalf("Append(%s) failed: %v", tt.docID, err)
		}
		ids = append(ids, id)
	}

	if report := h.sync(t); report.Skipped != len(tasks) {
		t.Errorf("skipped = %d, want %d", report.Skipped, len(tasks))
	}
	if h.remote.Writes() != 0 {
		t.Errorf("remote writes = %d, want 0", h.remote.Writes())
	}
	for _, id := range ids {
		task, err := h.queue.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get(%s) failed: %v", id, err)
		}
		if task.Status != models.StatusSkipped {
			t.Errorf("task %s (%s) = %s, want SKIPPED", id, task.DocID, task.Status)
		}
	}
}

func TestUnknownShapeIsSkipped(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	id, err := h.queue.Append(ctx, h.store, user, models.OpDelete, models.EntityProgress, "h1_2024-03-10", nil)
	if err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	if report := h.sync(t); report.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", report.Skipped)
	}
	task, err := h.queue.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if task.Status != models.StatusSkipped {
		t.Errorf("status = %s, want SKIPPED", task.Status)
	}
}

func TestTransientFailureRetries(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	first := h.addHabit(t, service.HabitInput{Title: "First"})
	second := h.addHabit(t, service.HabitInput{Title: "Second"})

	failing := remote.HabitPath(user, first.HabitID)
	h.remote.SetFailure(func(op remote.Op, p remote.Path) error {
		if op == remote.OpPut && p == failing {
			return errors.New("503 unavailable")
		}
		return nil
	})

	report := h.sync(t)
	if report.Retried != 1 || report.Done != 1 {
		t.Errorf("unexpected report %+v", report)
	}
	want := []models.TaskStatus{models.StatusPending, models.StatusDone}
	if got := h.statuses(t); !slices.Equal(got, want) {
		t.Errorf("statuses = %v, want %v", got, want)
	}
	if _, ok, err := h.remote.Get(ctx, remote.HabitPath(user, second.HabitID)); err != nil || !ok {
		t.Error("later task should not be blocked by an earlier failure")
	}

	h.remote.SetFailure(nil)
	if report := h.sync(t); report.Done != 1 {
		t.Errorf("done = %d, want 1", report.Done)
	}
	want = []models.TaskStatus{models.StatusDone, models.StatusDone}
	if got := h.statuses(t); !slices.Equal(got, want) {
		t.Errorf("statuses = %v, want %v", got, want)
	}
}

func TestStatusWriteFailureContinuesDrain(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	first := h.addHabit(t, service.HabitInput{Title: "First"})
	second := h.addHabit(t, service.HabitInput{Title: "Second"})

	freeze := `CREATE TRIGGER freeze_queue BEFORE UPDATE ON sync_queue
		BEGIN SELECT RAISE(ABORT, 'queue is read only'); END`
	if _, err := h.store.DB().ExecContext(ctx, freeze); err != nil {
		t.Fatalf("failed to install trigger: %v", err)
	}

	report := h.sync(t)
	if report.Attempted != 2 || report.Retried != 2 || report.Done != 0 {
		t.Errorf("unexpected report %+v", report)
	}
	for _, habit := range []models.Habit{first, second} {
		if _, ok, _ := h.remote.Get(ctx, remote.HabitPath(user, habit.HabitID)); !ok {
			t.Errorf("habit %s not delivered", habit.Title)
		}
	}
	want := []models.TaskStatus{models.StatusPending, models.StatusPending}
	if got := h.statuses(t); !slices.Equal(got, want) {
		t.Errorf("statuses = %v, want %v", got, want)
	}

	if _, err := h.store.DB().ExecContext(ctx, `DROP TRIGGER freeze_queue`); err != nil {
		t.Fatalf("failed to drop trigger: %v", err)
	}
	if report := h.sync(t); report.Done != 2 {
		t.Errorf("done = %d, want 2 on the next drain", report.Done)
	}
	if n, _ := h.queue.PendingCount(ctx, user); n != 0 {
		t.Errorf("pending = %d, want 0", n)
	}
}

func TestRemoteNewerIsSkipped(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	habit := h.addHabit(t, service.HabitInput{Title: "Local"})

	path := remote.HabitPath(user, habit.HabitID)
	if err := h.remote.Put(ctx, path, remote.Document{
		"title":     "From another device",
		"updatedAt": float64(habit.UpdatedAt + 1000),
	}, true); err != nil {
		t.Fatalf("failed to seed remote: %v", err)
	}

	if report := h.sync(t); report.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", report.Skipped)
	}
	if doc := h.lookup(t, path); doc["title"] != "From another device" {
		t.Errorf("title = %v, remote should be untouched", doc["title"])
	}
}

func TestProgressRemoteNewerIsSkipped(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	habit := h.addHabit(t, service.HabitInput{Title: "Water", Target: 3})
	h.sync(t)

	p := h.upsertProgress(t, service.ProgressInput{HabitID: habit.HabitID, Date: "2024-03-10", Value: 1, Note: "local"})
	path := remote.ProgressDayPath(user, habit.HabitID, "2024-03-10")
	if err := h.remote.Put(ctx, path, remote.Document{
		"value":     float64(3),
		"note":      "from another device",
		"updatedAt": float64(p.UpdatedAt + 1000),
	}, true); err != nil {
		t.Fatalf("failed to seed remote: %v", err)
	}
	writes := h.remote.Writes()

	report := h.sync(t)
	if report.Skipped != 1 || report.Done != 0 {
		t.Errorf("unexpected report %+v", report)
	}
	if h.remote.Writes() != writes {
		t.Error("skipped progress task wrote to the remote")
	}

	doc := h.lookup(t, path)
	if doc["note"] != "from another device" || doc["value"] != float64(3) {
		t.Errorf("remote changed: %v", doc)
	}
	tasks, err := h.queue.List(ctx, user, []models.TaskStatus{models.StatusSkipped}, 0)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].DocID != p.ProgressID {
		t.Errorf("skipped tasks = %v, want the progress task", tasks)
	}
}

func TestTieGoesToLocal(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	habit := h.addHabit(t, service.HabitInput{Title: "Local"})

	path := remote.HabitPath(user, habit.HabitID)
	if err := h.remote.Put(ctx, path, remote.Document{
		"title":     "Remote",
		"updatedAt": float64(habit.UpdatedAt),
	}, true); err != nil {
		t.Fatalf("failed to seed remote: %v", err)
	}

	if report := h.sync(t); report.Done != 1 {
		t.Errorf("done = %d, want 1", report.Done)
	}
	if doc := h.lookup(t, path); doc["title"] != "Local" {
		t.Errorf("title = %v, want Local", doc["title"])
	}
}

func TestProgressTieGoesToLocal(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	habit := h.addHabit(t, service.HabitInput{Title: "Water", Target: 3})
	h.sync(t)

	p := h.upsertProgress(t, service.ProgressInput{HabitID: habit.HabitID, Date: "2024-03-10", Value: 2, Note: "local"})
	path := remote.ProgressDayPath(user, habit.HabitID, "2024-03-10")
	if err := h.remote.Put(ctx, path, remote.Document{
		"value":     float64(1),
		"note":      "remote",
		"updatedAt": float64(p.UpdatedAt),
	}, true); err != nil {
		t.Fatalf("failed to seed remote: %v", err)
	}

	if report := h.sync(t); report.Done != 1 {
		t.Errorf("done = %d, want 1", report.Done)
	}
	doc := h.lookup(t, path)
	if doc["note"] != "local" || doc["value"] != float64(2) {
		t.Errorf("remote = %v, want the local entry", doc)
	}
}

func TestDeleteRemovesRemote(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	habit := h.addHabit(t, service.HabitInput{Title: "Read"})
	h.sync(t)

	if err := h.habits.Delete(ctx, user, habit.HabitID); err != nil {
		t.Fatalf("failed to delete habit: %v", err)
	}
	if report := h.sync(t); report.Done != 1 {
		t.Errorf("done = %d, want 1", report.Done)
	}
	if _, ok, _ := h.remote.Get(ctx, remote.HabitPath(user, habit.HabitID)); ok {
		t.Error("remote habit still present after delete")
	}
}

func TestConvergesToLastPayload(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	habit := h.addHabit(t, service.HabitInput{Title: "v0"})

	var err error
	for i, title := range []string{"v1", "v2", "v3"} {
		in := service.InputFrom(habit)
		in.Title = title
		habit, err = h.habits.Update(ctx, user, habit.HabitID, in)
		if err != nil {
			t.Fatalf("failed to update habit: %v", err)
		}

		// Interleave partial drains with a flaky remote.
		if i == 1 {
			h.remote.SetFailure(func(remote.Op, remote.Path) error { return errors.New("flaky") })
			h.sync(t)
			h.remote.SetFailure(nil)
		}
	}

	for range 2 {
		h.sync(t)
	}

	doc := h.lookup(t, remote.HabitPath(user, habit.HabitID))
	if doc["title"] != "v3" {
		t.Errorf("title = %v, want v3", doc["title"])
	}
	if got := resolver.UpdatedAt(doc); got != habit.UpdatedAt {
		t.Errorf("updatedAt = %d, want %d", got, habit.UpdatedAt)
	}
	if n, _ := h.queue.PendingCount(ctx, user); n != 0 {
		t.Errorf("pending = %d, want 0", n)
	}
}

func TestMissingRemoteIsOffline(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	h.addHabit(t, service.HabitInput{Title: "Read"})

	report, err := New(h.queue, nil, connectivity.NewStatic(true)).SyncNow(ctx, user)
	if err != nil {
		t.Fatalf("SyncNow() failed: %v", err)
	}
	if !report.Offline {
		t.Error("expected an offline report without a remote")
	}
	if n, _ := h.queue.PendingCount(ctx, user); n != 1 {
		t.Errorf("pending = %d, want 1", n)
	}
}

func TestEmptyUserIsNoop(t *testing.T) {
	h := setup(t)
	report, err := h.driver.SyncNow(context.Background(), "   ")
	if err != nil {
		t.Fatalf("SyncNow() failed: %v", err)
	}
	if report.Attempted != 0 || report.Offline {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestCanceledContext(t *testing.T) {
	h := setup(t)
	ctx, cancel := context.WithCancel(context.Background())

	if _, err := h.habits.Add(ctx, user, service.HabitInput{Title: "Read"}); err != nil {
		t.Fatalf("failed to add habit: %v", err)
	}
	cancel()

	if _, err := h.driver.SyncNow(ctx, user); !errors.Is(err, context.Canceled) {
		t.Errorf("SyncNow() error = %v, want context.Canceled", err)
	}
	if h.remote.Writes() != 0 {
		t.Errorf("remote writes = %d after cancel", h.remote.Writes())
	}
}

func TestConcurrentDrainsDeliverOnce(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	for range 10 {
		h.addHabit(t, service.HabitInput{Title: "Habit"})
	}

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.driver.SyncNow(ctx, user); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("SyncNow() failed: %v", err)
	}
	if h.remote.Writes() != 10 {
		t.Errorf("remote writes = %d, want 10", h.remote.Writes())
	}
}

func TestOutcomeString(t *testing.T) {
	tests := map[Outcome]string{Done: "done", Retry: "retry", Drop: "drop", Outcome(9): "outcome(9)"}
	for o, want := range tests {
		if got := o.String(); got != want {
			t.Errorf("Outcome(%d).String() = %q, want %q", int(o), got, want)
		}
	}
}
