package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/model"
)

var testNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, tasks ...model.Task) (*Store, *fakeAPI, *fakeCorrector) {
	t.Helper()
	api := &fakeAPI{tasks: tasks}
	corrector := &fakeCorrector{}
	store := NewStore(api, "u1", corrector)
	store.now = func() time.Time { return testNow }
	_, err := store.Load(context.Background())
	require.NoError(t, err)
	return store, api, corrector
}

func ids(tasks []model.Task) []model.TaskID {
	out := make([]model.TaskID, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task.ID)
	}
	return out
}

func TestStoreLoadDerivesAndScopes(t *testing.T) {
	yesterday := testNow.AddDate(0, 0, -1)
	tomorrow := testNow.AddDate(0, 0, 1)

	store, _, corrector := newTestStore(t,
		model.Task{ID: "1", Title: "overdue", DueDate: yesterday, Status: model.StatusTodo, UserID: "u1"},
		model.Task{ID: "2", Title: "done late", DueDate: yesterday, IsCompleted: true, Status: model.StatusExpired, UserID: "u1"},
		model.Task{ID: "3", Title: "doing", DueDate: tomorrow, Status: model.StatusDoing, UserID: "u1"},
		model.Task{ID: "4", Title: "someone else", DueDate: yesterday, Status: model.StatusTodo, UserID: "u2"},
		model.Task{ID: "5", Title: "stale expired", DueDate: tomorrow, Status: model.StatusExpired, UserID: "u1"},
	)

	board := store.Snapshot()
	assert.Equal(t, []model.TaskID{"1"}, ids(board[model.StatusExpired]))
	assert.Equal(t, []model.TaskID{"2"}, ids(board[model.StatusDone]))
	assert.Equal(t, []model.TaskID{"3"}, ids(board[model.StatusDoing]))
	assert.Equal(t, []model.TaskID{"5"}, ids(board[model.StatusTodo]))
	assert.Equal(t, 4, board.Count(), "tasks of other users are dropped")

	expired := board[model.StatusExpired][0]
	assert.Equal(t, 0, int(expired.Status))

	require.Len(t, corrector.corrected, 3)
	for _, c := range corrector.corrected {
		assert.Equal(t, "u1", c.uid)
	}
	assert.Equal(t, model.StatusExpired, corrector.corrected[0].task.Status)
	assert.Equal(t, model.StatusDone, corrector.corrected[1].task.Status)
	assert.Equal(t, model.StatusTodo, corrector.corrected[2].task.Status)
}

func TestStoreLoadRequiresUser(t *testing.T) {
	store := NewStore(&fakeAPI{}, "", nil)
	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, ErrNotSignedIn)
	assert.False(t, store.Loaded())
}

func TestStoreLoadErrorKeepsBoard(t *testing.T) {
	store, api, _ := newTestStore(t, model.Task{ID: "1", Title: "a", Status: model.StatusTodo, UserID: "u1"})
	api.failAll = true
	assert.True(t, store.Loaded())

	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, errBackend)
	assert.Equal(t, 1, store.Snapshot().Count())
}

func TestStoreToggleCompletion(t *testing.T) {
	future := testNow.AddDate(0, 0, 3)
	past := testNow.AddDate(0, 0, -3)
	starts := []model.Task{
		{ID: "7", Title: "t", DueDate: future, Status: model.StatusTodo, UserID: "u1"},
		{ID: "7", Title: "t", DueDate: future, Status: model.StatusDoing, UserID: "u1"},
		{ID: "7", Title: "t", DueDate: past, Status: model.StatusExpired, UserID: "u1"},
		{ID: "7", Title: "t", DueDate: past, IsCompleted: true, Status: model.StatusDone, UserID: "u1"},
	}
	for _, start := range starts {
		store, api, corrector := newTestStore(t, start)
		require.Equal(t, []model.TaskID{"7"}, ids(store.Snapshot()[start.Status]))

		task, err := store.ToggleCompletion(context.Background(), "7", true)
		require.NoError(t, err)
		assert.True(t, task.IsCompleted)
		assert.Equal(t, model.StatusDone, task.Status)

		board := store.Snapshot()
		assert.Equal(t, []model.TaskID{"7"}, ids(board[model.StatusDone]), "from %s", start.Status)
		assert.Equal(t, 1, board.Count(), "task lives in exactly one bucket")

		task, err = store.ToggleCompletion(context.Background(), "7", false)
		require.NoError(t, err)
		assert.Equal(t, model.StatusTodo, task.Status)
		board = store.Snapshot()
		assert.Equal(t, []model.TaskID{"7"}, ids(board[model.StatusTodo]), "from %s", start.Status)
		assert.Equal(t, 1, board.Count())

		require.Len(t, api.updates, 2)
		assert.True(t, api.updates[0].IsCompleted)
		assert.False(t, api.updates[1].IsCompleted)
		assert.Equal(t, []model.TaskID{"7", "7"}, corrector.forgotten, "each write drops a queued correction")
	}
}

func TestStoreToggleFailureKeepsLocalState(t *testing.T) {
	store, api, _ := newTestStore(t, model.Task{ID: "1", Title: "t", Status: model.StatusTodo, UserID: "u1"})
	api.failAll = true

	_, err := store.ToggleCompletion(context.Background(), "1", true)
	assert.ErrorIs(t, err, errBackend)
	assert.Equal(t, []model.TaskID{"1"}, ids(store.Snapshot()[model.StatusDone]))
}

func TestStoreToggleUnknownTask(t *testing.T) {
	store, _, _ := newTestStore(t)
	_, err := store.ToggleCompletion(context.Background(), "missing", true)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestStoreMoveTodoDoingPreservesFields(t *testing.T) {
	original := model.Task{
		ID: "1", Title: "Write report", Description: "Q3", DueDate: testNow.AddDate(0, 0, 2),
		Priority: model.PriorityHigh, Status: model.StatusTodo, UserID: "u1",
	}
	store, api, corrector := newTestStore(t, original)

	moved, err := store.Move(context.Background(), "1", model.StatusTodo, model.StatusDoing)
	require.NoError(t, err)
	assert.True(t, moved)

	board := store.Snapshot()
	require.Len(t, board[model.StatusDoing], 1)
	got := board[model.StatusDoing][0]
	want := original
	want.Status = model.StatusDoing
	assert.Equal(t, want, got)
	assert.Empty(t, board[model.StatusTodo])
	require.Len(t, api.updates, 1)
	assert.Equal(t, want, api.updates[0])

	moved, err = store.Move(context.Background(), "1", model.StatusDoing, model.StatusTodo)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, original, store.Snapshot()[model.StatusTodo][0])
	assert.Equal(t, []model.TaskID{"1", "1"}, corrector.forgotten)
}

func TestStoreMoveIntoOrOutOfFixedBucketsIsNoop(t *testing.T) {
	store, api, _ := newTestStore(t,
		model.Task{ID: "e", Title: "e", DueDate: testNow.AddDate(0, 0, -1), Status: model.StatusExpired, UserID: "u1"},
		model.Task{ID: "d", Title: "d", IsCompleted: true, Status: model.StatusDone, UserID: "u1"},
		model.Task{ID: "t", Title: "t", Status: model.StatusTodo, UserID: "u1"},
	)
	before := store.Snapshot()

	cases := []struct {
		id       model.TaskID
		from, to model.Status
	}{
		{"e", model.StatusExpired, model.StatusTodo},
		{"d", model.StatusDone, model.StatusDoing},
		{"t", model.StatusTodo, model.StatusDone},
		{"t", model.StatusTodo, model.StatusExpired},
		{"t", model.StatusTodo, model.StatusTodo},
	}
	for _, tc := range cases {
		moved, err := store.Move(context.Background(), tc.id, tc.from, tc.to)
		require.NoError(t, err)
		assert.False(t, moved, "%s -> %s", tc.from, tc.to)
	}
	assert.Equal(t, before, store.Snapshot())
	assert.Empty(t, api.updates)
}

func TestStoreMoveWrongSourceBucket(t *testing.T) {
	store, _, _ := newTestStore(t, model.Task{ID: "1", Title: "t", Status: model.StatusTodo, UserID: "u1"})
	moved, err := store.Move(context.Background(), "1", model.StatusDoing, model.StatusTodo)
	assert.False(t, moved)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestStoreDeleteRemovesEverywhere(t *testing.T) {
	store, api, corrector := newTestStore(t,
		model.Task{ID: "1", Title: "doing", Status: model.StatusDoing, UserID: "u1"},
		model.Task{ID: "2", Title: "other", Status: model.StatusTodo, UserID: "u1"},
	)

	require.NoError(t, store.Delete(context.Background(), "1"))
	board := store.Snapshot()
	assert.Empty(t, board[model.StatusDoing])
	_, _, found := board.Find("1")
	assert.False(t, found)
	assert.Equal(t, []model.TaskID{"1"}, api.deletes)
	assert.Equal(t, []model.TaskID{"1"}, corrector.forgotten)
}

func TestStoreDeleteFailureStillRemovesLocally(t *testing.T) {
	store, api, _ := newTestStore(t, model.Task{ID: "1", Title: "t", Status: model.StatusTodo, UserID: "u1"})
	api.failAll = true

	assert.ErrorIs(t, store.Delete(context.Background(), "1"), errBackend)
	assert.Zero(t, store.Snapshot().Count())
}

func TestStoreCreateAppendsToTodo(t *testing.T) {
	store, api, _ := newTestStore(t)

	task, err := store.Create(context.Background(), model.Task{
		Title:    "Write report",
		Priority: model.PriorityHigh,
		DueDate:  testNow.AddDate(0, 0, 5),
		Status:   model.StatusDoing,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)

	todo := store.Snapshot()[model.StatusTodo]
	require.Len(t, todo, 1)
	assert.Equal(t, "Write report", todo[0].Title)
	assert.Equal(t, 1, int(todo[0].Status))
	assert.False(t, todo[0].IsCompleted)
	assert.Equal(t, "u1", api.tasks[0].UserID)
}

func TestStoreCreateFailureLeavesBoard(t *testing.T) {
	store, api, _ := newTestStore(t)
	api.failAll = true
	_, err := store.Create(context.Background(), model.Task{Title: "x"})
	assert.Error(t, err)
	assert.Zero(t, store.Snapshot().Count())
}

func TestStoreUpdateReplacesInPlace(t *testing.T) {
	store, api, corrector := newTestStore(t,
		model.Task{ID: "1", Title: "a", DueDate: testNow.AddDate(0, 0, 1), Status: model.StatusDoing, UserID: "u1"},
		model.Task{ID: "2", Title: "b", DueDate: testNow.AddDate(0, 0, 1), Status: model.StatusDoing, UserID: "u1"},
	)

	edited, ok := store.Find("1")
	require.True(t, ok)
	edited.Title = "a2"
	_, err := store.Update(context.Background(), edited)
	require.NoError(t, err)

	doing := store.Snapshot()[model.StatusDoing]
	assert.Equal(t, []model.TaskID{"1", "2"}, ids(doing), "order is kept")
	assert.Equal(t, "a2", doing[0].Title)
	assert.Len(t, api.updates, 1)
	assert.Equal(t, []model.TaskID{"1"}, corrector.forgotten)

	edited.DueDate = testNow.AddDate(0, 0, -2)
	updated, err := store.Update(context.Background(), edited)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, updated.Status)
	assert.Equal(t, []model.TaskID{"1"}, ids(store.Snapshot()[model.StatusExpired]))

	_, err = store.Update(context.Background(), model.Task{ID: "nope", Title: "x"})
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestStoreReschedule(t *testing.T) {
	store, api, corrector := newTestStore(t,
		model.Task{ID: "1", Title: "late", DueDate: testNow.AddDate(0, 0, -1), Status: model.StatusTodo, UserID: "u1"},
	)
	require.Len(t, store.Snapshot()[model.StatusExpired], 1)

	task, err := store.Reschedule(context.Background(), "1", testNow.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Equal(t, model.StatusTodo, task.Status)
	assert.Equal(t, []model.TaskID{"1"}, ids(store.Snapshot()[model.StatusTodo]))
	assert.Empty(t, store.Snapshot()[model.StatusExpired])
	require.Len(t, api.updates, 1)
	assert.True(t, api.updates[0].DueDate.Equal(testNow.AddDate(0, 0, 7)))
	assert.Equal(t, []model.TaskID{"1"}, corrector.forgotten)

	_, err = store.Reschedule(context.Background(), "x", testNow)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestSnapshotIsACopy(t *testing.T) {
	store, _, _ := newTestStore(t, model.Task{ID: "1", Title: "t", Status: model.StatusTodo, UserID: "u1"})
	snap := store.Snapshot()
	snap[model.StatusTodo][0].Title = "changed"
	snap[model.StatusDoing] = append(snap[model.StatusDoing], model.Task{ID: "x"})

	fresh := store.Snapshot()
	assert.Equal(t, "t", fresh[model.StatusTodo][0].Title)
	assert.Empty(t, fresh[model.StatusDoing])
}

func TestBoardsReusesAndDropsStores(t *testing.T) {
	made := 0
	boards := NewBoards(func(uid string) TaskAPI {
		made++
		return &fakeAPI{}
	}, nil)

	a := boards.For("u1")
	assert.Same(t, a, boards.For("u1"))
	assert.Equal(t, "u1", a.UserID())
	boards.Drop("u1")
	assert.NotSame(t, a, boards.For("u1"))
	assert.Equal(t, 2, made)
}
