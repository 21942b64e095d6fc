package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"taskboard/internal/model"
)

var errBackend = errors.New("backend unavailable")

type fakeAPI struct {
	mu      sync.Mutex
	tasks   []model.Task
	nextID  int
	updates []model.Task
	deletes []model.TaskID
	failAll bool
}

func (f *fakeAPI) List(context.Context) ([]model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, errBackend
	}
	return append([]model.Task{}, f.tasks...), nil
}

func (f *fakeAPI) Create(_ context.Context, task model.Task) (model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return model.Task{}, errBackend
	}
	f.nextID++
	task.ID = model.TaskID("new-" + strconv.Itoa(f.nextID))
	f.tasks = append(f.tasks, task)
	return task, nil
}

func (f *fakeAPI) Update(_ context.Context, task model.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, task)
	if f.failAll {
		return errBackend
	}
	return nil
}

func (f *fakeAPI) Delete(_ context.Context, id model.TaskID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	if f.failAll {
		return errBackend
	}
	return nil
}

func (f *fakeAPI) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

type correction struct {
	uid  string
	task model.Task
}

type fakeCorrector struct {
	mu        sync.Mutex
	corrected []correction
	forgotten []model.TaskID
}

func (f *fakeCorrector) Correct(_ context.Context, uid string, task model.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.corrected = append(f.corrected, correction{uid: uid, task: task})
}

func (f *fakeCorrector) Forget(_ context.Context, id model.TaskID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgotten = append(f.forgotten, id)
}

type memQueue struct {
	mu     sync.Mutex
	nextID uint
	items  map[uint]*model.PendingCorrection
}

func newMemQueue() *memQueue {
	return &memQueue{items: make(map[uint]*model.PendingCorrection)}
}

func (q *memQueue) Enqueue(_ context.Context, c *model.PendingCorrection) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, item := range q.items {
		if item.TaskID == c.TaskID {
			delete(q.items, id)
		}
	}
	q.nextID++
	cp := *c
	cp.ID = q.nextID
	q.items[cp.ID] = &cp
	return nil
}

func (q *memQueue) Due(_ context.Context, now time.Time, limit int) ([]model.PendingCorrection, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []model.PendingCorrection
	for _, item := range q.items {
		if !item.NextAttemptAt.After(now) {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextAttemptAt.Before(out[j].NextAttemptAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (q *memQueue) Reschedule(_ context.Context, id uint, attempts int, next time.Time, lastErr string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if item, ok := q.items[id]; ok {
		item.Attempts, item.NextAttemptAt, item.LastError = attempts, next, lastErr
	}
	return nil
}

func (q *memQueue) Delete(_ context.Context, id uint) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.items, id)
	return nil
}

func (q *memQueue) DeleteByTask(_ context.Context, taskID model.TaskID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, item := range q.items {
		if item.TaskID == taskID {
			delete(q.items, id)
		}
	}
	return nil
}

func (q *memQueue) all() []model.PendingCorrection {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []model.PendingCorrection
	for _, item := range q.items {
		out = append(out, *item)
	}
	return out
}
