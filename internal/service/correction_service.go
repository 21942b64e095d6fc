package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"taskboard/internal/model"
)

const (
	correctionBaseDelay = 30 * time.Second
	correctionMaxDelay  = time.Hour
	correctionTimeout   = 30 * time.Second
	correctionBatch     = 50
)

// TaskUpdater reads and writes tasks on behalf of one user. taskapi.Client implements it.
type TaskUpdater interface {
	List(ctx context.Context) ([]model.Task, error)
	Update(ctx context.Context, task model.Task) error
}

// UpdaterFor returns an updater authenticated as uid.
type UpdaterFor func(uid string) TaskUpdater

// CorrectionQueue stores corrections that failed. repository.CorrectionRepository implements it.
type CorrectionQueue interface {
	Enqueue(ctx context.Context, c *model.PendingCorrection) error
	Due(ctx context.Context, now time.Time, limit int) ([]model.PendingCorrection, error)
	Reschedule(ctx context.Context, id uint, attempts int, next time.Time, lastErr string) error
	Delete(ctx context.Context, id uint) error
	DeleteByTask(ctx context.Context, taskID model.TaskID) error
}

// CorrectionService writes derived statuses back to the backend. A write is
// tried once right away; a failed one is queued and retried with exponential
// backoff until maxAttempts is reached.
type CorrectionService struct {
	queue       CorrectionQueue
	updaterFor  UpdaterFor
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	now         func() time.Time

	wg sync.WaitGroup
}

func NewCorrectionService(queue CorrectionQueue, updaterFor UpdaterFor, maxAttempts int) *CorrectionService {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &CorrectionService{
		queue:       queue,
		updaterFor:  updaterFor,
		maxAttempts: maxAttempts,
		baseDelay:   correctionBaseDelay,
		maxDelay:    correctionMaxDelay,
		now:         time.Now,
	}
}

// Correct sends the write in the background. It never blocks the caller.
func (s *CorrectionService) Correct(ctx context.Context, uid string, task model.Task) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), correctionTimeout)
		defer cancel()

		err := s.updaterFor(uid).Update(wctx, task)
		if err == nil {
			return
		}
		log.Printf("[warn] correction task=%s failed: %v", task.ID, err)
		if qerr := s.enqueue(wctx, uid, task, err); qerr != nil {
			log.Printf("[error] queue correction task=%s: %v", task.ID, qerr)
		}
	}()
}

// Forget drops a queued correction, typically because the task was edited or deleted.
func (s *CorrectionService) Forget(ctx context.Context, id model.TaskID) {
	if err := s.queue.DeleteByTask(ctx, id); err != nil {
		log.Printf("[warn] forget correction task=%s: %v", id, err)
	}
}

// Wait blocks until every in-flight Correct call has finished.
func (s *CorrectionService) Wait() {
	s.wg.Wait()
}

// RetryDue retries queued corrections whose backoff has elapsed. The payload
// is never replayed: each task is re-read and its status derived again, so a
// change made after the correction was queued is left alone.
func (s *CorrectionService) RetryDue(ctx context.Context) (sent, failed int, err error) {
	items, err := s.queue.Due(ctx, s.now(), correctionBatch)
	if err != nil {
		return 0, 0, err
	}

	current := make(map[string]map[model.TaskID]model.Task)
	for _, item := range items {
		tasks, ok := current[item.AuthUID]
		var werr error
		if !ok {
			tasks, werr = s.listTasks(ctx, item.AuthUID)
			if werr == nil {
				current[item.AuthUID] = tasks
			}
		}

		if werr == nil {
			task, found := tasks[item.TaskID]
			want := task.Status
			if found {
				want = model.DeriveStatus(task, s.now())
			}
			if want == task.Status {
				log.Printf("[info] drop correction task=%s: nothing left to correct", item.TaskID)
				if err := s.queue.Delete(ctx, item.ID); err != nil {
					return sent, failed, err
				}
				continue
			}
			task.Status = want
			werr = s.updaterFor(item.AuthUID).Update(ctx, task)
			if werr == nil {
				sent++
				tasks[item.TaskID] = task
				if err := s.queue.Delete(ctx, item.ID); err != nil {
					return sent, failed, err
				}
				continue
			}
		}

		failed++
		attempts := item.Attempts + 1
		if attempts >= s.maxAttempts {
			log.Printf("[error] giving up correction task=%s after %d attempts: %v", item.TaskID, attempts, werr)
			if err := s.queue.Delete(ctx, item.ID); err != nil {
				return sent, failed, err
			}
			continue
		}
		next := s.now().Add(s.backoff(attempts))
		if err := s.queue.Reschedule(ctx, item.ID, attempts, next, werr.Error()); err != nil {
			return sent, failed, err
		}
	}
	return sent, failed, nil
}

func (s *CorrectionService) listTasks(ctx context.Context, uid string) (map[model.TaskID]model.Task, error) {
	list, err := s.updaterFor(uid).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks := make(map[model.TaskID]model.Task, len(list))
	for _, task := range list {
		tasks[task.ID] = task
	}
	return tasks, nil
}

func (s *CorrectionService) enqueue(ctx context.Context, uid string, task model.Task, cause error) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal correction: %w", err)
	}
	return s.queue.Enqueue(ctx, &model.PendingCorrection{
		TaskID:        task.ID,
		AuthUID:       uid,
		Payload:       string(payload),
		Attempts:      1,
		NextAttemptAt: s.now().Add(s.backoff(1)),
		LastError:     cause.Error(),
	})
}

// backoff doubles the base delay per attempt, capped at maxDelay.
func (s *CorrectionService) backoff(attempt int) time.Duration {
	d := s.baseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= s.maxDelay {
			return s.maxDelay
		}
	}
	return d
}
