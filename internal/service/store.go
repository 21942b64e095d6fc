package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"taskboard/internal/model"
)

var (
	// ErrTaskNotFound means the task is in none of the buckets.
	ErrTaskNotFound = errors.New("task not found")
	// ErrNotSignedIn is returned when an operation needs a session user.
	ErrNotSignedIn = errors.New("not signed in")
)

// TaskAPI is the task REST backend. taskapi.Client implements it.
type TaskAPI interface {
	List(ctx context.Context) ([]model.Task, error)
	Create(ctx context.Context, task model.Task) (model.Task, error)
	Update(ctx context.Context, task model.Task) error
	Delete(ctx context.Context, id model.TaskID) error
}

// Corrector writes derived-status corrections back to the backend.
type Corrector interface {
	Correct(ctx context.Context, uid string, task model.Task)
	Forget(ctx context.Context, id model.TaskID)
}

// Store is the in-memory board of one user, kept in sync with the backend.
// Local state is updated before the write is sent and is not rolled back
// when the write fails; the error is returned to the caller.
type Store struct {
	api       TaskAPI
	corrector Corrector
	userID    string
	now       func() time.Time

	mu     sync.Mutex
	board  Board
	loaded bool
}

func NewStore(api TaskAPI, userID string, corrector Corrector) *Store {
	return &Store{
		api:       api,
		corrector: corrector,
		userID:    userID,
		now:       time.Now,
		board:     NewBoard(),
	}
}

// UserID is the identity the store is scoped to.
func (s *Store) UserID() string {
	return s.userID
}

// Load fetches all tasks, keeps the user's own, derives their status and
// rebuilds the board. Tasks whose stored status drifted are handed to the
// corrector, which writes them back asynchronously.
func (s *Store) Load(ctx context.Context) (Board, error) {
	if s.userID == "" {
		return nil, ErrNotSignedIn
	}
	all, err := s.api.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	own := make([]model.Task, 0, len(all))
	var drifted []model.Task
	for _, task := range all {
		if task.UserID != s.userID {
			continue
		}
		derived := model.DeriveStatus(task, now)
		if derived != task.Status {
			task.Status = derived
			drifted = append(drifted, task)
		}
		own = append(own, task)
	}

	board := Categorize(own)
	s.mu.Lock()
	s.board = board
	s.loaded = true
	snapshot := board.Clone()
	s.mu.Unlock()

	if s.corrector != nil {
		for _, task := range drifted {
			log.Printf("[info] status drift task=%s user=%s -> %s", task.ID, s.userID, task.Status)
			s.corrector.Correct(ctx, s.userID, task)
		}
	}
	return snapshot, nil
}

// Loaded reports whether Load has succeeded at least once.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Snapshot returns a copy of the current board.
func (s *Store) Snapshot() Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Clone()
}

// Find returns a copy of the task with id.
func (s *Store) Find(id model.TaskID) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, i, ok := s.board.Find(id)
	if !ok {
		return model.Task{}, false
	}
	return s.board[status][i], true
}

// ToggleCompletion moves the task to Done when completed, otherwise to Todo.
func (s *Store) ToggleCompletion(ctx context.Context, id model.TaskID, completed bool) (model.Task, error) {
	s.mu.Lock()
	status, i, ok := s.board.Find(id)
	if !ok {
		s.mu.Unlock()
		return model.Task{}, ErrTaskNotFound
	}
	task := s.board.removeAt(status, i)
	task.IsCompleted = completed
	if completed {
		task.Status = model.StatusDone
	} else {
		task.Status = model.StatusTodo
	}
	s.board[task.Status] = append(s.board[task.Status], task)
	s.mu.Unlock()

	s.forget(ctx, id)
	if err := s.api.Update(ctx, task); err != nil {
		return task, err
	}
	return task, nil
}

// Move relocates a task between buckets by hand. It returns false without
// touching anything when the move is not allowed.
func (s *Store) Move(ctx context.Context, id model.TaskID, from, to model.Status) (bool, error) {
	if !model.CanDrag(from, to) {
		return false, nil
	}

	s.mu.Lock()
	index := -1
	for i, task := range s.board[from] {
		if task.ID == id {
			index = i
			break
		}
	}
	if index < 0 {
		s.mu.Unlock()
		return false, ErrTaskNotFound
	}
	task := s.board.removeAt(from, index)
	task.Status = to
	s.board[to] = append(s.board[to], task)
	s.mu.Unlock()

	s.forget(ctx, id)
	if err := s.api.Update(ctx, task); err != nil {
		return true, err
	}
	return true, nil
}

// Delete removes the task from every bucket, then from the backend. The local
// removal stands even if the backend call fails.
func (s *Store) Delete(ctx context.Context, id model.TaskID) error {
	s.mu.Lock()
	s.board.removeAll(id)
	s.mu.Unlock()

	s.forget(ctx, id)
	return s.api.Delete(ctx, id)
}

// Create posts a new task for the store's user and appends it to Todo.
func (s *Store) Create(ctx context.Context, task model.Task) (model.Task, error) {
	if s.userID == "" {
		return model.Task{}, ErrNotSignedIn
	}
	task.UserID = s.userID
	task.Status = model.StatusTodo
	task.IsCompleted = false

	created, err := s.api.Create(ctx, task)
	if err != nil {
		return model.Task{}, err
	}

	s.mu.Lock()
	s.board[model.StatusTodo] = append(s.board[model.StatusTodo], created)
	s.mu.Unlock()
	return created, nil
}

// Update puts the edited task, re-deriving its status, and replaces it in place.
func (s *Store) Update(ctx context.Context, task model.Task) (model.Task, error) {
	if _, ok := s.Find(task.ID); !ok {
		return model.Task{}, ErrTaskNotFound
	}
	task.UserID = s.userID
	task.Status = model.DeriveStatus(task, s.now())

	if err := s.api.Update(ctx, task); err != nil {
		return model.Task{}, err
	}
	s.forget(ctx, task.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	status, i, ok := s.board.Find(task.ID)
	if !ok {
		return task, nil
	}
	if status == task.Status {
		s.board[status][i] = task
		return task, nil
	}
	s.board.removeAt(status, i)
	s.board[task.Status] = append(s.board[task.Status], task)
	return task, nil
}

// Reschedule changes the due date, re-derives the status and persists.
func (s *Store) Reschedule(ctx context.Context, id model.TaskID, due time.Time) (model.Task, error) {
	s.mu.Lock()
	status, i, ok := s.board.Find(id)
	if !ok {
		s.mu.Unlock()
		return model.Task{}, ErrTaskNotFound
	}
	task := s.board[status][i]
	task.DueDate = due
	task.Status = model.DeriveStatus(task, s.now())
	if task.Status == status {
		s.board[status][i] = task
	} else {
		s.board.removeAt(status, i)
		s.board[task.Status] = append(s.board[task.Status], task)
	}
	s.mu.Unlock()

	s.forget(ctx, id)
	if err := s.api.Update(ctx, task); err != nil {
		return task, fmt.Errorf("reschedule: %w", err)
	}
	return task, nil
}

// forget drops any queued correction for id; the user's write supersedes it.
func (s *Store) forget(ctx context.Context, id model.TaskID) {
	if s.corrector != nil {
		s.corrector.Forget(ctx, id)
	}
}
