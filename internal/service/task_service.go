package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"taskboard/internal/model"
	"taskboard/internal/repository"
)

// ErrInvalidTask is returned by the backend for tasks it refuses to store.
var ErrInvalidTask = errors.New("invalid task")

// TaskService is the business logic of the bundled task backend.
// It stores whatever status the client sends and never derives one itself.
type TaskService struct {
	taskRepo *repository.TaskRepository
}

func NewTaskService(taskRepo *repository.TaskRepository) *TaskService {
	return &TaskService{taskRepo: taskRepo}
}

// ListTasks returns every stored task. Scoping by user is left to the client.
func (s *TaskService) ListTasks(ctx context.Context) ([]model.Task, error) {
	records, err := s.taskRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	tasks := make([]model.Task, 0, len(records))
	for _, r := range records {
		tasks = append(tasks, r.ToTask())
	}
	return tasks, nil
}

func (s *TaskService) CreateTask(ctx context.Context, task model.Task) (model.Task, error) {
	if err := validateTask(task); err != nil {
		return model.Task{}, err
	}
	if !task.Status.Valid() {
		task.Status = model.StatusTodo
	}

	var record model.TaskRecord
	record.ApplyTask(task)
	if err := s.taskRepo.Create(ctx, &record); err != nil {
		return model.Task{}, err
	}
	return record.ToTask(), nil
}

// UpdateTask replaces the stored task. A missing user id keeps the stored owner.
func (s *TaskService) UpdateTask(ctx context.Context, id model.TaskID, task model.Task) (model.Task, error) {
	key, err := parseRecordID(id)
	if err != nil {
		return model.Task{}, err
	}
	if err := validateTask(task); err != nil {
		return model.Task{}, err
	}

	record, err := s.taskRepo.FindByID(ctx, key)
	if err != nil {
		return model.Task{}, err
	}
	if task.UserID == "" {
		task.UserID = record.UserID
	}
	if !task.Status.Valid() {
		task.Status = model.StatusFromCode(record.StatusEnum)
	}
	record.ApplyTask(task)
	if err := s.taskRepo.Save(ctx, record); err != nil {
		return model.Task{}, err
	}
	return record.ToTask(), nil
}

func (s *TaskService) DeleteTask(ctx context.Context, id model.TaskID) error {
	key, err := parseRecordID(id)
	if err != nil {
		return err
	}
	return s.taskRepo.Delete(ctx, key)
}

func validateTask(task model.Task) error {
	if strings.TrimSpace(task.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	return nil
}

// parseRecordID maps a wire id onto a row key; unknown ids are reported as not found.
func parseRecordID(id model.TaskID) (uint, error) {
	n, err := strconv.ParseUint(string(id), 10, 64)
	if err != nil || n == 0 {
		return 0, repository.ErrTaskNotFound
	}
	return uint(n), nil
}
