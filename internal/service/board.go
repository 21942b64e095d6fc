package service

import (
	"taskboard/internal/model"
)

// Board is the categorized task collection: one ordered bucket per status.
type Board map[model.Status][]model.Task

// NewBoard returns a board with all four buckets present and empty.
func NewBoard() Board {
	b := make(Board, len(model.Statuses))
	for _, s := range model.Statuses {
		b[s] = []model.Task{}
	}
	return b
}

// Categorize buckets tasks by their Status, keeping input order.
func Categorize(tasks []model.Task) Board {
	b := NewBoard()
	for _, task := range tasks {
		status := task.Status
		if !status.Valid() {
			status = model.StatusTodo
			task.Status = status
		}
		b[status] = append(b[status], task)
	}
	return b
}

// Clone deep-copies the bucket slices.
func (b Board) Clone() Board {
	out := NewBoard()
	for s, tasks := range b {
		out[s] = append([]model.Task{}, tasks...)
	}
	return out
}

// Find scans every bucket for id.
func (b Board) Find(id model.TaskID) (model.Status, int, bool) {
	for _, s := range model.Statuses {
		for i, task := range b[s] {
			if task.ID == id {
				return s, i, true
			}
		}
	}
	return 0, 0, false
}

// Count returns the number of tasks across all buckets.
func (b Board) Count() int {
	n := 0
	for _, tasks := range b {
		n += len(tasks)
	}
	return n
}

// All flattens the board in bucket order.
func (b Board) All() []model.Task {
	out := make([]model.Task, 0, b.Count())
	for _, s := range model.Statuses {
		out = append(out, b[s]...)
	}
	return out
}

func (b Board) removeAt(s model.Status, i int) model.Task {
	task := b[s][i]
	b[s] = append(b[s][:i:i], b[s][i+1:]...)
	return task
}

// removeAll drops id from every bucket and reports whether anything was removed.
func (b Board) removeAll(id model.TaskID) bool {
	removed := false
	for _, s := range model.Statuses {
		kept := b[s][:0:0]
		for _, task := range b[s] {
			if task.ID == id {
				removed = true
				continue
			}
			kept = append(kept, task)
		}
		b[s] = kept
	}
	return removed
}
