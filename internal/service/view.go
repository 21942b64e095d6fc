package service

import (
	"fmt"
	"sort"
	"strings"

	"taskboard/internal/model"
)

// View is a filter and sort order applied to a board before display.
// The zero value shows everything in ascending due-date order.
type View struct {
	Search     string
	Status     *model.Status
	Priority   model.Priority
	Descending bool
}

// ParseView reads "q=<text> status=<key> priority=<level> order=asc|desc".
// Words without a key are added to the search text.
func ParseView(args string) (View, error) {
	var v View
	var search []string
	for _, field := range strings.Fields(args) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			search = append(search, field)
			continue
		}
		switch strings.ToLower(key) {
		case "q", "search":
			search = append(search, value)
		case "status":
			if value == "" || strings.EqualFold(value, "all") {
				v.Status = nil
				continue
			}
			s, err := model.ParseStatus(value)
			if err != nil {
				return View{}, err
			}
			v.Status = &s
		case "priority":
			if value == "" || strings.EqualFold(value, "all") {
				v.Priority = ""
				continue
			}
			p, err := model.ParsePriority(value)
			if err != nil {
				return View{}, err
			}
			v.Priority = p
		case "order", "sort":
			switch strings.ToLower(value) {
			case "asc", "":
				v.Descending = false
			case "desc":
				v.Descending = true
			default:
				return View{}, fmt.Errorf("unknown order %q", value)
			}
		default:
			return View{}, fmt.Errorf("unknown filter %q", key)
		}
	}
	v.Search = strings.Join(search, " ")
	return v, nil
}

// Match reports whether a task passes the filters. Search looks at the title only.
func (v View) Match(task model.Task) bool {
	if q := strings.ToLower(strings.TrimSpace(v.Search)); q != "" &&
		!strings.Contains(strings.ToLower(task.Title), q) {
		return false
	}
	if v.Status != nil && task.Status != *v.Status {
		return false
	}
	if v.Priority != "" && task.Priority != v.Priority {
		return false
	}
	return true
}

// Apply returns a new board with filtered, due-date sorted buckets.
func (v View) Apply(b Board) Board {
	out := NewBoard()
	for _, s := range model.Statuses {
		var kept []model.Task
		for _, task := range b[s] {
			if v.Match(task) {
				kept = append(kept, task)
			}
		}
		sort.SliceStable(kept, func(i, j int) bool {
			if v.Descending {
				return kept[i].DueDate.After(kept[j].DueDate)
			}
			return kept[i].DueDate.Before(kept[j].DueDate)
		})
		if kept != nil {
			out[s] = kept
		}
	}
	return out
}

// Active reports whether any filter is set.
func (v View) Active() bool {
	return strings.TrimSpace(v.Search) != "" || v.Status != nil || v.Priority != ""
}

func (v View) String() string {
	var parts []string
	if q := strings.TrimSpace(v.Search); q != "" {
		parts = append(parts, "q="+q)
	}
	if v.Status != nil {
		parts = append(parts, "status="+v.Status.Key())
	}
	if v.Priority != "" {
		parts = append(parts, "priority="+strings.ToLower(string(v.Priority)))
	}
	if v.Descending {
		parts = append(parts, "order=desc")
	}
	return strings.Join(parts, " ")
}
