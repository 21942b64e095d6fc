package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/model"
)

func viewBoard() Board {
	day := func(d int) time.Time { return time.Date(2026, 10, d, 0, 0, 0, 0, time.UTC) }
	return Categorize([]model.Task{
		{ID: "1", Title: "Write report", Description: "quarterly", DueDate: day(20), Priority: model.PriorityHigh, Status: model.StatusTodo},
		{ID: "2", Title: "Buy milk", DueDate: day(19), Priority: model.PriorityLow, Status: model.StatusTodo},
		{ID: "3", Title: "Review report draft", DueDate: day(25), Priority: model.PriorityHigh, Status: model.StatusDoing},
		{ID: "4", Title: "File taxes", DueDate: day(1), Priority: model.PriorityMedium, Status: model.StatusExpired},
	})
}

func TestViewZeroValueSortsAscending(t *testing.T) {
	b := viewBoard()
	out := View{}.Apply(b)
	assert.Equal(t, []model.TaskID{"2", "1"}, ids(out[model.StatusTodo]))
	assert.Equal(t, []model.TaskID{"1", "2"}, ids(b[model.StatusTodo]), "source order is untouched")
}

func TestViewDescending(t *testing.T) {
	out := View{Descending: true}.Apply(viewBoard())
	assert.Equal(t, []model.TaskID{"1", "2"}, ids(out[model.StatusTodo]))
}

func TestViewFilters(t *testing.T) {
	out := View{Search: "REPORT"}.Apply(viewBoard())
	assert.Equal(t, []model.TaskID{"1"}, ids(out[model.StatusTodo]))
	assert.Equal(t, []model.TaskID{"3"}, ids(out[model.StatusDoing]))
	assert.Empty(t, out[model.StatusExpired])

	out = View{Search: "quarter"}.Apply(viewBoard())
	assert.Zero(t, out.Count(), "descriptions are not searched")

	doing := model.StatusDoing
	out = View{Status: &doing, Priority: model.PriorityHigh}.Apply(viewBoard())
	assert.Equal(t, []model.TaskID{"3"}, ids(out.All()))

	out = View{Priority: model.PriorityLow}.Apply(viewBoard())
	assert.Equal(t, []model.TaskID{"2"}, ids(out.All()))
}

func TestParseView(t *testing.T) {
	v, err := ParseView("q=report status=doing priority=HIGH order=desc")
	require.NoError(t, err)
	assert.Equal(t, "report", v.Search)
	require.NotNil(t, v.Status)
	assert.Equal(t, model.StatusDoing, *v.Status)
	assert.Equal(t, model.PriorityHigh, v.Priority)
	assert.True(t, v.Descending)
	assert.True(t, v.Active())
	assert.Equal(t, "q=report status=doing priority=high order=desc", v.String())

	v, err = ParseView("weekly report status=all")
	require.NoError(t, err)
	assert.Equal(t, "weekly report", v.Search)
	assert.Nil(t, v.Status)

	v, err = ParseView("")
	require.NoError(t, err)
	assert.False(t, v.Active())

	for _, bad := range []string{"status=later", "priority=urgent", "order=up", "color=red"} {
		_, err := ParseView(bad)
		assert.Error(t, err, bad)
	}
}
