package taskapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/model"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

type failingToken struct{}

func (failingToken) Token(context.Context) (string, error) { return "", errors.New("signed out") }

func TestClientList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/tasks", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		_, _ = io.WriteString(w, `[{"id":1,"title":"a","statusEnum":2,"userId":"u1","dueDate":"2026-10-20T00:00:00Z"},{"id":"x","title":"b","status":"Done","userId":"u2"}]`)
	}))
	defer srv.Close()

	c := New(srv.URL+"/", srv.Client()).WithTokenSource(staticToken("tok"))
	tasks, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, model.TaskID("1"), tasks[0].ID)
	assert.Equal(t, model.StatusDoing, tasks[0].Status)
	assert.Equal(t, model.StatusDone, tasks[1].Status)
}

func TestClientCreateUsesEcho(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get("Authorization"))

		var in model.Task
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		in.ID = "99"
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(in)
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	created, err := c.Create(context.Background(), model.Task{
		Title:    "Write report",
		Priority: model.PriorityHigh,
		Status:   model.StatusTodo,
		DueDate:  time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, model.TaskID("99"), created.ID)
	assert.Equal(t, "Write report", created.Title)
}

func TestClientCreateWithoutEcho(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	created, err := New(srv.URL, nil).Create(context.Background(), model.Task{Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, "t", created.Title)
	assert.Empty(t, created.ID)
}

func TestClientUpdateAndDelete(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPut {
			var in map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.Equal(t, "Expired", in["status"])
			assert.EqualValues(t, 0, in["statusEnum"])
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	require.NoError(t, c.Update(context.Background(), model.Task{ID: "5", Status: model.StatusExpired}))
	require.NoError(t, c.Delete(context.Background(), "5"))
	assert.Equal(t, []string{"PUT /api/tasks/5", "DELETE /api/tasks/5"}, seen)

	assert.Error(t, c.Update(context.Background(), model.Task{}))
	assert.Error(t, c.Delete(context.Background(), ""))
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such task", http.StatusNotFound)
	}))
	defer srv.Close()

	err := New(srv.URL, nil).Delete(context.Background(), "404")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.Equal(t, "no such task", statusErr.Body)
}

func TestClientTokenFailure(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).WithTokenSource(failingToken{}).List(context.Background())
	assert.Error(t, err)
	assert.False(t, called)
}
