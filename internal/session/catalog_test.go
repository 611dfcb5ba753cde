package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pronicx/solidtime-cli/internal/solidtime"
)

func catalogHandler(failTasks *atomic.Bool) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/organizations/o1/projects", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"p1","name":"Alpha","color":"#ff0000"},{"id":"p2","name":"Beta"}],"links":{"next":null}}`))
	})
	mux.HandleFunc("GET /v1/organizations/o1/tasks", func(w http.ResponseWriter, r *http.Request) {
		if failTasks != nil && failTasks.Load() {
			http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"data":[{"id":"task1","name":"Spec","project_id":"p1"},{"id":"task2","name":"Impl","project_id":"p2"}],"links":{"next":null}}`))
	})
	mux.HandleFunc("GET /v1/organizations/o1/tags", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"t2","name":"Focus"},{"id":"t1","name":"deep work"}]}`))
	})
	return mux
}

func newCatalogClient(t *testing.T, handler http.Handler) *solidtime.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return solidtime.NewClient("key", server.URL, nil, nil)
}

func TestCatalogRefreshPopulatesAndSorts(t *testing.T) {
	client := newCatalogClient(t, catalogHandler(nil))
	catalog := NewCatalog()

	require.NoError(t, catalog.Refresh(context.Background(), client, "o1"))

	assert.Len(t, catalog.Projects(), 2)
	assert.Len(t, catalog.Tasks(""), 2)

	tags := catalog.Tags()
	require.Len(t, tags, 2)
	assert.Equal(t, "deep work", tags[0].Name, "tags sorted case-insensitively by name")
	assert.False(t, catalog.FetchedAt().IsZero())
}

func TestCatalogRefreshClearsAllOnPartialFailure(t *testing.T) {
	var failTasks atomic.Bool
	client := newCatalogClient(t, catalogHandler(&failTasks))
	catalog := NewCatalog()

	require.NoError(t, catalog.Refresh(context.Background(), client, "o1"))
	require.NotEmpty(t, catalog.Projects())

	failTasks.Store(true)
	err := catalog.Refresh(context.Background(), client, "o1")
	require.Error(t, err)

	// no stale partial set: one failed fetch empties everything
	assert.Empty(t, catalog.Projects())
	assert.Empty(t, catalog.Tasks(""))
	assert.Empty(t, catalog.Tags())
	assert.True(t, catalog.FetchedAt().IsZero())
}

func TestCatalogTaskScoping(t *testing.T) {
	client := newCatalogClient(t, catalogHandler(nil))
	catalog := NewCatalog()
	require.NoError(t, catalog.Refresh(context.Background(), client, "o1"))

	tasks := catalog.Tasks("p1")
	require.Len(t, tasks, 1)
	assert.Equal(t, "Spec", tasks[0].Name)

	assert.Nil(t, catalog.TaskByRef("p2", "Spec"), "task lookup is scoped to the project")
	require.NotNil(t, catalog.TaskByRef("p1", "spec"))
}

func TestCatalogRefLookups(t *testing.T) {
	client := newCatalogClient(t, catalogHandler(nil))
	catalog := NewCatalog()
	require.NoError(t, catalog.Refresh(context.Background(), client, "o1"))

	require.NotNil(t, catalog.ProjectByRef("p1"))
	require.NotNil(t, catalog.ProjectByRef("alpha"))
	assert.Nil(t, catalog.ProjectByRef("gamma"))

	require.NotNil(t, catalog.TagByRef("Focus"))
	require.NotNil(t, catalog.TagByRef("t1"))
}

func TestCreateTagRejectsDuplicateBeforeNetwork(t *testing.T) {
	var posts atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/organizations/o1/tags", func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		w.Write([]byte(`{"data":{"id":"t3","name":"Errand"}}`))
	})

	sess, _ := newTestSession(t, "m1", mux)
	sess.Catalog().AddTag(solidtime.Tag{ID: "t1", Name: "Focus"})

	_, err := sess.CreateTag(context.Background(), "focus")
	require.ErrorContains(t, err, "already exists")
	assert.Zero(t, posts.Load())

	tag, err := sess.CreateTag(context.Background(), "Errand")
	require.NoError(t, err)
	assert.Equal(t, "t3", tag.ID)
	assert.Equal(t, int32(1), posts.Load())
}

func TestAddTagKeepsSortedPosition(t *testing.T) {
	catalog := NewCatalog()
	catalog.AddTag(solidtime.Tag{ID: "t1", Name: "Deep Work"})
	catalog.AddTag(solidtime.Tag{ID: "t2", Name: "Focus"})
	catalog.AddTag(solidtime.Tag{ID: "t3", Name: "errand"})

	tags := catalog.Tags()
	require.Len(t, tags, 3)
	assert.Equal(t, []string{"Deep Work", "errand", "Focus"}, []string{tags[0].Name, tags[1].Name, tags[2].Name})
}
