package solidtime

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var wireTimeRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`)

func TestGetActiveTimeEntry404MeansAbsence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	notifier := &countingNotifier{}
	c := NewClient("key", server.URL, notifier, nil)

	entry, err := c.GetActiveTimeEntry(context.Background())
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Zero(t, notifier.count())
}

func TestGetActiveTimeEntryRunning(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/users/me/time-entries/active", r.URL.Path)
		w.Write([]byte(`{"data":{"id":"e1","start":"2024-01-01T12:00:00Z","end":null,"organization_id":"o1","billable":false,"tags":[]}}`))
	}))
	defer server.Close()

	c := NewClient("key", server.URL, nil, nil)
	entry, err := c.GetActiveTimeEntry(context.Background())
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "e1", entry.ID)
	assert.Nil(t, entry.End)
}

func TestStartTimeEntryPayloadShape(t *testing.T) {
	var body map[string]json.RawMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/organizations/o1/time-entries", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.Write([]byte(`{"data":{"id":"e1","start":"2024-01-01T12:00:00Z","organization_id":"o1","billable":true}}`))
	}))
	defer server.Close()

	c := NewClient("key", server.URL, nil, nil)
	entry, err := c.StartTimeEntry(context.Background(), "o1", CreateTimeEntryPayload{
		MemberID: "m1",
		Start:    "2024-01-01T12:00:00Z",
		Billable: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "e1", entry.ID)

	require.Contains(t, body, "member_id")
	require.Contains(t, body, "start")
	assert.NotContains(t, body, "end")

	var start string
	require.NoError(t, json.Unmarshal(body["start"], &start))
	assert.Regexp(t, wireTimeRe, start)
}

func TestStartTimeEntryValidatesBeforeNetwork(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	c := NewClient("key", server.URL, nil, nil)

	_, err := c.StartTimeEntry(context.Background(), "", CreateTimeEntryPayload{MemberID: "m1"})
	assert.ErrorContains(t, err, "organization id is empty")

	_, err = c.StartTimeEntry(context.Background(), "o1", CreateTimeEntryPayload{})
	assert.ErrorContains(t, err, "member id is empty")

	assert.Zero(t, requests)
}

func TestUpdateTimeEntryNeverSendsStart(t *testing.T) {
	var body map[string]json.RawMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/v1/organizations/o1/time-entries/e1", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.Write([]byte(`{"data":{"id":"e1","start":"2024-01-01T12:00:00Z","end":"2024-01-01T13:00:00Z","organization_id":"o1","billable":false}}`))
	}))
	defer server.Close()

	c := NewClient("key", server.URL, nil, nil)
	end := "2024-01-01T13:00:00Z"
	_, err := c.UpdateTimeEntry(context.Background(), "o1", "e1", UpdateTimeEntryPayload{
		MemberID: "m1",
		End:      &end,
		Tags:     []string{},
	})
	require.NoError(t, err)

	assert.NotContains(t, body, "start")
	assert.Contains(t, body, "member_id")
	assert.Contains(t, body, "end")
	assert.Contains(t, body, "tags")
}

func TestUpdateTimeEntryOmitsEndForLiveUpdate(t *testing.T) {
	var body map[string]json.RawMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.Write([]byte(`{"data":{"id":"e1","start":"2024-01-01T12:00:00Z","organization_id":"o1","billable":false}}`))
	}))
	defer server.Close()

	c := NewClient("key", server.URL, nil, nil)
	_, err := c.UpdateTimeEntry(context.Background(), "o1", "e1", UpdateTimeEntryPayload{
		MemberID: "m1",
		Tags:     []string{"t1"},
	})
	require.NoError(t, err)

	assert.NotContains(t, body, "end")
	assert.NotContains(t, body, "start")
}

func TestGetMembersIsBestEffort(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient("key", server.URL, nil, nil)
	members := c.GetMembers(context.Background(), "o1")
	assert.Empty(t, members)
}

func TestGetMembersPaginated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"m1","user_id":"u1"},{"id":"m2","user_id":"u2"}],"links":{"next":null}}`))
	}))
	defer server.Close()

	c := NewClient("key", server.URL, nil, nil)
	members := c.GetMembers(context.Background(), "o1")
	require.Len(t, members, 2)
	assert.Equal(t, "u1", members[0].UserID)
}

func TestGetCurrentUserRejectsUnexpectedShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"something":"else"}`))
	}))
	defer server.Close()

	c := NewClient("key", server.URL, nil, nil)
	_, err := c.GetCurrentUser(context.Background())
	assert.ErrorContains(t, err, "unexpected payload")
}

func TestGetTagsPlainEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"t1","name":"Focus"},{"id":"t2","name":"Deep Work"}]}`))
	}))
	defer server.Close()

	c := NewClient("key", server.URL, nil, nil)
	tags, err := c.GetTags(context.Background(), "o1")
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "Focus", tags[0].Name)
}

func TestCreateTagValidatesName(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	c := NewClient("key", server.URL, nil, nil)
	_, err := c.CreateTag(context.Background(), "o1", "")
	assert.ErrorContains(t, err, "name is empty")
	assert.Zero(t, requests)
}

func TestGetTasksScopedToProject(t *testing.T) {
	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Write([]byte(`{"data":[{"id":"task1","name":"Do it","project_id":"p1"}],"links":{"next":null}}`))
	}))
	defer server.Close()

	c := NewClient("key", server.URL, nil, nil)
	tasks, err := c.GetTasks(context.Background(), "o1", "p1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Contains(t, query, "done=false")
	assert.Contains(t, query, "project_id=p1")
}
