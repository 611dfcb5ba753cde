package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pronicx/solidtime-cli/internal/config"
	"github.com/pronicx/solidtime-cli/internal/session"
	"github.com/pronicx/solidtime-cli/internal/solidtime"
	"github.com/pronicx/solidtime-cli/internal/store"
)

func TestRecordIntervalResolvesProjectName(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SOLIDTIME_CONFIG_DIR", dir)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/organizations/o1/projects", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"p1","name":"Alpha","color":"#ff0000"}],"links":{"next":null}}`))
	})
	mux.HandleFunc("GET /v1/organizations/o1/tasks", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[],"links":{"next":null}}`))
	})
	mux.HandleFunc("GET /v1/organizations/o1/tags", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	cfg := config.DefaultConfig()
	cfg.API.Key = "key"
	cfg.Organization.ID = "o1"
	cfg.Organization.MemberID = "m1"
	client := solidtime.NewClient("key", server.URL, nil, nil)
	sess := session.New(client, &cfg, nil)

	now := time.Now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, time.Local)
	end := start.Add(25 * time.Minute)

	projectID := "p1"
	desc := "Deep work"
	entry := &solidtime.TimeEntry{
		ID:             "e1",
		OrganizationID: "o1",
		ProjectID:      &projectID,
		Description:    &desc,
		Billable:       true,
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	recordInterval(context.Background(), sess, log, entry, start, end)

	db, err := store.Open(dir)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.TodayIntervals()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "p1", rows[0].ProjectID)
	assert.Equal(t, "Alpha", rows[0].ProjectName, "project name comes from the fetched catalog")
	assert.Equal(t, 25, rows[0].Minutes())
}

func TestOpenEditorResolvesThroughPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0600))

	// "true" is only reachable via PATH lookup
	require.NoError(t, openEditor(context.Background(), "true", path))
	require.Error(t, openEditor(context.Background(), "no-such-editor-anywhere", path))
}
