package session

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pronicx/solidtime-cli/internal/solidtime"
)

// Catalog holds the last successful fetch of the organization's
// projects, tasks and tags. The three collections are replaced
// atomically by Refresh; a failed refresh clears all of them rather
// than leaving a stale partial set.
type Catalog struct {
	mu        sync.RWMutex
	projects  []solidtime.Project
	tasks     []solidtime.Task
	tags      []solidtime.Tag
	fetchedAt time.Time
}

func NewCatalog() *Catalog {
	return &Catalog{}
}

func (c *Catalog) Refresh(ctx context.Context, client *solidtime.Client, orgID string) error {
	var (
		wg       sync.WaitGroup
		projects []solidtime.Project
		tasks    []solidtime.Task
		tags     []solidtime.Tag
		errMu    sync.Mutex
		firstErr error
	)

	record := func(err error) {
		errMu.Lock()
		defer errMu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		var err error
		if projects, err = client.GetProjects(ctx, orgID); err != nil {
			record(err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if tasks, err = client.GetTasks(ctx, orgID, ""); err != nil {
			record(err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if tags, err = client.GetTags(ctx, orgID); err != nil {
			record(err)
		}
	}()
	wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()

	if firstErr != nil {
		c.projects = nil
		c.tasks = nil
		c.tags = nil
		c.fetchedAt = time.Time{}
		return firstErr
	}

	sortTags(tags)
	c.projects = projects
	c.tasks = tasks
	c.tags = tags
	c.fetchedAt = time.Now()
	return nil
}

func (c *Catalog) Projects() []solidtime.Project {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]solidtime.Project, len(c.projects))
	copy(result, c.projects)
	return result
}

// Tasks returns the cached tasks, optionally scoped to one project.
func (c *Catalog) Tasks(projectID string) []solidtime.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []solidtime.Task
	for _, t := range c.tasks {
		if projectID == "" || t.ProjectID == projectID {
			result = append(result, t)
		}
	}
	return result
}

func (c *Catalog) Tags() []solidtime.Tag {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]solidtime.Tag, len(c.tags))
	copy(result, c.tags)
	return result
}

func (c *Catalog) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}

// ProjectByRef resolves a project by id or, failing that, by
// case-insensitive name.
func (c *Catalog) ProjectByRef(ref string) *solidtime.Project {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := range c.projects {
		if c.projects[i].ID == ref {
			p := c.projects[i]
			return &p
		}
	}
	for i := range c.projects {
		if strings.EqualFold(c.projects[i].Name, ref) {
			p := c.projects[i]
			return &p
		}
	}
	return nil
}

func (c *Catalog) ProjectByID(id string) *solidtime.Project {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := range c.projects {
		if c.projects[i].ID == id {
			p := c.projects[i]
			return &p
		}
	}
	return nil
}

// TaskByRef resolves a task within a project by id or name.
func (c *Catalog) TaskByRef(projectID, ref string) *solidtime.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := range c.tasks {
		t := c.tasks[i]
		if t.ProjectID != projectID {
			continue
		}
		if t.ID == ref || strings.EqualFold(t.Name, ref) {
			return &t
		}
	}
	return nil
}

// TagByRef resolves a tag by id or case-insensitive name.
func (c *Catalog) TagByRef(ref string) *solidtime.Tag {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := range c.tags {
		if c.tags[i].ID == ref || strings.EqualFold(c.tags[i].Name, ref) {
			t := c.tags[i]
			return &t
		}
	}
	return nil
}

func (c *Catalog) HasTagNamed(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, t := range c.tags {
		if strings.EqualFold(t.Name, name) {
			return true
		}
	}
	return false
}

// AddTag inserts a freshly created tag, keeping the cache sorted by
// name. Tag creation updates the cache incrementally; it never forces a
// full refresh.
func (c *Catalog) AddTag(tag solidtime.Tag) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tags = append(c.tags, tag)
	sortTags(c.tags)
}

func sortTags(tags []solidtime.Tag) {
	sort.Slice(tags, func(i, j int) bool {
		return strings.ToLower(tags[i].Name) < strings.ToLower(tags[j].Name)
	})
}
