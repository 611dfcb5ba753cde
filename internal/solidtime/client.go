package solidtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

func (c *Client) GetCurrentUser(ctx context.Context) (*User, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/v1/users/me", nil)
	if err != nil {
		return nil, fmt.Errorf("getting current user: %w", err)
	}

	var envelope struct {
		Data *User `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Data == nil || envelope.Data.ID == "" {
		return nil, fmt.Errorf("parsing current user response: unexpected payload")
	}
	return envelope.Data, nil
}

func (c *Client) GetMemberships(ctx context.Context) ([]Membership, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/v1/users/me/memberships", nil)
	if err != nil {
		return nil, fmt.Errorf("getting memberships: %w", err)
	}

	var envelope struct {
		Data []Membership `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("parsing memberships response: %w", err)
	}
	return envelope.Data, nil
}

// GetMembers lists an organization's members, fully paginated. This is
// a best-effort read used for member-id resolution: any failure returns
// an empty list rather than propagating.
func (c *Client) GetMembers(ctx context.Context, orgID string) []Member {
	if orgID == "" {
		return nil
	}

	items, err := c.paginate(ctx, fmt.Sprintf("/v1/organizations/%s/members", orgID))
	if err != nil {
		c.logger.Debug("member fetch failed", "organization", orgID, "error", err)
		return nil
	}

	members := make([]Member, 0, len(items))
	for _, item := range items {
		var m Member
		if err := json.Unmarshal(item, &m); err != nil {
			c.logger.Debug("skipping malformed member record", "error", err)
			continue
		}
		members = append(members, m)
	}
	return members
}

// GetActiveTimeEntry returns the user's running entry, or nil when the
// service reports none. The documented "no active entry" signal is a
// 404, so a 404 here is absence, never an error.
func (c *Client) GetActiveTimeEntry(ctx context.Context) (*TimeEntry, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/v1/users/me/time-entries/active", nil, http.StatusNotFound)
	if err != nil {
		return nil, fmt.Errorf("getting active time entry: %w", err)
	}
	if body == nil {
		return nil, nil
	}

	var envelope struct {
		Data *TimeEntry `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("parsing active time entry response: %w", err)
	}
	return envelope.Data, nil
}

func (c *Client) StartTimeEntry(ctx context.Context, orgID string, payload CreateTimeEntryPayload) (*TimeEntry, error) {
	if orgID == "" {
		return nil, fmt.Errorf("starting time entry: organization id is empty")
	}
	if payload.MemberID == "" {
		return nil, fmt.Errorf("starting time entry: member id is empty")
	}

	body, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/organizations/%s/time-entries", orgID), payload)
	if err != nil {
		return nil, fmt.Errorf("starting time entry: %w", err)
	}
	return decodeTimeEntry(body)
}

// UpdateTimeEntry issues the full-replacement PUT used both to stop an
// entry (payload.End set) and to edit it while running (payload.End
// nil). The payload never carries start; see UpdateTimeEntryPayload.
func (c *Client) UpdateTimeEntry(ctx context.Context, orgID, entryID string, payload UpdateTimeEntryPayload) (*TimeEntry, error) {
	if orgID == "" {
		return nil, fmt.Errorf("updating time entry: organization id is empty")
	}
	if entryID == "" {
		return nil, fmt.Errorf("updating time entry: entry id is empty")
	}
	if payload.MemberID == "" {
		return nil, fmt.Errorf("updating time entry: member id is empty")
	}

	body, err := c.doRequest(ctx, http.MethodPut, fmt.Sprintf("/v1/organizations/%s/time-entries/%s", orgID, entryID), payload)
	if err != nil {
		return nil, fmt.Errorf("updating time entry: %w", err)
	}
	return decodeTimeEntry(body)
}

func decodeTimeEntry(body []byte) (*TimeEntry, error) {
	var envelope struct {
		Data *TimeEntry `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Data == nil {
		return nil, fmt.Errorf("parsing time entry response: unexpected payload")
	}
	return envelope.Data, nil
}

func (c *Client) GetProjects(ctx context.Context, orgID string) ([]Project, error) {
	if orgID == "" {
		return nil, fmt.Errorf("getting projects: organization id is empty")
	}

	items, err := c.paginate(ctx, fmt.Sprintf("/v1/organizations/%s/projects?archived=false", orgID))
	if err != nil {
		return nil, fmt.Errorf("getting projects: %w", err)
	}

	projects := make([]Project, 0, len(items))
	for _, item := range items {
		var p Project
		if err := json.Unmarshal(item, &p); err != nil {
			return nil, fmt.Errorf("parsing project record: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, nil
}

func (c *Client) GetTasks(ctx context.Context, orgID, projectID string) ([]Task, error) {
	if orgID == "" {
		return nil, fmt.Errorf("getting tasks: organization id is empty")
	}

	path := fmt.Sprintf("/v1/organizations/%s/tasks?done=false", orgID)
	if projectID != "" {
		path += "&project_id=" + url.QueryEscape(projectID)
	}

	items, err := c.paginate(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("getting tasks: %w", err)
	}

	tasks := make([]Task, 0, len(items))
	for _, item := range items {
		var t Task
		if err := json.Unmarshal(item, &t); err != nil {
			return nil, fmt.Errorf("parsing task record: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// GetTags fetches the organization's tags. The endpoint is not
// paginated in practice, but the paginator tolerates both a plain
// {data: []} envelope and an unexpected paginated one, so it is used
// here defensively.
func (c *Client) GetTags(ctx context.Context, orgID string) ([]Tag, error) {
	if orgID == "" {
		return nil, fmt.Errorf("getting tags: organization id is empty")
	}

	items, err := c.paginate(ctx, fmt.Sprintf("/v1/organizations/%s/tags", orgID))
	if err != nil {
		return nil, fmt.Errorf("getting tags: %w", err)
	}

	tags := make([]Tag, 0, len(items))
	for _, item := range items {
		var t Tag
		if err := json.Unmarshal(item, &t); err != nil {
			return nil, fmt.Errorf("parsing tag record: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, nil
}

func (c *Client) CreateTag(ctx context.Context, orgID, name string) (*Tag, error) {
	if orgID == "" {
		return nil, fmt.Errorf("creating tag: organization id is empty")
	}
	if name == "" {
		return nil, fmt.Errorf("creating tag: name is empty")
	}

	body, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/organizations/%s/tags", orgID), CreateTagPayload{Name: name})
	if err != nil {
		return nil, fmt.Errorf("creating tag: %w", err)
	}

	var envelope struct {
		Data *Tag `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Data == nil {
		return nil, fmt.Errorf("parsing tag response: unexpected payload")
	}
	return envelope.Data, nil
}
