package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pronicx/solidtime-cli/internal/config"
	"github.com/pronicx/solidtime-cli/internal/solidtime"
)

type State int

const (
	StateIdle State = iota
	StateRunning
	StateAuthError
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateAuthError:
		return "auth error"
	default:
		return "idle"
	}
}

// Session owns the active-entry reference and is the single mutation
// point for it. Writes and refreshes may overlap on the wire; every
// operation draws a sequence number when it issues its request, and a
// response whose sequence is older than the last one applied is
// discarded, so the most recently received server response always wins.
type Session struct {
	client *solidtime.Client
	cfg    *config.Config
	logger *slog.Logger

	catalog *Catalog

	mu       sync.Mutex
	user     *solidtime.User
	active   *solidtime.TimeEntry
	state    State
	seq      uint64
	applied  uint64
	syncedAt time.Time

	onChange func()
}

func New(client *solidtime.Client, cfg *config.Config, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{
		client:  client,
		cfg:     cfg,
		logger:  logger,
		catalog: NewCatalog(),
	}
}

// OnChange registers the hook invoked after every state transition so
// presentation layers can redraw.
func (s *Session) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *Session) Catalog() *Catalog {
	return s.catalog
}

// Client exposes the underlying API client for read paths that do not
// touch the active-entry state, e.g. membership listing at login.
func (s *Session) Client() *solidtime.Client {
	return s.client
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Active returns a copy of the cached active entry, or nil.
func (s *Session) Active() *solidtime.TimeEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	entry := *s.active
	return &entry
}

// Elapsed derives the running duration from the entry's start. It is
// recomputed on every observation; no running total is accumulated.
func (s *Session) Elapsed() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return 0, false
	}
	start, err := parseWireTime(s.active.Start)
	if err != nil {
		return 0, false
	}
	return time.Since(start), true
}

type StartOptions struct {
	Description string
	ProjectID   string
	TaskID      string
	Tags        []string
	Billable    *bool
}

// Start creates a new active entry. It refuses when an entry is already
// cached locally, and refreshes first when the local view is stale so a
// timer started from another client is noticed before we try.
func (s *Session) Start(ctx context.Context, opts StartOptions) (*solidtime.TimeEntry, error) {
	if s.isStale() {
		if err := s.Refresh(ctx); err != nil && isAuthErr(err) {
			return nil, err
		}
	}

	s.mu.Lock()
	if s.active != nil {
		desc := ""
		if s.active.Description != nil {
			desc = *s.active.Description
		}
		s.mu.Unlock()
		return nil, fmt.Errorf("a timer is already running (%s)", orUntitled(desc))
	}
	s.mu.Unlock()

	orgID := s.cfg.Organization.ID
	if orgID == "" {
		return nil, &solidtime.ConfigError{Missing: "organization"}
	}

	memberID, err := s.resolveMemberID(ctx)
	if err != nil {
		return nil, err
	}

	billable := s.cfg.Defaults.Billable
	if opts.Billable != nil {
		billable = *opts.Billable
	}

	payload := solidtime.CreateTimeEntryPayload{
		MemberID:    memberID,
		Start:       time.Now().UTC().Format(solidtime.TimeFormat),
		Billable:    billable,
		ProjectID:   optString(opts.ProjectID),
		TaskID:      optString(opts.TaskID),
		Description: optString(opts.Description),
		Tags:        opts.Tags,
	}

	seq := s.nextSeq()
	entry, err := s.client.StartTimeEntry(ctx, orgID, payload)
	if err != nil {
		return nil, err
	}

	s.apply(seq, entry)
	return entry, nil
}

// Stop ends the running entry. Local state is cleared optimistically
// before the PUT resolves; a failed PUT triggers a full refresh instead
// of restoring the cleared value, since the true remote state is
// unknown after the failure.
func (s *Session) Stop(ctx context.Context) (*solidtime.TimeEntry, error) {
	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return nil, errors.New("no timer is running")
	}
	snapshot := *s.active
	s.mu.Unlock()

	if err := checkIntegrity(&snapshot); err != nil {
		s.refreshQuietly(ctx)
		return nil, err
	}

	memberID, err := s.resolveMemberID(ctx)
	if err != nil {
		return nil, err
	}

	payload := solidtime.UpdateTimeEntryPayload{
		MemberID:    memberID,
		End:         optString(time.Now().UTC().Format(solidtime.TimeFormat)),
		Billable:    snapshot.Billable,
		ProjectID:   snapshot.ProjectID,
		TaskID:      snapshot.TaskID,
		Description: snapshot.Description,
		Tags:        tagsOrEmpty(snapshot.Tags),
	}

	seq := s.clearOptimistically()

	entry, err := s.client.UpdateTimeEntry(ctx, snapshot.OrganizationID, snapshot.ID, payload)
	if err != nil {
		s.refreshQuietly(ctx)
		return nil, err
	}

	s.apply(seq, entry)
	return entry, nil
}

// UpdateOptions carries field changes for a live update. Nil means
// keep the cached value; a pointer to the empty string clears a
// nullable field.
type UpdateOptions struct {
	Description *string
	ProjectID   *string
	TaskID      *string
	Tags        []string
	Billable    *bool
}

// Update edits the running entry in place. The payload merges the
// requested changes over the cached entry's other fields and the
// server's response replaces local state, never a locally merged guess.
func (s *Session) Update(ctx context.Context, opts UpdateOptions) (*solidtime.TimeEntry, error) {
	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return nil, errors.New("no timer is running")
	}
	snapshot := *s.active
	s.mu.Unlock()

	if err := checkIntegrity(&snapshot); err != nil {
		s.refreshQuietly(ctx)
		return nil, err
	}

	memberID, err := s.resolveMemberID(ctx)
	if err != nil {
		return nil, err
	}

	payload := solidtime.UpdateTimeEntryPayload{
		MemberID:    memberID,
		Billable:    snapshot.Billable,
		ProjectID:   snapshot.ProjectID,
		TaskID:      snapshot.TaskID,
		Description: snapshot.Description,
		Tags:        tagsOrEmpty(snapshot.Tags),
	}
	if opts.Description != nil {
		payload.Description = nilIfEmpty(opts.Description)
	}
	if opts.ProjectID != nil {
		payload.ProjectID = nilIfEmpty(opts.ProjectID)
		// a task is only valid under its own project
		if opts.TaskID == nil {
			payload.TaskID = nil
		}
	}
	if opts.TaskID != nil {
		payload.TaskID = nilIfEmpty(opts.TaskID)
	}
	if opts.Tags != nil {
		payload.Tags = opts.Tags
	}
	if opts.Billable != nil {
		payload.Billable = *opts.Billable
	}

	seq := s.nextSeq()
	entry, err := s.client.UpdateTimeEntry(ctx, snapshot.OrganizationID, snapshot.ID, payload)
	if err != nil {
		return nil, err
	}

	s.apply(seq, entry)
	return entry, nil
}

// Refresh replaces local state with whatever the server reports. A
// 401/403 moves the session to the auth-error state rather than
// silently degrading to idle; any other failure falls back to idle
// while the transport surfaces the error.
func (s *Session) Refresh(ctx context.Context) error {
	seq := s.nextSeq()
	entry, err := s.client.GetActiveTimeEntry(ctx)
	if err != nil {
		var hook func()
		s.mu.Lock()
		if seq >= s.applied {
			s.applied = seq
			s.active = nil
			if isAuthErr(err) {
				s.state = StateAuthError
			} else {
				s.state = StateIdle
			}
			s.syncedAt = time.Now()
			hook = s.onChange
		}
		s.mu.Unlock()
		if hook != nil {
			hook()
		}
		return err
	}

	s.apply(seq, entry)
	return nil
}

func (s *Session) RefreshCatalog(ctx context.Context) error {
	orgID := s.cfg.Organization.ID
	if orgID == "" {
		return &solidtime.ConfigError{Missing: "organization"}
	}
	return s.catalog.Refresh(ctx, s.client, orgID)
}

// CreateTag creates a tag remotely and inserts it into the catalog.
// A name already present locally is rejected before any network call.
func (s *Session) CreateTag(ctx context.Context, name string) (*solidtime.Tag, error) {
	if name == "" {
		return nil, errors.New("tag name is empty")
	}
	if s.catalog.HasTagNamed(name) {
		return nil, fmt.Errorf("tag %q already exists", name)
	}

	orgID := s.cfg.Organization.ID
	if orgID == "" {
		return nil, &solidtime.ConfigError{Missing: "organization"}
	}

	tag, err := s.client.CreateTag(ctx, orgID, name)
	if err != nil {
		return nil, err
	}

	s.catalog.AddTag(*tag)
	return tag, nil
}

// CurrentUser fetches the authenticated user once and caches it for
// the lifetime of the session.
func (s *Session) CurrentUser(ctx context.Context) (*solidtime.User, error) {
	s.mu.Lock()
	cached := s.user
	s.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	user, err := s.client.GetCurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	return user, nil
}

// resolveMemberID produces the membership id write operations require.
// The id cached at login time is preferred; when absent it is re-derived
// from the organization's member list, since membership can change
// independently of this client's configuration and the service
// authorizes writes by membership, not by user id.
func (s *Session) resolveMemberID(ctx context.Context) (string, error) {
	if id := s.cfg.Organization.MemberID; id != "" {
		return id, nil
	}

	orgID := s.cfg.Organization.ID
	if orgID == "" {
		return "", &solidtime.ConfigError{Missing: "organization"}
	}

	user, err := s.CurrentUser(ctx)
	if err != nil {
		return "", err
	}

	for _, m := range s.client.GetMembers(ctx, orgID) {
		if m.UserID == user.ID {
			s.cfg.Organization.MemberID = m.ID
			if err := config.SaveSelection(orgID, m.ID); err != nil {
				s.logger.Warn("could not persist re-derived member id", "error", err)
			}
			s.logger.Debug("re-derived member id", "member", m.ID)
			return m.ID, nil
		}
	}
	return "", fmt.Errorf("user %s not found in organization %s", user.ID, orgID)
}

func (s *Session) nextSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// apply installs a server response as local truth unless a newer
// response has already been applied.
func (s *Session) apply(seq uint64, entry *solidtime.TimeEntry) {
	s.mu.Lock()
	if seq < s.applied {
		s.logger.Debug("discarding stale response", "seq", seq, "applied", s.applied)
		s.mu.Unlock()
		return
	}
	s.applied = seq
	s.syncedAt = time.Now()
	if entry == nil || entry.End != nil {
		s.active = nil
		s.state = StateIdle
	} else {
		copied := *entry
		s.active = &copied
		s.state = StateRunning
	}
	hook := s.onChange
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
}

// clearOptimistically empties the local active entry ahead of a stop
// PUT so observers see "stopped" immediately, and returns the sequence
// number the PUT's response will be applied under.
func (s *Session) clearOptimistically() uint64 {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.active = nil
	s.state = StateIdle
	hook := s.onChange
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return seq
}

func (s *Session) refreshQuietly(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil {
		s.logger.Debug("reconciliation refresh failed", "error", err)
	}
}

// isStale reports whether the last sync with the server is older
// than the active-entry refresh interval.
func (s *Session) isStale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	interval := time.Duration(s.cfg.Refresh.ActiveSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return s.syncedAt.IsZero() || time.Since(s.syncedAt) > interval
}

func checkIntegrity(entry *solidtime.TimeEntry) error {
	if entry.OrganizationID == "" {
		return &solidtime.IntegrityError{Reason: "active entry has no organization id"}
	}
	if entry.Start == "" {
		return &solidtime.IntegrityError{Reason: "active entry has no start time"}
	}
	return nil
}

func isAuthErr(err error) bool {
	var apiErr *solidtime.APIError
	return errors.As(err, &apiErr) && apiErr.Unauthorized()
}

func parseWireTime(s string) (time.Time, error) {
	t, err := time.Parse(solidtime.TimeFormat, s)
	if err != nil {
		return time.Parse(time.RFC3339, s)
	}
	return t, nil
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nilIfEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func orUntitled(desc string) string {
	if desc == "" {
		return "untitled"
	}
	return desc
}
