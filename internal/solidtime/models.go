package solidtime

// TimeFormat is the exact UTC wire format the service expects for
// timestamps. The service is strict about it: no sub-second digits,
// no numeric offsets.
const TimeFormat = "2006-01-02T15:04:05Z"

type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Timezone  string `json:"timezone"`
	WeekStart string `json:"week_start"`
}

type Organization struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

// Membership is the personal membership record returned by
// /users/me/memberships; its ID doubles as the member id write
// operations require.
type Membership struct {
	ID           string       `json:"id"`
	Role         string       `json:"role"`
	Organization Organization `json:"organization"`
}

// Member is the organization-scoped view of the same record. Writes are
// authorized by Member.ID, not by the global user id.
type Member struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	BillableRate *int   `json:"billable_rate"`
}

type TimeEntry struct {
	ID             string   `json:"id"`
	Start          string   `json:"start"`
	End            *string  `json:"end"`
	Description    *string  `json:"description"`
	ProjectID      *string  `json:"project_id"`
	TaskID         *string  `json:"task_id"`
	OrganizationID string   `json:"organization_id"`
	UserID         string   `json:"user_id"`
	Tags           []string `json:"tags"`
	Billable       bool     `json:"billable"`
}

type Project struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Color      string `json:"color"`
	IsArchived bool   `json:"is_archived"`
	IsBillable bool   `json:"is_billable"`
}

type Task struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsDone    bool   `json:"is_done"`
	ProjectID string `json:"project_id"`
}

type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateTimeEntryPayload is the body of the start POST. The server
// assigns the id and fixes start at creation time.
type CreateTimeEntryPayload struct {
	MemberID    string   `json:"member_id"`
	Start       string   `json:"start"`
	Billable    bool     `json:"billable"`
	ProjectID   *string  `json:"project_id,omitempty"`
	TaskID      *string  `json:"task_id,omitempty"`
	Description *string  `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// UpdateTimeEntryPayload is the full-replacement PUT body used for both
// live updates and stops. End set means stop, End nil means live
// update. The type deliberately has no start field: the service
// mishandles attempts to alter the immutable start time.
type UpdateTimeEntryPayload struct {
	MemberID    string   `json:"member_id"`
	End         *string  `json:"end,omitempty"`
	Billable    bool     `json:"billable"`
	ProjectID   *string  `json:"project_id"`
	TaskID      *string  `json:"task_id"`
	Description *string  `json:"description"`
	Tags        []string `json:"tags"`
}

type CreateTagPayload struct {
	Name string `json:"name"`
}
