package adminapi

// Read models for the admin panel. These mirror the shared tables directly;
// the admin surface is read-only and does not reshape beyond JSON naming.

// User is a dashboard operator account on the calling platform.
type User struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspaceId"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	CreatedAt   int64  `json:"createdAt"`
}

// Workspace is a tenant.
type Workspace struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Plan      string `json:"plan"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"createdAt"`
}

// Agent is a configured voice agent.
type Agent struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspaceId"`
	Name        string `json:"name"`
	Voice       string `json:"voice"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"createdAt"`
}

// Call is a completed or in-progress call record.
type Call struct {
	ID              string  `json:"id"`
	WorkspaceID     string  `json:"workspaceId"`
	AgentID         *string `json:"agentId"`
	FromNumber      string  `json:"fromNumber"`
	ToNumber        string  `json:"toNumber"`
	Direction       string  `json:"direction"`
	Outcome         *string `json:"outcome"`
	DurationSeconds int     `json:"durationSeconds"`
	StartedAt       *int64  `json:"startedAt"`
	CreatedAt       int64   `json:"createdAt"`
}

// OutboundJob is a scheduled outbound dial.
type OutboundJob struct {
	ID          string  `json:"id"`
	WorkspaceID string  `json:"workspaceId"`
	AgentID     *string `json:"agentId"`
	LeadName    string  `json:"leadName"`
	PhoneE164   string  `json:"phoneE164"`
	Status      string  `json:"status"`
	ScheduledAt *int64  `json:"scheduledAt"`
	CreatedAt   int64   `json:"createdAt"`
}

// PhoneNumber is a provisioned inbound/outbound number.
type PhoneNumber struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspaceId"`
	NumberE164  string `json:"numberE164"`
	Provider    string `json:"provider"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"createdAt"`
}

// DashboardStats is the aggregate-counts payload for the admin landing page.
type DashboardStats struct {
	Users      int64 `json:"users"`
	Workspaces int64 `json:"workspaces"`
	Agents     int64 `json:"agents"`
	Contacts   int64 `json:"contacts"`
	CallsTotal int64 `json:"callsTotal"`
	CallsToday int64 `json:"callsToday"`
	ActiveJobs int64 `json:"activeJobs"`
}

// BillingRow is one workspace's usage rollup.
type BillingRow struct {
	WorkspaceID   string  `json:"workspaceId"`
	WorkspaceName string  `json:"workspaceName"`
	Plan          string  `json:"plan"`
	TotalCalls    int64   `json:"totalCalls"`
	TotalMinutes  float64 `json:"totalMinutes"`
	Contacts      int64   `json:"contacts"`
}
