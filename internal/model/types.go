package model

// Wire types for the HTTP API.

type FacilityIn struct {
	ID          string `json:"id"`
	UnitsPerDay int    `json:"unitsPerDay"`
	CostPerUnit int64  `json:"costPerUnit"`
	SetupCost   int64  `json:"setupCost"`
	SetupDays   int    `json:"setupDays"`
}

type OptimizeRequest struct {
	TenantID     string       `json:"tenantId"`
	PlanDate     string       `json:"planDate,omitempty"`
	Deadline     int          `json:"deadline"`
	Orders       []int        `json:"orders"`
	Facilities   []FacilityIn `json:"facilities"`
	SetupCharge  string       `json:"setupCharge,omitempty"` // per_order (default), per_facility
	TimeBudgetMs int          `json:"timeBudgetMs,omitempty"`
	MaxNodes     int          `json:"maxNodes,omitempty"`
}

const (
	PlanFeasible   = "feasible"
	PlanInfeasible = "infeasible"
)

// Plan is a solved optimize request. TotalCost is -1 when Status is infeasible.
type Plan struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenantId"`
	PlanDate    string         `json:"planDate,omitempty"`
	Status      string         `json:"status"`
	Deadline    int            `json:"deadline"`
	SetupCharge string         `json:"setupCharge"`
	Orders      []int          `json:"orders"`
	Facilities  []FacilityIn   `json:"facilities"`
	TotalCost   int64          `json:"totalCost"`
	Assignments []FacilityPlan `json:"assignments"`
	Stats       SolveStats     `json:"stats"`
	CreatedAt   string         `json:"createdAt,omitempty"`
}

type FacilityPlan struct {
	FacilityID string `json:"facilityId"`
	Orders     []int  `json:"orders"`
	TotalDays  int    `json:"totalDays"`
	TotalCost  int64  `json:"totalCost"`
}

type SolveStats struct {
	Nodes         int   `json:"nodes"`
	BoundPrunes   int   `json:"boundPrunes"`
	DeadlineSkips int   `json:"deadlineSkips"`
	Improvements  int   `json:"improvements"`
	ElapsedMs     int64 `json:"elapsedMs"`
}

type SubscriptionRequest struct {
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret"`
}

type Subscription struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret,omitempty"`
}

// Event is published on the broker and delivered to webhooks.
type Event struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	TenantID string         `json:"tenantId"`
	TS       string         `json:"ts"`
	Data     map[string]any `json:"data,omitempty"`
}

const (
	EventPlanSolved     = "plan.solved"
	EventPlanInfeasible = "plan.infeasible"
)
