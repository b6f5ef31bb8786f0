package domain

import "time"

// ResourceState is the lifecycle state of a virtual desktop.
type ResourceState string

const (
	StatePending    ResourceState = "pending"
	StateRunning    ResourceState = "running"
	StateStopped    ResourceState = "stopped"
	StateRebooting  ResourceState = "rebooting"
	StateTerminated ResourceState = "terminated"
	StateError      ResourceState = "error"
)

// Resource represents one virtual desktop in the fleet.
type Resource struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	State        ResourceState     `json:"state"`
	Pool         string            `json:"pool"`
	Region       string            `json:"region"`
	AssignedUser string            `json:"assigned_user,omitempty"`
	Bundle       string            `json:"bundle"`
	RunningMode  string            `json:"running_mode"` // "always-on" or "auto-stop"
	MonthlyCost  float64           `json:"monthly_cost"`
	Tags         map[string]string `json:"tags,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// ResourceFilter narrows a fleet listing. Zero values match everything.
type ResourceFilter struct {
	State  ResourceState
	Pool   string
	Region string
	Query  string // substring match on id, name, or assigned user
}
