package observability

import (
	"sync"
	"time"
)

type Role string

const (
	RoleIdle      Role = "IDLE"
	RolePlanning  Role = "PLANNING"
	RoleExecuting Role = "EXECUTING"
	RoleReporting Role = "REPORTING"
)

type SystemStatus struct {
	mu            sync.RWMutex
	CurrentRole   Role
	ActiveTask    string
	ActiveRuns    int
	LastHeartbeat time.Time
}

// StatusSnapshot is a point-in-time copy of the global status.
type StatusSnapshot struct {
	Role          Role      `json:"role"`
	Task          string    `json:"task"`
	ActiveRuns    int       `json:"active_runs"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	Uptime        string    `json:"uptime"`
}

var globalStatus = &SystemStatus{
	CurrentRole:   RoleIdle,
	LastHeartbeat: time.Now(),
}

// SetStatus updates the global system status.
func SetStatus(role Role, task string) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.CurrentRole = role
	globalStatus.ActiveTask = task
}

// BeginRun marks a run as active and returns the function that ends it. The
// role falls back to IDLE once the last concurrent run ends.
func BeginRun() func() {
	globalStatus.mu.Lock()
	globalStatus.ActiveRuns++
	globalStatus.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			globalStatus.mu.Lock()
			defer globalStatus.mu.Unlock()
			globalStatus.ActiveRuns--
			if globalStatus.ActiveRuns == 0 {
				globalStatus.CurrentRole = RoleIdle
				globalStatus.ActiveTask = ""
			}
		})
	}
}

// GetStatus retrieves a copy of the global system status.
func GetStatus() (Role, string, time.Time) {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return globalStatus.CurrentRole, globalStatus.ActiveTask, globalStatus.LastHeartbeat
}

// Snapshot returns the status in a serialisable form.
func Snapshot() StatusSnapshot {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return StatusSnapshot{
		Role:          globalStatus.CurrentRole,
		Task:          globalStatus.ActiveTask,
		ActiveRuns:    globalStatus.ActiveRuns,
		LastHeartbeat: globalStatus.LastHeartbeat,
		Uptime:        time.Since(startTime).Round(time.Second).String(),
	}
}

// Heartbeat updates the last heartbeat time.
func Heartbeat() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.LastHeartbeat = time.Now()
}
