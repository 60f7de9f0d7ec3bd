package types

import "time"

// VMState represents the lifecycle state of the guest from the host's
// perspective.
type VMState string

const (
	VMStateConfiguring VMState = "configuring" // configuration being assembled and validated
	VMStateStarting    VMState = "starting"    // start requested, completion pending
	VMStateRunning     VMState = "running"     // guest is up
	VMStateStopped     VMState = "stopped"     // guest shut down cleanly
	VMStateFailed      VMState = "failed"      // configuration, start or runtime failure
)

// Terminal reports whether the state is final for a launch.
func (s VMState) Terminal() bool {
	return s == VMStateStopped || s == VMStateFailed
}

// validTransitions is the allowed lifecycle graph:
// Configuring → Starting → Running → {Stopped, Failed},
// with Failed reachable from every non-terminal state.
var validTransitions = map[VMState][]VMState{
	VMStateConfiguring: {VMStateStarting, VMStateFailed},
	VMStateStarting:    {VMStateRunning, VMStateFailed},
	VMStateRunning:     {VMStateStopped, VMStateFailed},
}

// CanTransition reports whether moving from one state to another is allowed.
func CanTransition(from, to VMState) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// VM is the runtime record for a launched guest, persisted in the registry.
type VM struct {
	Name   string  `json:"name"`
	State  VMState `json:"state"`
	BootID string  `json:"boot_id,omitempty"` // regenerated on every launch

	// Resources.
	CPU    int    `json:"cpu"`
	Memory int64  `json:"memory"` // bytes
	MAC    string `json:"mac"`

	// Host files backing the guest.
	Disk      string `json:"disk"`
	Seed      string `json:"seed,omitempty"` // empty when no seed device attached
	EFIStore  string `json:"efi_store"`
	MachineID string `json:"machine_id"`

	// Runtime — populated only while the guest is up.
	PID         int    `json:"pid,omitempty"`
	SerialLog   string `json:"serial_log,omitempty"`
	ConsoleSock string `json:"console_sock,omitempty"`

	// Timestamps.
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`
}
