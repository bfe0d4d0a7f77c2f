package shutdown

import (
	"context"
	"time"
)

// Mode selects the terminal power action.
type Mode int

const (
	ModePowerOff Mode = iota
	ModeReboot
	ModeRebootToRecovery
)

// RecoveryReason is the reboot argument that selects the recovery target.
const RecoveryReason = "recovery"

func (m Mode) String() string {
	switch m {
	case ModePowerOff:
		return "poweroff"
	case ModeReboot:
		return "reboot"
	case ModeRebootToRecovery:
		return "recovery"
	default:
		return "unknown"
	}
}

// ParseMode is the inverse of Mode.String.
func ParseMode(v string) (Mode, bool) {
	switch v {
	case "poweroff":
		return ModePowerOff, true
	case "reboot":
		return ModeReboot, true
	case "recovery":
		return ModeRebootToRecovery, true
	default:
		return 0, false
	}
}

// ShutdownRequest describes one power-down or restart. It is a value type
// and is never modified after construction.
type ShutdownRequest struct {
	Mode                Mode   `json:"-"`
	Reason              string `json:"reason,omitempty"`
	RequireConfirmation bool   `json:"confirm"`
}

func NewShutdownRequest(confirm bool) ShutdownRequest {
	return ShutdownRequest{Mode: ModePowerOff, RequireConfirmation: confirm}
}

// NewRebootRequest builds a reboot request. The "recovery" reason selects
// the recovery target, as the kernel reboot argument does.
func NewRebootRequest(reason string, confirm bool) ShutdownRequest {
	mode := ModeReboot
	if reason == RecoveryReason {
		mode = ModeRebootToRecovery
	}
	return ShutdownRequest{Mode: mode, Reason: reason, RequireConfirmation: confirm}
}

func NewRecoveryRequest(confirm bool) ShutdownRequest {
	return ShutdownRequest{Mode: ModeRebootToRecovery, Reason: RecoveryReason, RequireConfirmation: confirm}
}

// State is a step of the shutdown pipeline. Transitions only go forward.
type State int

const (
	StateIdle State = iota
	StateClaimed
	StateBroadcastingNotice
	StateShuttingDownLifecycle
	StateQuiescingRadioAndWireless
	StateShuttingDownStorage
	StateExecutingTerminalAction
	// StateTerminalActionReturned is only reached when every power
	// primitive returned control instead of ending the process.
	StateTerminalActionReturned
)

var stateNames = map[State]string{
	StateIdle:                      "idle",
	StateClaimed:                   "claimed",
	StateBroadcastingNotice:        "broadcasting_notice",
	StateShuttingDownLifecycle:     "shutting_down_lifecycle",
	StateQuiescingRadioAndWireless: "quiescing_radio_and_wireless",
	StateShuttingDownStorage:       "shutting_down_storage",
	StateExecutingTerminalAction:   "executing_terminal_action",
	StateTerminalActionReturned:    "terminal_action_returned",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// SubsystemStatus is the last observed power state of a polled subsystem.
type SubsystemStatus int

const (
	StatusUnknown SubsystemStatus = iota
	StatusOn
	StatusOff
)

func (s SubsystemStatus) String() string {
	switch s {
	case StatusOn:
		return "on"
	case StatusOff:
		return "off"
	default:
		return "unknown"
	}
}

// Timings bounds every blocking point of the pipeline.
type Timings struct {
	Broadcast    time.Duration
	Lifecycle    time.Duration
	Storage      time.Duration
	MaxPolls     int
	PollInterval time.Duration
	Vibrate      time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		Broadcast:    10 * time.Second,
		Lifecycle:    10 * time.Second,
		Storage:      20 * time.Second,
		MaxPolls:     16,
		PollInterval: 500 * time.Millisecond,
		Vibrate:      500 * time.Millisecond,
	}
}

// PhaseDeadline tracks the wait budget of one timed phase.
type PhaseDeadline struct {
	Start time.Time
	Max   time.Duration
}

func NewPhaseDeadline(max time.Duration) PhaseDeadline {
	return PhaseDeadline{Start: time.Now(), Max: max}
}

func (d PhaseDeadline) Deadline() time.Time {
	return d.Start.Add(d.Max)
}

// Remaining never goes below zero.
func (d PhaseDeadline) Remaining() time.Duration {
	if r := time.Until(d.Deadline()); r > 0 {
		return r
	}
	return 0
}

// TopicShutdown is the topic of the ordered shutdown notice.
const TopicShutdown = "power.shutdown"

// Notice is delivered to every broadcast receiver before the subsystems go down.
type Notice struct {
	Topic  string `json:"topic"`
	Mode   string `json:"mode"`
	Reason string `json:"reason,omitempty"`
}

// BroadcastTransport delivers a notice to its receivers in order and calls
// onAllReceiversDone once the last one has finished.
type BroadcastTransport interface {
	SendOrderedNotice(ctx context.Context, notice Notice, onAllReceiversDone func()) error
}

// LifecycleManager stops managed processes. The call is bounded by timeoutHint.
type LifecycleManager interface {
	NotifyShutdown(ctx context.Context, timeoutHint time.Duration) error
}

// SubsystemControl is the narrow contract of the radio and the
// short-range wireless controllers.
type SubsystemControl interface {
	Name() string
	IsOn(ctx context.Context) (bool, error)
	SetOn(ctx context.Context, on bool, persist bool) error
}

// StorageManager flushes and unmounts storage and reports a status code
// through onComplete once done.
type StorageManager interface {
	Shutdown(ctx context.Context, onComplete func(statusCode int)) error
}

// PowerPrimitives performs the irreversible actions. Reboot, RebootToRecovery
// and PowerOff only return on failure.
type PowerPrimitives interface {
	Reboot(reason string) error
	RebootToRecovery(reason string) error
	PowerOff() error
	Vibrate(d time.Duration) error
}

// Confirmer asks for confirmation and calls onConfirm at most once if the
// request is approved. onConfirm reports whether the request claimed the
// pipeline.
type Confirmer interface {
	ConfirmThenProceed(req ShutdownRequest, onConfirm func() bool)
	// Withdraw drops whatever is still waiting for confirmation. It is
	// called once another request has claimed the pipeline.
	Withdraw()
}

// Observer is told about every state transition of the pipeline.
type Observer interface {
	OnStateChange(state State, req ShutdownRequest)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(state State, req ShutdownRequest)

func (f ObserverFunc) OnStateChange(state State, req ShutdownRequest) {
	f(state, req)
}

// Collaborators groups the services used by the pipeline. A nil field is an
// unreachable service.
type Collaborators struct {
	Broadcast BroadcastTransport
	Lifecycle LifecycleManager
	Radio     SubsystemControl
	Wireless  SubsystemControl
	Storage   StorageManager
	Power     PowerPrimitives
}
