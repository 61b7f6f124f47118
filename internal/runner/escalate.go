package runner

// EscalationReason says why a command's outcome could not be resolved
// automatically.
type EscalationReason int

const (
	// UnresolvedExitStatus: the rendezvous returned but no status line
	// was found in the transcript, so the exit code is unknown.
	UnresolvedExitStatus EscalationReason = iota

	// PolicyRejectedExitStatus: a status was parsed but is not in the
	// accepted set for the command.
	PolicyRejectedExitStatus
)

func (r EscalationReason) String() string {
	switch r {
	case UnresolvedExitStatus:
		return "exit status could not be determined"
	case PolicyRejectedExitStatus:
		return "exit status rejected by policy"
	default:
		return "unknown"
	}
}

// Escalation carries the context of a command whose success is in
// doubt. Both "probably fine" (grep found nothing in an unregistered
// pipeline) and "genuinely broken" cases arrive here identically; only
// the decider can tell them apart.
type Escalation struct {
	Command  string
	Reason   EscalationReason
	ExitCode int // meaningful only for PolicyRejectedExitStatus
}

// Decider resolves an escalation to a continue (true) or abort (false)
// decision. It is supplied by the caller: interactively in the CLI,
// programmatically everywhere else. The runner never resolves an
// escalation to a fixed answer on its own.
type Decider func(e Escalation) bool

// AbortDecider always aborts. The safe choice for unattended dispatch
// paths like the relay agent.
func AbortDecider(Escalation) bool { return false }

// ContinueDecider always continues. Useful in tests and fire-and-forget
// scripts that prefer best-effort completion.
func ContinueDecider(Escalation) bool { return true }
