package harvest

// State is the orchestrator's position in a run. Normalization,
// classification and dedup happen synchronously inside Fetching, they
// never block and get no state of their own.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateExporting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateExporting:
		return "exporting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}
