package convert

// State is the phase of a conversion run.
type State int

const (
	Idle State = iota
	Reading
	Geometry
	Writing
	Completed
	// StateFailed is entered when reading yields no usable slice.
	StateFailed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Reading:
		return "reading"
	case Geometry:
		return "geometry"
	case Writing:
		return "writing"
	case Completed:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
