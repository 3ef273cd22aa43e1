package convert

// Outcome is the fate of one slice.
type Outcome int

const (
	Written Outcome = iota
	Skipped
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Written:
		return "written"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// SliceResult reports one input slice. Files that failed to decode have
// Index -1.
type SliceResult struct {
	Index      int
	SourceFile string
	Frame      int
	// Instance is the 0-based output instance the slice is packed into.
	Instance       int
	Outcome        Outcome
	Detail         string
	Err            error
	OutputFile     string
	SOPInstanceUID string
}

// Totals counts slice outcomes.
type Totals struct {
	Written int
	Skipped int
	Failed  int
}

// Result aggregates a conversion run.
type Result struct {
	// Slices are in discovery order.
	Slices []SliceResult
	Totals Totals

	StudyInstanceUID    string
	SeriesInstanceUID   string
	FrameOfReferenceUID string
	OutputPath          string
	DICOMDIR            string

	Warnings []string
	State    State
}

// HasFailures reports whether at least one slice failed.
func (r *Result) HasFailures() bool { return r.Totals.Failed > 0 }

func (r *Result) count() {
	r.Totals = Totals{}
	for _, s := range r.Slices {
		switch s.Outcome {
		case Written:
			r.Totals.Written++
		case Skipped:
			r.Totals.Skipped++
		case Failed:
			r.Totals.Failed++
		}
	}
}
