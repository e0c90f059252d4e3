package split

import "fmt"

// SegmentInfo describes one output artifact.
type SegmentInfo struct {
	Index       int
	Path        string
	Tags        int
	Bytes       int64
	Duration    uint32 // ms
	InjectedAVC bool
	InjectedAAC bool
	Remuxed     bool
	RemuxError  string
	PK          bool
	Deleted     bool
}

// Warning records a recoverable defect with enough context to diagnose it.
type Warning struct {
	Segment int
	Offset  int64
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("segment %d offset %d: %s", w.Segment, w.Offset, w.Message)
}

// Report is the outcome of processing one input file. A run that hits
// recoverable errors still produces every valid segment it can; the
// warnings say which outputs are degraded and why.
type Report struct {
	Input       string
	PassThrough bool
	Truncated   bool
	Segments    []SegmentInfo
	Warnings    []Warning
}

func (r *Report) Warnf(segment int, offset int64, format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, Warning{
		Segment: segment,
		Offset:  offset,
		Message: fmt.Sprintf(format, args...),
	})
}

func (r *Report) Degraded() bool {
	return len(r.Warnings) > 0
}
