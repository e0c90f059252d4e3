package split

// Rebaser shifts one segment's timestamps onto a zero base. The base is the
// original timestamp of the segment's first media tag; every tag in the
// segment, the boundary script tag included, is rewritten to
// max(0, ts-base). The shift preserves order, so monotonic input stays
// monotonic; non-monotonic input is reproduced as-is, never smoothed.
type Rebaser struct {
	established bool
	base        uint32
}

func (rb *Rebaser) Reset() {
	rb.established = false
	rb.base = 0
}

func (rb *Rebaser) Established() bool {
	return rb.established
}

func (rb *Rebaser) SetBase(ts uint32) {
	rb.base = ts
	rb.established = true
}

// Rebase clamps at zero: the capture may stamp the metadata tag slightly
// earlier than the first media tag, and negative timestamps are illegal in
// the output container.
func (rb *Rebaser) Rebase(ts uint32) uint32 {
	if ts <= rb.base {
		return 0
	}
	return ts - rb.base
}
