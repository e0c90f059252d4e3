package split

import (
	"os"

	"flvsplit/av"
	"flvsplit/container/flv"
)

// segment is one in-flight output file. Script tags arriving before the
// segment's timestamp base is known are queued; the first media tag
// establishes the base and flushes the queue.
type segment struct {
	index   int
	w       *flv.FLVWriter
	pending []*av.Packet
	started bool
	injAVC  bool
	injAAC  bool
}

func (sg *segment) push(rb *Rebaser, hdrs *CodecHeaders, p *av.Packet) error {
	if p.IsAudio || p.IsVideo {
		if !rb.Established() {
			rb.SetBase(p.TimeStamp)
		}
		if !sg.started {
			if err := sg.start(rb, hdrs); err != nil {
				return err
			}
		}
		return sg.write(rb, p)
	}
	if !sg.started {
		// queued packets outlive the reader's pooled buffer
		sg.pending = append(sg.pending, copyPacket(p))
		return nil
	}
	return sg.write(rb, p)
}

// start flushes the queued script tags. For segments after the first, the
// cached codec headers go in immediately after the boundary script tag,
// before any media tag, so decoders see configuration ahead of the first
// coded frame.
func (sg *segment) start(rb *Rebaser, hdrs *CodecHeaders) error {
	if !rb.Established() {
		// no media tag: rebase against the segment's own script tag
		if len(sg.pending) > 0 {
			rb.SetBase(sg.pending[0].TimeStamp)
		} else {
			rb.SetBase(0)
		}
	}
	sg.started = true

	rest := sg.pending
	if len(rest) > 0 {
		if err := sg.write(rb, rest[0]); err != nil {
			return err
		}
		rest = rest[1:]
	}
	if sg.index > 0 {
		if err := sg.inject(hdrs); err != nil {
			return err
		}
	}
	for _, q := range rest {
		if err := sg.write(rb, q); err != nil {
			return err
		}
	}
	sg.pending = nil
	return nil
}

func (sg *segment) inject(hdrs *CodecHeaders) error {
	if hdrs.AVC != nil {
		if err := sg.w.Write(&av.Packet{IsVideo: true, Data: hdrs.AVC}); err != nil {
			return err
		}
		sg.injAVC = true
	}
	if hdrs.AAC != nil {
		if err := sg.w.Write(&av.Packet{IsAudio: true, Data: hdrs.AAC}); err != nil {
			return err
		}
		sg.injAAC = true
	}
	return nil
}

func (sg *segment) write(rb *Rebaser, p *av.Packet) error {
	out := *p
	out.TimeStamp = rb.Rebase(p.TimeStamp)
	return sg.w.Write(&out)
}

func (sg *segment) finish(rb *Rebaser, hdrs *CodecHeaders) error {
	if !sg.started {
		if err := sg.start(rb, hdrs); err != nil {
			return err
		}
	}
	return sg.w.Close()
}

// abort discards the partial output; it must never be mistaken for a
// complete segment.
func (sg *segment) abort() {
	sg.w.Close()
	os.Remove(sg.w.Path())
}

func (sg *segment) info() SegmentInfo {
	return SegmentInfo{
		Index:       sg.index,
		Path:        sg.w.Path(),
		Tags:        sg.w.TagsWritten(),
		Bytes:       sg.w.BytesWritten(),
		Duration:    sg.w.Duration(),
		InjectedAVC: sg.injAVC,
		InjectedAAC: sg.injAAC,
	}
}
