package split

import (
	"flvsplit/av"
	"flvsplit/protocol/amf"
)

// metadataEvent is the script-tag name the capturing tool writes at the
// start of every live session. Script tags carrying any other name (cue
// points and the like) are ordinary tags, never boundaries.
const metadataEvent = "onMetaData"

// Detector classifies tags into segments. The first onMetaData script tag
// opens segment 0; every later one opens a new segment.
type Detector struct {
	segments int
}

// Classify reports whether p opens a new session and the index of the
// segment p belongs to. Tags seen before any boundary belong to segment 0.
func (d *Detector) Classify(p *av.Packet) (boundary bool, segment int) {
	if p.IsMetadata {
		if name, err := amf.MetadataName(p.Data); err == nil && name == metadataEvent {
			d.segments++
			return true, d.segments - 1
		}
	}
	if d.segments == 0 {
		return false, 0
	}
	return false, d.segments - 1
}

// Segments is the number of boundaries seen so far.
func (d *Detector) Segments() int {
	return d.segments
}
