package av

const (
	TAG_AUDIO          = 8
	TAG_VIDEO          = 9
	TAG_SCRIPTDATAAMF0 = 18
)

const (
	SOUND_MP3  = 2
	SOUND_AAC  = 10
	AAC_SEQHDR = 0
	AAC_RAW    = 1
)

const (
	AVC_SEQHDR = 0
	AVC_NALU   = 1
	AVC_EOS    = 2

	FRAME_KEY   = 1
	FRAME_INTER = 2

	VIDEO_H264 = 7
)

// Packet is one FLV tag in flight through the pipeline. The payload is the
// raw tag body, unmodified; only the out-going timestamp is ever rewritten.
// A packet is owned by exactly one pipeline stage at a time.
type Packet struct {
	IsAudio    bool
	IsVideo    bool
	IsMetadata bool
	TimeStamp  uint32 // milliseconds, as stored in the source stream
	StreamID   uint32 // always 0 in FLV, preserved for fidelity
	Header     PacketHeader
	Data       []byte
}

// TypeID maps the packet back to its FLV tag type.
func (p *Packet) TypeID() uint32 {
	switch {
	case p.IsVideo:
		return TAG_VIDEO
	case p.IsMetadata:
		return TAG_SCRIPTDATAAMF0
	default:
		return TAG_AUDIO
	}
}

// Header can be converted to AudioPacketHeader or VideoPacketHeader
type PacketHeader interface {
}

type AudioPacketHeader interface {
	PacketHeader
	SoundFormat() uint8
	AACPacketType() uint8
}

type VideoPacketHeader interface {
	PacketHeader
	IsKeyFrame() bool
	IsSeq() bool
	CodecID() uint8
	CompositionTime() int32
}
