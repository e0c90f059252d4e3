package split

import (
	"flvsplit/av"
	"flvsplit/container/flv"
)

// CodecHeaders is the minimal decodable configuration recovered from
// segment 0: at most one AVC and one AAC sequence header, byte-exact
// payload copies. Once captured a header is never overwritten; segments
// after the first receive the set as a read-only value.
type CodecHeaders struct {
	AVC []byte
	AAC []byte
}

func (ch *CodecHeaders) Empty() bool {
	return ch.AVC == nil && ch.AAC == nil
}

func (ch *CodecHeaders) Complete() bool {
	return ch.AVC != nil && ch.AAC != nil
}

// Observe inspects a segment-0 media packet and captures its payload if it
// carries a sequence header of a kind not captured yet.
func (ch *CodecHeaders) Observe(demux *flv.Demuxer, p *av.Packet) (captured bool, err error) {
	switch {
	case p.IsVideo && ch.AVC == nil:
		if err := demux.DemuxH(p); err != nil {
			return false, err
		}
		h, ok := p.Header.(av.VideoPacketHeader)
		if ok && h.CodecID() == av.VIDEO_H264 && h.IsSeq() {
			ch.AVC = append([]byte(nil), p.Data...)
			return true, nil
		}
	case p.IsAudio && ch.AAC == nil:
		if err := demux.DemuxH(p); err != nil {
			return false, err
		}
		h, ok := p.Header.(av.AudioPacketHeader)
		if ok && h.SoundFormat() == av.SOUND_AAC && h.AACPacketType() == av.AAC_SEQHDR {
			ch.AAC = append([]byte(nil), p.Data...)
			return true, nil
		}
	}
	return false, nil
}

// IsSeqHeader reports whether a media packet carries codec configuration.
// Used to flag mid-file codec changes, which this tool does not re-capture.
func IsSeqHeader(demux *flv.Demuxer, p *av.Packet) bool {
	if p.IsVideo {
		if err := demux.DemuxH(p); err != nil {
			return false
		}
		h, ok := p.Header.(av.VideoPacketHeader)
		return ok && h.CodecID() == av.VIDEO_H264 && h.IsSeq()
	}
	if p.IsAudio {
		if err := demux.DemuxH(p); err != nil {
			return false
		}
		h, ok := p.Header.(av.AudioPacketHeader)
		return ok && h.SoundFormat() == av.SOUND_AAC && h.AACPacketType() == av.AAC_SEQHDR
	}
	return false
}
