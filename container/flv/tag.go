package flv

import (
	"fmt"

	"flvsplit/av"
)

// mediaTag is the decoded one/two byte descriptor at the head of an audio
// or video tag payload.
type mediaTag struct {
	/*
		SoundFormat: UB[4]
		2 = MP3
		10 = AAC
	*/
	soundFormat uint8

	/*
		0: AAC sequence header
		1: AAC raw
	*/
	aacPacketType uint8

	/*
		1: keyframe (for AVC, a seekable frame)
		2: inter frame (for AVC, a non-seekable frame)
	*/
	frameType uint8

	/*
		7: AVC
	*/
	codecID uint8

	/*
		0: AVC sequence header
		1: AVC NALU
		2: AVC end of sequence
	*/
	avcPacketType uint8

	compositionTime int32
}

type Tag struct {
	mediat mediaTag
}

func (tag *Tag) SoundFormat() uint8 {
	return tag.mediat.soundFormat
}

func (tag *Tag) AACPacketType() uint8 {
	return tag.mediat.aacPacketType
}

func (tag *Tag) IsKeyFrame() bool {
	return tag.mediat.frameType == av.FRAME_KEY
}

// IsSeq reports whether the tag carries an AVC decoder configuration record.
func (tag *Tag) IsSeq() bool {
	return tag.mediat.frameType == av.FRAME_KEY &&
		tag.mediat.avcPacketType == av.AVC_SEQHDR
}

func (tag *Tag) CodecID() uint8 {
	return tag.mediat.codecID
}

func (tag *Tag) CompositionTime() int32 {
	return tag.mediat.compositionTime
}

// ParseMediaTagHeader, parse video, audio, tag header
func (tag *Tag) ParseMediaTagHeader(b []byte, isVideo bool) (n int, err error) {
	switch isVideo {
	case false:
		n, err = tag.parseAudioHeader(b)
	case true:
		n, err = tag.parseVideoHeader(b)
	}
	return
}

func (tag *Tag) parseAudioHeader(b []byte) (n int, err error) {
	if len(b) < n+1 {
		err = fmt.Errorf("invalid audiodata len=%d", len(b))
		return
	}
	flags := b[0]
	tag.mediat.soundFormat = flags >> 4
	n++

	switch tag.mediat.soundFormat {
	case av.SOUND_AAC:
		if len(b) < n+1 {
			err = fmt.Errorf("invalid audiodata len=%d", len(b))
			return
		}
		tag.mediat.aacPacketType = b[1]
		n++
	}
	return
}

func (tag *Tag) parseVideoHeader(b []byte) (n int, err error) {
	if len(b) < n+1 {
		err = fmt.Errorf("invalid videodata len=%d", len(b))
		return
	}
	flags := b[0]
	tag.mediat.frameType = flags >> 4
	tag.mediat.codecID = flags & 0xf
	n++
	if tag.mediat.codecID == av.VIDEO_H264 &&
		(tag.mediat.frameType == av.FRAME_INTER || tag.mediat.frameType == av.FRAME_KEY) {
		if len(b) < n+4 {
			err = fmt.Errorf("invalid videodata len=%d", len(b))
			return
		}
		tag.mediat.avcPacketType = b[1]
		for i := 2; i < 5; i++ {
			tag.mediat.compositionTime = tag.mediat.compositionTime<<8 + int32(b[i])
		}
		n += 4
	}
	return
}
