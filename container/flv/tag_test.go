package flv

import (
	"testing"

	"flvsplit/av"
)

func TestParseVideoHeader(t *testing.T) {
	cases := []struct {
		name    string
		data    []byte
		wantErr bool
		key     bool
		seq     bool
		codec   uint8
		cts     int32
	}{
		{
			name:  "avc sequence header",
			data:  []byte{0x17, 0x00, 0x00, 0x00, 0x00, 0x01, 0x64},
			key:   true,
			seq:   true,
			codec: av.VIDEO_H264,
		},
		{
			name:  "avc keyframe nalu",
			data:  []byte{0x17, 0x01, 0x00, 0x00, 0x28},
			key:   true,
			codec: av.VIDEO_H264,
			cts:   40,
		},
		{
			name:  "avc inter frame",
			data:  []byte{0x27, 0x01, 0x00, 0x00, 0x00},
			codec: av.VIDEO_H264,
		},
		{
			// one-byte descriptor only, no AVC packet type
			name:  "non-avc codec",
			data:  []byte{0x12},
			key:   true,
			codec: 2,
		},
		{name: "empty", data: nil, wantErr: true},
		{name: "avc cut before packet type", data: []byte{0x17, 0x00}, wantErr: true},
	}
	for _, c := range cases {
		var tag Tag
		_, err := tag.ParseMediaTagHeader(c.data, true)
		if (err != nil) != c.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", c.name, err, c.wantErr)
			continue
		}
		if c.wantErr {
			continue
		}
		if tag.IsKeyFrame() != c.key {
			t.Errorf("%s: IsKeyFrame() = %v, want %v", c.name, tag.IsKeyFrame(), c.key)
		}
		if tag.IsSeq() != c.seq {
			t.Errorf("%s: IsSeq() = %v, want %v", c.name, tag.IsSeq(), c.seq)
		}
		if tag.CodecID() != c.codec {
			t.Errorf("%s: CodecID() = %d, want %d", c.name, tag.CodecID(), c.codec)
		}
		if tag.CompositionTime() != c.cts {
			t.Errorf("%s: CompositionTime() = %d, want %d", c.name, tag.CompositionTime(), c.cts)
		}
	}
}

func TestParseAudioHeader(t *testing.T) {
	cases := []struct {
		name    string
		data    []byte
		wantErr bool
		format  uint8
		aacType uint8
	}{
		{name: "aac sequence header", data: []byte{0xAF, 0x00, 0x12, 0x10}, format: av.SOUND_AAC, aacType: av.AAC_SEQHDR},
		{name: "aac raw", data: []byte{0xAF, 0x01, 0x21}, format: av.SOUND_AAC, aacType: av.AAC_RAW},
		{name: "mp3", data: []byte{0x2F, 0xFF}, format: av.SOUND_MP3},
		{name: "empty", data: nil, wantErr: true},
		{name: "aac cut before packet type", data: []byte{0xAF}, wantErr: true},
	}
	for _, c := range cases {
		var tag Tag
		_, err := tag.ParseMediaTagHeader(c.data, false)
		if (err != nil) != c.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", c.name, err, c.wantErr)
			continue
		}
		if c.wantErr {
			continue
		}
		if tag.SoundFormat() != c.format {
			t.Errorf("%s: SoundFormat() = %d, want %d", c.name, tag.SoundFormat(), c.format)
		}
		if tag.AACPacketType() != c.aacType {
			t.Errorf("%s: AACPacketType() = %d, want %d", c.name, tag.AACPacketType(), c.aacType)
		}
	}
}
