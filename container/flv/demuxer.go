package flv

import (
	"bufio"
	"errors"
	"io"

	"flvsplit/av"
	"flvsplit/utils/pio"
	"flvsplit/utils/pool"
)

var (
	// ErrInvalidHeader is fatal: the input is not an FLV file.
	ErrInvalidHeader = errors.New("flv: invalid file header")
	// ErrTruncated marks a tag cut short by EOF. Tags read before it are valid.
	ErrTruncated = errors.New("flv: truncated tag")
	// ErrMalformedTag marks a dropped tag: its PreviousTagSize trailer
	// disagrees with the declared payload size, or its type is unknown.
	// The cursor stays aligned on the next tag.
	ErrMalformedTag = errors.New("flv: malformed tag")
)

const (
	fileHeaderLen = 9
	prevTagLen    = 4
)

// Demuxer decodes the media descriptor at the head of a tag payload.
type Demuxer struct {
}

func NewDemuxer() *Demuxer {
	return &Demuxer{}
}

// DemuxH parses the audio/video tag header and attaches it to the packet.
// The payload itself is left untouched.
func (d *Demuxer) DemuxH(p *av.Packet) error {
	var tag Tag
	_, err := tag.ParseMediaTagHeader(p.Data, p.IsVideo)
	if err != nil {
		return err
	}

	p.Header = &tag

	return nil
}

// Reader walks the tag stream of an FLV file sequentially. It holds at most
// one in-flight tag; payload buffers come from a pool and are only valid
// until the next ReadTag, so retaining stages must copy.
type Reader struct {
	r          *bufio.Reader
	pool       *pool.Pool
	hasAudio   bool
	hasVideo   bool
	offset     int64
	headerRead bool
}

func NewReader(r io.Reader) *Reader {
	return &Reader{
		r:    bufio.NewReader(r),
		pool: pool.NewPool(),
	}
}

func (fr *Reader) HasAudio() bool { return fr.hasAudio }
func (fr *Reader) HasVideo() bool { return fr.hasVideo }

// Offset is the byte position of the next unread tag, for diagnostics.
func (fr *Reader) Offset() int64 { return fr.offset }

// ReadHeader validates the 9-byte file header and the leading zero
// PreviousTagSize. Must be called before ReadTag.
func (fr *Reader) ReadHeader() error {
	buf := make([]byte, fileHeaderLen+prevTagLen)
	if _, err := io.ReadFull(fr.r, buf); err != nil {
		return ErrInvalidHeader
	}
	if buf[0] != 'F' || buf[1] != 'L' || buf[2] != 'V' || buf[3] != 0x01 {
		return ErrInvalidHeader
	}
	fr.hasAudio = buf[4]&0x04 != 0
	fr.hasVideo = buf[4]&0x01 != 0
	dataOffset := pio.U32BE(buf[5:9])
	if dataOffset < fileHeaderLen {
		return ErrInvalidHeader
	}
	// header extensions between the declared offset and the standard 9 bytes
	for skip := int64(dataOffset) - fileHeaderLen; skip > 0; skip-- {
		if _, err := fr.r.ReadByte(); err != nil {
			return ErrInvalidHeader
		}
	}
	fr.offset = int64(dataOffset) + prevTagLen
	fr.headerRead = true
	return nil
}

// ReadTag decodes the next tag. io.EOF means a clean end at a tag boundary.
// ErrTruncated means bytes ran out mid-tag. ErrMalformedTag means the tag
// was dropped; the cursor is already past it and reading may continue.
func (fr *Reader) ReadTag() (*av.Packet, error) {
	if !fr.headerRead {
		if err := fr.ReadHeader(); err != nil {
			return nil, err
		}
	}

	head := make([]byte, headerLen)
	n, err := io.ReadFull(fr.r, head)
	if err == io.EOF && n == 0 {
		return nil, io.EOF
	}
	if err != nil {
		return nil, ErrTruncated
	}

	tagType := pio.U8(head[0:1])
	dataSize := pio.U24BE(head[1:4])
	timestamp := pio.U24BE(head[4:7]) | uint32(head[7])<<24
	streamID := pio.U24BE(head[8:11])

	data := fr.pool.Get(int(dataSize))
	if _, err := io.ReadFull(fr.r, data); err != nil {
		return nil, ErrTruncated
	}

	trailer := make([]byte, prevTagLen)
	if _, err := io.ReadFull(fr.r, trailer); err != nil {
		return nil, ErrTruncated
	}

	fr.offset += int64(headerLen) + int64(dataSize) + prevTagLen
	declared := uint32(headerLen) + dataSize

	p := &av.Packet{
		TimeStamp: timestamp,
		StreamID:  streamID,
		Data:      data,
	}
	switch tagType {
	case av.TAG_AUDIO:
		p.IsAudio = true
	case av.TAG_VIDEO:
		p.IsVideo = true
	case av.TAG_SCRIPTDATAAMF0:
		p.IsMetadata = true
	default:
		// unknown tag type: the cursor is already past it
		return nil, ErrMalformedTag
	}

	if pio.U32BE(trailer) != declared {
		return nil, ErrMalformedTag
	}
	return p, nil
}
