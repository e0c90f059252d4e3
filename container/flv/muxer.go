package flv

import (
	"os"

	"flvsplit/av"
	"flvsplit/utils/pio"
	"flvsplit/utils/uid"

	log "github.com/sirupsen/logrus"
)

const headerLen = 11

// FLVWriter lays down one independently playable FLV file: the 9-byte file
// header, the leading zero PreviousTagSize, then each packet with its
// trailer recomputed for the bytes actually written.
type FLVWriter struct {
	Uid string
	av.RWBaser
	buf          []byte
	ctx          *os.File
	path         string
	bytesWritten int64
	tagsWritten  int
	closedWriter bool
}

// NewFLVWriter creates the output file and writes the file header. The
// audio/video presence flags must match what the segment will contain.
func NewFLVWriter(path string, hasAudio, hasVideo bool) (*FLVWriter, error) {
	ctx, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	writer := &FLVWriter{
		Uid:  uid.NewId(),
		ctx:  ctx,
		path: path,
		buf:  make([]byte, headerLen),
	}

	var flags byte
	if hasAudio {
		flags |= 0x04
	}
	if hasVideo {
		flags |= 0x01
	}
	header := []byte{'F', 'L', 'V', 0x01, flags, 0x00, 0x00, 0x00, 0x09}
	if _, err := writer.ctx.Write(header); err != nil {
		ctx.Close()
		return nil, err
	}
	pio.PutI32BE(writer.buf[:4], 0)
	if _, err := writer.ctx.Write(writer.buf[:4]); err != nil {
		ctx.Close()
		return nil, err
	}
	writer.bytesWritten = fileHeaderLen + prevTagLen

	log.WithFields(log.Fields{"uid": writer.Uid, "path": path}).Debug("new flv writer")
	return writer, nil
}

// Write appends one tag. The packet's timestamp is written as-is; rebasing
// happens upstream.
func (writer *FLVWriter) Write(p *av.Packet) error {
	h := writer.buf[:headerLen]
	typeID := p.TypeID()

	dataLen := len(p.Data)
	timestamp := p.TimeStamp
	writer.RecTimeStamp(timestamp, typeID)

	preDataLen := dataLen + headerLen
	timestampbase := timestamp & 0xffffff
	timestampExt := timestamp >> 24 & 0xff

	pio.PutU8(h[0:1], uint8(typeID))
	pio.PutI24BE(h[1:4], int32(dataLen))
	pio.PutI24BE(h[4:7], int32(timestampbase))
	pio.PutU8(h[7:8], uint8(timestampExt))
	pio.PutU24BE(h[8:11], p.StreamID)

	if _, err := writer.ctx.Write(h); err != nil {
		return err
	}

	if _, err := writer.ctx.Write(p.Data); err != nil {
		return err
	}

	pio.PutI32BE(h[:4], int32(preDataLen))
	if _, err := writer.ctx.Write(h[:4]); err != nil {
		return err
	}

	writer.bytesWritten += int64(preDataLen) + prevTagLen
	writer.tagsWritten++
	return nil
}

func (writer *FLVWriter) Path() string {
	return writer.path
}

func (writer *FLVWriter) BytesWritten() int64 {
	return writer.bytesWritten
}

func (writer *FLVWriter) TagsWritten() int {
	return writer.tagsWritten
}

// Duration is the largest media timestamp written, in milliseconds.
func (writer *FLVWriter) Duration() uint32 {
	writer.CalcBaseTimestamp()
	return writer.BaseTimeStamp()
}

func (writer *FLVWriter) Close() error {
	if writer.closedWriter {
		return nil
	}
	writer.closedWriter = true
	return writer.ctx.Close()
}
