package split

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"flvsplit/av"
	"flvsplit/container/flv"

	log "github.com/sirupsen/logrus"
)

// Orchestrator states. Scanning accumulates the current segment, Flushing
// hands it to the writer, Done terminates the run. Pass-through is decided
// before the machine starts, from the probe pass.
type state int

const (
	stateScanning state = iota
	stateFlushing
	stateDone
)

// Splitter drives the reader -> detector -> extractor -> rebaser -> writer
// pipeline over one input file. Buffered selects the whole-file-in-memory
// profile; otherwise the file is streamed with bounded memory. Both run the
// same pipeline, only the byte source differs.
type Splitter struct {
	OutDir   string
	Buffered bool
	demux    *flv.Demuxer
}

func NewSplitter(outDir string, buffered bool) *Splitter {
	return &Splitter{
		OutDir:   outDir,
		Buffered: buffered,
		demux:    flv.NewDemuxer(),
	}
}

// source yields a fresh reader over the input for each pass.
type source interface {
	Open() (io.ReadCloser, error)
}

type fileSource struct{ path string }

func (s fileSource) Open() (io.ReadCloser, error) { return os.Open(s.path) }

type memorySource struct{ data []byte }

func (s memorySource) Open() (io.ReadCloser, error) {
	return ioutil.NopCloser(bytes.NewReader(s.data)), nil
}

type probeResult struct {
	segments  int
	truncated bool
	warnings  []Warning
}

// Process repairs one capture file. Recoverable defects are collected in
// the report; only an invalid file header or an I/O failure aborts the run.
func (s *Splitter) Process(ctx context.Context, path string) (*Report, error) {
	report := &Report{Input: path}

	var src source
	if s.Buffered {
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return report, err
		}
		src = memorySource{data: data}
	} else {
		src = fileSource{path: path}
	}

	pr, err := s.probe(ctx, src)
	if err != nil {
		return report, err
	}

	if err := os.MkdirAll(s.OutDir, 0755); err != nil {
		return report, err
	}

	if pr.segments <= 1 && !pr.truncated && len(pr.warnings) == 0 {
		// already a single clean session: never rewrite a valid file.
		// A defective single-session file is rewritten instead, which
		// drops partial tags and recomputes the framing.
		report.PassThrough = true
		report.Truncated = pr.truncated
		report.Warnings = pr.warnings
		info, err := s.passThrough(path)
		if err != nil {
			return report, err
		}
		report.Segments = append(report.Segments, info)
		log.WithFields(log.Fields{"input": path, "out": info.Path}).Info("single session, passed through")
		return report, nil
	}

	if err := s.run(ctx, src, report); err != nil {
		return report, err
	}
	return report, nil
}

// probe counts session boundaries without producing output, so the
// orchestrator can take the pass-through shortcut before writing anything.
func (s *Splitter) probe(ctx context.Context, src source) (probeResult, error) {
	var pr probeResult
	rc, err := src.Open()
	if err != nil {
		return pr, err
	}
	defer rc.Close()

	fr := flv.NewReader(rc)
	if err := fr.ReadHeader(); err != nil {
		return pr, err
	}

	var det Detector
	for {
		select {
		case <-ctx.Done():
			return pr, ctx.Err()
		default:
		}

		p, err := fr.ReadTag()
		if err == io.EOF {
			break
		}
		if err == flv.ErrTruncated {
			pr.truncated = true
			pr.warnings = append(pr.warnings, Warning{
				Segment: maxInt(det.Segments()-1, 0),
				Offset:  fr.Offset(),
				Message: "input truncated mid-tag",
			})
			break
		}
		if err == flv.ErrMalformedTag {
			pr.warnings = append(pr.warnings, Warning{
				Segment: maxInt(det.Segments()-1, 0),
				Offset:  fr.Offset(),
				Message: "malformed tag dropped",
			})
			continue
		}
		if err != nil {
			return pr, err
		}
		det.Classify(p)
	}

	pr.segments = det.Segments()
	if pr.segments == 0 {
		// no metadata tag at all still makes one segment
		pr.segments = 1
	}
	return pr, nil
}

func (s *Splitter) passThrough(path string) (SegmentInfo, error) {
	dest := filepath.Join(s.OutDir, filepath.Base(path))
	absIn, _ := filepath.Abs(path)
	absOut, _ := filepath.Abs(dest)
	if absIn != absOut {
		if err := copyFile(path, dest); err != nil {
			return SegmentInfo{}, err
		}
	} else {
		dest = path
	}
	fi, err := os.Stat(dest)
	if err != nil {
		return SegmentInfo{}, err
	}
	return SegmentInfo{Index: 0, Path: dest, Bytes: fi.Size()}, nil
}

// run is the split pass: one forward walk of the tag stream, flushing each
// segment before the next one's tags are touched.
func (s *Splitter) run(ctx context.Context, src source, report *Report) error {
	rc, err := src.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	fr := flv.NewReader(rc)
	if err := fr.ReadHeader(); err != nil {
		return err
	}

	base := strings.TrimSuffix(filepath.Base(report.Input), filepath.Ext(report.Input))

	var (
		det        Detector
		headers    CodecHeaders
		rb         Rebaser
		cur        *segment
		st         = stateScanning
		lateWarned bool
	)

	openSegment := func(index int) error {
		path := filepath.Join(s.OutDir, fmt.Sprintf("%s_part%d.flv", base, index+1))
		// header flags mirror the input file's, as the capture tool wrote
		// them; a video-only segment of an a/v capture still declares audio
		w, err := flv.NewFLVWriter(path, fr.HasAudio(), fr.HasVideo())
		if err != nil {
			return err
		}
		cur = &segment{index: index, w: w}
		rb.Reset()
		return nil
	}

	finalize := func() error {
		if cur == nil {
			return nil
		}
		if err := cur.finish(&rb, &headers); err != nil {
			cur.abort()
			cur = nil
			return err
		}
		info := cur.info()
		report.Segments = append(report.Segments, info)
		log.WithFields(log.Fields{
			"segment":  info.Index,
			"path":     info.Path,
			"tags":     info.Tags,
			"duration": info.Duration,
		}).Info("segment flushed")
		cur = nil
		return nil
	}

	for st != stateDone {
		select {
		case <-ctx.Done():
			// flushed segments stay intact; the in-flight one is discarded
			if cur != nil {
				cur.abort()
			}
			return ctx.Err()
		default:
		}

		p, err := fr.ReadTag()
		switch err {
		case nil:
		case io.EOF:
			st = stateFlushing
		case flv.ErrTruncated:
			report.Truncated = true
			report.Warnf(maxInt(det.Segments()-1, 0), fr.Offset(), "input truncated mid-tag")
			st = stateFlushing
		case flv.ErrMalformedTag:
			// the reader already skipped the bad tag; it never reaches output
			report.Warnf(maxInt(det.Segments()-1, 0), fr.Offset(), "malformed tag dropped")
			continue
		default:
			if cur != nil {
				cur.abort()
			}
			return err
		}

		if st == stateFlushing {
			if err := finalize(); err != nil {
				return err
			}
			st = stateDone
			continue
		}

		boundary, seg := det.Classify(p)
		if boundary && (cur == nil || cur.index != seg) {
			st = stateFlushing
			if err := finalize(); err != nil {
				return err
			}
			if err := openSegment(seg); err != nil {
				return err
			}
			st = stateScanning
		} else if cur == nil {
			// media ahead of the first metadata tag still belongs to segment 0
			if err := openSegment(0); err != nil {
				return err
			}
		}

		if seg == 0 && !headers.Complete() && (p.IsAudio || p.IsVideo) {
			if _, err := headers.Observe(s.demux, p); err != nil {
				report.Warnf(0, fr.Offset(), "unparsable media tag header: %v", err)
			}
		}
		if seg > 0 && !lateWarned && IsSeqHeader(s.demux, p) {
			report.Warnf(seg, fr.Offset(), "codec configuration appears after segment 0; not re-captured")
			lateWarned = true
		}

		if err := cur.push(&rb, &headers, p); err != nil {
			cur.abort()
			return err
		}
	}

	if headers.Empty() {
		report.Warnf(0, 0, "no codec headers found in segment 0; later segments rely on their own configuration tags")
	}
	return nil
}

func copyPacket(p *av.Packet) *av.Packet {
	out := *p
	out.Data = append([]byte(nil), p.Data...)
	return &out
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
