package split

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"flvsplit/av"
	"flvsplit/container/flv"
	"flvsplit/utils/pio"
)

var (
	metaPayload = []byte{0x02, 0x00, 0x0a, 'o', 'n', 'M', 'e', 't', 'a', 'D', 'a', 't', 'a'}
	avcSeq      = []byte{0x17, 0x00, 0x00, 0x00, 0x00, 0x01, 0x64, 0x00, 0x1f}
	aacSeq      = []byte{0xAF, 0x00, 0x12, 0x10}
	videoFrame  = []byte{0x27, 0x01, 0x00, 0x00, 0x00, 0xAA, 0xBB}
	audioFrame  = []byte{0xAF, 0x01, 0x21, 0x10, 0x04}
)

func tagBytes(tagType byte, ts uint32, data []byte) []byte {
	buf := make([]byte, 11+len(data)+4)
	buf[0] = tagType
	pio.PutU24BE(buf[1:4], uint32(len(data)))
	pio.PutU24BE(buf[4:7], ts&0xffffff)
	buf[7] = byte(ts >> 24)
	copy(buf[11:], data)
	pio.PutU32BE(buf[11+len(data):], uint32(11+len(data)))
	return buf
}

func fileBytes(tags ...[]byte) []byte {
	out := []byte{'F', 'L', 'V', 0x01, 0x05, 0x00, 0x00, 0x00, 0x09, 0x00, 0x00, 0x00, 0x00}
	for _, t := range tags {
		out = append(out, t...)
	}
	return out
}

func writeInput(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

type readTag struct {
	meta, audio, video bool
	ts                 uint32
	data               []byte
}

func readAllTags(t *testing.T, path string) []readTag {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	fr := flv.NewReader(f)
	if err := fr.ReadHeader(); err != nil {
		t.Fatalf("%s: %v", path, err)
	}
	var tags []readTag
	for {
		p, err := fr.ReadTag()
		if err == io.EOF {
			return tags
		}
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		tags = append(tags, readTag{
			meta:  p.IsMetadata,
			audio: p.IsAudio,
			video: p.IsVideo,
			ts:    p.TimeStamp,
			data:  append([]byte(nil), p.Data...),
		})
	}
}

// twoSessionInput is a capture holding two live sessions back to back, codec
// configuration only in the first.
func twoSessionInput() []byte {
	return fileBytes(
		tagBytes(av.TAG_SCRIPTDATAAMF0, 0, metaPayload),
		tagBytes(av.TAG_VIDEO, 0, avcSeq),
		tagBytes(av.TAG_AUDIO, 0, aacSeq),
		tagBytes(av.TAG_VIDEO, 40, videoFrame),
		tagBytes(av.TAG_SCRIPTDATAAMF0, 5000, metaPayload),
		tagBytes(av.TAG_VIDEO, 5010, videoFrame),
		tagBytes(av.TAG_AUDIO, 5015, audioFrame),
	)
}

func TestSplitTwoSessions(t *testing.T) {
	for _, buffered := range []bool{false, true} {
		dir, err := ioutil.TempDir("", "split")
		if err != nil {
			t.Fatal(err)
		}
		defer os.RemoveAll(dir)

		in := writeInput(t, dir, "capture.flv", twoSessionInput())
		outDir := filepath.Join(dir, "out")

		report, err := NewSplitter(outDir, buffered).Process(context.Background(), in)
		if err != nil {
			t.Fatalf("buffered=%v: %v", buffered, err)
		}
		if report.PassThrough {
			t.Fatalf("buffered=%v: two sessions must not pass through", buffered)
		}
		if len(report.Segments) != 2 {
			t.Fatalf("buffered=%v: got %d segments, want 2", buffered, len(report.Segments))
		}

		part1 := readAllTags(t, filepath.Join(outDir, "capture_part1.flv"))
		want1 := []readTag{
			{meta: true, ts: 0, data: metaPayload},
			{video: true, ts: 0, data: avcSeq},
			{audio: true, ts: 0, data: aacSeq},
			{video: true, ts: 40, data: videoFrame},
		}
		checkTags(t, "part1", part1, want1)

		// segment 1 rebases on its first media tag (5010); the boundary
		// script tag clamps to 0 and the injected headers sit right after it
		part2 := readAllTags(t, filepath.Join(outDir, "capture_part2.flv"))
		want2 := []readTag{
			{meta: true, ts: 0, data: metaPayload},
			{video: true, ts: 0, data: avcSeq},
			{audio: true, ts: 0, data: aacSeq},
			{video: true, ts: 0, data: videoFrame},
			{audio: true, ts: 5, data: audioFrame},
		}
		checkTags(t, "part2", part2, want2)

		seg1 := report.Segments[1]
		if !seg1.InjectedAVC || !seg1.InjectedAAC {
			t.Errorf("buffered=%v: segment 1 injection flags = avc %v aac %v", buffered, seg1.InjectedAVC, seg1.InjectedAAC)
		}
	}
}

func checkTags(t *testing.T, label string, got, want []readTag) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: got %d tags, want %d", label, len(got), len(want))
	}
	for i, w := range want {
		g := got[i]
		if g.meta != w.meta || g.audio != w.audio || g.video != w.video {
			t.Errorf("%s tag %d: wrong kind", label, i)
		}
		if g.ts != w.ts {
			t.Errorf("%s tag %d: ts = %d, want %d", label, i, g.ts, w.ts)
		}
		if !bytes.Equal(g.data, w.data) {
			t.Errorf("%s tag %d: payload mismatch", label, i)
		}
	}
}

func TestSingleSessionPassThrough(t *testing.T) {
	dir, err := ioutil.TempDir("", "split")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	input := fileBytes(
		tagBytes(av.TAG_SCRIPTDATAAMF0, 0, metaPayload),
		tagBytes(av.TAG_VIDEO, 0, avcSeq),
		tagBytes(av.TAG_VIDEO, 40, videoFrame),
	)
	in := writeInput(t, dir, "single.flv", input)
	outDir := filepath.Join(dir, "out")

	report, err := NewSplitter(outDir, false).Process(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if !report.PassThrough {
		t.Fatal("single session must pass through")
	}
	if len(report.Segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(report.Segments))
	}

	out, err := ioutil.ReadFile(report.Segments[0].Path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, input) {
		t.Error("pass-through output is not byte-identical to the input")
	}
}

func TestNoMetadataTagStillOneSegment(t *testing.T) {
	dir, err := ioutil.TempDir("", "split")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	input := fileBytes(
		tagBytes(av.TAG_VIDEO, 0, avcSeq),
		tagBytes(av.TAG_VIDEO, 40, videoFrame),
	)
	in := writeInput(t, dir, "bare.flv", input)

	report, err := NewSplitter(filepath.Join(dir, "out"), false).Process(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if !report.PassThrough || len(report.Segments) != 1 {
		t.Fatalf("passthrough=%v segments=%d, want single pass-through", report.PassThrough, len(report.Segments))
	}
}

func TestTruncatedInput(t *testing.T) {
	dir, err := ioutil.TempDir("", "split")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	data := twoSessionInput()
	data = data[:len(data)-5] // cut the last tag short
	in := writeInput(t, dir, "cut.flv", data)
	outDir := filepath.Join(dir, "out")

	report, err := NewSplitter(outDir, false).Process(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Truncated {
		t.Error("report should flag the truncation")
	}
	if !report.Degraded() {
		t.Error("truncation should leave a warning")
	}
	if len(report.Segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(report.Segments))
	}

	// every complete tag before the cut survives
	part2 := readAllTags(t, filepath.Join(outDir, "cut_part2.flv"))
	want2 := []readTag{
		{meta: true, ts: 0, data: metaPayload},
		{video: true, ts: 0, data: avcSeq},
		{audio: true, ts: 0, data: aacSeq},
		{video: true, ts: 0, data: videoFrame},
	}
	checkTags(t, "part2", part2, want2)
}

func TestMalformedTagDropped(t *testing.T) {
	dir, err := ioutil.TempDir("", "split")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	// segment 1's audio tag carries a corrupted PreviousTagSize trailer
	badAudio := tagBytes(av.TAG_AUDIO, 5015, audioFrame)
	pio.PutU32BE(badAudio[len(badAudio)-4:], 9999)
	input := fileBytes(
		tagBytes(av.TAG_SCRIPTDATAAMF0, 0, metaPayload),
		tagBytes(av.TAG_VIDEO, 0, avcSeq),
		tagBytes(av.TAG_AUDIO, 0, aacSeq),
		tagBytes(av.TAG_VIDEO, 40, videoFrame),
		tagBytes(av.TAG_SCRIPTDATAAMF0, 5000, metaPayload),
		tagBytes(av.TAG_VIDEO, 5010, videoFrame),
		badAudio,
		tagBytes(av.TAG_AUDIO, 5020, audioFrame),
	)
	in := writeInput(t, dir, "bad.flv", input)
	outDir := filepath.Join(dir, "out")

	report, err := NewSplitter(outDir, false).Process(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Degraded() {
		t.Error("the dropped tag should leave a warning")
	}

	// the corrupted tag never reaches the output; the tags around it do
	part2 := readAllTags(t, filepath.Join(outDir, "bad_part2.flv"))
	want2 := []readTag{
		{meta: true, ts: 0, data: metaPayload},
		{video: true, ts: 0, data: avcSeq},
		{audio: true, ts: 0, data: aacSeq},
		{video: true, ts: 0, data: videoFrame},
		{audio: true, ts: 10, data: audioFrame},
	}
	checkTags(t, "part2", part2, want2)
}

func TestTruncatedSingleSessionRewritten(t *testing.T) {
	dir, err := ioutil.TempDir("", "split")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	input := fileBytes(
		tagBytes(av.TAG_SCRIPTDATAAMF0, 0, metaPayload),
		tagBytes(av.TAG_VIDEO, 0, avcSeq),
		tagBytes(av.TAG_VIDEO, 40, videoFrame),
	)
	input = input[:len(input)-5]
	in := writeInput(t, dir, "cutone.flv", input)
	outDir := filepath.Join(dir, "out")

	report, err := NewSplitter(outDir, false).Process(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if report.PassThrough {
		t.Fatal("a truncated file must be rewritten, not passed through")
	}
	if !report.Truncated {
		t.Error("report should flag the truncation")
	}

	// the rewritten file holds only the complete tags
	out := readAllTags(t, filepath.Join(outDir, "cutone_part1.flv"))
	want := []readTag{
		{meta: true, ts: 0, data: metaPayload},
		{video: true, ts: 0, data: avcSeq},
	}
	checkTags(t, "part1", out, want)
}

func TestIdempotence(t *testing.T) {
	dir, err := ioutil.TempDir("", "split")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	in := writeInput(t, dir, "capture.flv", twoSessionInput())
	firstOut := filepath.Join(dir, "out1")
	if _, err := NewSplitter(firstOut, false).Process(context.Background(), in); err != nil {
		t.Fatal(err)
	}

	part1 := filepath.Join(firstOut, "capture_part1.flv")
	before, err := ioutil.ReadFile(part1)
	if err != nil {
		t.Fatal(err)
	}

	secondOut := filepath.Join(dir, "out2")
	report, err := NewSplitter(secondOut, false).Process(context.Background(), part1)
	if err != nil {
		t.Fatal(err)
	}
	if !report.PassThrough {
		t.Fatal("re-splitting a single segment must pass through")
	}
	after, err := ioutil.ReadFile(report.Segments[0].Path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Error("re-split changed the bytes of an already-split segment")
	}
}

func TestNoCodecHeadersWarns(t *testing.T) {
	dir, err := ioutil.TempDir("", "split")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	// two sessions but segment 0 carries no sequence headers at all
	input := fileBytes(
		tagBytes(av.TAG_SCRIPTDATAAMF0, 0, metaPayload),
		tagBytes(av.TAG_VIDEO, 0, videoFrame),
		tagBytes(av.TAG_SCRIPTDATAAMF0, 3000, metaPayload),
		tagBytes(av.TAG_VIDEO, 3010, videoFrame),
	)
	in := writeInput(t, dir, "nohdr.flv", input)
	outDir := filepath.Join(dir, "out")

	report, err := NewSplitter(outDir, false).Process(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Degraded() {
		t.Error("missing codec headers should leave a warning")
	}

	part2 := readAllTags(t, filepath.Join(outDir, "nohdr_part2.flv"))
	want2 := []readTag{
		{meta: true, ts: 0, data: metaPayload},
		{video: true, ts: 0, data: videoFrame},
	}
	checkTags(t, "part2", part2, want2)
	if report.Segments[1].InjectedAVC || report.Segments[1].InjectedAAC {
		t.Error("nothing should be injected when segment 0 had no headers")
	}
}

func TestInvalidHeaderFails(t *testing.T) {
	dir, err := ioutil.TempDir("", "split")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	in := writeInput(t, dir, "junk.flv", []byte("this is not an flv file at all"))
	if _, err := NewSplitter(filepath.Join(dir, "out"), false).Process(context.Background(), in); err != flv.ErrInvalidHeader {
		t.Fatalf("err = %v, want ErrInvalidHeader", err)
	}
}

func TestCancelledContext(t *testing.T) {
	dir, err := ioutil.TempDir("", "split")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	in := writeInput(t, dir, "capture.flv", twoSessionInput())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewSplitter(filepath.Join(dir, "out"), false).Process(ctx, in); err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
