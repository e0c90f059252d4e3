package pkcheck

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io/ioutil"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// PK battles render two 1:1 camera feeds side by side inside a 9:16 frame,
// which leaves uniform fill bars at the top and bottom of every frame.
// Checker samples frames from a finished segment and looks for that
// letterboxing.
type Checker struct {
	FFmpeg  string
	FFprobe string
	Frames  int // frames sampled per file
}

func NewChecker(ffmpeg, ffprobe string, frames int) *Checker {
	if frames <= 0 {
		frames = 2
	}
	return &Checker{FFmpeg: ffmpeg, FFprobe: ffprobe, Frames: frames}
}

// CheckFile samples frames evenly across the file and reports whether it
// looks like a PK session. More than 30% letterboxed samples is a match.
func (c *Checker) CheckFile(ctx context.Context, path string) (bool, error) {
	dur := c.duration(ctx, path)

	dir, err := ioutil.TempDir("", "pkcheck")
	if err != nil {
		return false, err
	}
	defer os.RemoveAll(dir)

	interval := int(dur) / c.Frames
	if interval < 1 {
		interval = 1
	}

	sampled, matched := 0, 0
	for i := 0; i < c.Frames; i++ {
		ts := float64(i * interval)
		if ts > dur-0.1 {
			ts = dur - 0.1
		}
		if ts < 0 {
			ts = 0
		}
		frame := filepath.Join(dir, fmt.Sprintf("frame_%03d.jpg", i))
		if err := c.extractFrame(ctx, path, ts, frame); err != nil {
			log.WithFields(log.Fields{"path": path, "ts": ts}).Debug("frame extraction failed: ", err)
			continue
		}
		img, err := loadJPEG(frame)
		if err != nil {
			continue
		}
		sampled++
		if DetectSplitScreen(img) {
			matched++
		}
	}
	if sampled == 0 {
		return false, fmt.Errorf("pkcheck: no frames extracted from %s", path)
	}

	pk := float64(matched) > float64(sampled)*0.3
	log.WithFields(log.Fields{
		"path":    path,
		"matched": matched,
		"sampled": sampled,
		"pk":      pk,
	}).Info("pk check done")
	return pk, nil
}

// DetectSplitScreen reports whether a frame shows the PK letterbox
// signature: uniform fill rows at both the top and the bottom covering
// more than 15% of the height. Near-black frames (opening screens) are
// skipped.
func DetectSplitScreen(img image.Image) bool {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < 4 || h < 4 {
		return false
	}

	// quarter-resolution grayscale raster keeps this cheap
	tw, th := w/4, h/4
	rows := make([][]float64, th)
	var total float64
	for y := 0; y < th; y++ {
		row := make([]float64, tw)
		for x := 0; x < tw; x++ {
			g := color.GrayModel.Convert(img.At(bounds.Min.X+x*4, bounds.Min.Y+y*4)).(color.Gray)
			row[x] = float64(g.Y)
			total += row[x]
		}
		rows[y] = row
	}

	if total/float64(tw*th) < 20 {
		return false
	}

	topFill := 0
	for y := 0; y < th; y++ {
		if rowStddev(rows[y]) >= 10 {
			break
		}
		topFill++
	}
	bottomFill := 0
	for y := th - 1; y >= 0; y-- {
		if rowStddev(rows[y]) >= 10 {
			break
		}
		bottomFill++
	}

	fillRatio := float64(topFill+bottomFill) / float64(th)
	return fillRatio > 0.15 && topFill > 0 && bottomFill > 0
}

func rowStddev(row []float64) float64 {
	var sum float64
	for _, v := range row {
		sum += v
	}
	avg := sum / float64(len(row))
	var sq float64
	for _, v := range row {
		sq += (v - avg) * (v - avg)
	}
	return math.Sqrt(sq / float64(len(row)))
}

func (c *Checker) duration(ctx context.Context, path string) float64 {
	out, err := exec.CommandContext(ctx, c.FFprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 60
	}
	dur, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || dur <= 0 {
		return 60
	}
	return dur
}

func (c *Checker) extractFrame(ctx context.Context, path string, ts float64, out string) error {
	cmd := exec.CommandContext(ctx, c.FFmpeg,
		"-ss", strconv.FormatFloat(ts, 'f', 2, 64),
		"-i", path,
		"-frames:v", "1",
		"-q:v", "10",
		"-y", out,
	)
	if err := cmd.Run(); err != nil {
		return err
	}
	if _, err := os.Stat(out); err != nil {
		return err
	}
	return nil
}

func loadJPEG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return jpeg.Decode(f)
}
