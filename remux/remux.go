package remux

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"flvsplit/utils/uid"

	log "github.com/sirupsen/logrus"
)

// Repair hands a finalized segment to ffmpeg as a black box to normalize
// container-level duration and seek metadata. The stream is copied, never
// re-encoded. On success the repaired file replaces the original in place;
// on failure the original is left untouched.
func Repair(ctx context.Context, ffmpeg, path string) error {
	tmp := path + "." + uid.NewId() + ".flv"

	cmd := exec.CommandContext(ctx, ffmpeg,
		"-y",
		"-f", "flv",
		"-i", path,
		"-c", "copy",
		"-bsf:a", "aac_adtstoasc",
		tmp,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.WithFields(log.Fields{"path": path, "tmp": tmp}).Debug("remux start")
	if err := cmd.Run(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("ffmpeg: %v: %s", err, lastLine(stderr.String()))
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Available reports whether the configured ffmpeg binary can be invoked.
func Available(ffmpeg string) bool {
	_, err := exec.LookPath(ffmpeg)
	return err == nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
