package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"flvsplit/configure"
	"flvsplit/pkcheck"
	"flvsplit/remux"
	"flvsplit/split"

	log "github.com/sirupsen/logrus"
)

var VERSION = "master"

func init() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			filename := path.Base(f.File)
			return fmt.Sprintf("%s()", f.Function), fmt.Sprintf(" %s:%d", filename, f.Line)
		},
	})
}

// collectInputs expands the in setting to the list of capture files to
// process. A directory means every .flv directly inside it.
func collectInputs(in string) ([]string, error) {
	fi, err := os.Stat(in)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return []string{in}, nil
	}
	files, err := filepath.Glob(filepath.Join(in, "*.flv"))
	if err != nil {
		return nil, err
	}
	return files, nil
}

// postProcess runs the optional ffmpeg-backed passes over the segments of
// one finished report. A failure on one segment is recorded and does not
// stop the others.
func postProcess(ctx context.Context, cfg *configure.SplitCfg, report *split.Report) {
	var checker *pkcheck.Checker
	if cfg.PKCheck {
		checker = pkcheck.NewChecker(cfg.FFmpeg, cfg.FFprobe, cfg.PKFrames)
	}

	for i := range report.Segments {
		seg := &report.Segments[i]

		if cfg.Remux {
			if err := remux.Repair(ctx, cfg.FFmpeg, seg.Path); err != nil {
				seg.RemuxError = err.Error()
				log.WithField("path", seg.Path).Error("remux failed: ", err)
			} else {
				seg.Remuxed = true
			}
		}

		if checker != nil {
			pk, err := checker.CheckFile(ctx, seg.Path)
			if err != nil {
				log.WithField("path", seg.Path).Warn("pk check failed: ", err)
				continue
			}
			seg.PK = pk
			if pk && cfg.PKDelete {
				if err := os.Remove(seg.Path); err != nil {
					log.WithField("path", seg.Path).Error("pk delete failed: ", err)
				} else {
					seg.Deleted = true
					log.WithField("path", seg.Path).Info("pk session deleted")
				}
			}
		}
	}
}

func logReport(report *split.Report) {
	for _, w := range report.Warnings {
		log.Warn(w.String())
	}
	log.WithFields(log.Fields{
		"input":       report.Input,
		"segments":    len(report.Segments),
		"passthrough": report.PassThrough,
		"truncated":   report.Truncated,
		"degraded":    report.Degraded(),
	}).Info("file done")
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			log.Error("flvsplit panic: ", r)
			time.Sleep(1 * time.Second)
		}
	}()

	log.Infof(`
     _____ _ __     __         _ _ _
    |  ___| |\ \   / /__ _ __ | (_) |_
    | |_  | | \ \ / / __| '_ \| | | __|
    |  _| | |__\ V /\__ \ |_) | | | |_
    |_|   |_____\_/ |___/ .__/|_|_|\__|
                        |_|
        version: %s
	`, VERSION)

	cfg := configure.SplitCfg{}
	configure.Config.Unmarshal(&cfg)

	if cfg.In == "" {
		log.Fatal("no input: set --in to a capture file or directory")
	}

	inputs, err := collectInputs(cfg.In)
	if err != nil {
		log.Fatal(err)
	}
	if len(inputs) == 0 {
		log.Info("nothing to do: no .flv files under ", cfg.In)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		log.Info("signal received, stopping: ", s)
		cancel()
	}()

	if cfg.Remux && !remux.Available(cfg.FFmpeg) {
		log.Warn("remux requested but ffmpeg not found, skipping: ", cfg.FFmpeg)
		cfg.Remux = false
	}

	registry := split.NewRegistry(time.Duration(cfg.ScanCacheTTL) * time.Second)
	buffered := cfg.Mode == "batch"

	failed := 0
	for _, in := range inputs {
		if registry.Settled(in) {
			log.WithField("input", in).Debug("already settled, skipping")
			continue
		}

		splitter := split.NewSplitter(cfg.OutDir, buffered)
		report, err := splitter.Process(ctx, in)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("stopped")
				os.Exit(1)
			}
			failed++
			log.WithField("input", in).Error("split failed: ", err)
			continue
		}

		postProcess(ctx, &cfg, report)
		registry.MarkSettled(in)
		logReport(report)
	}

	if failed > 0 {
		log.Error(failed, " of ", len(inputs), " files failed")
		os.Exit(1)
	}
}
