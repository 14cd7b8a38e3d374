package video

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// ProbeDuration returns the duration of a video in seconds. It prefers
// ffprobe and falls back to parsing ffmpeg's stderr banner when ffprobe
// is not installed.
func ProbeDuration(videoPath string) (float64, error) {
	if ffprobePath, err := exec.LookPath("ffprobe"); err == nil {
		cmd := exec.Command(ffprobePath,
			"-v", "error",
			"-show_entries", "format=duration",
			"-of", "default=noprint_wrappers=1:nokey=1",
			videoPath)

		var stdout bytes.Buffer
		cmd.Stdout = &stdout

		if err := cmd.Run(); err == nil {
			durationStr := strings.TrimSpace(stdout.String())
			if duration, err := strconv.ParseFloat(durationStr, 64); err == nil && duration > 0 {
				return duration, nil
			}
		}
	}

	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return 0, fmt.Errorf("neither ffprobe nor ffmpeg found in PATH: %w", err)
	}

	cmd := exec.Command(ffmpegPath, "-i", videoPath, "-f", "null", "-")

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	_ = cmd.Run()

	return parseFFmpegDuration(stderr.String())
}

// parseFFmpegDuration pulls "Duration: HH:MM:SS.ss" out of ffmpeg's
// stderr banner.
func parseFFmpegDuration(output string) (float64, error) {
	const durationPrefix = "Duration: "

	startIndex := strings.Index(output, durationPrefix)
	if startIndex == -1 {
		return 0, fmt.Errorf("duration not found in ffmpeg output")
	}

	startIndex += len(durationPrefix)
	endIndex := strings.Index(output[startIndex:], ",")
	if endIndex == -1 {
		return 0, fmt.Errorf("invalid duration format")
	}

	durationStr := output[startIndex : startIndex+endIndex]
	parts := strings.Split(durationStr, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid duration format: %s", durationStr)
	}

	hours, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, err
	}
	minutes, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, err
	}

	return hours*3600 + minutes*60 + seconds, nil
}

// Validate checks that the file exists and that ffmpeg can read a
// positive duration out of it.
func Validate(videoPath string) error {
	if _, err := os.Stat(videoPath); err != nil {
		return fmt.Errorf("video file not found: %w", err)
	}

	duration, err := ProbeDuration(videoPath)
	if err != nil {
		return fmt.Errorf("cannot read video: %w", err)
	}
	if duration <= 0 {
		return fmt.Errorf("video has no readable duration")
	}

	return nil
}
