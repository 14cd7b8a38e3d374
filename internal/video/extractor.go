package video

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
)

const (
	DefaultMaxFrames   = 30
	DefaultMaxDuration = 120.0
	DefaultFrameSize   = 1024
	jpegQuality        = "2"
)

// Frame is a single sampled frame, JPEG-encoded, with the timestamp it
// was taken at (seconds from the start of the clip).
type Frame struct {
	Number    int     `json:"frame_number"`
	Timestamp float64 `json:"timestamp"`
	Data      []byte  `json:"-"`
}

// Extractor samples frames from a video at evenly spaced timestamps
// using ffmpeg. At most MaxFrames frames are taken, and only the first
// MaxDuration seconds of the clip are considered.
type Extractor struct {
	ffmpegPath  string
	tempDir     string
	MaxFrames   int
	MaxDuration float64
	FrameSize   int
}

func NewExtractor() (*Extractor, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	tempDir := filepath.Join(os.TempDir(), "vuchat-frames")
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &Extractor{
		ffmpegPath:  ffmpegPath,
		tempDir:     tempDir,
		MaxFrames:   DefaultMaxFrames,
		MaxDuration: DefaultMaxDuration,
		FrameSize:   DefaultFrameSize,
	}, nil
}

func (e *Extractor) ExtractFrames(videoPath string) ([]Frame, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("video file not accessible: %w", err)
	}

	duration, err := ProbeDuration(videoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get video duration: %w", err)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("invalid video duration: %f", duration)
	}

	if duration > e.MaxDuration {
		log.Printf("Video duration (%.1fs) exceeds maximum (%.1fs), sampling first %.1fs only",
			duration, e.MaxDuration, e.MaxDuration)
	}

	points := samplePoints(duration, e.MaxDuration, e.MaxFrames)

	frames := make([]Frame, 0, len(points))
	for i, timestamp := range points {
		data, err := e.extractSingleFrame(videoPath, timestamp)
		if err != nil {
			log.Printf("Failed to extract frame at %.2fs: %v", timestamp, err)
			continue
		}
		frames = append(frames, Frame{
			Number:    i,
			Timestamp: timestamp,
			Data:      data,
		})
	}

	if len(frames) == 0 {
		return nil, fmt.Errorf("failed to extract any frames from video (attempted %d)", len(points))
	}

	log.Printf("Extracted %d/%d frames from %s", len(frames), len(points), filepath.Base(videoPath))
	return frames, nil
}

// samplePoints returns evenly spaced timestamps covering min(duration,
// maxDuration), never more than count of them. The first and last
// moments of the clip are skipped so the samples land inside the
// content rather than on black lead-in frames.
func samplePoints(duration, maxDuration float64, count int) []float64 {
	if duration > maxDuration {
		duration = maxDuration
	}
	if count < 1 {
		count = 1
	}

	interval := duration / float64(count+1)
	points := make([]float64, 0, count)
	for i := 1; i <= count; i++ {
		points = append(points, interval*float64(i))
	}
	return points
}

func (e *Extractor) extractSingleFrame(videoPath string, timestamp float64) ([]byte, error) {
	tempFile := filepath.Join(e.tempDir, fmt.Sprintf("frame_%f.jpg", timestamp))
	defer os.Remove(tempFile)

	size := e.FrameSize
	args := []string{
		"-ss", fmt.Sprintf("%.2f", timestamp),
		"-i", videoPath,
		"-vframes", "1",
		"-vf", fmt.Sprintf("scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease", size, size),
		"-q:v", jpegQuality,
		"-f", "mjpeg",
		"-y",
		tempFile,
	}

	cmd := exec.Command(e.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Printf("ffmpeg stderr: %s", stderr.String())
		return nil, fmt.Errorf("failed to extract frame at %.2f: %w", timestamp, err)
	}

	data, err := os.ReadFile(tempFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted frame: %w", err)
	}

	return data, nil
}

func (e *Extractor) Cleanup() error {
	return os.RemoveAll(e.tempDir)
}
