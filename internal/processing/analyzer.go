package processing

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/vuchat/vuchat/internal/ai"
	"github.com/vuchat/vuchat/internal/models"
	"github.com/vuchat/vuchat/internal/video"
)

// FrameSource yields sampled frames for a video file on disk.
type FrameSource interface {
	ExtractFrames(videoPath string) ([]video.Frame, error)
}

// Analyzer runs the full pipeline: sample frames, detect events,
// summarize, score guideline adherence.
type Analyzer struct {
	frames     FrameSource
	recognizer *ai.EventRecognizer
}

func NewAnalyzer(frames FrameSource, recognizer *ai.EventRecognizer) *Analyzer {
	return &Analyzer{
		frames:     frames,
		recognizer: recognizer,
	}
}

func (a *Analyzer) AnalyzeFile(ctx context.Context, videoPath string) (*models.VideoAnalysis, error) {
	start := time.Now()

	frames, err := a.frames.ExtractFrames(videoPath)
	if err != nil {
		return nil, fmt.Errorf("extracting frames: %w", err)
	}

	events, err := a.recognizer.DetectEvents(ctx, frames)
	if err != nil {
		return nil, fmt.Errorf("detecting events: %w", err)
	}

	summary, adherence, err := a.recognizer.GenerateSummary(ctx, events)
	if err != nil {
		return nil, fmt.Errorf("generating summary: %w", err)
	}

	log.Printf("Analyzed %s: %d frames, %d events, %d violations in %s",
		videoPath, len(frames), len(events), adherence.ViolationsCount,
		time.Since(start).Round(time.Millisecond))

	return &models.VideoAnalysis{
		Events:     events,
		Summary:    summary,
		Guidelines: adherence,
		AnalyzedAt: time.Now(),
	}, nil
}
