package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/vuchat/vuchat/internal/models"
	"github.com/vuchat/vuchat/internal/video"
)

const (
	frameBatchSize      = 5
	detectionMaxTokens  = 1000
	summaryMaxTokens    = 500
	detectionTemp       = 0.3
	summaryTemp         = 0.3
	needsAttentionLimit = 2
)

const detectionSystemPrompt = `You are an expert video analyst with specialized knowledge in traffic laws, safety regulations, and behavioral analysis.

THOROUGHLY analyze these video frames for:

1. TRAFFIC & VEHICLE ANALYSIS: traffic light status, vehicle movements and positions, lane changes, turns, stops, speed estimation, following distance, use of indicators, parking violations, running red lights or stop signs.
2. PEDESTRIAN & CYCLIST ACTIVITY: crossings (jaywalking, crossing at signals), signal compliance, cyclist behavior and lane usage, near-miss incidents, right of way violations.
3. ENVIRONMENTAL CONTEXT: road conditions, weather, time of day and lighting, road signs and markings, traffic control devices.
4. SAFETY & COMPLIANCE: seatbelt usage if visible, phone usage while driving, aggressive driving, emergency vehicle interactions, construction and school zone compliance.
5. GENERAL OBSERVATIONS: unusual or noteworthy events, potential hazards, good driving practices, traffic flow patterns.

BE SPECIFIC: instead of "traffic at intersection", describe "vehicle approaching red light at 15mph" or "pedestrians waiting at crosswalk with walk signal".

Return a JSON array where EACH detected element gets its own entry:
{
    "timestamp": float,
    "event_type": "traffic_signal|vehicle_movement|pedestrian_activity|violation|hazard|environmental|other",
    "description": "Detailed description of what is happening",
    "objects": ["car", "pedestrian", "traffic_light", "crosswalk", ...],
    "location_in_frame": "top-left|top-center|top-right|center-left|center|center-right|bottom-left|bottom-center|bottom-right",
    "severity": "info|low|medium|high|critical",
    "guideline_violation": boolean,
    "violation_details": "Specific law or guideline violated if applicable",
    "confidence": 0.0-1.0
}`

const summarySystemPrompt = `You are a video analysis expert. Create a DETAILED and COMPREHENSIVE summary of the video based on detected events.

Your summary MUST include:
1. SCENE OVERVIEW: location type, environmental conditions, time of day and visibility.
2. TRAFFIC ELEMENTS: signal states and changes, signs, road markings and lanes.
3. VEHICLE ACTIVITY: number and types of vehicles, movements, speed and following distance, signal usage.
4. PEDESTRIAN/CYCLIST ACTIVITY: counts, crossing behavior, signal compliance, interactions with vehicles.
5. VIOLATIONS & SAFETY CONCERNS: be specific ("ran red light at 5.2s", "failed to stop at crosswalk"), near-miss incidents, unsafe behaviors.
6. POSITIVE OBSERVATIONS: proper compliance, safe practices.
7. TEMPORAL FLOW: how events unfold chronologically.

Be SPECIFIC with timestamps and descriptions. Length: 250-400 words.`

// EventRecognizer turns sampled frames into a timeline of events and a
// guideline-adherence report using a vision-language model.
type EventRecognizer struct {
	client      Completer
	visionModel string
	chatModel   string
}

func NewEventRecognizer(client Completer, config *Config) *EventRecognizer {
	visionModel := config.VisionModel
	if visionModel == "" {
		visionModel = DefaultVisionModel
	}
	chatModel := config.ChatModel
	if chatModel == "" {
		chatModel = DefaultChatModel
	}

	return &EventRecognizer{
		client:      client,
		visionModel: visionModel,
		chatModel:   chatModel,
	}
}

// DetectEvents sends frames to the vision model in batches and merges
// the detected events, sorted by timestamp.
func (r *EventRecognizer) DetectEvents(ctx context.Context, frames []video.Frame) ([]models.Event, error) {
	var events []models.Event

	for i := 0; i < len(frames); i += frameBatchSize {
		end := i + frameBatchSize
		if end > len(frames) {
			end = len(frames)
		}

		batchEvents, err := r.analyzeFrameBatch(ctx, frames[i:end])
		if err != nil {
			return nil, fmt.Errorf("analyzing frames %d-%d: %w", i, end-1, err)
		}
		events = append(events, batchEvents...)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp < events[j].Timestamp
	})

	log.Printf("Detected %d events in video", len(events))
	return events, nil
}

func (r *EventRecognizer) analyzeFrameBatch(ctx context.Context, frames []video.Frame) ([]models.Event, error) {
	timestamps := make([]string, len(frames))
	for i, f := range frames {
		timestamps[i] = fmt.Sprintf("%.1fs", f.Timestamp)
	}

	userParts := []openai.ChatMessagePart{
		{
			Type: openai.ChatMessagePartTypeText,
			Text: fmt.Sprintf("Analyze these %d frames from a video. The timestamps are: %s",
				len(frames), strings.Join(timestamps, ", ")),
		},
	}
	for _, f := range frames {
		userParts = append(userParts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL: fmt.Sprintf("data:image/jpeg;base64,%s", base64.StdEncoding.EncodeToString(f.Data)),
			},
		})
	}

	req := openai.ChatCompletionRequest{
		Model: r.visionModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: detectionSystemPrompt},
			{Role: openai.ChatMessageRoleUser, MultiContent: userParts},
		},
		MaxTokens:   detectionMaxTokens,
		Temperature: detectionTemp,
	}

	text, err := completionText(ctx, r.client, req)
	if err != nil {
		return nil, err
	}

	events, err := extractEvents(text)
	if err != nil {
		log.Printf("Could not parse events from model response, using fallback: %v", err)
		return fallbackEvents(frames), nil
	}

	for i := range events {
		events[i].FrameNumber = closestFrameNumber(events[i].Timestamp, frames)
	}

	return events, nil
}

// extractEvents finds the first JSON array in the model's prose and
// decodes it. Models wrap their JSON in commentary often enough that
// scanning for the brackets is the reliable approach.
func extractEvents(text string) ([]models.Event, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var events []models.Event
	if err := json.Unmarshal([]byte(text[start:end+1]), &events); err != nil {
		return nil, fmt.Errorf("invalid event JSON: %w", err)
	}

	return events, nil
}

// fallbackEvents produces one generic "scene" event per frame when the
// model's output cannot be parsed, so the pipeline still returns a
// timeline.
func fallbackEvents(frames []video.Frame) []models.Event {
	events := make([]models.Event, 0, len(frames))
	for _, f := range frames {
		events = append(events, models.Event{
			Timestamp:   f.Timestamp,
			FrameNumber: f.Number,
			EventType:   "scene",
			Description: "Scene captured",
			Severity:    "low",
		})
	}
	return events
}

func closestFrameNumber(timestamp float64, frames []video.Frame) int {
	if len(frames) == 0 {
		return 0
	}

	closest := frames[0].Number
	minDiff := math.Abs(frames[0].Timestamp - timestamp)

	for _, f := range frames[1:] {
		if diff := math.Abs(f.Timestamp - timestamp); diff < minDiff {
			minDiff = diff
			closest = f.Number
		}
	}

	return closest
}

// GenerateSummary asks the chat model for a narrative summary of the
// events and computes the guideline-adherence report locally.
func (r *EventRecognizer) GenerateSummary(ctx context.Context, events []models.Event) (string, models.GuidelineAdherence, error) {
	if len(events) == 0 {
		return "No significant events detected in the video.", models.GuidelineAdherence{
			Violations:       []models.Violation{},
			ComplianceStatus: "Good",
		}, nil
	}

	eventsJSON, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return "", models.GuidelineAdherence{}, fmt.Errorf("marshaling events: %w", err)
	}

	req := openai.ChatCompletionRequest{
		Model: r.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Events detected in video:\n%s", eventsJSON)},
		},
		MaxTokens:   summaryMaxTokens,
		Temperature: summaryTemp,
	}

	summary, err := completionText(ctx, r.client, req)
	if err != nil {
		return "", models.GuidelineAdherence{}, fmt.Errorf("generating summary: %w", err)
	}

	return summary, BuildAdherence(events), nil
}

// BuildAdherence compiles the guideline-adherence report from detected
// events. Compliance is "Good" with no violations, "Needs Attention" up
// to two, and "Poor" beyond that.
func BuildAdherence(events []models.Event) models.GuidelineAdherence {
	violations := make([]models.Violation, 0)
	var highCount, mediumCount int

	for _, e := range events {
		switch e.Severity {
		case "high":
			highCount++
		case "medium":
			mediumCount++
		}

		if e.GuidelineViolation {
			description := e.ViolationDetails
			if description == "" {
				description = e.Description
			}
			violations = append(violations, models.Violation{
				Timestamp:   e.Timestamp,
				Description: description,
				Severity:    e.Severity,
			})
		}
	}

	var rate float64
	if len(events) > 0 {
		rate = float64(len(violations)) / float64(len(events))
	}

	status := "Good"
	switch {
	case len(violations) > needsAttentionLimit:
		status = "Poor"
	case len(violations) > 0:
		status = "Needs Attention"
	}

	return models.GuidelineAdherence{
		TotalEvents:         len(events),
		ViolationsCount:     len(violations),
		HighSeverityCount:   highCount,
		MediumSeverityCount: mediumCount,
		ViolationRate:       rate,
		Violations:          violations,
		ComplianceStatus:    status,
	}
}
