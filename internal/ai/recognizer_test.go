package ai

import (
	"context"
	"fmt"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/vuchat/vuchat/internal/models"
	"github.com/vuchat/vuchat/internal/video"
)

type mockCompleter struct {
	responses []string
	err       error
	requests  []openai.ChatCompletionRequest
}

func (m *mockCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return openai.ChatCompletionResponse{}, m.err
	}

	idx := len(m.requests) - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}

	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: m.responses[idx]}},
		},
	}, nil
}

func testFrames(n int) []video.Frame {
	frames := make([]video.Frame, n)
	for i := range frames {
		frames[i] = video.Frame{
			Number:    i,
			Timestamp: float64(i) * 2.0,
			Data:      []byte("jpeg"),
		}
	}
	return frames
}

func TestExtractEvents(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantErr    bool
		wantEvents int
	}{
		{
			name:       "bare JSON array",
			text:       `[{"timestamp": 5.2, "event_type": "violation", "description": "ran red light", "severity": "high", "guideline_violation": true}]`,
			wantEvents: 1,
		},
		{
			name:       "array wrapped in prose",
			text:       "Here is my analysis:\n```json\n[{\"timestamp\": 1.0, \"event_type\": \"scene\", \"description\": \"intersection\", \"severity\": \"low\"}]\n```\nLet me know if you need more.",
			wantEvents: 1,
		},
		{
			name:    "no array",
			text:    "I could not detect any structured events.",
			wantErr: true,
		},
		{
			name:    "malformed JSON",
			text:    `[{"timestamp": }]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := extractEvents(tt.text)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(events) != tt.wantEvents {
				t.Errorf("Expected %d events, got %d", tt.wantEvents, len(events))
			}
		})
	}
}

func TestDetectEvents_BatchesAndSorts(t *testing.T) {
	// 7 frames -> two batches, second batch returns an earlier timestamp
	mock := &mockCompleter{
		responses: []string{
			`[{"timestamp": 8.0, "event_type": "vehicle_movement", "description": "car turns left", "severity": "low"}]`,
			`[{"timestamp": 2.0, "event_type": "pedestrian_activity", "description": "pedestrian waits", "severity": "info"}]`,
		},
	}

	recognizer := NewEventRecognizer(mock, NewConfig())

	events, err := recognizer.DetectEvents(context.Background(), testFrames(7))
	if err != nil {
		t.Fatalf("DetectEvents failed: %v", err)
	}

	if len(mock.requests) != 2 {
		t.Errorf("Expected 2 batch requests for 7 frames, got %d", len(mock.requests))
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].Timestamp != 2.0 || events[1].Timestamp != 8.0 {
		t.Errorf("Events not sorted by timestamp: %+v", events)
	}
}

func TestDetectEvents_VisionRequestShape(t *testing.T) {
	mock := &mockCompleter{responses: []string{`[]`}}
	recognizer := NewEventRecognizer(mock, NewConfig())

	if _, err := recognizer.DetectEvents(context.Background(), testFrames(2)); err != nil {
		t.Fatalf("DetectEvents failed: %v", err)
	}

	req := mock.requests[0]
	if req.Model != DefaultVisionModel {
		t.Errorf("Expected vision model %s, got %s", DefaultVisionModel, req.Model)
	}
	if len(req.Messages) != 2 {
		t.Fatalf("Expected system + user messages, got %d", len(req.Messages))
	}
	// one text part plus one image part per frame
	if len(req.Messages[1].MultiContent) != 3 {
		t.Errorf("Expected 3 content parts, got %d", len(req.Messages[1].MultiContent))
	}
}

func TestDetectEvents_FallbackOnUnparseableResponse(t *testing.T) {
	mock := &mockCompleter{responses: []string{"The frames show a quiet street, nothing structured to report."}}
	recognizer := NewEventRecognizer(mock, NewConfig())

	frames := testFrames(3)
	events, err := recognizer.DetectEvents(context.Background(), frames)
	if err != nil {
		t.Fatalf("DetectEvents failed: %v", err)
	}

	if len(events) != len(frames) {
		t.Fatalf("Expected one fallback event per frame, got %d", len(events))
	}
	for i, e := range events {
		if e.EventType != "scene" {
			t.Errorf("Expected fallback event type scene, got %s", e.EventType)
		}
		if e.Timestamp != frames[i].Timestamp {
			t.Errorf("Fallback event %d has wrong timestamp %f", i, e.Timestamp)
		}
	}
}

func TestDetectEvents_ModelError(t *testing.T) {
	mock := &mockCompleter{err: fmt.Errorf("upstream unavailable")}
	recognizer := NewEventRecognizer(mock, NewConfig())

	if _, err := recognizer.DetectEvents(context.Background(), testFrames(1)); err == nil {
		t.Fatal("Expected error when model call fails")
	}
}

func TestClosestFrameNumber(t *testing.T) {
	frames := []video.Frame{
		{Number: 0, Timestamp: 0.0},
		{Number: 1, Timestamp: 2.0},
		{Number: 2, Timestamp: 4.0},
	}

	tests := []struct {
		timestamp float64
		want      int
	}{
		{0.3, 0},
		{1.9, 1},
		{3.5, 2},
		{100, 2},
	}

	for _, tt := range tests {
		if got := closestFrameNumber(tt.timestamp, frames); got != tt.want {
			t.Errorf("closestFrameNumber(%f) = %d, want %d", tt.timestamp, got, tt.want)
		}
	}

	if got := closestFrameNumber(1.0, nil); got != 0 {
		t.Errorf("Expected 0 for empty frames, got %d", got)
	}
}

func TestGenerateSummary_NoEvents(t *testing.T) {
	mock := &mockCompleter{}
	recognizer := NewEventRecognizer(mock, NewConfig())

	summary, adherence, err := recognizer.GenerateSummary(context.Background(), nil)
	if err != nil {
		t.Fatalf("GenerateSummary failed: %v", err)
	}
	if summary == "" {
		t.Error("Expected placeholder summary for empty events")
	}
	if adherence.ComplianceStatus != "Good" {
		t.Errorf("Expected Good status with no events, got %s", adherence.ComplianceStatus)
	}
	if len(mock.requests) != 0 {
		t.Errorf("Expected no model call for empty events, got %d", len(mock.requests))
	}
}

func TestGenerateSummary_UsesChatModel(t *testing.T) {
	mock := &mockCompleter{responses: []string{"A car ran a red light at 5.2s."}}
	recognizer := NewEventRecognizer(mock, NewConfig())

	events := []models.Event{
		{Timestamp: 5.2, EventType: "violation", Description: "ran red light", Severity: "high", GuidelineViolation: true},
	}

	summary, adherence, err := recognizer.GenerateSummary(context.Background(), events)
	if err != nil {
		t.Fatalf("GenerateSummary failed: %v", err)
	}
	if summary != "A car ran a red light at 5.2s." {
		t.Errorf("Unexpected summary: %s", summary)
	}
	if mock.requests[0].Model != DefaultChatModel {
		t.Errorf("Expected chat model %s, got %s", DefaultChatModel, mock.requests[0].Model)
	}
	if adherence.ViolationsCount != 1 {
		t.Errorf("Expected 1 violation, got %d", adherence.ViolationsCount)
	}
}

func TestBuildAdherence(t *testing.T) {
	violation := func(ts float64, severity, details string) models.Event {
		return models.Event{
			Timestamp:          ts,
			Description:        "event",
			Severity:           severity,
			GuidelineViolation: true,
			ViolationDetails:   details,
		}
	}

	tests := []struct {
		name       string
		events     []models.Event
		wantStatus string
		wantHigh   int
		wantCount  int
	}{
		{
			name:       "no violations",
			events:     []models.Event{{Timestamp: 1, Severity: "low"}},
			wantStatus: "Good",
		},
		{
			name:       "two violations needs attention",
			events:     []models.Event{violation(1, "high", "jaywalking"), violation(2, "medium", "speeding")},
			wantStatus: "Needs Attention",
			wantHigh:   1,
			wantCount:  2,
		},
		{
			name: "three violations poor",
			events: []models.Event{
				violation(1, "high", "a"), violation(2, "high", "b"), violation(3, "low", "c"),
			},
			wantStatus: "Poor",
			wantHigh:   2,
			wantCount:  3,
		},
		{
			name:       "critical severity is not counted as high",
			events:     []models.Event{violation(1, "critical", "x")},
			wantStatus: "Needs Attention",
			wantHigh:   0,
			wantCount:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adherence := BuildAdherence(tt.events)

			if adherence.ComplianceStatus != tt.wantStatus {
				t.Errorf("Expected status %s, got %s", tt.wantStatus, adherence.ComplianceStatus)
			}
			if adherence.HighSeverityCount != tt.wantHigh {
				t.Errorf("Expected %d high severity, got %d", tt.wantHigh, adherence.HighSeverityCount)
			}
			if adherence.ViolationsCount != tt.wantCount {
				t.Errorf("Expected %d violations, got %d", tt.wantCount, adherence.ViolationsCount)
			}
			if adherence.TotalEvents != len(tt.events) {
				t.Errorf("Expected %d total events, got %d", len(tt.events), adherence.TotalEvents)
			}
		})
	}
}

func TestBuildAdherence_ViolationDescriptionFallsBackToEvent(t *testing.T) {
	events := []models.Event{
		{Timestamp: 1, Description: "cut across two lanes", Severity: "medium", GuidelineViolation: true},
	}

	adherence := BuildAdherence(events)
	if len(adherence.Violations) != 1 {
		t.Fatalf("Expected 1 violation, got %d", len(adherence.Violations))
	}
	if adherence.Violations[0].Description != "cut across two lanes" {
		t.Errorf("Expected event description fallback, got %s", adherence.Violations[0].Description)
	}
}

func TestAnalyzeGuidelines(t *testing.T) {
	events := []models.Event{
		{Description: "vehicle ignored traffic light compliance rules", GuidelineViolation: true},
		{Description: "pedestrian right of way respected"},
	}

	analysis := AnalyzeGuidelines(events, "traffic")

	if analysis.GuidelineType != "traffic" {
		t.Errorf("Expected traffic type, got %s", analysis.GuidelineType)
	}

	lights := analysis.Results["Traffic light compliance"]
	if lights.RelatedEvents != 1 || lights.Violations != 1 || lights.Status != "Fail" {
		t.Errorf("Unexpected traffic light result: %+v", lights)
	}

	rightOfWay := analysis.Results["Pedestrian right of way"]
	if rightOfWay.RelatedEvents != 1 || rightOfWay.Status != "Pass" {
		t.Errorf("Unexpected right of way result: %+v", rightOfWay)
	}
}

func TestAnalyzeGuidelines_UnknownTypeFallsBackToGeneral(t *testing.T) {
	analysis := AnalyzeGuidelines(nil, "underwater")
	if analysis.GuidelineType != "general" {
		t.Errorf("Expected general fallback, got %s", analysis.GuidelineType)
	}
}
