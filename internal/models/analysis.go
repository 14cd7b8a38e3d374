package models

import "time"

// Event is a single observation the vision model made about the video.
// Timestamps are seconds from the start of the clip.
type Event struct {
	Timestamp          float64  `json:"timestamp"`
	FrameNumber        int      `json:"frame_number"`
	EventType          string   `json:"event_type"`
	Description        string   `json:"description"`
	Objects            []string `json:"objects,omitempty"`
	LocationInFrame    string   `json:"location_in_frame,omitempty"`
	Severity           string   `json:"severity"`
	GuidelineViolation bool     `json:"guideline_violation"`
	ViolationDetails   string   `json:"violation_details,omitempty"`
	Confidence         float64  `json:"confidence,omitempty"`
}

// Violation is the adherence-report projection of a violating event.
type Violation struct {
	Timestamp   float64 `json:"timestamp"`
	Description string  `json:"description"`
	Severity    string  `json:"severity"`
}

// GuidelineAdherence summarizes how well the video complied with the
// configured guidelines. ComplianceStatus is one of "Good" (no
// violations), "Needs Attention" (one or two), or "Poor".
type GuidelineAdherence struct {
	TotalEvents         int         `json:"total_events"`
	ViolationsCount     int         `json:"violations_count"`
	HighSeverityCount   int         `json:"high_severity_count"`
	MediumSeverityCount int         `json:"medium_severity_count"`
	ViolationRate       float64     `json:"violation_rate"`
	Violations          []Violation `json:"violations"`
	ComplianceStatus    string      `json:"compliance_status"`
}

// VideoAnalysis is the full result of running a video through the
// analysis pipeline.
type VideoAnalysis struct {
	Events     []Event            `json:"events"`
	Summary    string             `json:"summary"`
	Guidelines GuidelineAdherence `json:"guideline_adherence"`
	AnalyzedAt time.Time          `json:"analyzed_at"`
}
