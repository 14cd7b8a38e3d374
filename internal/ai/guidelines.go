package ai

import (
	"strings"

	"github.com/vuchat/vuchat/internal/models"
)

// GuidelineSets are the named rule sets a caller can check events
// against.
var GuidelineSets = map[string][]string{
	"traffic": {
		"Traffic light compliance",
		"Speed limit adherence",
		"Pedestrian right of way",
		"Lane discipline",
		"Stop sign compliance",
	},
	"safety": {
		"PPE usage",
		"Hazard awareness",
		"Emergency procedures",
		"Equipment handling",
		"Restricted area access",
	},
	"general": {
		"Activity detection",
		"Object tracking",
		"Anomaly detection",
		"Pattern recognition",
	},
}

type GuidelineResult struct {
	RelatedEvents int    `json:"related_events"`
	Violations    int    `json:"violations"`
	Status        string `json:"status"`
}

type GuidelineAnalysis struct {
	GuidelineType     string                     `json:"guideline_type"`
	CheckedGuidelines []string                   `json:"checked_guidelines"`
	Results           map[string]GuidelineResult `json:"results"`
}

// AnalyzeGuidelines matches events against a named guideline set. A
// guideline fails if any related event is flagged as a violation.
func AnalyzeGuidelines(events []models.Event, guidelineType string) GuidelineAnalysis {
	guidelines, ok := GuidelineSets[guidelineType]
	if !ok {
		guidelineType = "general"
		guidelines = GuidelineSets["general"]
	}

	analysis := GuidelineAnalysis{
		GuidelineType:     guidelineType,
		CheckedGuidelines: guidelines,
		Results:           make(map[string]GuidelineResult, len(guidelines)),
	}

	for _, guideline := range guidelines {
		needle := strings.ToLower(guideline)

		var related, violations int
		for _, e := range events {
			if !strings.Contains(strings.ToLower(e.Description), needle) &&
				!strings.Contains(strings.ToLower(e.ViolationDetails), needle) {
				continue
			}
			related++
			if e.GuidelineViolation {
				violations++
			}
		}

		status := "Pass"
		if violations > 0 {
			status = "Fail"
		}

		analysis.Results[guideline] = GuidelineResult{
			RelatedEvents: related,
			Violations:    violations,
			Status:        status,
		}
	}

	return analysis
}
