package chat

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/vuchat/vuchat/internal/ai"
	"github.com/vuchat/vuchat/internal/models"
	"github.com/vuchat/vuchat/internal/session"
)

const (
	replyMaxTokens = 500
	replyTemp      = 0.7
	replyTopP      = 0.9

	// FallbackReply is what the user sees when the model call fails;
	// the transcript stays the single feedback surface, so this is a
	// normal assistant message rather than an error response.
	FallbackReply = "I apologize, but I encountered an error processing your message. Please try again."
)

const systemPrompt = `You are an intelligent visual understanding assistant specializing in video analysis.
You have access to video analysis results including detected events, summaries, and guideline adherence information.

Your capabilities include:
1. Answering questions about analyzed videos
2. Providing detailed explanations of events
3. Discussing guideline violations and safety concerns
4. Maintaining context across multiple conversation turns
5. Helping users understand temporal relationships between events

Be informative, precise, and helpful. When discussing events, reference specific timestamps when available.
If asked about something not in the video analysis, clearly state that information is not available.`

// topicKeywords drives the lightweight context tracking: if a user
// message touches one of these areas, the session context records it.
var topicKeywords = map[string][]string{
	"traffic":  {"traffic", "vehicle", "car", "pedestrian", "light", "road"},
	"safety":   {"safety", "violation", "danger", "hazard", "risk"},
	"timeline": {"when", "time", "timestamp", "sequence", "order"},
	"summary":  {"summary", "overview", "summarize", "brief"},
}

// Handler runs multi-turn conversations about an analyzed video.
type Handler struct {
	client     ai.Completer
	model      string
	sessions   *session.Manager
	maxHistory int
}

func NewHandler(client ai.Completer, model string, sessions *session.Manager, maxHistory int) *Handler {
	if model == "" {
		model = ai.DefaultChatModel
	}
	if maxHistory <= 0 {
		maxHistory = session.DefaultMaxHistory
	}

	return &Handler{
		client:     client,
		model:      model,
		sessions:   sessions,
		maxHistory: maxHistory,
	}
}

// ProcessMessage appends the user's message, asks the model for a
// reply with the session's analysis and recent history as context, and
// appends the reply. A model failure degrades to the fixed fallback
// reply instead of an error.
func (h *Handler) ProcessMessage(ctx context.Context, sessionID, message string) (string, error) {
	if err := h.sessions.AddMessage(sessionID, models.RoleUser, message, nil); err != nil {
		return "", err
	}

	history := h.sessions.History(sessionID, h.maxHistory)
	analysis := h.sessions.VideoAnalysis(sessionID)

	req := openai.ChatCompletionRequest{
		Model:       h.model,
		Messages:    buildMessages(history, analysis, message),
		MaxTokens:   replyMaxTokens,
		Temperature: replyTemp,
		TopP:        replyTopP,
	}

	reply, err := h.complete(ctx, req)
	if err != nil {
		log.Printf("Error generating chat response for session %s: %v", sessionID, err)
		reply = FallbackReply
	}

	if err := h.sessions.AddMessage(sessionID, models.RoleAssistant, reply, nil); err != nil {
		return "", err
	}

	h.trackTopics(sessionID, message)

	return reply, nil
}

func (h *Handler) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := h.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in model response")
	}
	return resp.Choices[0].Message.Content, nil
}

// buildMessages assembles the model request: the system prompt
// (enriched with the video analysis when one exists), the recent
// history, and the current message last.
func buildMessages(history []models.Message, analysis *models.VideoAnalysis, currentMessage string) []openai.ChatCompletionMessage {
	systemContent := systemPrompt

	if analysis != nil {
		var b strings.Builder
		b.WriteString(systemContent)
		b.WriteString("\n\nVideo Analysis Available:\n")
		fmt.Fprintf(&b, "Summary: %s\n", analysis.Summary)
		fmt.Fprintf(&b, "Total Events: %d\n", len(analysis.Events))
		fmt.Fprintf(&b, "Guideline Compliance: %s\n", analysis.Guidelines.ComplianceStatus)
		fmt.Fprintf(&b, "Violations: %d\n", analysis.Guidelines.ViolationsCount)

		if len(analysis.Events) > 0 {
			b.WriteString("\nSample Events:\n")
			sample := analysis.Events
			if len(sample) > 5 {
				sample = sample[:5]
			}
			for _, event := range sample {
				fmt.Fprintf(&b, "- [%.1fs] %s\n", event.Timestamp, event.Description)
			}
		}
		systemContent = b.String()
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemContent},
	}

	// History already contains the just-appended user message; skip it
	// so it is not sent twice.
	if len(history) > 0 {
		history = history[:len(history)-1]
	}
	for _, msg := range history {
		if msg.Role != models.RoleUser && msg.Role != models.RoleAssistant {
			continue
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: currentMessage,
	})

	return messages
}

func (h *Handler) trackTopics(sessionID, message string) {
	topics := detectTopics(message)
	if len(topics) > 0 {
		h.sessions.SetContext(sessionID, "current_topics", strings.Join(topics, ","))
	}
}

func detectTopics(message string) []string {
	messageLower := strings.ToLower(message)

	var topics []string
	for topic, words := range topicKeywords {
		for _, word := range words {
			if strings.Contains(messageLower, word) {
				topics = append(topics, topic)
				break
			}
		}
	}

	sort.Strings(topics)
	return topics
}

// QueryParams parameterizes AnswerQuery.
type QueryParams struct {
	Timestamp float64
	EventType string
}

// AnswerQuery answers structured questions about the analyzed video
// without a model round trip.
func (h *Handler) AnswerQuery(sessionID, queryType string, params QueryParams) string {
	analysis := h.sessions.VideoAnalysis(sessionID)
	if analysis == nil {
		return "No video has been analyzed yet. Please upload a video first."
	}

	switch queryType {
	case "event_at_time":
		var nearby []models.Event
		for _, e := range analysis.Events {
			if math.Abs(e.Timestamp-params.Timestamp) < 2.0 {
				nearby = append(nearby, e)
			}
		}
		if len(nearby) == 0 {
			return fmt.Sprintf("No events found around %gs", params.Timestamp)
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Events around %gs:\n", params.Timestamp)
		for _, e := range nearby {
			fmt.Fprintf(&b, "- [%.1fs] %s\n", e.Timestamp, e.Description)
		}
		return b.String()

	case "violation_details":
		if len(analysis.Guidelines.Violations) == 0 {
			return "No violations detected in the video."
		}

		var b strings.Builder
		b.WriteString("Detected violations:\n")
		for _, v := range analysis.Guidelines.Violations {
			fmt.Fprintf(&b, "- [%.1fs] %s (Severity: %s)\n", v.Timestamp, v.Description, v.Severity)
		}
		return b.String()

	case "event_summary":
		var filtered []models.Event
		for _, e := range analysis.Events {
			if strings.Contains(strings.ToLower(e.EventType), strings.ToLower(params.EventType)) {
				filtered = append(filtered, e)
			}
		}
		if len(filtered) == 0 {
			return fmt.Sprintf("No %s events found in the video.", params.EventType)
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Found %d %s events:\n", len(filtered), params.EventType)
		if len(filtered) > 5 {
			filtered = filtered[:5]
		}
		for _, e := range filtered {
			fmt.Fprintf(&b, "- [%.1fs] %s\n", e.Timestamp, e.Description)
		}
		return b.String()
	}

	return "Query type not recognized."
}

// summaryTopicKeywords is distinct from topicKeywords: the summary
// labels questions by what they asked about (events, violations, the
// summary itself, timing), not by the domain areas the context tracker
// records.
var summaryTopicKeywords = map[string][]string{
	"events":     {"event"},
	"violations": {"violation", "guideline"},
	"summary":    {"summary"},
	"timeline":   {"time", "when"},
}

// ConversationSummary condenses the transcript into exchange count and
// the topics the user has asked about.
func (h *Handler) ConversationSummary(sessionID string) string {
	history := h.sessions.History(sessionID, 0)
	if len(history) == 0 {
		return "No conversation history available."
	}

	topicSet := make(map[string]bool)
	var exchanges int
	for _, msg := range history {
		if msg.Role != models.RoleUser {
			continue
		}
		exchanges++
		lower := strings.ToLower(msg.Content)
		for topic, keywords := range summaryTopicKeywords {
			for _, keyword := range keywords {
				if strings.Contains(lower, keyword) {
					topicSet[topic] = true
					break
				}
			}
		}
	}

	topics := make([]string, 0, len(topicSet))
	for topic := range topicSet {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	joined := "general"
	if len(topics) > 0 {
		joined = strings.Join(topics, ", ")
	}

	return fmt.Sprintf("Conversation Summary:\nTotal exchanges: %d\nTopics discussed: %s", exchanges, joined)
}
