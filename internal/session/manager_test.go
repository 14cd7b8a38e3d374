package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vuchat/vuchat/internal/models"
)

func testManager() *Manager {
	return NewManager(DefaultMaxHistory, DefaultTimeout)
}

func TestManager_CreateAndTouch(t *testing.T) {
	m := testManager()

	id := m.Create()
	require.NotEmpty(t, id)
	assert.True(t, m.Touch(id))
	assert.False(t, m.Touch("no-such-session"))
	assert.Equal(t, 1, m.ActiveCount())
}

func TestManager_GetOrCreate(t *testing.T) {
	m := testManager()

	id := m.GetOrCreate("")
	require.NotEmpty(t, id)

	// live id is kept
	assert.Equal(t, id, m.GetOrCreate(id))

	// unknown id rotates to a fresh session
	rotated := m.GetOrCreate("stale-id")
	assert.NotEqual(t, "stale-id", rotated)
	assert.NotEqual(t, id, rotated)
}

func TestManager_Expiry(t *testing.T) {
	m := NewManager(DefaultMaxHistory, 10*time.Millisecond)

	id := m.Create()
	time.Sleep(20 * time.Millisecond)

	assert.False(t, m.Touch(id))
	assert.Equal(t, 0, m.ActiveCount())
}

func TestManager_AddMessageAndHistory(t *testing.T) {
	m := testManager()
	id := m.Create()

	require.NoError(t, m.AddMessage(id, models.RoleUser, "hello", nil))
	require.NoError(t, m.AddMessage(id, models.RoleAssistant, "hi there", nil))

	history := m.History(id, 0)
	require.Len(t, history, 2)
	assert.Equal(t, models.RoleUser, history[0].Role)
	assert.Equal(t, "hi there", history[1].Content)

	limited := m.History(id, 1)
	require.Len(t, limited, 1)
	assert.Equal(t, models.RoleAssistant, limited[0].Role)
}

func TestManager_AddMessage_UnknownSession(t *testing.T) {
	m := testManager()
	assert.Error(t, m.AddMessage("missing", models.RoleUser, "hello", nil))
}

func TestManager_HistoryTrimKeepsSystemMessages(t *testing.T) {
	m := NewManager(2, DefaultTimeout) // cap of 4 retained messages
	id := m.Create()

	require.NoError(t, m.AddMessage(id, models.RoleSystem, "video analyzed", nil))
	for i := 0; i < 6; i++ {
		require.NoError(t, m.AddMessage(id, models.RoleUser, fmt.Sprintf("question %d", i), nil))
	}

	history := m.History(id, 0)
	require.Len(t, history, 5) // system message + last 4

	assert.Equal(t, models.RoleSystem, history[0].Role)
	assert.Equal(t, "question 5", history[len(history)-1].Content)
}

func TestManager_StoreVideoAnalysis(t *testing.T) {
	m := testManager()
	id := m.Create()

	analysis := &models.VideoAnalysis{
		Summary: "A quiet intersection.",
		Events:  []models.Event{{Timestamp: 1.0, Description: "car passes"}},
		Guidelines: models.GuidelineAdherence{
			ComplianceStatus: "Good",
		},
		AnalyzedAt: time.Now(),
	}

	require.NoError(t, m.StoreVideoAnalysis(id, analysis))

	got := m.VideoAnalysis(id)
	require.NotNil(t, got)
	assert.Equal(t, "A quiet intersection.", got.Summary)

	// storing the analysis leaves a system message in the transcript
	history := m.History(id, 0)
	require.Len(t, history, 1)
	assert.Equal(t, models.RoleSystem, history[0].Role)
	assert.Contains(t, history[0].Content, "Found 1 events")
	assert.Equal(t, "video_analysis", history[0].Metadata["type"])
}

func TestManager_Context(t *testing.T) {
	m := testManager()
	id := m.Create()

	m.SetContext(id, "current_topics", "traffic,safety")

	ctx := m.ContextOf(id)
	assert.Equal(t, "traffic,safety", ctx["current_topics"])

	// returned map is a copy
	ctx["current_topics"] = "mutated"
	assert.Equal(t, "traffic,safety", m.ContextOf(id)["current_topics"])
}

func TestManager_Metadata(t *testing.T) {
	m := testManager()
	id := m.Create()
	require.NoError(t, m.AddMessage(id, models.RoleUser, "hello", nil))

	meta, ok := m.Metadata(id)
	require.True(t, ok)
	assert.Equal(t, id, meta.ID)
	assert.Equal(t, 1, meta.MessageCount)
	assert.False(t, meta.HasVideoAnalysis)

	_, ok = m.Metadata("missing")
	assert.False(t, ok)
}

func TestManager_Clear(t *testing.T) {
	m := testManager()
	id := m.Create()

	assert.True(t, m.Clear(id))
	assert.False(t, m.Clear(id))
	assert.False(t, m.Touch(id))
}

func TestManager_Export(t *testing.T) {
	m := testManager()
	id := m.Create()
	require.NoError(t, m.AddMessage(id, models.RoleUser, "what happened?", nil))

	data, err := m.Export(id)
	require.NoError(t, err)
	assert.Contains(t, data, id)
	assert.Contains(t, data, "what happened?")

	_, err = m.Export("missing")
	assert.Error(t, err)
}
