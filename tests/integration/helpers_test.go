package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vuchat/vuchat/internal/api"
	"github.com/vuchat/vuchat/internal/database"
	"github.com/vuchat/vuchat/internal/models"
	"github.com/vuchat/vuchat/internal/session"
	"github.com/vuchat/vuchat/internal/storage"
)

type TestServer struct {
	Server    *httptest.Server
	App       *api.App
	DB        *database.DB
	Sessions  *session.Manager
	VideoRepo *database.VideoRepository
	TempDir   string
}

func setupTestServer(t *testing.T, analyzer api.VideoAnalyzer, chatService api.ChatService) *TestServer {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "vuchat_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	uploadDir := filepath.Join(tempDir, "uploads")
	localStorage, err := storage.NewLocalStorage(uploadDir)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	db, err := database.NewDB(database.Config{
		Type:       "sqlite",
		SQLitePath: filepath.Join(tempDir, "test.db"),
	})
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}

	sessions := session.NewManager(10, 30*time.Minute)
	videoRepo := database.NewVideoRepository(db)

	app := &api.App{
		Storage:       localStorage,
		VideoRepo:     videoRepo,
		AnalysisRepo:  database.NewAnalysisRepo(db),
		Sessions:      sessions,
		Analyzer:      analyzer,
		Chat:          chatService,
		MaxUploadSize: 10 * 1024 * 1024,
		StaticDir:     tempDir,
	}

	server := httptest.NewServer(api.NewRouter(app))

	return &TestServer{
		Server:    server,
		App:       app,
		DB:        db,
		Sessions:  sessions,
		VideoRepo: videoRepo,
		TempDir:   tempDir,
	}
}

func (ts *TestServer) Cleanup() {
	ts.Server.Close()
	ts.DB.Close()
	os.RemoveAll(ts.TempDir)
}

type stubAnalyzer struct {
	analysis *models.VideoAnalysis
	err      error
}

func (s *stubAnalyzer) AnalyzeFile(ctx context.Context, videoPath string) (*models.VideoAnalysis, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.analysis, nil
}

type stubChatService struct {
	reply string
}

func (s *stubChatService) ProcessMessage(ctx context.Context, sessionID, message string) (string, error) {
	return s.reply, nil
}

func sampleAnalysis() *models.VideoAnalysis {
	return &models.VideoAnalysis{
		Events: []models.Event{
			{
				Timestamp:          5.2,
				FrameNumber:        3,
				EventType:          "crossing",
				Description:        "A pedestrian crosses outside the marked crosswalk",
				Severity:           "high",
				GuidelineViolation: true,
				ViolationDetails:   "jaywalking",
				Confidence:         0.9,
			},
			{
				Timestamp:   12.8,
				FrameNumber: 8,
				EventType:   "vehicle_movement",
				Description: "A car slows down near the crossing",
				Severity:    "low",
				Confidence:  0.6,
			},
		},
		Summary: "A pedestrian crosses the road while a car approaches.",
		Guidelines: models.GuidelineAdherence{
			TotalEvents:       2,
			ViolationsCount:   1,
			HighSeverityCount: 1,
			ViolationRate:     0.5,
			Violations: []models.Violation{
				{Timestamp: 5.2, Description: "jaywalking", Severity: "high"},
			},
			ComplianceStatus: "Needs Attention",
		},
		AnalyzedAt: time.Now(),
	}
}

func createMultipartUpload(filename, sessionID string, content []byte) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, bytes.NewReader(content)); err != nil {
		return nil, "", err
	}

	if sessionID != "" {
		if err := writer.WriteField("session_id", sessionID); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}

func uploadVideo(t *testing.T, ts *TestServer, filename, sessionID string) *http.Response {
	t.Helper()

	content := []byte("fake video content for testing")
	body, contentType, err := createMultipartUpload(filename, sessionID, content)
	if err != nil {
		t.Fatalf("Failed to create multipart upload: %v", err)
	}

	req, err := http.NewRequest("POST", ts.Server.URL+"/api/upload-video", body)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to upload video: %v", err)
	}
	return resp
}

func postJSON(t *testing.T, url string, payload interface{}) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal payload: %v", err)
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to post: %v", err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()

	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func countVideosInDB(db *sql.DB) (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM videos").Scan(&count)
	return count, err
}

// newModelServer stands in for the OpenAI-compatible completion API so
// the real chat handler can be exercised over the wire.
func newModelServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   "test-model",
			"choices": []map[string]interface{}{
				{
					"index": 0,
					"message": map[string]interface{}{
						"role":    "assistant",
						"content": reply,
					},
					"finish_reason": "stop",
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
}
