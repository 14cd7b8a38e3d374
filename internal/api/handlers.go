package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/vuchat/vuchat/internal/database"
	"github.com/vuchat/vuchat/internal/models"
	"github.com/vuchat/vuchat/internal/session"
	"github.com/vuchat/vuchat/internal/storage"
)

// allowedExtensions is the server-side allow-list; the browser applies
// the same one before uploading.
var allowedExtensions = map[string]bool{
	".mp4":  true,
	".avi":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
}

// VideoAnalyzer runs the frame-extraction and recognition pipeline on
// a stored video file.
type VideoAnalyzer interface {
	AnalyzeFile(ctx context.Context, videoPath string) (*models.VideoAnalysis, error)
}

// ChatService produces an assistant reply for a message in a session.
type ChatService interface {
	ProcessMessage(ctx context.Context, sessionID, message string) (string, error)
}

type App struct {
	Storage       storage.Storage
	VideoRepo     *database.VideoRepository
	AnalysisRepo  *database.AnalysisRepo
	Sessions      *session.Manager
	Analyzer      VideoAnalyzer
	Chat          ChatService
	MaxUploadSize int64
	StaticDir     string
}

func (app *App) HomeHandler(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(app.StaticDir, "index.html"))
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type videoAnalysisResponse struct {
	SessionID          string                    `json:"session_id"`
	Events             []models.Event            `json:"events"`
	Summary            string                    `json:"summary"`
	GuidelineAdherence models.GuidelineAdherence `json:"guideline_adherence"`
}

func (app *App) UploadVideoHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)

	if err := r.ParseMultipartForm(app.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "File too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to get file")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		respondError(w, http.StatusBadRequest, "Invalid video format")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	filename, err := app.Storage.SaveFile(file, storage.FileInfo{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
	})
	if err != nil {
		log.Printf("Error saving upload: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to save file")
		return
	}

	videoPath, err := app.Storage.Path(filename)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to resolve file")
		return
	}

	log.Printf("Processing video: %s", header.Filename)
	analysis, err := app.Analyzer.AnalyzeFile(r.Context(), videoPath)
	if err != nil {
		// nothing to chat about without an analysis, so drop the upload
		app.Storage.DeleteFile(filename)
		log.Printf("Error processing video %s: %v", header.Filename, err)
		respondError(w, http.StatusInternalServerError, "Failed to analyze video")
		return
	}

	sessionID := app.Sessions.GetOrCreate(r.FormValue("session_id"))

	if err := app.Sessions.StoreVideoAnalysis(sessionID, analysis); err != nil {
		log.Printf("Error storing analysis in session %s: %v", sessionID, err)
		respondError(w, http.StatusInternalServerError, "Failed to store analysis")
		return
	}

	video := models.NewVideo(header.Filename, filename, contentType, header.Size)
	video.SessionID = sessionID
	if err := app.VideoRepo.InsertVideo(video); err != nil {
		log.Printf("Error persisting video record: %v", err)
	} else if err := app.AnalysisRepo.Save(r.Context(), video.ID, analysis); err != nil {
		log.Printf("Error persisting analysis for video %s: %v", video.ID, err)
	}

	events := analysis.Events
	if events == nil {
		events = []models.Event{}
	}

	respondJSON(w, http.StatusOK, videoAnalysisResponse{
		SessionID:          sessionID,
		Events:             events,
		Summary:            analysis.Summary,
		GuidelineAdherence: analysis.Guidelines,
	})
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Response        string `json:"response"`
	SessionID       string `json:"session_id"`
	ContextRetained bool   `json:"context_retained"`
}

func (app *App) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "Message is required")
		return
	}

	sessionID := app.Sessions.GetOrCreate(req.SessionID)

	response, err := app.Chat.ProcessMessage(r.Context(), sessionID, req.Message)
	if err != nil {
		log.Printf("Error in chat for session %s: %v", sessionID, err)
		respondError(w, http.StatusInternalServerError, "Failed to process message")
		return
	}

	respondJSON(w, http.StatusOK, chatResponse{
		Response:        response,
		SessionID:       sessionID,
		ContextRetained: true,
	})
}

func (app *App) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	meta, ok := app.Sessions.Metadata(sessionID)
	if !ok {
		respondError(w, http.StatusNotFound, "Session not found")
		return
	}

	respondJSON(w, http.StatusOK, meta)
}

func (app *App) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	// clearing an already-gone session is not an error; the client
	// just wants it gone
	app.Sessions.Clear(sessionID)

	respondJSON(w, http.StatusOK, map[string]string{"message": "Session cleared successfully"})
}
