package main

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/vuchat/vuchat/internal/ai"
	"github.com/vuchat/vuchat/internal/api"
	"github.com/vuchat/vuchat/internal/chat"
	"github.com/vuchat/vuchat/internal/database"
	"github.com/vuchat/vuchat/internal/processing"
	"github.com/vuchat/vuchat/internal/session"
	"github.com/vuchat/vuchat/internal/storage"
	"github.com/vuchat/vuchat/internal/video"
)

func main() {
	// .env is optional; real deployments set the environment directly
	if err := godotenv.Load(); err == nil {
		log.Printf("Loaded configuration from .env")
	}

	host := os.Getenv("HOST")

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	maxUploadSize := os.Getenv("MAX_UPLOAD_SIZE")
	if maxUploadSize == "" {
		maxUploadSize = "104857600"
	}
	maxSize, err := strconv.ParseInt(maxUploadSize, 10, 64)
	if err != nil {
		log.Fatal("Invalid MAX_UPLOAD_SIZE:", err)
	}

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "./uploads"
	}

	staticDir := os.Getenv("STATIC_DIR")
	if staticDir == "" {
		staticDir = "./web/static"
	}

	// Database configuration
	dbType := os.Getenv("DB_TYPE")
	if dbType == "" {
		dbType = "sqlite"
	}

	var dbConfig database.Config
	dbConfig.Type = dbType

	if dbType == "postgres" {
		dbConfig.Host = os.Getenv("DB_HOST")
		if dbConfig.Host == "" {
			dbConfig.Host = "localhost"
		}

		dbPortStr := os.Getenv("DB_PORT")
		if dbPortStr == "" {
			dbPortStr = "5432"
		}
		dbPort, err := strconv.Atoi(dbPortStr)
		if err != nil {
			log.Fatal("Invalid DB_PORT:", err)
		}
		dbConfig.Port = dbPort

		dbConfig.User = os.Getenv("DB_USER")
		if dbConfig.User == "" {
			dbConfig.User = "vuchat"
		}

		dbConfig.Password = os.Getenv("DB_PASSWORD")
		if dbConfig.Password == "" {
			dbConfig.Password = "vuchat_dev"
		}

		dbConfig.Name = os.Getenv("DB_NAME")
		if dbConfig.Name == "" {
			dbConfig.Name = "vuchat"
		}
	} else {
		dbConfig.SQLitePath = os.Getenv("DB_PATH")
		if dbConfig.SQLitePath == "" {
			dbConfig.SQLitePath = "./vuchat.db"
		}
	}

	localStorage, err := storage.NewLocalStorage(uploadDir)
	if err != nil {
		log.Fatal("Failed to initialize storage:", err)
	}

	db, err := database.NewDB(dbConfig)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer db.Close()

	videoRepo := database.NewVideoRepository(db)
	analysisRepo := database.NewAnalysisRepo(db)

	aiConfig := &ai.Config{
		APIKey:      os.Getenv("AI_API_KEY"),
		BaseURL:     os.Getenv("AI_BASE_URL"),
		VisionModel: os.Getenv("VISION_MODEL"),
		ChatModel:   os.Getenv("CHAT_MODEL"),
	}
	aiClient, err := ai.NewClient(aiConfig)
	if err != nil {
		log.Fatal("Failed to initialize AI client:", err)
	}
	recognizer := ai.NewEventRecognizer(aiClient, aiConfig)

	extractor, err := video.NewExtractor()
	if err != nil {
		log.Fatal("Failed to initialize frame extractor:", err)
	}
	if v := intEnv("MAX_FRAMES_PER_VIDEO"); v > 0 {
		extractor.MaxFrames = v
	}
	if v := floatEnv("MAX_VIDEO_DURATION"); v > 0 {
		extractor.MaxDuration = v
	}
	if v := intEnv("FRAME_SIZE"); v > 0 {
		extractor.FrameSize = v
	}

	analyzer := processing.NewAnalyzer(extractor, recognizer)

	sessionTimeout := time.Duration(intEnv("SESSION_TIMEOUT_MINUTES")) * time.Minute
	maxHistory := intEnv("MAX_CHAT_HISTORY")
	sessions := session.NewManager(maxHistory, sessionTimeout)

	chatHandler := chat.NewHandler(aiClient, aiConfig.ChatModel, sessions, maxHistory)

	app := &api.App{
		Storage:       localStorage,
		VideoRepo:     videoRepo,
		AnalysisRepo:  analysisRepo,
		Sessions:      sessions,
		Analyzer:      analyzer,
		Chat:          chatHandler,
		MaxUploadSize: maxSize,
		StaticDir:     staticDir,
	}

	router := api.NewRouter(app)

	// expired sessions are reaped in the background so the map
	// doesn't grow forever
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			if n := sessions.SweepExpired(); n > 0 {
				log.Printf("Swept %d expired sessions", n)
			}
		}
	}()

	addr := listenAddr(host, port)

	log.Printf("Server starting on %s", addr)
	log.Printf("Upload directory: %s", uploadDir)
	log.Printf("Database type: %s", dbType)
	if dbType == "postgres" {
		log.Printf("Database connection: %s@%s:%d/%s", dbConfig.User, dbConfig.Host, dbConfig.Port, dbConfig.Name)
	} else {
		log.Printf("Database path: %s", dbConfig.SQLitePath)
	}
	log.Printf("Max upload size: %d bytes", maxSize)
	log.Printf("Vision model: %s", recognizerModel(aiConfig.VisionModel, ai.DefaultVisionModel))
	log.Printf("Chat model: %s", recognizerModel(aiConfig.ChatModel, ai.DefaultChatModel))

	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatal(err)
	}
}

// listenAddr builds the bind address; an empty host binds all
// interfaces.
func listenAddr(host, port string) string {
	return host + ":" + port
}

func intEnv(key string) int {
	if s := os.Getenv(key); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			return v
		}
	}
	return 0
}

func floatEnv(key string) float64 {
	if s := os.Getenv(key); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v
		}
	}
	return 0
}

func recognizerModel(configured, fallback string) string {
	if configured != "" {
		return configured
	}
	return fallback
}
