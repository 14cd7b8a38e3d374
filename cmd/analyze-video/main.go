package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/vuchat/vuchat/internal/ai"
	"github.com/vuchat/vuchat/internal/processing"
	"github.com/vuchat/vuchat/internal/video"
)

func main() {
	var videoPath = flag.String("file", "", "Path to the video file to analyze")
	flag.Parse()

	if *videoPath == "" {
		log.Fatal("Please provide a video file with -file flag")
	}

	godotenv.Load()

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

	if err := video.Validate(*videoPath); err != nil {
		log.Fatal("Invalid video file:", err)
	}

	if duration, err := video.ProbeDuration(*videoPath); err == nil {
		fmt.Printf("Video duration: %.1fs\n", duration)
	}

	analyzer := processing.NewAnalyzer(extractor, recognizer)

	fmt.Printf("Analyzing %s...\n", *videoPath)
	analysis, err := analyzer.AnalyzeFile(context.Background(), *videoPath)
	if err != nil {
		log.Fatal("Analysis failed:", err)
	}

	out, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		log.Fatal("Failed to encode result:", err)
	}
	fmt.Println(string(out))
}
