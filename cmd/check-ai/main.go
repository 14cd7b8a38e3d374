package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vuchat/vuchat/internal/models"
)

func main() {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./vuchat.db"
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer db.Close()

	fmt.Println("🔍 Checking Video Analysis Results")
	fmt.Println("==================================")

	apiKey := os.Getenv("AI_API_KEY")
	if apiKey == "" {
		fmt.Println("⚠️  WARNING: AI_API_KEY not configured!")
		fmt.Println("   Event detection and chat will not work without it.")
		fmt.Println()
	} else {
		fmt.Println("✅ AI API key configured")
		if model := os.Getenv("VISION_MODEL"); model != "" {
			fmt.Printf("   - Vision model: %s\n", model)
		}
		if model := os.Getenv("CHAT_MODEL"); model != "" {
			fmt.Printf("   - Chat model: %s\n", model)
		}
		fmt.Println()
	}

	var videoCount int
	err = db.QueryRow("SELECT COUNT(*) FROM videos").Scan(&videoCount)
	if err != nil {
		log.Fatal("Failed to count videos:", err)
	}
	fmt.Printf("📹 Total videos: %d\n", videoCount)

	var analysisCount int
	err = db.QueryRow("SELECT COUNT(*) FROM analyses").Scan(&analysisCount)
	if err != nil {
		fmt.Println("❌ No analyses table found (no videos processed yet)")
		return
	}
	fmt.Printf("📊 Total analyses: %d\n\n", analysisCount)

	rows, err := db.Query(`
		SELECT
			v.original_name,
			a.summary,
			a.events,
			a.guideline_adherence
		FROM analyses a
		JOIN videos v ON a.video_id = v.id
		ORDER BY a.analyzed_at DESC
		LIMIT 5
	`)
	if err != nil {
		log.Fatal("Failed to query analyses:", err)
	}
	defer rows.Close()

	fmt.Println("🎬 Recent Analyses:")
	fmt.Println("-------------------")

	count := 0
	for rows.Next() {
		var name string
		var summary string
		var eventsJSON string
		var adherenceJSON string

		if err := rows.Scan(&name, &summary, &eventsJSON, &adherenceJSON); err != nil {
			log.Printf("Error scanning row: %v", err)
			continue
		}

		count++
		fmt.Printf("\n📹 Video: %s\n", name)

		if summary != "" {
			fmt.Printf("   📝 Summary: %.100s...\n", summary)
		}

		var events []models.Event
		if err := json.Unmarshal([]byte(eventsJSON), &events); err == nil {
			fmt.Printf("   ⏱️  Events: %d\n", len(events))
			for i, event := range events {
				if i >= 3 {
					fmt.Println("      ...")
					break
				}
				fmt.Printf("      [%.1fs] %s: %s\n", event.Timestamp, event.EventType, event.Description)
			}
		}

		var adherence models.GuidelineAdherence
		if err := json.Unmarshal([]byte(adherenceJSON), &adherence); err == nil {
			fmt.Printf("   ✅ Compliance: %s (%d violations)\n", adherence.ComplianceStatus, adherence.ViolationsCount)
		}
	}

	if count == 0 {
		fmt.Println("No analyses found yet. Upload a video to test!")
	} else {
		fmt.Printf("\n✅ Analysis pipeline is working! Found %d recent analyses.\n", count)
	}
}
