package models

import (
	"time"

	"github.com/google/uuid"
)

type Video struct {
	ID           string
	OriginalName string
	Filename     string
	ContentType  string
	Size         int64
	Duration     float64
	SessionID    string
	UploadTime   time.Time
}

func NewVideo(originalName, filename, contentType string, size int64) *Video {
	return &Video{
		ID:           uuid.New().String(),
		OriginalName: originalName,
		Filename:     filename,
		ContentType:  contentType,
		Size:         size,
		UploadTime:   time.Now(),
	}
}
