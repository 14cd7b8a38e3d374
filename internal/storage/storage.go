package storage

import "io"

type FileInfo struct {
	Filename    string
	ContentType string
	Size        int64
}

type Storage interface {
	SaveFile(r io.Reader, info FileInfo) (string, error)
	OpenFile(name string) (io.ReadSeekCloser, error)
	DeleteFile(name string) error
	// Path resolves a stored name to a filesystem path so the frame
	// extractor can hand it to ffmpeg.
	Path(name string) (string, error)
}
