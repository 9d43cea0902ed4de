package persistence

import "time"

// StreamCacheEntry is the extracted text of one subtitle stream. It is valid
// while the video keeps the recorded size and modification time.
type StreamCacheEntry struct {
	VideoPath   string
	StreamIndex int
	VideoSize   int64
	VideoMTime  time.Time
	Content     string
	UpdatedAt   time.Time
}
