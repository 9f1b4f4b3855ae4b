package mailbox

import (
	"path/filepath"
	"strings"
	"time"
)

// MessageRecord is the decoded form of one retrieved message. Records
// are immutable after construction; any attachment files they point at
// exist on disk before the record is handed to the caller.
type MessageRecord struct {
	// UID is the protocol-assigned message identifier, stable across
	// sessions. Zero when the retrieval mode did not report one.
	UID uint32

	MessageID string
	Subject   string
	From      string
	To        []string
	Date      time.Time

	// BodyText is the concatenation of the message's inline text parts
	// in traversal order.
	BodyText string

	// Attachments holds the saved file paths, or just the reported
	// filenames when attachment saving is disabled.
	Attachments []string
}

// FileCategory classifies a filename by extension into a coarse
// content category for presentation. It has no bearing on decoding.
func FileCategory(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp", ".svg":
		return "image"
	case ".mp4", ".mkv", ".mov", ".avi", ".webm":
		return "video"
	case ".mp3", ".wav", ".ogg", ".flac", ".m4a":
		return "audio"
	default:
		return "other"
	}
}
