package entities

import "strings"

type MediaKind string

const (
	// MediaKindPhoto is a photo attachment, uploaded as image/jpeg
	MediaKindPhoto MediaKind = "photo"

	// MediaKindVideo is a video attachment, uploaded as video/mp4
	MediaKindVideo MediaKind = "video"
)

// MimeType returns the MIME type the content backend expects for this kind.
func (k MediaKind) MimeType() string {
	if k == MediaKindVideo {
		return "video/mp4"
	}
	return "image/jpeg"
}

// Extension returns the upload filename extension for this kind.
func (k MediaKind) Extension() string {
	if k == MediaKindVideo {
		return ".mp4"
	}
	return ".jpg"
}

type MediaItem struct {
	Kind    MediaKind
	FileURL string // resolved remote file URL, empty if resolution failed
}

// ChannelPost is a single channel message, or an accumulated media group
// once the aggregation window has collected all of its members. Immutable
// outside the aggregation window.
type ChannelPost struct {
	ChatID    int64
	MessageID int
	GroupID   string // media group id, empty for standalone posts
	Text      string // text or caption
	Handle    string // public channel username, may be empty
	Media     []MediaItem
}

func (p *ChannelPost) HasText() bool {
	return p.Text != ""
}

const maxTitleLen = 100

// Title derives the article title: first line of the text, hard-truncated
// at 100 characters.
func (p *ChannelPost) Title() string {
	line := p.Text
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	runes := []rune(line)
	if len(runes) > maxTitleLen {
		return string(runes[:maxTitleLen])
	}

	return line
}
