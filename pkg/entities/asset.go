package entities

// UploadedAsset is a media file accepted by the content backend.
type UploadedAsset struct {
	ID        int64
	SourceURL string // public URL, empty if the follow-up lookup failed
	MimeType  string
	Kind      MediaKind
}

// PublishOutcome is the terminal result of one article publication attempt.
type PublishOutcome struct {
	Succeeded     bool
	ArticleURL    string
	FailureDetail string
}

// PublishRecord is a journal entry for one logical post.
type PublishRecord struct {
	CorrelationID string
	GroupID       string
	MessageID     int
	Title         string
	Outcome       PublishOutcome
}
