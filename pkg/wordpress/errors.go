package wordpress

import "fmt"

// FetchError means the remote file bytes could not be retrieved.
type FetchError struct {
	URL    string
	Status int // 0 on transport failure
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetching %s: unexpected status code: %d", e.URL, e.Status)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// UploadError means the backend rejected a media upload.
type UploadError struct {
	Status int
	Body   string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("uploading media: unexpected status code: %d: %s", e.Status, e.Body)
}

// PublishError means the backend rejected an article creation.
type PublishError struct {
	Status int
	Body   string
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("creating post: unexpected status code: %d: %s", e.Status, e.Body)
}
