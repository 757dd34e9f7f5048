package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	e "nuclight.org/tg-wordpress-bot/pkg/entities"
)

type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

const checkTimeout = 10 * time.Second

// DefaultSettleDelay is how long the backend needs to process an uploaded
// file before its public URL resolves reliably.
const DefaultSettleDelay = 2 * time.Second

// Client talks to a WordPress instance over the wp-json REST API with
// Basic authentication.
type Client struct {
	BaseURL  string
	Username string
	Password string

	HTTPClient HTTPClient

	// SettleDelay overrides DefaultSettleDelay, negative disables the wait
	SettleDelay time.Duration
}

// Check probes {base}/wp-json to verify the backend is reachable.
func (c *Client) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/wp-json", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("doing request: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	return nil
}

// UploadMedia fetches the file behind fileURL and pushes it to the backend
// media endpoint. After the settle delay it resolves the asset's public URL;
// a failed lookup leaves SourceURL empty but the asset is still usable as
// featured media.
func (c *Client) UploadMedia(ctx context.Context, fileURL string, kind e.MediaKind) (e.UploadedAsset, error) {
	var asset e.UploadedAsset

	content, err := c.fetchFile(ctx, fileURL)
	if err != nil {
		return asset, err
	}

	filename := "telegram_media_" + time.Now().Format("20060102150405") + kind.Extension()

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.BaseURL+"/wp-json/wp/v2/media",
		bytes.NewReader(content),
	)
	if err != nil {
		return asset, fmt.Errorf("creating request: %w", err)
	}

	req.SetBasicAuth(c.Username, c.Password)
	req.Header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	req.Header.Set("Content-Type", kind.MimeType())

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return asset, fmt.Errorf("doing request: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		resBody, _ := io.ReadAll(res.Body)
		return asset, &UploadError{Status: res.StatusCode, Body: string(resBody)}
	}

	var uploaded struct {
		ID int64 `json:"id"`
	}
	if err = json.NewDecoder(res.Body).Decode(&uploaded); err != nil {
		return asset, fmt.Errorf("decoding response: %w", err)
	}

	asset = e.UploadedAsset{
		ID:       uploaded.ID,
		MimeType: kind.MimeType(),
		Kind:     kind,
	}

	if !c.settle(ctx) {
		return asset, nil
	}

	// source URL is best effort, the asset id alone is enough downstream
	asset.SourceURL, _ = c.mediaSourceURL(ctx, uploaded.ID)

	return asset, nil
}

// CreatePost publishes an article and returns its public link.
func (c *Client) CreatePost(ctx context.Context, title, content string, featuredID int64) (string, error) {
	post := map[string]any{
		"title":   title,
		"content": content,
		"status":  "publish",
	}
	if featuredID != 0 {
		post["featured_media"] = featuredID
	}

	body, err := json.Marshal(post)
	if err != nil {
		return "", fmt.Errorf("marshaling body: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.BaseURL+"/wp-json/wp/v2/posts",
		bytes.NewReader(body),
	)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.SetBasicAuth(c.Username, c.Password)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("doing request: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusCreated {
		resBody, _ := io.ReadAll(res.Body)
		return "", &PublishError{Status: res.StatusCode, Body: string(resBody)}
	}

	var created struct {
		Link string `json:"link"`
	}
	if err = json.NewDecoder(res.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	return created.Link, nil
}

func (c *Client) fetchFile(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: fileURL, Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: fileURL, Status: res.StatusCode}
	}

	content, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &FetchError{URL: fileURL, Err: err}
	}

	return content, nil
}

func (c *Client) mediaSourceURL(ctx context.Context, id int64) (string, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		fmt.Sprintf("%s/wp-json/wp/v2/media/%d", c.BaseURL, id),
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.SetBasicAuth(c.Username, c.Password)

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("doing request: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	var info struct {
		SourceURL string `json:"source_url"`
	}
	if err = json.NewDecoder(res.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	return info.SourceURL, nil
}

// settle waits out the processing delay, false means the context was
// canceled and the follow-up lookup should be skipped.
func (c *Client) settle(ctx context.Context) bool {
	delay := c.SettleDelay
	if delay == 0 {
		delay = DefaultSettleDelay
	}
	if delay < 0 {
		return true
	}

	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}
