// Package recognize calls the external music fingerprinting API used by the
// identification tool route. Matching happens entirely on the remote
// service.
package recognize

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// DefaultTimeout bounds one identification round trip
const DefaultTimeout = 30 * time.Second

// Client talks to the fingerprinting HTTP API
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a fingerprinting client
func NewClient(apiKey, endpoint string) *Client {
	return &Client{
		apiKey:   apiKey,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// Match is a recognized track
type Match struct {
	Artist      string `json:"artist"`
	Title       string `json:"title"`
	Album       string `json:"album"`
	ReleaseDate string `json:"release_date"`
	Label       string `json:"label"`
	ISRC        string `json:"isrc,omitempty"`
}

type apiResponse struct {
	Status string `json:"status"`
	Result *Match `json:"result"`
	Error  struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"error"`
}

// Identify uploads an audio sample and returns the recognized track, or
// (nil, nil) when the service finds no match.
func (c *Client) Identify(ctx context.Context, filePath string) (*Match, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sample: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		defer pw.Close()
		defer form.Close()

		if err := form.WriteField("api_token", c.apiKey); err != nil {
			pw.CloseWithError(err)
			return
		}
		part, err := form.CreateFormFile("file", filepath.Base(filePath))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, pr)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fingerprint request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read fingerprint response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fingerprint API returned status %d", resp.StatusCode)
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse fingerprint response: %w", err)
	}

	if parsed.Status != "success" {
		return nil, fmt.Errorf("fingerprint API error %d: %s",
			parsed.Error.ErrorCode, parsed.Error.ErrorMessage)
	}

	// A successful call with no result means the sample is unknown.
	return parsed.Result, nil
}
