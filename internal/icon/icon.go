// Package icon turns remote images into data URIs and back.
package icon

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/utils"
)

var (
	ErrNotImage = errors.New("not an image")
	ErrTooLarge = errors.New("icon too large")
	ErrDataURI  = errors.New("malformed data uri")
)

// IsRemote reports whether s should be fetched rather than stored as is.
func IsRemote(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Fetcher downloads icons with a timeout and a size cap.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
	logger   logger.Logger
}

func NewFetcher(timeout time.Duration, maxBytes int64, log logger.Logger) *Fetcher {
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
		logger:   log,
	}
}

// Fetch downloads url and returns it encoded as a base64 data URI.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build icon request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch icon: %w", err)
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch icon: status %d", resp.StatusCode)
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return "", fmt.Errorf("%w: %q", ErrNotImage, resp.Header.Get("Content-Type"))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read icon: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return "", fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxBytes)
	}

	return Encode(mediaType, body), nil
}

// Resolve fetches remote icons and passes anything else through. A failed
// fetch yields an empty icon; bookmarks are never rejected for their icon.
func (f *Fetcher) Resolve(ctx context.Context, raw string) string {
	if !IsRemote(raw) {
		return raw
	}
	uri, err := f.Fetch(ctx, raw)
	if err != nil {
		f.logger.Warn("icon fetch failed, storing bookmark without icon",
			logger.String("icon_url", raw),
			logger.Error(err))
		return ""
	}
	return uri
}

// Encode builds a base64 data URI.
func Encode(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Decode splits a base64 data URI into its media type and payload.
func Decode(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, ErrDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrDataURI
	}
	mediaType, ok := strings.CutSuffix(meta, ";base64")
	if !ok || mediaType == "" {
		return "", nil, ErrDataURI
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrDataURI, err)
	}
	return mediaType, data, nil
}
