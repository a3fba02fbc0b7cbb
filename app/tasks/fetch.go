package tasks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxDocumentSize = 10 << 20

// fetchDocument GETs url and returns the body. When contentTypes is not empty
// the response must declare one of them.
func fetchDocument(ctx context.Context, client *http.Client, url, userAgent string, contentTypes ...string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	if len(contentTypes) > 0 {
		contentType := strings.ToLower(resp.Header.Get("Content-Type"))
		accepted := false
		for _, want := range contentTypes {
			if strings.Contains(contentType, want) {
				accepted = true
				break
			}
		}
		if !accepted {
			return nil, fmt.Errorf("unexpected content type: %s", contentType)
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
