package queue

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/lysyi3m/reader-sync/app/feed"
)

const (
	fieldPayload  = "payload"
	fieldAttempt  = "attempt"
	fieldError    = "error"
	fieldSourceID = "source_id"
)

func encodeItem(item feed.RawItem, attempt int) (map[string]any, error) {
	payload, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("failed to encode item: %w", err)
	}

	return map[string]any{
		fieldPayload: string(payload),
		fieldAttempt: strconv.Itoa(attempt),
	}, nil
}

func decodeItem(values map[string]any) (feed.RawItem, int, error) {
	var item feed.RawItem

	raw, ok := values[fieldPayload].(string)
	if !ok || raw == "" {
		return item, 0, fmt.Errorf("message has no payload")
	}

	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		return item, 0, fmt.Errorf("failed to decode payload: %w", err)
	}

	attempt := 1
	if s, ok := values[fieldAttempt].(string); ok {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			attempt = n
		}
	}

	return item, attempt, nil
}
