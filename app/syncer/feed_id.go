package syncer

import (
	"strings"

	"github.com/google/uuid"
)

var feedNamespace = uuid.MustParse("8d3f6a0e-4c1b-5e2a-9b7d-2f6e1a4c9d30")

// DeriveFeedID maps an aggregator subscription id onto a stable local id.
// "feed/https://example.com/rss" and "https://example.com/rss" yield the
// same value.
func DeriveFeedID(subscriptionID string) string {
	rest := strings.TrimPrefix(subscriptionID, "feed/")
	return uuid.NewSHA1(feedNamespace, []byte("reader:"+rest)).String()
}
