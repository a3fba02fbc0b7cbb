package feed

import "strings"

// Processor turns raw aggregator items into storage-ready records. It holds
// no mutable state and may be shared between workers.
type Processor struct {
	sanitizer     *Sanitizer
	summaryLength int
}

func NewProcessor(sanitizer *Sanitizer, summaryLength int) *Processor {
	if sanitizer == nil {
		sanitizer = NewSanitizer(SanitizerOptions{})
	}
	if summaryLength <= 0 {
		summaryLength = DefaultSummaryLength
	}

	return &Processor{
		sanitizer:     sanitizer,
		summaryLength: summaryLength,
	}
}

func (p *Processor) Sanitize(html string) string {
	return p.sanitizer.Sanitize(html)
}

func (p *Processor) Summarize(html string) string {
	return ExtractSummary(html, p.summaryLength)
}

func (p *Processor) Process(item RawItem) (Record, error) {
	if err := validate(item); err != nil {
		return Record{}, err
	}

	body := item.Content
	if strings.TrimSpace(body) == "" {
		body = item.Summary
	}
	body = p.sanitizer.Sanitize(body)

	return Record{
		SourceItemID: item.SourceItemID,
		FeedID:       item.FeedID,
		Title:        strings.TrimSpace(item.Title),
		Content:      body,
		Summary:      ExtractSummary(body, p.summaryLength),
		Author:       strings.TrimSpace(item.Author),
		Link:         strings.TrimSpace(item.Link),
		PublishedAt:  item.PublishedAt,
	}, nil
}

func validate(item RawItem) error {
	if strings.TrimSpace(item.SourceItemID) == "" {
		return &ValidationError{Field: "source item id", Reason: "is required"}
	}
	if strings.TrimSpace(item.FeedID) == "" {
		return &ValidationError{SourceItemID: item.SourceItemID, Field: "feed id", Reason: "is required"}
	}
	return nil
}
