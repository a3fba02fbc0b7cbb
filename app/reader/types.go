package reader

import (
	"strings"
	"time"
)

// Subscription is one feed the account follows.
type Subscription struct {
	ID         string // e.g. "feed/https://example.com/rss"
	Title      string
	URL        string
	HTMLURL    string
	Categories []string
}

// Item is one entry of a stream page with optional wire fields resolved.
type Item struct {
	ID         string
	Title      string
	Published  *time.Time
	Author     string
	Link       string
	Content    string
	Summary    string
	Categories []string
}

type subscriptionListResponse struct {
	Subscriptions []wireSubscription `json:"subscriptions"`
}

type wireSubscription struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Categories []wireCategory `json:"categories"`
	URL        string         `json:"url"`
	HTMLURL    string         `json:"htmlUrl"`
}

type wireCategory struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type streamContentsResponse struct {
	ID           string     `json:"id"`
	Items        []wireItem `json:"items"`
	Continuation string     `json:"continuation,omitempty"`
}

type wireItem struct {
	ID         string     `json:"id"`
	Title      *string    `json:"title"`
	Published  *int64     `json:"published"`
	Author     *string    `json:"author"`
	Canonical  []wireLink `json:"canonical"`
	Alternate  []wireLink `json:"alternate"`
	Summary    *wireText  `json:"summary"`
	Content    *wireText  `json:"content"`
	Categories []string   `json:"categories"`
}

type wireLink struct {
	Href string `json:"href"`
	Type string `json:"type,omitempty"`
}

type wireText struct {
	Direction string `json:"direction,omitempty"`
	Content   string `json:"content"`
}

func (s wireSubscription) normalize() Subscription {
	sub := Subscription{
		ID:      s.ID,
		Title:   strings.TrimSpace(s.Title),
		URL:     s.URL,
		HTMLURL: s.HTMLURL,
	}

	for _, category := range s.Categories {
		label := strings.TrimSpace(category.Label)
		if label == "" {
			label = labelFromID(category.ID)
		}
		if label != "" {
			sub.Categories = append(sub.Categories, label)
		}
	}

	// Some servers omit url; the stream id carries it after the prefix.
	if sub.URL == "" {
		sub.URL = strings.TrimPrefix(s.ID, "feed/")
	}

	return sub
}

func (i wireItem) normalize() Item {
	item := Item{
		ID:         i.ID,
		Title:      deref(i.Title),
		Author:     deref(i.Author),
		Link:       firstHref(i.Canonical),
		Categories: i.Categories,
	}

	if item.Link == "" {
		item.Link = firstHref(i.Alternate)
	}

	if i.Published != nil && *i.Published > 0 {
		published := time.Unix(*i.Published, 0).UTC()
		item.Published = &published
	}

	if i.Content != nil {
		item.Content = i.Content.Content
	}
	if i.Summary != nil {
		item.Summary = i.Summary.Content
	}

	return item
}

// labelFromID turns "user/1005/label/News" into "News".
func labelFromID(id string) string {
	const marker = "/label/"
	if idx := strings.LastIndex(id, marker); idx >= 0 {
		return strings.TrimSpace(id[idx+len(marker):])
	}
	return ""
}

func firstHref(links []wireLink) string {
	for _, link := range links {
		if href := strings.TrimSpace(link.Href); href != "" {
			return href
		}
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
