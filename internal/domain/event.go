package domain

// EventType discriminates the broadcast event union. Every event pushed to
// viewers is one of these five kinds.
type EventType string

const (
	EventActivityPub       EventType = "activitypub"
	EventWebmention        EventType = "webmention"
	EventWebmentionPending EventType = "webmention-pending"
	EventConnection        EventType = "connection"
	EventProjectHashtag    EventType = "project_hashtag"
)

// Event is a tagged broadcast payload. Data is always the payload type
// matching Type; construct events through the typed helpers below so the
// pairing cannot drift.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// NewPostEvent wraps a freshly ingested post.
func NewPostEvent(post Post) Event {
	return Event{Type: EventActivityPub, Data: post}
}

// NewWebmentionEvent wraps an approved webmention.
func NewWebmentionEvent(m Webmention) Event {
	return Event{Type: EventWebmention, Data: m}
}

// NewWebmentionPendingEvent wraps a verified webmention awaiting moderation.
func NewWebmentionPendingEvent(m Webmention) Event {
	return Event{Type: EventWebmentionPending, Data: m}
}

// NewConnectionEvent wraps a detected reply chain.
func NewConnectionEvent(c Connection) Event {
	return Event{Type: EventConnection, Data: c}
}

// NewHashtagEvent wraps a post found by the hashtag poller.
func NewHashtagEvent(p HashtagPost) Event {
	return Event{Type: EventProjectHashtag, Data: p}
}
