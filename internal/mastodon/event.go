package mastodon

import (
	"encoding/json"
	"fmt"
)

// streamEvent is the raw JSON frame from the Mastodon streaming API. The
// payload is a JSON document encoded as a string.
type streamEvent struct {
	Stream  []string `json:"stream"`
	Event   string   `json:"event"`
	Payload string   `json:"payload"`
}

// status is the subset of a Mastodon status we consume.
type status struct {
	ID               string            `json:"id"`
	Content          string            `json:"content"`
	CreatedAt        string            `json:"created_at"`
	URL              string            `json:"url"`
	Account          account           `json:"account"`
	FavouritesCount  int               `json:"favourites_count"`
	ReblogsCount     int               `json:"reblogs_count"`
	RepliesCount     int               `json:"replies_count"`
	Tags             []tag             `json:"tags"`
	Mentions         []mention         `json:"mentions"`
	MediaAttachments []json.RawMessage `json:"media_attachments"`
	InReplyToID      string            `json:"in_reply_to_id"`
	Reblog           *reblogStatus     `json:"reblog"`
}

type account struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

type tag struct {
	Name string `json:"name"`
}

type mention struct {
	Username string `json:"username"`
}

type reblogStatus struct {
	ID      string  `json:"id"`
	Account account `json:"account"`
}

func parseEvent(data []byte) (*streamEvent, error) {
	var event streamEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal stream event: %w", err)
	}
	return &event, nil
}

func parseStatus(payload string) (*status, error) {
	var st status
	if err := json.Unmarshal([]byte(payload), &st); err != nil {
		return nil, fmt.Errorf("unmarshal status payload: %w", err)
	}
	return &st, nil
}
