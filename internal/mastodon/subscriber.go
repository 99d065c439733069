// Package mastodon ingests the public activity stream and the project
// hashtag timeline.
package mastodon

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mvdveer/fediviz/internal/domain"
	"github.com/mvdveer/fediviz/internal/htmltext"
)

// defaultReconnectDelay is the fixed wait between reconnect attempts. There
// is no backoff growth; the stream is retried at this interval indefinitely.
const defaultReconnectDelay = 5 * time.Second

// cachedPost is the minimal record kept for reply-chain detection.
type cachedPost struct {
	id        string
	author    string
	inReplyTo string
}

// Subscriber maintains the live connection to the Mastodon public stream,
// normalizes statuses into the graph, and publishes viewer events.
type Subscriber struct {
	url    string
	token  string
	store  domain.GraphRecorder
	hub    domain.Publisher
	logger *slog.Logger

	// ReconnectDelay overrides the fixed reconnect wait; zero means the
	// default of 5 seconds.
	ReconnectDelay time.Duration

	// recent posts by id, read and written only by the stream goroutine.
	cache map[string]cachedPost
}

// NewSubscriber creates a stream subscriber feeding store and hub.
func NewSubscriber(streamURL, token string, store domain.GraphRecorder, hub domain.Publisher, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		url:    streamURL,
		token:  token,
		store:  store,
		hub:    hub,
		logger: logger,
		cache:  make(map[string]cachedPost),
	}
}

// Start connects to the stream and processes events until the context is
// cancelled. On error or close it waits the fixed reconnect delay and
// redials, indefinitely.
func (s *Subscriber) Start(ctx context.Context) error {
	delay := s.ReconnectDelay
	if delay == 0 {
		delay = defaultReconnectDelay
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := s.subscribe(ctx); err != nil {
				s.logger.Error("stream connection error, reconnecting", "error", err, "delay", delay)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			}
		}
	}
}

func (s *Subscriber) buildURL() (string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return "", fmt.Errorf("parse stream url: %w", err)
	}
	q := u.Query()
	q.Set("stream", "public")
	if s.token != "" {
		q.Set("access_token", s.token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *Subscriber) subscribe(ctx context.Context) error {
	wsURL, err := s.buildURL()
	if err != nil {
		return err
	}

	s.logger.Info("connecting to mastodon stream", "url", s.url)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial stream: %w", err)
	}
	defer conn.Close()

	s.logger.Info("mastodon stream connected")

	// Unblock ReadMessage when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		event, err := parseEvent(message)
		if err != nil {
			s.logger.Error("failed to parse stream event", "error", err)
			continue
		}

		// Only new statuses matter; deletes, notifications and edits are
		// ignored.
		if event.Event != "update" {
			continue
		}

		st, err := parseStatus(event.Payload)
		if err != nil {
			s.logger.Error("failed to parse status payload", "error", err)
			continue
		}

		if err := s.handleStatus(st); err != nil {
			s.logger.Error("failed to process status", "id", st.ID, "error", err)
		}
	}
}

func (s *Subscriber) handleStatus(st *status) error {
	s.detectConnection(st)

	post := normalize(st)
	if err := s.store.RecordPost(post); err != nil {
		return fmt.Errorf("record post: %w", err)
	}

	if st.Reblog != nil {
		if err := s.store.RecordReblog(st.Account.Username, st.Reblog.Account.Username, st.Reblog.ID); err != nil {
			return fmt.Errorf("record reblog: %w", err)
		}
	}

	s.hub.Publish(domain.NewPostEvent(post))
	return nil
}

// detectConnection caches the post and, when its parent is also cached,
// publishes a connection event linking both ends of the reply chain.
func (s *Subscriber) detectConnection(st *status) {
	s.cache[st.ID] = cachedPost{
		id:        st.ID,
		author:    st.Account.Username,
		inReplyTo: st.InReplyToID,
	}

	if st.InReplyToID == "" {
		return
	}
	parent, ok := s.cache[st.InReplyToID]
	if !ok {
		return
	}

	s.hub.Publish(domain.NewConnectionEvent(domain.Connection{
		From:       st.ID,
		To:         parent.id,
		FromAuthor: st.Account.Username,
		ToAuthor:   parent.author,
	}))
}

// normalize converts a raw status into the stored post shape, stripping
// HTML from the content.
func normalize(st *status) domain.Post {
	tags := make([]string, 0, len(st.Tags))
	for _, t := range st.Tags {
		tags = append(tags, t.Name)
	}
	mentions := make([]string, 0, len(st.Mentions))
	for _, m := range st.Mentions {
		mentions = append(mentions, m.Username)
	}

	return domain.Post{
		ID:               st.ID,
		Author:           st.Account.Username,
		Avatar:           st.Account.Avatar,
		Content:          htmltext.Strip(st.Content),
		CreatedAt:        st.CreatedAt,
		Favourites:       st.FavouritesCount,
		Reblogs:          st.ReblogsCount,
		Replies:          st.RepliesCount,
		Tags:             tags,
		Mentions:         mentions,
		MediaAttachments: len(st.MediaAttachments),
		InReplyTo:        st.InReplyToID,
		URL:              st.URL,
	}
}
