package mastodon

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/mvdveer/fediviz/internal/domain"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (c *capturePublisher) Publish(event domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *capturePublisher) all() []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Event(nil), c.events...)
}

type captureRecorder struct {
	posts   []domain.Post
	reblogs [][3]string
}

func (c *captureRecorder) RecordPost(post domain.Post) error {
	c.posts = append(c.posts, post)
	return nil
}

func (c *captureRecorder) RecordReblog(reblogger, originalAuthor, postID string) error {
	c.reblogs = append(c.reblogs, [3]string{reblogger, originalAuthor, postID})
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSubscriber() (*Subscriber, *captureRecorder, *capturePublisher) {
	store := &captureRecorder{}
	pub := &capturePublisher{}
	sub := NewSubscriber("wss://example.invalid/api/v1/streaming", "", store, pub, testLogger())
	return sub, store, pub
}

func TestNormalizeStripsHTML(t *testing.T) {
	st := &status{
		ID:        "100",
		Content:   `<p>Hello <a href="https://example.com">world</a></p>`,
		CreatedAt: "2024-05-01T12:00:00Z",
		URL:       "https://mastodon.social/@alice/100",
		Account:   account{Username: "alice", Avatar: "https://cdn/a.png"},
		FavouritesCount: 2,
		ReblogsCount:    1,
		RepliesCount:    3,
		Tags:            []tag{{Name: "go"}, {Name: "fediverse"}},
		Mentions:        []mention{{Username: "bob"}},
		MediaAttachments: []json.RawMessage{
			json.RawMessage(`{}`),
			json.RawMessage(`{}`),
		},
		InReplyToID: "99",
	}

	post := normalize(st)
	require.Equal(t, "Hello world", post.Content)
	require.Equal(t, "alice", post.Author)
	require.Equal(t, []string{"go", "fediverse"}, post.Tags)
	require.Equal(t, []string{"bob"}, post.Mentions)
	require.Equal(t, 2, post.MediaAttachments)
	require.Equal(t, "99", post.InReplyTo)
}

func TestHandleStatusRecordsAndBroadcasts(t *testing.T) {
	sub, store, pub := newTestSubscriber()

	err := sub.handleStatus(&status{
		ID:      "1",
		Content: "<p>hi</p>",
		Account: account{Username: "alice"},
	})
	require.NoError(t, err)

	require.Len(t, store.posts, 1)
	require.Equal(t, "hi", store.posts[0].Content)
	require.Empty(t, store.reblogs)

	events := pub.all()
	require.Len(t, events, 1)
	require.Equal(t, domain.EventActivityPub, events[0].Type)
}

func TestHandleStatusWithReblog(t *testing.T) {
	sub, store, _ := newTestSubscriber()

	err := sub.handleStatus(&status{
		ID:      "2",
		Account: account{Username: "bob"},
		Reblog: &reblogStatus{
			ID:      "1",
			Account: account{Username: "alice"},
		},
	})
	require.NoError(t, err)

	require.Len(t, store.reblogs, 1)
	require.Equal(t, [3]string{"bob", "alice", "1"}, store.reblogs[0])
}

func TestReplyChainConnectionEvent(t *testing.T) {
	sub, _, pub := newTestSubscriber()

	require.NoError(t, sub.handleStatus(&status{
		ID:      "1",
		Account: account{Username: "alice"},
	}))
	require.NoError(t, sub.handleStatus(&status{
		ID:          "2",
		Account:     account{Username: "bob"},
		InReplyToID: "1",
	}))

	var connections []domain.Connection
	for _, event := range pub.all() {
		if event.Type == domain.EventConnection {
			connections = append(connections, event.Data.(domain.Connection))
		}
	}
	require.Len(t, connections, 1)
	require.Equal(t, domain.Connection{
		From:       "2",
		To:         "1",
		FromAuthor: "bob",
		ToAuthor:   "alice",
	}, connections[0])
}

func TestReplyToUnseenPostEmitsNoConnection(t *testing.T) {
	sub, _, pub := newTestSubscriber()

	require.NoError(t, sub.handleStatus(&status{
		ID:          "5",
		Account:     account{Username: "bob"},
		InReplyToID: "unknown",
	}))

	for _, event := range pub.all() {
		require.NotEqual(t, domain.EventConnection, event.Type)
	}
}

func TestStreamProcessesOnlyUpdates(t *testing.T) {
	frames := []streamEvent{
		{Event: "delete", Payload: "1"},
		{Event: "update", Payload: mustPayload(t, status{
			ID:      "1",
			Account: account{Username: "alice"},
		})},
		{Event: "notification", Payload: "{}"},
	}

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, frame := range frames {
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	store := &captureRecorder{}
	pub := &capturePublisher{}
	sub := NewSubscriber(wsURL(srv.URL), "", store, pub, testLogger())
	sub.ReconnectDelay = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go sub.Start(ctx)

	require.Eventually(t, func() bool {
		return len(pub.all()) >= 1
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	events := pub.all()
	require.Equal(t, domain.EventActivityPub, events[0].Type)
	require.Equal(t, "1", events[0].Data.(domain.Post).ID)
}

func TestReconnectAfterFixedDelay(t *testing.T) {
	var mu sync.Mutex
	var dials []time.Time

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		dials = append(dials, time.Now())
		mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Drop the connection immediately to force a reconnect.
		conn.Close()
	}))
	defer srv.Close()

	const delay = 100 * time.Millisecond

	sub := NewSubscriber(wsURL(srv.URL), "", &captureRecorder{}, &capturePublisher{}, testLogger())
	sub.ReconnectDelay = delay

	ctx, cancel := context.WithCancel(context.Background())
	go sub.Start(ctx)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(dials) >= 3
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < 3; i++ {
		gap := dials[i].Sub(dials[i-1])
		require.GreaterOrEqual(t, gap, delay, "reconnect %d came earlier than the fixed delay", i)
	}
}

func TestBuildURLCarriesStreamAndToken(t *testing.T) {
	sub := NewSubscriber("wss://streaming.mastodon.social/api/v1/streaming", "s3cret", &captureRecorder{}, &capturePublisher{}, testLogger())

	u, err := sub.buildURL()
	require.NoError(t, err)
	require.Contains(t, u, "stream=public")
	require.Contains(t, u, "access_token=s3cret")
}

func mustPayload(t *testing.T, st status) string {
	t.Helper()
	data, err := json.Marshal(st)
	require.NoError(t, err)
	return string(data)
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}
