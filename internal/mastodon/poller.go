package mastodon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/mvdveer/fediviz/internal/domain"
	"github.com/mvdveer/fediviz/internal/htmltext"
)

const defaultPollInterval = 30 * time.Second

// pollLimit is how many statuses each timeline snapshot requests.
const pollLimit = 20

// Poller periodically fetches the project hashtag timeline and broadcasts
// each returned status. Polled posts are display-only and never enter the
// graph store.
type Poller struct {
	apiBaseURL string
	hashtag    string
	hub        domain.Publisher
	logger     *slog.Logger
	client     *http.Client

	// Interval overrides the poll interval; zero means the default of
	// 30 seconds.
	Interval time.Duration
}

// NewPoller creates a hashtag poller. If client is nil a default client
// with a 15-second timeout is used.
func NewPoller(apiBaseURL, hashtag string, hub domain.Publisher, logger *slog.Logger, client *http.Client) *Poller {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Poller{
		apiBaseURL: apiBaseURL,
		hashtag:    hashtag,
		hub:        hub,
		logger:     logger,
		client:     client,
	}
}

// Start polls immediately and then on every tick until the context is
// cancelled. Poll failures are logged and skipped; the poller always waits
// for its next tick.
func (p *Poller) Start(ctx context.Context) {
	interval := p.Interval
	if interval == 0 {
		interval = defaultPollInterval
	}

	p.poll(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	posts, err := p.fetchTimeline(ctx)
	if err != nil {
		p.logger.Error("hashtag poll failed", "hashtag", p.hashtag, "error", err)
		return
	}

	for _, post := range posts {
		p.hub.Publish(domain.NewHashtagEvent(post))
	}
	p.logger.Info("hashtag poll complete", "hashtag", p.hashtag, "posts", len(posts))
}

func (p *Poller) fetchTimeline(ctx context.Context) ([]domain.HashtagPost, error) {
	endpoint := fmt.Sprintf("%s/api/v1/timelines/tag/%s?limit=%d",
		p.apiBaseURL, url.PathEscape(p.hashtag), pollLimit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch timeline: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("timeline returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read timeline: %w", err)
	}

	var statuses []status
	if err := json.Unmarshal(body, &statuses); err != nil {
		return nil, fmt.Errorf("unmarshal timeline: %w", err)
	}

	posts := make([]domain.HashtagPost, 0, len(statuses))
	for _, st := range statuses {
		posts = append(posts, domain.HashtagPost{
			ID:        st.ID,
			Author:    st.Account.Username,
			Content:   htmltext.Strip(st.Content),
			CreatedAt: st.CreatedAt,
			URL:       st.URL,
		})
	}
	return posts, nil
}
