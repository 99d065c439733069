package webmention

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mvdveer/fediviz/internal/domain"
)

// capturePublisher records published events for assertions.
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

func newTestService() (*Service, *capturePublisher) {
	pub := &capturePublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(pub, logger, nil), pub
}

func sourceServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVerifySuccess(t *testing.T) {
	target := "https://mysite.example/"
	page := `<html><body><p>Great project, see <a href="` + target + `">this site</a>!</p></body></html>`
	srv := sourceServer(t, page, http.StatusOK)

	svc, pub := newTestService()
	mention, err := svc.Verify(context.Background(), srv.URL, target)
	require.NoError(t, err)

	require.Equal(t, 1, mention.ID)
	require.True(t, mention.Verified)
	require.False(t, mention.Approved)
	require.Contains(t, mention.Content, "Great project")
	require.NotContains(t, mention.Content, "<")

	events := pub.all()
	require.Len(t, events, 1)
	require.Equal(t, domain.EventWebmentionPending, events[0].Type)

	// Visible in the full listing, not in the approved one.
	require.Len(t, svc.All(), 1)
	require.Empty(t, svc.Approved())
}

func TestVerifyMissingParameters(t *testing.T) {
	svc, pub := newTestService()

	_, err := svc.Verify(context.Background(), "", "https://mysite.example/")
	require.ErrorIs(t, err, domain.ErrMissingParameter)

	_, err = svc.Verify(context.Background(), "https://remote.example/", "")
	require.ErrorIs(t, err, domain.ErrMissingParameter)

	require.Empty(t, pub.all())
}

func TestVerifyUnreachableSource(t *testing.T) {
	srv := sourceServer(t, "gone", http.StatusNotFound)

	svc, pub := newTestService()
	_, err := svc.Verify(context.Background(), srv.URL, "https://mysite.example/")
	require.ErrorIs(t, err, domain.ErrUnreachableSource)

	require.Empty(t, svc.All())
	require.Empty(t, pub.all())
}

func TestVerifyLinkNotFound(t *testing.T) {
	srv := sourceServer(t, "<p>no link here</p>", http.StatusOK)

	svc, pub := newTestService()
	_, err := svc.Verify(context.Background(), srv.URL, "https://mysite.example/")
	require.ErrorIs(t, err, domain.ErrLinkNotFound)

	// Unverifiable claims are never stored anywhere.
	require.Empty(t, svc.All())
	require.Empty(t, svc.Approved())
	require.Empty(t, pub.all())
}

func TestApproveIsIdempotentButRebroadcasts(t *testing.T) {
	target := "https://mysite.example/"
	srv := sourceServer(t, "link: "+target, http.StatusOK)

	svc, pub := newTestService()
	mention, err := svc.Verify(context.Background(), srv.URL, target)
	require.NoError(t, err)

	first, err := svc.Approve(mention.ID)
	require.NoError(t, err)
	require.True(t, first.Approved)

	second, err := svc.Approve(mention.ID)
	require.NoError(t, err)
	require.Equal(t, first, second)

	require.Len(t, svc.Approved(), 1)

	// pending + two approval broadcasts
	events := pub.all()
	require.Len(t, events, 3)
	require.Equal(t, domain.EventWebmention, events[1].Type)
	require.Equal(t, domain.EventWebmention, events[2].Type)
}

func TestRejectIsPermanent(t *testing.T) {
	target := "https://mysite.example/"
	srv := sourceServer(t, "link: "+target, http.StatusOK)

	svc, pub := newTestService()
	mention, err := svc.Verify(context.Background(), srv.URL, target)
	require.NoError(t, err)

	_, err = svc.Reject(mention.ID)
	require.NoError(t, err)
	require.Empty(t, svc.All())

	// Approving after rejection fails; the id is gone for good.
	_, err = svc.Approve(mention.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	// Rejection broadcasts nothing.
	require.Len(t, pub.all(), 1)
	require.Equal(t, domain.EventWebmentionPending, pub.all()[0].Type)
}

func TestModerateUnknownID(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Approve(99)
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.Reject(99)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIDsAreMonotonicAndNeverReused(t *testing.T) {
	target := "https://mysite.example/"
	srv := sourceServer(t, "link: "+target, http.StatusOK)

	svc, _ := newTestService()

	first, err := svc.Verify(context.Background(), srv.URL, target)
	require.NoError(t, err)
	_, err = svc.Reject(first.ID)
	require.NoError(t, err)

	second, err := svc.Verify(context.Background(), srv.URL, target)
	require.NoError(t, err)
	require.Equal(t, first.ID+1, second.ID)
}

func TestExtractSnippetWindow(t *testing.T) {
	target := "https://mysite.example/"
	padding := strings.Repeat("x", 500)
	html := padding + "<b>before</b> " + target + " <i>after</i>" + padding

	snippet := extractSnippet(html, target)
	require.Contains(t, snippet, "before")
	require.Contains(t, snippet, "after")
	require.NotContains(t, snippet, "<b>")
	// The window spans at most 200 characters on either side.
	require.LessOrEqual(t, len(snippet), 2*snippetRadius+len(target))
}

func TestCreateTest(t *testing.T) {
	svc, pub := newTestService()

	pending := svc.CreateTest(false)
	require.False(t, pending.Approved)

	approved := svc.CreateTest(true)
	require.True(t, approved.Approved)
	require.Equal(t, pending.ID+1, approved.ID)

	events := pub.all()
	require.Len(t, events, 2)
	require.Equal(t, domain.EventWebmentionPending, events[0].Type)
	require.Equal(t, domain.EventWebmention, events[1].Type)

	require.Len(t, svc.Approved(), 1)
}
