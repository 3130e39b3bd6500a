package queue_test

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonoscribe/sonoscribe/internal/queue"
)

func newTestServer(t *testing.T, token string) (*queue.Store, *queue.Client) {
	t.Helper()

	store := queue.NewStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := queue.NewServer(store,
		queue.WithAuthToken(token),
		queue.WithServerLogger(logger),
	)

	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	return store, queue.NewClient(ts.URL, queue.WithClientToken(token))
}

func TestServer_JobLifecycle(t *testing.T) {
	t.Parallel()

	_, client := newTestServer(t, "")
	ctx := context.Background()

	job, err := client.Submit(ctx, "/spool/meeting.mp3")
	require.NoError(t, err)
	assert.Equal(t, queue.StatusPending, job.Status)

	pending, err := client.Poll(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, job.ID, pending[0].ID)

	claimed, err := client.Claim(ctx, job.ID, "worker-a")
	require.NoError(t, err)
	assert.Equal(t, queue.StatusProcessing, claimed.Status)
	assert.Equal(t, "worker-a", claimed.WorkerID)

	result := queue.Result{
		Segments: []queue.Segment{{Start: 0, End: 4.5, Text: "hello"}},
		Text:     "hello",
		Language: "en",
		Duration: 4.5,
	}
	require.NoError(t, client.Complete(ctx, job.ID, result))

	pending, err = client.Poll(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestServer_ClaimConflictIsExplicit(t *testing.T) {
	t.Parallel()

	_, client := newTestServer(t, "")
	ctx := context.Background()

	job, err := client.Submit(ctx, "/spool/contended.mp3")
	require.NoError(t, err)

	_, err = client.Claim(ctx, job.ID, "worker-a")
	require.NoError(t, err)

	_, err = client.Claim(ctx, job.ID, "worker-b")
	assert.ErrorIs(t, err, queue.ErrAlreadyClaimed)
}

func TestServer_CompleteWithoutClaimIsRejected(t *testing.T) {
	t.Parallel()

	_, client := newTestServer(t, "")
	ctx := context.Background()

	job, err := client.Submit(ctx, "/spool/a.mp3")
	require.NoError(t, err)

	err = client.Complete(ctx, job.ID, queue.Result{})
	assert.ErrorIs(t, err, queue.ErrInvalidTransition)

	err = client.Fail(ctx, "no-such-job", "boom")
	assert.ErrorIs(t, err, queue.ErrNotFound)
}

func TestServer_FailStoresError(t *testing.T) {
	t.Parallel()

	store, client := newTestServer(t, "")
	ctx := context.Background()

	job, err := client.Submit(ctx, "/spool/bad.mp3")
	require.NoError(t, err)
	_, err = client.Claim(ctx, job.ID, "worker-a")
	require.NoError(t, err)

	require.NoError(t, client.Fail(ctx, job.ID, "transcription failed: rate limited"))

	got, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusFailed, got.Status)
	assert.Contains(t, got.Error, "rate limited")
}

func TestServer_RequiresBearerToken(t *testing.T) {
	t.Parallel()

	store := queue.NewStore()
	server := queue.NewServer(store,
		queue.WithAuthToken("secret"),
		queue.WithServerLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	ctx := context.Background()

	unauthenticated := queue.NewClient(ts.URL)
	_, err := unauthenticated.Submit(ctx, "/spool/a.mp3")
	assert.ErrorIs(t, err, queue.ErrUnauthorized)

	wrong := queue.NewClient(ts.URL, queue.WithClientToken("guess"))
	_, err = wrong.Poll(ctx, 1)
	assert.ErrorIs(t, err, queue.ErrUnauthorized)

	authed := queue.NewClient(ts.URL, queue.WithClientToken("secret"))
	job, err := authed.Submit(ctx, "/spool/a.mp3")
	require.NoError(t, err)
	assert.Equal(t, queue.StatusPending, job.Status)
}

func TestServer_HeartbeatAccepted(t *testing.T) {
	t.Parallel()

	store, client := newTestServer(t, "")
	require.NoError(t, client.Heartbeat(context.Background(), "worker-a", 3))

	beats := store.Heartbeats()
	require.Len(t, beats, 1)
	assert.Equal(t, "worker-a", beats[0].WorkerID)
	assert.Equal(t, 3, beats[0].ActiveJobs)
}
