package eta

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shuttle-backend/internal/models"
	"shuttle-backend/internal/repository/memstore"
	"shuttle-backend/internal/services"
	"shuttle-backend/pkg/outbox"
	"shuttle-backend/pkg/push"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inlineQueue runs tasks on the caller's goroutine.
type inlineQueue struct{}

func (inlineQueue) Enqueue(task outbox.Task) error {
	return task.Run(context.Background())
}

type sentPush struct {
	Token string
	Msg   push.Message
}

type recordingNotifier struct {
	mu      sync.Mutex
	sent    []sentPush
	invalid map[string]bool
}

func (n *recordingNotifier) Send(ctx context.Context, token string, msg push.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.invalid[token] {
		return push.ErrInvalidToken
	}
	n.sent = append(n.sent, sentPush{Token: token, Msg: msg})
	return nil
}

func (n *recordingNotifier) thresholds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, s := range n.sent {
		out = append(out, s.Msg.Data["threshold"])
	}
	return out
}

type notifierHarness struct {
	store    *memstore.Store
	notifier *recordingNotifier
	eta      *ThresholdNotifier
}

func newNotifierHarness(t *testing.T) *notifierHarness {
	store := memstore.New()
	seedAssignedVehicle(t, store, 2)
	cat := newTestCatalog(t, stopsNorth(0, 500, 1000, 1500, 3000))
	n := &recordingNotifier{invalid: map[string]bool{}}
	eta := NewThresholdNotifier(store, cat, NewMemoryDedupSet(), DefaultConfig())
	eta.SetDelivery(inlineQueue{}, n, services.NewDeviceTokenService(store))
	return &notifierHarness{
		store:    store,
		notifier: n,
		eta:      eta,
	}
}

func (h *notifierHarness) token(t *testing.T, userID, token string) {
	require.NoError(t, h.store.SaveDeviceToken(context.Background(), &models.DeviceToken{Token: token, UserID: userID}))
}

func TestThresholdNotifierWalksThresholds(t *testing.T) {
	ctx := context.Background()
	h := newNotifierHarness(t)
	h.token(t, "u1", "tok-u1")
	addReservation(t, h.store, "r1", "u1", 3)

	// 1500m out: about 3 minutes
	placeVehicle(t, h.store, 0)
	require.NoError(t, h.eta.RunOnce(ctx))
	require.NoError(t, h.eta.RunOnce(ctx))
	assert.Equal(t, []string{"5"}, h.notifier.thresholds())

	// 900m out
	placeVehicle(t, h.store, 600)
	require.NoError(t, h.eta.RunOnce(ctx))
	assert.Equal(t, []string{"5", "2"}, h.notifier.thresholds())

	// 400m out
	placeVehicle(t, h.store, 1100)
	require.NoError(t, h.eta.RunOnce(ctx))
	require.NoError(t, h.eta.RunOnce(ctx))
	assert.Equal(t, []string{"5", "2", "1"}, h.notifier.thresholds())
	assert.Equal(t, "Your shuttle is arriving now.", h.notifier.sent[2].Msg.Body)
	assert.Equal(t, "v1", h.notifier.sent[2].Msg.Data["vehicleId"])
}

func TestThresholdNotifierSkipsLooserThresholds(t *testing.T) {
	ctx := context.Background()
	h := newNotifierHarness(t)
	h.token(t, "u1", "tok-u1")
	addReservation(t, h.store, "r1", "u1", 3)

	placeVehicle(t, h.store, 1100)
	require.NoError(t, h.eta.RunOnce(ctx))

	// a detour puts the vehicle back outside 2 minutes
	placeVehicle(t, h.store, 0)
	require.NoError(t, h.eta.RunOnce(ctx))

	assert.Equal(t, []string{"1"}, h.notifier.thresholds())
}

func TestThresholdNotifierIgnoresPassedStops(t *testing.T) {
	ctx := context.Background()
	h := newNotifierHarness(t)
	h.token(t, "u1", "tok-u1")
	addReservation(t, h.store, "r1", "u1", 1)

	placeVehicle(t, h.store, 1400)
	require.NoError(t, h.eta.RunOnce(ctx))

	assert.Empty(t, h.notifier.thresholds())
}

func TestThresholdNotifierNeedsALocation(t *testing.T) {
	h := newNotifierHarness(t)
	h.token(t, "u1", "tok-u1")
	addReservation(t, h.store, "r1", "u1", 3)

	require.NoError(t, h.eta.RunOnce(context.Background()))
	assert.Empty(t, h.notifier.thresholds())
}

func TestThresholdNotifierDropsInvalidTokens(t *testing.T) {
	ctx := context.Background()
	h := newNotifierHarness(t)
	h.token(t, "u1", "good")
	h.token(t, "u1", "stale")
	h.notifier.invalid["stale"] = true
	addReservation(t, h.store, "r1", "u1", 3)

	placeVehicle(t, h.store, 0)
	require.NoError(t, h.eta.RunOnce(ctx))

	require.Len(t, h.notifier.sent, 1)
	assert.Equal(t, "good", h.notifier.sent[0].Token)

	tokens, err := h.store.DeviceTokensForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "good", tokens[0].Token)
}

type failingNotifier struct{}

func (failingNotifier) Send(ctx context.Context, token string, msg push.Message) error {
	return errors.New("fcm unavailable")
}

func TestDeliverReportsTransientFailure(t *testing.T) {
	ctx := context.Background()
	h := newNotifierHarness(t)
	h.token(t, "u1", "tok-u1")
	h.eta.notifier = failingNotifier{}

	err := h.eta.deliver(ctx, "u1", push.Message{Title: "t"}, map[string]bool{})
	assert.True(t, errors.Is(err, services.ErrExternalService))

	tokens, err := h.store.DeviceTokensForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, tokens, 1, "transient failures keep the token")
}

// flakyNotifier fails the first send to each token in failOnce.
type flakyNotifier struct {
	mu       sync.Mutex
	failOnce map[string]bool
	sends    map[string]int
}

func (n *flakyNotifier) Send(ctx context.Context, token string, msg push.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failOnce[token] {
		delete(n.failOnce, token)
		return errors.New("fcm unavailable")
	}
	n.sends[token]++
	return nil
}

func (n *flakyNotifier) counts() map[string]int {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[string]int, len(n.sends))
	for k, v := range n.sends {
		out[k] = v
	}
	return out
}

func TestRetriedDeliveryReachesEachDeviceOnce(t *testing.T) {
	ctx := context.Background()
	h := newNotifierHarness(t)
	h.token(t, "u1", "phone")
	h.token(t, "u1", "tablet")
	addReservation(t, h.store, "r1", "u1", 3)

	config := outbox.DefaultConfig()
	config.RetryBackoff = time.Millisecond
	tasks := outbox.New(config)
	tasks.Start()

	flaky := &flakyNotifier{failOnce: map[string]bool{"tablet": true}, sends: map[string]int{}}
	h.eta.SetDelivery(tasks, flaky, services.NewDeviceTokenService(h.store))

	placeVehicle(t, h.store, 0)
	require.NoError(t, h.eta.RunOnce(ctx))
	tasks.Stop()

	assert.Equal(t, map[string]int{"phone": 1, "tablet": 1}, flaky.counts())
	stats := tasks.GetStats()
	assert.Equal(t, int64(1), stats.Processed)
	assert.Equal(t, int64(0), stats.Failed)
	assert.Equal(t, int64(1), stats.Retries)
}
