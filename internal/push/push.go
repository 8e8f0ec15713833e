// Package push delivers the bell signal to subscribed browsers over Web
// Push, so users hear the walkie call even with the tab closed.
package push

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"walkie/internal/storage"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// SubscriptionStore persists browser push subscriptions across restarts.
type SubscriptionStore interface {
	UpsertPushSubscription(sub storage.DBPushSubscription) error
	ListPushSubscriptions() ([]storage.DBPushSubscription, error)
	DeletePushSubscription(endpoint string) error
}

type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	// Subscriber is the contact URI sent to push services, e.g.
	// "mailto:ops@example.com".
	Subscriber string
}

type Notifier struct {
	config Config
	store  SubscriptionStore
	log    *slog.Logger
	now    func() time.Time
}

func NewNotifier(config Config, store SubscriptionStore, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		config: config,
		store:  store,
		log:    logger,
		now:    time.Now,
	}
}

// Enabled reports whether VAPID keys are configured. A disabled notifier
// accepts no subscriptions and rings nobody.
func (n *Notifier) Enabled() bool {
	return n.config.VAPIDPublicKey != "" && n.config.VAPIDPrivateKey != ""
}

// PublicKey returns the VAPID public key clients need to subscribe.
func (n *Notifier) PublicKey() string {
	return n.config.VAPIDPublicKey
}

// Subscribe stores the browser's PushSubscription JSON for the user.
func (n *Notifier) Subscribe(username string, subscription []byte) error {
	if !n.Enabled() {
		return fmt.Errorf("push notifications are not configured")
	}

	var sub webpush.Subscription
	if err := json.Unmarshal(subscription, &sub); err != nil {
		return fmt.Errorf("invalid push subscription: %w", err)
	}
	if sub.Endpoint == "" {
		return fmt.Errorf("push subscription missing endpoint")
	}

	return n.store.UpsertPushSubscription(storage.DBPushSubscription{
		Username:     username,
		Endpoint:     sub.Endpoint,
		Subscription: subscription,
		CreatedAt:    n.now().Unix(),
	})
}

// Ring notifies every stored subscription that someone rang the bell. The
// fan-out runs in its own goroutine; the caller is the hot dispatch path
// and must not wait on push services.
func (n *Notifier) Ring(from string) {
	if !n.Enabled() {
		return
	}

	subs, err := n.store.ListPushSubscriptions()
	if err != nil {
		n.log.Error("failed to list push subscriptions", "error", err)
		return
	}
	if len(subs) == 0 {
		return
	}

	payload, err := json.Marshal(map[string]string{
		"event": "ringBell",
		"from":  from,
	})
	if err != nil {
		n.log.Error("failed to marshal bell payload", "error", err)
		return
	}

	go n.fanOut(subs, payload)
}

func (n *Notifier) fanOut(subs []storage.DBPushSubscription, payload []byte) {
	options := &webpush.Options{
		Subscriber:      n.config.Subscriber,
		VAPIDPublicKey:  n.config.VAPIDPublicKey,
		VAPIDPrivateKey: n.config.VAPIDPrivateKey,
		TTL:             60,
	}

	for _, stored := range subs {
		var sub webpush.Subscription
		if err := json.Unmarshal(stored.Subscription, &sub); err != nil {
			n.log.Warn("dropping corrupt push subscription", "endpoint", stored.Endpoint)
			_ = n.store.DeletePushSubscription(stored.Endpoint)
			continue
		}

		resp, err := webpush.SendNotification(payload, &sub, options)
		if err != nil {
			n.log.Warn("push delivery failed", "endpoint", stored.Endpoint, "error", err)
			continue
		}
		_ = resp.Body.Close()

		// The push service tells us the subscription is dead.
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
			n.log.Info("pruning expired push subscription", "endpoint", stored.Endpoint)
			_ = n.store.DeletePushSubscription(stored.Endpoint)
		}
	}
}
