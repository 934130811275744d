package bus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/zern/kernel/kernelerr"
	"github.com/zern/kernel/logging"
	"go.uber.org/zap"
)

// AlertHandler receives a raw alert fan-out: (namespace, kind, payload).
type AlertHandler func(ctx context.Context, namespace, kind string, payload any) error

// AlertChannel is a registered sink that receives every alert after all
// subscribers have completed, in channel-registration order.
type AlertChannel interface {
	Name() string
	Send(ctx context.Context, namespace, kind string, payload any) error
}

type alertSubEntry struct {
	id      uint64
	fnPtr   uintptr
	handler AlertHandler
}

type alertSubscription struct {
	bus *AlertBus
	id  uint64
}

func (s *alertSubscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	entries := s.bus.subs
	for i, e := range entries {
		if e.id == s.id {
			s.bus.subs = append(append([]alertSubEntry{}, entries[:i]...), entries[i+1:]...)
			return
		}
	}
}

// AlertBus is the C9 alert bus: pure fan-out to subscribers, then to
// registered channels in registration order.
type AlertBus struct {
	mu       sync.Mutex
	subs     []alertSubEntry
	channels []AlertChannel
	nextID   uint64
	errorBus *ErrorBus
	logger   logging.Logger
}

// NewAlertBus creates an AlertBus.
func NewAlertBus(errorBus *ErrorBus, logger logging.Logger) *AlertBus {
	if logger == nil {
		logger = logging.Global()
	}
	return &AlertBus{errorBus: errorBus, logger: logger.Named("alerts")}
}

// On subscribes handler to every alert, across all namespaces/kinds.
// Duplicate registration of the same function value is a no-op.
func (b *AlertBus) On(handler AlertHandler) Subscription {
	ptr := reflect.ValueOf(handler).Pointer()
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.subs {
		if e.fnPtr == ptr {
			return &alertSubscription{bus: b, id: e.id}
		}
	}
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, alertSubEntry{id: id, fnPtr: ptr, handler: handler})
	return &alertSubscription{bus: b, id: id}
}

// RegisterChannel appends a channel to the fan-out list. Channels are
// invoked in the order they were registered.
func (b *AlertBus) RegisterChannel(ch AlertChannel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels = append(b.channels, ch)
}

// Emit runs every subscriber (errors isolated and logged, never
// re-thrown), then every channel in registration order, awaited
// sequentially.
func (b *AlertBus) Emit(ctx context.Context, namespace, kind string, payload any) {
	b.mu.Lock()
	subs := append([]alertSubEntry{}, b.subs...)
	channels := append([]AlertChannel{}, b.channels...)
	b.mu.Unlock()

	p := shallowCopyPayload(payload)
	for _, e := range subs {
		b.invokeHandler(ctx, namespace, kind, e.handler, p)
	}
	for _, ch := range channels {
		b.invokeChannel(ctx, namespace, kind, ch, p)
	}
}

func (b *AlertBus) invokeHandler(ctx context.Context, namespace, kind string, handler AlertHandler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.reportError(namespace, kind, "", panicToError(r))
		}
	}()
	if err := handler(ctx, namespace, kind, payload); err != nil {
		b.reportError(namespace, kind, "", err)
	}
}

func (b *AlertBus) invokeChannel(ctx context.Context, namespace, kind string, ch AlertChannel, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.reportError(namespace, kind, ch.Name(), panicToError(r))
		}
	}()
	if err := ch.Send(ctx, namespace, kind, payload); err != nil {
		b.reportError(namespace, kind, ch.Name(), err)
	}
}

func (b *AlertBus) reportError(namespace, kind, channel string, cause error) {
	wrapped := kernelerr.AlertChannelError(channel, namespace, kind, cause)
	b.logger.Warn("alert channel error",
		zapFields(Address{Namespace: namespace, Key: kind}, cause)...)
	if b.errorBus != nil {
		b.errorBus.Report(context.Background(), "alerts", "ChannelError", wrapped, map[string]any{
			"channel": channel, "namespace": namespace, "kind": kind,
		})
	}
}

// ConsoleChannel logs alerts through the shared logger; the default,
// always-available channel.
type ConsoleChannel struct {
	logger logging.Logger
}

// NewConsoleChannel wraps logger (or the global logger, if nil) as an
// AlertChannel.
func NewConsoleChannel(logger logging.Logger) *ConsoleChannel {
	if logger == nil {
		logger = logging.Global()
	}
	return &ConsoleChannel{logger: logger.Named("alerts.console")}
}

func (c *ConsoleChannel) Name() string { return "console" }

func (c *ConsoleChannel) Send(_ context.Context, namespace, kind string, payload any) error {
	c.logger.Info("alert",
		zap.String("namespace", namespace),
		zap.String("kind", kind),
		zap.Any("payload", payload),
	)
	return nil
}

// WebhookChannel posts alerts as JSON to a fixed URL with an optional
// timeout and exponential-backoff retry.
type WebhookChannel struct {
	URL        string
	Timeout    time.Duration
	MaxRetries uint64
	client     *http.Client
	post       func(ctx context.Context, url string, body []byte) error
}

// NewWebhookChannel creates a WebhookChannel posting to url. A zero
// timeout disables the per-attempt deadline; maxRetries of 0 disables
// retrying.
func NewWebhookChannel(url string, timeout time.Duration, maxRetries uint64) *WebhookChannel {
	return &WebhookChannel{
		URL:        url,
		Timeout:    timeout,
		MaxRetries: maxRetries,
		client:     &http.Client{},
	}
}

func (w *WebhookChannel) Name() string { return "webhook:" + w.URL }

func (w *WebhookChannel) Send(ctx context.Context, namespace, kind string, payload any) error {
	body, err := marshalAlertBody(namespace, kind, payload)
	if err != nil {
		return err
	}

	attempt := func() error {
		reqCtx := ctx
		cancel := func() {}
		if w.Timeout > 0 {
			reqCtx, cancel = context.WithTimeout(ctx, w.Timeout)
		}
		defer cancel()
		if w.post != nil {
			return w.post(reqCtx, w.URL, body)
		}
		return w.doPost(reqCtx, body)
	}

	if w.MaxRetries == 0 {
		return attempt()
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), w.MaxRetries)
	return backoff.Retry(attempt, backoff.WithContext(bo, ctx))
}

func (w *WebhookChannel) doPost(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("webhook %s: server error %d", w.URL, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return backoff.Permanent(fmt.Errorf("webhook %s: client error %d", w.URL, resp.StatusCode))
	}
	return nil
}

func marshalAlertBody(namespace, kind string, payload any) ([]byte, error) {
	return json.Marshal(map[string]any{
		"namespace": namespace,
		"kind":      kind,
		"payload":   payload,
	})
}
