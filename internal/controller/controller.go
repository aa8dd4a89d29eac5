// Package controller runs the operator session: it owns the Session value and
// sequences calls to the backend and the reader SDK for each workflow.
package controller

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/backend"
	xlog "github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/log"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/session"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/telemetry"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/terminal"
)

// BackendFactory builds a backend client for the operator-supplied URL.
type BackendFactory func(baseURL string) (backend.API, error)

// Charge is the fixed payment the workflows run. Amount is in minor units.
type Charge struct {
	Amount      int64
	Currency    string
	Description string
}

// CartItem is the single line item shown on the reader display.
type CartItem struct {
	Description string
	Tax         int64
}

type Options struct {
	NewBackend  BackendFactory
	NewTerminal terminal.Factory
	Alerter     Alerter
	Logger      *zerolog.Logger

	// CallTimeout bounds every collaborator call except the ones waiting on
	// the customer; CollectTimeout bounds collect and read source.
	CallTimeout    time.Duration
	CollectTimeout time.Duration

	Charge Charge
	Cart   CartItem
}

func (o *Options) setDefaults() {
	if o.Charge.Amount == 0 {
		o.Charge.Amount = 5100
	}
	if o.Charge.Currency == "" {
		o.Charge.Currency = "usd"
	}
	if o.Charge.Description == "" {
		o.Charge.Description = "Test Charge"
	}
	if o.Cart.Description == "" {
		o.Cart.Description = "Blue Shirt"
	}
	if o.Alerter == nil {
		o.Alerter = NewAlertQueue(0)
	}
}

// Controller is safe for concurrent use. The session lock is never held
// across a collaborator call; each operation has its own in-flight guard.
type Controller struct {
	opts   Options
	logger zerolog.Logger

	mu       sync.Mutex
	sess     session.Session
	api      backend.API
	term     terminal.Terminal
	inflight map[string]bool
}

func New(opts Options) (*Controller, error) {
	if opts.NewBackend == nil {
		return nil, errors.New("controller: backend factory is required")
	}
	if opts.NewTerminal == nil {
		return nil, errors.New("controller: terminal factory is required")
	}
	opts.setDefaults()

	logger := xlog.WithComponent("controller")
	if opts.Logger != nil {
		logger = xlog.Component(*opts.Logger, "controller")
	}
	return &Controller{
		opts:     opts,
		logger:   logger,
		sess:     session.New(),
		inflight: make(map[string]bool),
	}, nil
}

// Start moves a fresh session to awaiting the backend URL. Later calls are no-ops.
func (c *Controller) Start() session.Session {
	return c.apply(session.Started{})
}

// Snapshot returns a copy of the current session.
func (c *Controller) Snapshot() session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Clone()
}

// SetBackendURL builds the backend client and the reader SDK for rawURL and
// moves the session to reader selection. The URL can be set once.
func (c *Controller) SetBackendURL(ctx context.Context, rawURL string) error {
	done, err := c.begin("setBackendURL")
	if err != nil {
		return err
	}
	defer done()

	normalized, err := validateBackendURL(rawURL)
	if err != nil {
		return err
	}

	c.mu.Lock()
	status, current := c.sess.Status, c.sess.BackendURL
	c.mu.Unlock()
	switch {
	case current != "":
		return fmt.Errorf("%w: %s", ErrAlreadyInitialized, current)
	case status == session.StatusUninitialized:
		return fmt.Errorf("%w: session not started", ErrNotInitialized)
	}

	api, err := c.opts.NewBackend(normalized)
	if err != nil {
		return fmt.Errorf("create backend client: %w", err)
	}
	c.mu.Lock()
	c.api = api
	c.mu.Unlock()

	term, err := c.opts.NewTerminal(&sdkListener{c: c})
	if err != nil {
		c.mu.Lock()
		c.api = nil
		c.mu.Unlock()
		return fmt.Errorf("create terminal: %w", err)
	}

	c.mu.Lock()
	c.term = term
	c.mu.Unlock()
	c.apply(session.BackendURLSet{URL: normalized})
	c.logger.Info().Str(xlog.FieldBackendURL, normalized).Msg("backend configured")
	return nil
}

// DiscoverReaders scans for simulated or registered readers. On failure the
// previous discovery result is kept.
func (c *Controller) DiscoverReaders(ctx context.Context, useSimulator bool) ([]terminal.Reader, error) {
	done, err := c.begin("discoverReaders")
	if err != nil {
		return nil, err
	}
	defer done()
	return c.discover(ctx, useSimulator)
}

func (c *Controller) discover(ctx context.Context, useSimulator bool) ([]terminal.Reader, error) {
	term, err := c.terminal()
	if err != nil {
		return nil, err
	}
	method := terminal.DiscoveryRegistered
	if useSimulator {
		method = terminal.DiscoverySimulated
	}

	callCtx, cancel := withTimeout(ctx, c.opts.CallTimeout)
	defer cancel()
	readers, err := term.DiscoverReaders(callCtx, terminal.DiscoveryConfig{Method: method})
	if err != nil {
		c.logger.Warn().Err(err).Str("method", string(method)).Msg("failed to discover")
		return nil, fmt.Errorf("discover readers: %w", err)
	}
	c.apply(session.ReadersDiscovered{Readers: readers})
	return append([]terminal.Reader{}, readers...), nil
}

// ConnectToReader connects to reader. Failures are logged and returned
// without changing the session.
func (c *Controller) ConnectToReader(ctx context.Context, reader terminal.Reader) (terminal.Connection, error) {
	done, err := c.begin("connectReader")
	if err != nil {
		return terminal.Connection{}, err
	}
	defer done()
	return c.connect(ctx, reader)
}

// ConnectToDiscoveredReader connects to the reader with readerID from the
// last discovery scan.
func (c *Controller) ConnectToDiscoveredReader(ctx context.Context, readerID string) (terminal.Connection, error) {
	c.mu.Lock()
	var found *terminal.Reader
	for _, r := range c.sess.DiscoveredReaders {
		if r.ID == readerID {
			found = &r
			break
		}
	}
	c.mu.Unlock()
	if found == nil {
		return terminal.Connection{}, fmt.Errorf("%w: %s", ErrUnknownReader, readerID)
	}
	return c.ConnectToReader(ctx, *found)
}

func (c *Controller) connect(ctx context.Context, reader terminal.Reader) (terminal.Connection, error) {
	term, err := c.terminal()
	if err != nil {
		return terminal.Connection{}, err
	}
	callCtx, cancel := withTimeout(ctx, c.opts.CallTimeout)
	defer cancel()
	conn, err := term.ConnectReader(callCtx, reader)
	if err != nil {
		c.logger.Warn().Err(err).Str(xlog.FieldReaderID, reader.ID).Msg("failed to connect")
		return terminal.Connection{}, fmt.Errorf("connect reader %s: %w", reader.ID, err)
	}
	c.apply(session.ReaderConnected{Reader: conn.Reader})
	c.logger.Info().Str(xlog.FieldReaderID, conn.Reader.ID).Msg("reader connected")
	return conn, nil
}

// UseSimulator discovers simulated readers and connects to the first one.
func (c *Controller) UseSimulator(ctx context.Context) (terminal.Connection, error) {
	done, err := c.begin("connectReader")
	if err != nil {
		return terminal.Connection{}, err
	}
	defer done()

	readers, err := c.discover(ctx, true)
	if err != nil {
		return terminal.Connection{}, err
	}
	if len(readers) == 0 {
		return terminal.Connection{}, ErrNoReadersDiscovered
	}
	return c.connect(ctx, readers[0])
}

// DisconnectReader asks the SDK to disconnect and forgets the reader either
// way. The session status is left as is.
func (c *Controller) DisconnectReader(ctx context.Context) error {
	done, err := c.begin("disconnectReader")
	if err != nil {
		return err
	}
	defer done()

	term, err := c.terminal()
	if err != nil {
		return err
	}
	callCtx, cancel := withTimeout(ctx, c.opts.CallTimeout)
	defer cancel()
	sdkErr := term.DisconnectReader(callCtx)
	c.apply(session.ReaderDisconnected{})
	if sdkErr != nil {
		c.logger.Warn().Err(sdkErr).Msg("disconnect reported an error")
		return fmt.Errorf("disconnect reader: %w", sdkErr)
	}
	return nil
}

// RegisterAndConnectNewReader registers a reader with the backend using its
// pairing code and connects to it.
func (c *Controller) RegisterAndConnectNewReader(ctx context.Context, label, registrationCode string) (terminal.Connection, error) {
	done, err := c.begin("registerReader")
	if err != nil {
		return terminal.Connection{}, err
	}
	defer done()

	api, _, err := c.collaborators()
	if err != nil {
		return terminal.Connection{}, err
	}
	callCtx, cancel := withTimeout(ctx, c.opts.CallTimeout)
	reader, err := api.RegisterDevice(callCtx, label, registrationCode)
	cancel()
	if err != nil {
		return terminal.Connection{}, fmt.Errorf("register reader: %w", err)
	}
	conn, err := c.connect(ctx, reader)
	if err != nil {
		return terminal.Connection{}, err
	}
	c.logger.Info().Str(xlog.FieldReaderID, conn.Reader.ID).Str("label", label).Msg("registered and connected")
	return conn, nil
}

// UpdateLineItems shows the cart on the reader display.
func (c *Controller) UpdateLineItems(ctx context.Context) error {
	done, err := c.begin("updateLineItems")
	if err != nil {
		return err
	}
	defer done()

	term, err := c.readerTerminal()
	if err != nil {
		return err
	}
	callCtx, cancel := withTimeout(ctx, c.opts.CallTimeout)
	defer cancel()
	if err := term.SetReaderDisplay(callCtx, c.display()); err != nil {
		c.logger.Warn().Err(err).Msg("failed to update reader display")
		return fmt.Errorf("set reader display: %w", err)
	}
	return nil
}

func (c *Controller) display() terminal.Display {
	charge, cart := c.opts.Charge, c.opts.Cart
	return terminal.Display{
		Type: terminal.DisplayTypeCart,
		Cart: terminal.Cart{
			LineItems: []terminal.LineItem{{
				Description: cart.Description,
				Amount:      charge.Amount,
				Quantity:    1,
			}},
			Tax:      cart.Tax,
			Total:    charge.Amount + cart.Tax,
			Currency: charge.Currency,
		},
	}
}

// CollectCardPayment runs one payment attempt: create the intent unless one
// is pending, collect a card, confirm, then capture. The intent is reused
// after a failed or declined attempt and forgotten only once captured.
func (c *Controller) CollectCardPayment(ctx context.Context) (backend.PaymentIntent, error) {
	done, err := c.begin("collectPayment")
	if err != nil {
		return backend.PaymentIntent{}, err
	}
	defer done()

	api, term, err := c.collaborators()
	if err != nil {
		return backend.PaymentIntent{}, err
	}
	if _, err := c.readerTerminal(); err != nil {
		return backend.PaymentIntent{}, err
	}

	secret := c.Snapshot().PendingPaymentIntentSecret
	if secret == "" {
		callCtx, cancel := withTimeout(ctx, c.opts.CallTimeout)
		created, err := api.CreatePaymentIntent(callCtx, backend.PaymentIntentParams{
			Amount:      c.opts.Charge.Amount,
			Currency:    c.opts.Charge.Currency,
			Description: c.opts.Charge.Description,
		})
		cancel()
		if err != nil {
			return backend.PaymentIntent{}, fmt.Errorf("create payment intent: %w", err)
		}
		secret = created.Secret
		c.apply(session.PaymentIntentCreated{Secret: secret})
	}
	intentID := terminal.IntentIDFromSecret(secret)
	logger := c.logger.With().Str(xlog.FieldIntentID, intentID).Logger()

	c.apply(session.CollectRequested{})
	collectCtx, cancelCollect := withTimeout(ctx, c.opts.CollectTimeout)
	collected, err := term.CollectPaymentMethod(collectCtx, secret)
	cancelCollect()
	c.apply(session.CollectSettled{})
	if err != nil {
		outcome := "collect_failed"
		if terminal.IsCode(err, terminal.CodeCanceled) {
			outcome = "canceled"
		}
		telemetry.RecordPayment(outcome)
		logger.Info().Err(err).Msg("collect payment method failed")
		return backend.PaymentIntent{}, fmt.Errorf("collect payment method: %w", err)
	}

	// Past this point the payment cannot be canceled: the caller going away
	// must not leave a confirmed intent uncaptured.
	settleCtx := context.WithoutCancel(ctx)
	confirmCtx, cancelConfirm := withTimeout(settleCtx, c.opts.CallTimeout)
	confirmed, err := term.ConfirmPaymentIntent(confirmCtx, collected)
	cancelConfirm()
	if err != nil {
		telemetry.RecordPayment("declined")
		c.alert(settleCtx, "Confirm failed: "+message(err))
		return backend.PaymentIntent{}, fmt.Errorf("confirm payment intent: %w", err)
	}

	captureID := confirmed.ID
	if captureID == "" {
		captureID = intentID
	}
	captureCtx, cancelCapture := withTimeout(settleCtx, c.opts.CallTimeout)
	captured, err := api.CapturePaymentIntent(captureCtx, captureID)
	cancelCapture()
	if err != nil {
		telemetry.RecordPayment("capture_failed")
		return backend.PaymentIntent{}, fmt.Errorf("capture payment intent: %w", err)
	}

	c.apply(session.PaymentCaptured{})
	telemetry.RecordPayment("captured")
	logger.Info().Int64("amount", c.opts.Charge.Amount).Msg("payment successful")
	return captured, nil
}

// CancelPendingPayment cancels an outstanding collect. It is only allowed
// while the collect request has not resolved.
func (c *Controller) CancelPendingPayment(ctx context.Context) error {
	done, err := c.begin("cancelPayment")
	if err != nil {
		return err
	}
	defer done()

	c.mu.Lock()
	cancelable, term := c.sess.CancelablePayment, c.term
	c.mu.Unlock()
	if !cancelable || term == nil {
		return ErrNotCancelable
	}

	callCtx, cancel := withTimeout(ctx, c.opts.CallTimeout)
	defer cancel()
	sdkErr := term.CancelCollectPaymentMethod(callCtx)
	c.apply(session.CollectCanceled{})
	if sdkErr != nil {
		c.logger.Warn().Err(sdkErr).Msg("cancel collect payment method failed")
		return fmt.Errorf("cancel collect payment method: %w", sdkErr)
	}
	return nil
}

// SaveCardForFutureUse reads a card without charging it and attaches the
// source to a backend customer.
func (c *Controller) SaveCardForFutureUse(ctx context.Context) (backend.Customer, error) {
	done, err := c.begin("saveCard")
	if err != nil {
		return backend.Customer{}, err
	}
	defer done()

	api, term, err := c.collaborators()
	if err != nil {
		return backend.Customer{}, err
	}
	if _, err := c.readerTerminal(); err != nil {
		return backend.Customer{}, err
	}

	readCtx, cancelRead := withTimeout(ctx, c.opts.CollectTimeout)
	src, err := term.ReadSource(readCtx)
	cancelRead()
	if err != nil {
		c.alert(ctx, "Read source failed: "+message(err))
		return backend.Customer{}, fmt.Errorf("read source: %w", err)
	}

	callCtx, cancel := withTimeout(ctx, c.opts.CallTimeout)
	defer cancel()
	customer, err := api.SaveSourceToCustomer(callCtx, src.ID)
	if err != nil {
		return backend.Customer{}, fmt.Errorf("save source to customer: %w", err)
	}
	c.logger.Info().Str("customer_id", customer.ID).Msg("source saved to customer")
	return customer, nil
}

func (c *Controller) apply(ev session.Event) session.Session {
	c.mu.Lock()
	prev := c.sess
	c.sess = session.Apply(prev, ev)
	next := c.sess.Clone()
	c.mu.Unlock()

	if prev.Status != next.Status {
		c.logger.Debug().
			Str("event", ev.Name()).
			Str(xlog.FieldOldState, string(prev.Status)).
			Str(xlog.FieldNewState, string(next.Status)).
			Msg("session transition")
	}
	if prev.ConnectionStatus != next.ConnectionStatus {
		telemetry.SetConnectionStatus(string(next.ConnectionStatus))
	}
	return next
}

func (c *Controller) alert(ctx context.Context, msg string) {
	c.logger.Warn().Str("alert", msg).Msg("operator alert")
	telemetry.RecordAlert()
	c.opts.Alerter.Alert(ctx, msg)
}

// begin marks op as running. The returned func must be called when it ends.
func (c *Controller) begin(op string) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[op] {
		return nil, fmt.Errorf("%w: %s", ErrBusy, op)
	}
	c.inflight[op] = true
	return func() {
		c.mu.Lock()
		delete(c.inflight, op)
		c.mu.Unlock()
	}, nil
}

func (c *Controller) terminal() (terminal.Terminal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.term == nil {
		return nil, ErrNotInitialized
	}
	return c.term, nil
}

func (c *Controller) collaborators() (backend.API, terminal.Terminal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.api == nil || c.term == nil {
		return nil, nil, ErrNotInitialized
	}
	return c.api, c.term, nil
}

// readerTerminal returns the SDK when a reader is connected.
func (c *Controller) readerTerminal() (terminal.Terminal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.term == nil {
		return nil, ErrNotInitialized
	}
	if c.sess.Reader == nil {
		return nil, ErrNoReader
	}
	return c.term, nil
}

func (c *Controller) backendAPI() backend.API {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.api
}

func validateBackendURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidBackendURL)
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidBackendURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q must be an absolute http(s) url", ErrInvalidBackendURL, raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
