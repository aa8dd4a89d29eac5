package terminal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	xlog "github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/log"
)

// SimulatedReader is the single reader returned by simulated discovery.
var SimulatedReader = Reader{
	ID:              "tmr_simulated_wpe",
	Label:           "Simulated reader",
	SerialNumber:    "SIMULATOR",
	DeviceType:      "simulated_wisepos_e",
	DeviceSWVersion: "2.0.0",
	Status:          "online",
	Simulated:       true,
}

// Simulator is an in-process stand-in for the reader SDK. It follows the
// SDK's call contract: connection tokens are fetched through the listener,
// link changes are reported as status events, and a collect can be canceled
// until it resolves.
type Simulator struct {
	listener     Listener
	logger       zerolog.Logger
	presentDelay time.Duration
	card         TestCard
	registered   []Reader

	// cardPresented runs once the card is presented, before the collect
	// resolves. Tests use it to race a cancel.
	cardPresented func()

	mu        sync.Mutex
	token     string
	connected *Reader
	collect   *pendingCollect
	display   *Display
}

type pendingCollect struct {
	secret string
	cancel chan struct{}
}

type SimulatorOption func(*Simulator)

// WithPresentDelay sets how long the simulated customer takes to present a card.
func WithPresentDelay(d time.Duration) SimulatorOption {
	return func(s *Simulator) { s.presentDelay = d }
}

func WithTestCard(card TestCard) SimulatorOption {
	return func(s *Simulator) { s.card = card }
}

// WithRegisteredReaders sets the readers returned by registered discovery.
func WithRegisteredReaders(readers ...Reader) SimulatorOption {
	return func(s *Simulator) { s.registered = append([]Reader(nil), readers...) }
}

func WithLogger(l zerolog.Logger) SimulatorOption {
	return func(s *Simulator) { s.logger = l }
}

func NewSimulator(l Listener, opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		listener:     l,
		logger:       xlog.WithComponent("terminal"),
		presentDelay: 2 * time.Second,
		card:         TestCardApproved,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SimulatorFactory returns a Factory producing simulators with the given options.
func SimulatorFactory(opts ...SimulatorOption) Factory {
	return func(l Listener) (Terminal, error) {
		if l == nil {
			return nil, errors.New("terminal: listener is required")
		}
		return NewSimulator(l, opts...), nil
	}
}

func (s *Simulator) DiscoverReaders(ctx context.Context, cfg DiscoveryConfig) ([]Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, timeoutError(err)
	}
	switch cfg.Method {
	case DiscoverySimulated:
		return []Reader{SimulatedReader}, nil
	case DiscoveryRegistered:
		if err := s.ensureToken(ctx); err != nil {
			return nil, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		return append([]Reader{}, s.registered...), nil
	default:
		return nil, newError(CodeInvalidArgument, fmt.Sprintf("unknown discovery method %q", cfg.Method))
	}
}

func (s *Simulator) ConnectReader(ctx context.Context, reader Reader) (Connection, error) {
	if reader.ID == "" {
		return Connection{}, newError(CodeInvalidArgument, "reader id is required")
	}
	s.mu.Lock()
	if s.connected != nil {
		id := s.connected.ID
		s.mu.Unlock()
		return Connection{}, newError(CodeAlreadyConnected, fmt.Sprintf("already connected to reader %s", id))
	}
	s.mu.Unlock()

	s.listener.ConnectionStatusChanged(StatusConnecting)
	if err := s.ensureToken(ctx); err != nil {
		s.listener.ConnectionStatusChanged(StatusNotConnected)
		return Connection{}, err
	}
	if err := ctx.Err(); err != nil {
		s.listener.ConnectionStatusChanged(StatusNotConnected)
		return Connection{}, timeoutError(err)
	}

	connected := reader
	connected.Status = "online"
	s.mu.Lock()
	s.connected = &connected
	s.mu.Unlock()

	s.logger.Debug().Str(xlog.FieldReaderID, reader.ID).Msg("simulated reader connected")
	s.listener.ConnectionStatusChanged(StatusConnected)
	return Connection{Reader: connected}, nil
}

func (s *Simulator) DisconnectReader(ctx context.Context) error {
	s.mu.Lock()
	if s.connected == nil {
		s.mu.Unlock()
		return newError(CodeNoReader, "no reader is connected")
	}
	s.connected = nil
	s.display = nil
	s.abortCollectLocked()
	s.mu.Unlock()

	s.listener.ConnectionStatusChanged(StatusNotConnected)
	return nil
}

func (s *Simulator) SetReaderDisplay(ctx context.Context, display Display) error {
	if display.Type != DisplayTypeCart {
		return newError(CodeInvalidArgument, fmt.Sprintf("unsupported display type %q", display.Type))
	}
	if len(display.Cart.LineItems) == 0 {
		return newError(CodeInvalidArgument, "cart has no line items")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected == nil {
		return newError(CodeNoReader, "no reader is connected")
	}
	d := display
	d.Cart.LineItems = append([]LineItem(nil), display.Cart.LineItems...)
	s.display = &d
	return nil
}

func (s *Simulator) CollectPaymentMethod(ctx context.Context, clientSecret string) (PaymentIntent, error) {
	if clientSecret == "" {
		return PaymentIntent{}, newError(CodeInvalidArgument, "client secret is required")
	}
	s.mu.Lock()
	if s.connected == nil {
		s.mu.Unlock()
		return PaymentIntent{}, newError(CodeNoReader, "no reader is connected")
	}
	if s.collect != nil {
		s.mu.Unlock()
		return PaymentIntent{}, newError(CodeCollectInProgress, "a collect payment method request is already in progress")
	}
	p := &pendingCollect{secret: clientSecret, cancel: make(chan struct{})}
	s.collect = p
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.collect == p {
			s.collect = nil
		}
		s.mu.Unlock()
	}()

	timer := time.NewTimer(s.presentDelay)
	defer timer.Stop()

	select {
	case <-p.cancel:
		return PaymentIntent{}, newError(CodeCanceled, "collect payment method was canceled")
	case <-ctx.Done():
		return PaymentIntent{}, timeoutError(ctx.Err())
	case <-timer.C:
	}
	if s.cardPresented != nil {
		s.cardPresented()
	}

	// A cancel that got in after the card was presented still wins.
	s.mu.Lock()
	if s.collect != p {
		s.mu.Unlock()
		return PaymentIntent{}, newError(CodeCanceled, "collect payment method was canceled")
	}
	s.collect = nil
	s.mu.Unlock()

	if s.testCard() == TestCardReadError {
		return PaymentIntent{}, newError(CodeCardReadFailed, "the card could not be read")
	}
	return PaymentIntent{
		ID:            IntentIDFromSecret(clientSecret),
		ClientSecret:  clientSecret,
		Status:        IntentRequiresConfirmation,
		PaymentMethod: "pm_" + uuid.NewString(),
	}, nil
}

func (s *Simulator) CancelCollectPaymentMethod(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collect == nil {
		return newError(CodeNoCollectPending, "there is no collect payment method request to cancel")
	}
	s.abortCollectLocked()
	return nil
}

func (s *Simulator) ConfirmPaymentIntent(ctx context.Context, intent PaymentIntent) (PaymentIntent, error) {
	if intent.ID == "" {
		return PaymentIntent{}, newError(CodeInvalidArgument, "payment intent id is required")
	}
	if intent.Status != IntentRequiresConfirmation {
		return PaymentIntent{}, newError(CodeInvalidArgument, fmt.Sprintf("payment intent is %s, expected %s", intent.Status, IntentRequiresConfirmation))
	}
	if err := ctx.Err(); err != nil {
		return PaymentIntent{}, timeoutError(err)
	}
	s.mu.Lock()
	connected := s.connected != nil
	s.mu.Unlock()
	if !connected {
		return PaymentIntent{}, newError(CodeNoReader, "no reader is connected")
	}
	if s.testCard() == TestCardDeclined {
		return PaymentIntent{}, &Error{Code: CodeCardDeclined, Message: "your card was declined", DeclineCode: "generic_decline"}
	}
	confirmed := intent
	confirmed.Status = IntentRequiresCapture
	return confirmed, nil
}

func (s *Simulator) ReadSource(ctx context.Context) (Source, error) {
	s.mu.Lock()
	connected := s.connected != nil
	s.mu.Unlock()
	if !connected {
		return Source{}, newError(CodeNoReader, "no reader is connected")
	}

	timer := time.NewTimer(s.presentDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return Source{}, timeoutError(ctx.Err())
	case <-timer.C:
	}
	if s.testCard() == TestCardReadError {
		return Source{}, newError(CodeCardReadFailed, "the card could not be read")
	}
	return Source{ID: "src_" + uuid.NewString(), Brand: "visa", Last4: "4242"}, nil
}

// SimulateUnexpectedDisconnect drops the reader link as if the device went
// away. It reports whether a reader was connected.
func (s *Simulator) SimulateUnexpectedDisconnect() bool {
	s.mu.Lock()
	if s.connected == nil {
		s.mu.Unlock()
		return false
	}
	s.connected = nil
	s.display = nil
	s.abortCollectLocked()
	s.mu.Unlock()

	s.listener.UnexpectedReaderDisconnect()
	return true
}

// SetTestCard changes how the next presented card behaves.
func (s *Simulator) SetTestCard(card TestCard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.card = card
}

func (s *Simulator) testCard() TestCard {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.card
}

// CollectPending reports whether a collect is waiting for a card.
func (s *Simulator) CollectPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collect != nil
}

// CurrentDisplay returns the last display pushed to the connected reader.
func (s *Simulator) CurrentDisplay() (Display, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.display == nil {
		return Display{}, false
	}
	return *s.display, true
}

func (s *Simulator) ensureToken(ctx context.Context) error {
	s.mu.Lock()
	have := s.token != ""
	s.mu.Unlock()
	if have {
		return nil
	}

	token, err := s.listener.FetchConnectionToken(ctx)
	if err != nil {
		return &Error{Code: CodeConnectionToken, Message: "failed to fetch connection token", Err: err}
	}
	if token == "" {
		return newError(CodeConnectionToken, "connection token provider returned an empty secret")
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

func (s *Simulator) abortCollectLocked() {
	if s.collect != nil {
		close(s.collect.cancel)
		s.collect = nil
	}
}

func timeoutError(err error) *Error {
	return &Error{Code: CodeTimeout, Message: "request did not complete in time", Err: err}
}
