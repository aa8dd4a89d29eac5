package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/cucumber/godog"

	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/backend"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/session"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/terminal"
)

// fakeBackend serves the backend endpoints and counts what it was asked to do.
type fakeBackend struct {
	srv *httptest.Server

	mu       sync.Mutex
	tokens   int
	intents  int
	captures []string
	attached []string
}

func newFakeBackend() *fakeBackend {
	f := &fakeBackend{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /connection_token", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.tokens++
		f.mu.Unlock()
		writeJSON(w, map[string]string{"secret": "pst_test_feature"})
	})
	mux.HandleFunc("POST /create_payment_intent", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.intents++
		n := f.intents
		f.mu.Unlock()
		id := fmt.Sprintf("pi_feature_%d", n)
		writeJSON(w, map[string]string{"intent": id, "secret": id + "_secret_x"})
	})
	mux.HandleFunc("POST /capture_payment_intent", func(w http.ResponseWriter, r *http.Request) {
		id := r.PostFormValue("payment_intent_id")
		f.mu.Lock()
		f.captures = append(f.captures, id)
		f.mu.Unlock()
		writeJSON(w, backend.PaymentIntent{ID: id, Status: "succeeded", Amount: 5100, AmountReceived: 5100, Currency: "usd"})
	})
	mux.HandleFunc("POST /attach_source_to_customer", func(w http.ResponseWriter, r *http.Request) {
		src := r.PostFormValue("source_id")
		f.mu.Lock()
		f.attached = append(f.attached, src)
		f.mu.Unlock()
		writeJSON(w, backend.Customer{ID: "cus_feature", DefaultSource: src})
	})
	f.srv = httptest.NewServer(mux)
	return f
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type sessionWorld struct {
	backend *fakeBackend
	ctrl    *Controller
	sim     *terminal.Simulator
	alerts  *AlertQueue

	card       terminal.TestCard
	delay      time.Duration
	registered []terminal.Reader

	lastErr     error
	captured    *backend.PaymentIntent
	customer    *backend.Customer
	collectDone chan error
}

func newSessionWorld() *sessionWorld {
	return &sessionWorld{card: terminal.TestCardApproved}
}

func (w *sessionWorld) register(sc *godog.ScenarioContext) {
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		w.backend = newFakeBackend()
		w.alerts = NewAlertQueue(10)
		ctrl, err := New(Options{
			NewBackend: func(url string) (backend.API, error) {
				c, err := backend.New(url, backend.WithTimeout(5*time.Second))
				if err != nil {
					return nil, err
				}
				return c, nil
			},
			NewTerminal: func(l terminal.Listener) (terminal.Terminal, error) {
				w.sim = terminal.NewSimulator(l,
					terminal.WithPresentDelay(w.delay),
					terminal.WithTestCard(w.card),
					terminal.WithRegisteredReaders(w.registered...),
				)
				return w.sim, nil
			},
			Alerter:        w.alerts,
			CallTimeout:    5 * time.Second,
			CollectTimeout: time.Minute,
		})
		if err != nil {
			return ctx, err
		}
		w.ctrl = ctrl
		w.ctrl.Start()
		return ctx, nil
	})
	sc.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		if w.sim != nil && w.sim.CollectPending() {
			_ = w.sim.CancelCollectPaymentMethod(ctx)
		}
		if w.collectDone != nil {
			<-w.collectDone
		}
		w.backend.srv.Close()
		return ctx, nil
	})

	sc.Step(`^the operator has entered the backend URL$`, w.enterBackendURL)
	sc.Step(`^registered readers "([^"]*)" exist$`, w.registeredReadersExist)
	sc.Step(`^the customer is slow to present a card$`, w.slowCustomer)
	sc.Step(`^a simulated reader is connected$`, w.simulatedReaderConnected)
	sc.Step(`^the presented card will be "([^"]*)"$`, w.presentedCardWillBe)

	sc.Step(`^the operator uses the simulator$`, w.useSimulator)
	sc.Step(`^the operator discovers registered readers$`, w.discoverRegistered)
	sc.Step(`^the operator connects to reader "([^"]*)"$`, w.connectTo)
	sc.Step(`^the reader disconnects unexpectedly$`, w.unexpectedDisconnect)
	sc.Step(`^the operator disconnects the reader$`, w.disconnect)
	sc.Step(`^the operator shows the cart on the reader$`, w.showCart)
	sc.Step(`^the operator collects a card payment$`, w.collect)
	sc.Step(`^the operator starts collecting a card payment$`, w.startCollect)
	sc.Step(`^the operator cancels the pending payment$`, w.cancel)
	sc.Step(`^the operator saves the card for future use$`, w.saveCard)

	sc.Step(`^the session status is "([^"]*)"$`, w.sessionStatusIs)
	sc.Step(`^the connection status is "([^"]*)"$`, w.connectionStatusIs)
	sc.Step(`^the connected reader is simulated$`, w.connectedReaderIsSimulated)
	sc.Step(`^the connected reader is "([^"]*)"$`, w.connectedReaderIs)
	sc.Step(`^no reader is connected$`, w.noReaderConnected)
	sc.Step(`^no readers remain discovered$`, w.noReadersDiscovered)
	sc.Step(`^(\d+) readers are discovered$`, w.readersDiscovered)
	sc.Step(`^the backend issued (\d+) connection tokens?$`, w.backendIssuedTokens)
	sc.Step(`^the backend created (\d+) payment intents?$`, w.backendCreatedIntents)
	sc.Step(`^the operator is alerted with "([^"]*)"$`, w.alertedWith)
	sc.Step(`^no operator alert was raised$`, w.noAlert)
	sc.Step(`^the payment is captured$`, w.paymentCaptured)
	sc.Step(`^the payment fails$`, w.paymentFails)
	sc.Step(`^the payment fails with code "([^"]*)"$`, w.paymentFailsWithCode)
	sc.Step(`^no payment intent is pending$`, w.noIntentPending)
	sc.Step(`^a payment intent is pending$`, w.intentPending)
	sc.Step(`^the payment is cancelable$`, w.paymentCancelable)
	sc.Step(`^the payment is not cancelable$`, w.paymentNotCancelable)
	sc.Step(`^the operation is rejected as not cancelable$`, w.rejectedNotCancelable)
	sc.Step(`^the source is attached to a customer$`, w.sourceAttached)
}

func (w *sessionWorld) enterBackendURL() error {
	return w.ctrl.SetBackendURL(context.Background(), w.backend.srv.URL)
}

func (w *sessionWorld) registeredReadersExist(ids string) error {
	for _, id := range strings.Split(ids, ",") {
		w.registered = append(w.registered, terminal.Reader{ID: strings.TrimSpace(id), Label: id})
	}
	return nil
}

func (w *sessionWorld) slowCustomer() error {
	w.delay = time.Hour
	return nil
}

func (w *sessionWorld) simulatedReaderConnected() error {
	if err := w.enterBackendURL(); err != nil {
		return err
	}
	return w.useSimulator()
}

func (w *sessionWorld) presentedCardWillBe(raw string) error {
	card, err := terminal.ParseTestCard(raw)
	if err != nil {
		return err
	}
	w.card = card
	if w.sim != nil {
		w.sim.SetTestCard(card)
	}
	return nil
}

func (w *sessionWorld) useSimulator() error {
	_, err := w.ctrl.UseSimulator(context.Background())
	return err
}

func (w *sessionWorld) discoverRegistered() error {
	_, err := w.ctrl.DiscoverReaders(context.Background(), false)
	return err
}

func (w *sessionWorld) connectTo(id string) error {
	_, err := w.ctrl.ConnectToDiscoveredReader(context.Background(), id)
	return err
}

func (w *sessionWorld) unexpectedDisconnect() error {
	if !w.sim.SimulateUnexpectedDisconnect() {
		return errors.New("no reader was connected")
	}
	return nil
}

func (w *sessionWorld) disconnect() error {
	return w.ctrl.DisconnectReader(context.Background())
}

func (w *sessionWorld) showCart() error {
	if err := w.ctrl.UpdateLineItems(context.Background()); err != nil {
		return err
	}
	d, ok := w.sim.CurrentDisplay()
	if !ok || len(d.Cart.LineItems) != 1 || d.Cart.Total != 5100 {
		return fmt.Errorf("unexpected reader display: %+v", d)
	}
	return nil
}

func (w *sessionWorld) collect() error {
	w.captured = nil
	pi, err := w.ctrl.CollectCardPayment(context.Background())
	w.lastErr = err
	if err == nil {
		w.captured = &pi
	}
	return nil
}

func (w *sessionWorld) startCollect() error {
	done := make(chan error, 1)
	w.collectDone = done
	go func() {
		_, err := w.ctrl.CollectCardPayment(context.Background())
		done <- err
	}()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if w.ctrl.Snapshot().CancelablePayment && w.sim.CollectPending() {
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
	return errors.New("collect did not start")
}

func (w *sessionWorld) cancel() error {
	w.lastErr = w.ctrl.CancelPendingPayment(context.Background())
	if w.lastErr != nil && !errors.Is(w.lastErr, ErrNotCancelable) {
		return w.lastErr
	}
	return nil
}

func (w *sessionWorld) saveCard() error {
	cus, err := w.ctrl.SaveCardForFutureUse(context.Background())
	if err != nil {
		return err
	}
	w.customer = &cus
	return nil
}

func (w *sessionWorld) sessionStatusIs(want string) error {
	if got := w.ctrl.Snapshot().Status; got != session.Status(want) {
		return fmt.Errorf("session status is %q, want %q", got, want)
	}
	return nil
}

func (w *sessionWorld) connectionStatusIs(want string) error {
	if got := w.ctrl.Snapshot().ConnectionStatus; got != terminal.ConnectionStatus(want) {
		return fmt.Errorf("connection status is %q, want %q", got, want)
	}
	return nil
}

func (w *sessionWorld) connectedReaderIsSimulated() error {
	r := w.ctrl.Snapshot().Reader
	if r == nil || !r.Simulated {
		return fmt.Errorf("connected reader is %+v, want a simulated reader", r)
	}
	return nil
}

func (w *sessionWorld) connectedReaderIs(id string) error {
	r := w.ctrl.Snapshot().Reader
	if r == nil || r.ID != id {
		return fmt.Errorf("connected reader is %+v, want %s", r, id)
	}
	return nil
}

func (w *sessionWorld) noReaderConnected() error {
	if r := w.ctrl.Snapshot().Reader; r != nil {
		return fmt.Errorf("reader %s is still connected", r.ID)
	}
	return nil
}

func (w *sessionWorld) noReadersDiscovered() error {
	if n := len(w.ctrl.Snapshot().DiscoveredReaders); n != 0 {
		return fmt.Errorf("%d readers still discovered", n)
	}
	return nil
}

func (w *sessionWorld) readersDiscovered(want int) error {
	if got := len(w.ctrl.Snapshot().DiscoveredReaders); got != want {
		return fmt.Errorf("%d readers discovered, want %d", got, want)
	}
	return nil
}

func (w *sessionWorld) backendIssuedTokens(want int) error {
	w.backend.mu.Lock()
	defer w.backend.mu.Unlock()
	if w.backend.tokens != want {
		return fmt.Errorf("backend issued %d connection tokens, want %d", w.backend.tokens, want)
	}
	return nil
}

func (w *sessionWorld) backendCreatedIntents(want int) error {
	w.backend.mu.Lock()
	defer w.backend.mu.Unlock()
	if w.backend.intents != want {
		return fmt.Errorf("backend created %d payment intents, want %d", w.backend.intents, want)
	}
	return nil
}

func (w *sessionWorld) alertedWith(msg string) error {
	for _, a := range w.alerts.Drain() {
		if a.Message == msg {
			return nil
		}
	}
	return fmt.Errorf("no alert %q was raised", msg)
}

func (w *sessionWorld) noAlert() error {
	if alerts := w.alerts.Drain(); len(alerts) > 0 {
		return fmt.Errorf("unexpected alerts: %+v", alerts)
	}
	return nil
}

func (w *sessionWorld) paymentCaptured() error {
	if w.lastErr != nil {
		return fmt.Errorf("payment failed: %w", w.lastErr)
	}
	if w.captured == nil || w.captured.Status != "succeeded" {
		return fmt.Errorf("payment not captured: %+v", w.captured)
	}
	return nil
}

func (w *sessionWorld) paymentFails() error {
	if w.lastErr == nil {
		return errors.New("payment succeeded, want a failure")
	}
	return nil
}

func (w *sessionWorld) paymentFailsWithCode(code string) error {
	if w.collectDone != nil {
		select {
		case err := <-w.collectDone:
			w.lastErr = err
			w.collectDone = nil
		case <-time.After(5 * time.Second):
			return errors.New("collect did not finish")
		}
	}
	if !terminal.IsCode(w.lastErr, code) {
		return fmt.Errorf("payment error %v, want code %s", w.lastErr, code)
	}
	return nil
}

func (w *sessionWorld) noIntentPending() error {
	if w.ctrl.Snapshot().HasPendingPayment() {
		return errors.New("a payment intent is still pending")
	}
	return nil
}

func (w *sessionWorld) intentPending() error {
	if !w.ctrl.Snapshot().HasPendingPayment() {
		return errors.New("no payment intent is pending")
	}
	return nil
}

func (w *sessionWorld) paymentCancelable() error {
	if !w.ctrl.Snapshot().CancelablePayment {
		return errors.New("payment is not cancelable")
	}
	return nil
}

func (w *sessionWorld) paymentNotCancelable() error {
	if w.ctrl.Snapshot().CancelablePayment {
		return errors.New("payment is still cancelable")
	}
	return nil
}

func (w *sessionWorld) rejectedNotCancelable() error {
	if !errors.Is(w.lastErr, ErrNotCancelable) {
		return fmt.Errorf("got %v, want %v", w.lastErr, ErrNotCancelable)
	}
	return nil
}

func (w *sessionWorld) sourceAttached() error {
	if w.customer == nil {
		return errors.New("no customer returned")
	}
	w.backend.mu.Lock()
	defer w.backend.mu.Unlock()
	if len(w.backend.attached) != 1 || w.customer.DefaultSource != w.backend.attached[0] {
		return fmt.Errorf("attached sources %v, customer %+v", w.backend.attached, w.customer)
	}
	return nil
}
