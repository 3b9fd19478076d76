package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/cab-booking/internal/booking"
	"github.com/example/cab-booking/internal/dispatch"
	"github.com/example/cab-booking/internal/fare"
	"github.com/example/cab-booking/internal/fleet"
	"github.com/example/cab-booking/internal/identity"
	"github.com/example/cab-booking/internal/models"
	"github.com/example/cab-booking/internal/payment"
	"github.com/example/cab-booking/internal/session"
	"github.com/example/cab-booking/internal/storage"
)

type stubSettler struct {
	outcome payment.Outcome
}

func (s *stubSettler) Settle(context.Context, models.Payment) (payment.Outcome, error) {
	return s.outcome, nil
}

type testEnv struct {
	srv     *Server
	stores  *storage.Stores
	settler *stubSettler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	stores := storage.NewMemoryStores()
	reg := fleet.NewRegistry(stores.Cabs, true, nil)
	if err := reg.Seed(context.Background()); err != nil {
		t.Fatal(err)
	}
	sessions := session.NewMemoryStore(time.Hour)
	wsreg := dispatch.NewWSRegistry(nil)
	settler := &stubSettler{outcome: payment.Outcome{Success: true, TransactionID: "TXN20260831120000"}}

	bookingSvc := &booking.Service{
		Bookings: stores.Bookings,
		Users:    stores.Users,
		Fleet:    reg,
		Distance: fare.NewEstimator(1),
		Notifier: wsreg,
	}
	paymentSvc := &payment.Service{
		Payments: stores.Payments,
		Bookings: stores.Bookings,
		Users:    stores.Users,
		Settler:  settler,
		Notifier: wsreg,
	}

	srv := NewServer(Deps{
		Identity: identity.NewService(stores.Users),
		Bookings: bookingSvc,
		Payments: paymentSvc,
		Fleet:    reg,
		Sessions: sessions,
		WSReg:    wsreg,
	}, nil)
	return &testEnv{srv: srv, stores: stores, settler: settler}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.srv.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
	return v
}

func (e *testEnv) register(t *testing.T, email string) string {
	t.Helper()
	w := e.do(t, "POST", "/api/v1/auth/register", "", map[string]string{
		"first_name": "Asha",
		"last_name":  "Verma",
		"email":      email,
		"password":   "correcthorse",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}
	return decode[authResponse](t, w).Token
}

func TestRegisterLoginLogout(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, "POST", "/api/v1/auth/register", "", map[string]string{
		"first_name": "Asha",
		"last_name":  "Verma",
		"email":      "asha@example.com",
		"password":   "correcthorse",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}
	reg := decode[authResponse](t, w)
	if reg.Token == "" || reg.User.Email != "asha@example.com" {
		t.Fatalf("register response: %+v", reg)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Fatal("password material leaked in response")
	}

	w = e.do(t, "POST", "/api/v1/auth/login", "", map[string]string{
		"email":    "asha@example.com",
		"password": "correcthorse",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	token := decode[authResponse](t, w).Token

	w = e.do(t, "POST", "/api/v1/auth/logout", token, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("logout: %d", w.Code)
	}
	// token is dead now
	w = e.do(t, "GET", "/api/v1/bookings", token, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("after logout: %d", w.Code)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "asha@example.com")

	w := e.do(t, "POST", "/api/v1/auth/login", "", map[string]string{
		"email":    "asha@example.com",
		"password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got %d", w.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, "POST", "/api/v1/auth/register", "", map[string]string{
		"first_name": "Asha",
		"last_name":  "Verma",
		"email":      "not-an-email",
		"password":   "correcthorse",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad email: %d", w.Code)
	}

	w = e.do(t, "POST", "/api/v1/auth/register", "", map[string]string{
		"first_name": "Asha",
		"last_name":  "Verma",
		"email":      "asha@example.com",
		"password":   "short",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("short password: %d", w.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	e := newTestEnv(t)
	for _, path := range []string{"/api/v1/bookings", "/api/v1/payments"} {
		w := e.do(t, "GET", path, "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s without token: %d", path, w.Code)
		}
	}
	w := e.do(t, "GET", "/api/v1/bookings", "bogus-token", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bogus token: %d", w.Code)
	}
}

func TestBookingLifecycle(t *testing.T) {
	e := newTestEnv(t)
	token := e.register(t, "asha@example.com")

	// seeded fleet: 3 minis available
	w := e.do(t, "GET", "/api/v1/cabs?type=Mini", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("cabs: %d", w.Code)
	}
	if cabs := decode[[]models.Cab](t, w); len(cabs) != 3 {
		t.Fatalf("available minis before booking: %d", len(cabs))
	}

	w = e.do(t, "POST", "/api/v1/bookings", token, map[string]string{
		"pickup_location":  "MG Road",
		"dropoff_location": "Airport",
		"cab_type":         "Mini",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create booking: %d %s", w.Code, w.Body.String())
	}
	b := decode[models.Booking](t, w)
	if b.Status != models.BookingPending {
		t.Fatalf("status %s", b.Status)
	}
	if b.Fare != fare.Estimate(b.Distance, models.CabMini) {
		t.Fatalf("fare %v for distance %v", b.Fare, b.Distance)
	}

	w = e.do(t, "GET", "/api/v1/cabs?type=Mini", "", nil)
	if cabs := decode[[]models.Cab](t, w); len(cabs) != 2 {
		t.Fatalf("available minis after booking: %d", len(cabs))
	}

	// settle in cash
	w = e.do(t, "POST", "/api/v1/payments", token, map[string]any{
		"booking_id": b.ID,
		"method":     "Cash",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("pay: %d %s", w.Code, w.Body.String())
	}
	p := decode[models.Payment](t, w)
	if p.Status != models.PaymentCompleted || p.TransactionID != "" {
		t.Fatalf("payment %+v", p)
	}
	if p.Amount != b.Fare {
		t.Fatalf("amount %v, want %v", p.Amount, b.Fare)
	}

	w = e.do(t, "GET", "/api/v1/bookings/"+b.ID, token, nil)
	if got := decode[models.Booking](t, w); got.Status != models.BookingConfirmed {
		t.Fatalf("after payment: %s", got.Status)
	}

	// a confirmed booking can still be cancelled
	w = e.do(t, "POST", "/api/v1/bookings/"+b.ID+"/cancel", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("cancel: %d %s", w.Code, w.Body.String())
	}
	if got := decode[models.Booking](t, w); got.Status != models.BookingCancelled {
		t.Fatalf("cancel status: %s", got.Status)
	}

	w = e.do(t, "GET", "/api/v1/cabs?type=Mini", "", nil)
	if cabs := decode[[]models.Cab](t, w); len(cabs) != 3 {
		t.Fatalf("available minis after cancel: %d", len(cabs))
	}
}

func TestCreateBookingValidation(t *testing.T) {
	e := newTestEnv(t)
	token := e.register(t, "asha@example.com")

	w := e.do(t, "POST", "/api/v1/bookings", token, map[string]string{
		"pickup_location": "MG Road",
		"cab_type":        "Mini",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing dropoff: %d %s", w.Code, w.Body.String())
	}
}

func TestPaymentDeclined(t *testing.T) {
	e := newTestEnv(t)
	token := e.register(t, "asha@example.com")

	w := e.do(t, "POST", "/api/v1/bookings", token, map[string]string{
		"pickup_location":  "MG Road",
		"dropoff_location": "Airport",
		"cab_type":         "Sedan",
	})
	b := decode[models.Booking](t, w)

	e.settler.outcome = payment.Outcome{}
	w = e.do(t, "POST", "/api/v1/payments", token, map[string]any{
		"booking_id":  b.ID,
		"method":      "CreditCard",
		"card_number": "4111111111111111",
	})
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("declined payment: %d %s", w.Code, w.Body.String())
	}
	p := decode[models.Payment](t, w)
	if p.Status != models.PaymentFailed {
		t.Fatalf("payment status %s", p.Status)
	}
	if p.Details != "Card: 1111" {
		t.Fatalf("details %q", p.Details)
	}

	w = e.do(t, "GET", "/api/v1/bookings/"+b.ID, token, nil)
	if got := decode[models.Booking](t, w); got.Status != models.BookingPending {
		t.Fatalf("booking after declined payment: %s", got.Status)
	}
}

func TestForeignBookingIsNotFound(t *testing.T) {
	e := newTestEnv(t)
	ashaToken := e.register(t, "asha@example.com")
	raviToken := e.register(t, "ravi@example.com")

	w := e.do(t, "POST", "/api/v1/bookings", ashaToken, map[string]string{
		"pickup_location":  "MG Road",
		"dropoff_location": "Airport",
		"cab_type":         "SUV",
	})
	b := decode[models.Booking](t, w)

	w = e.do(t, "GET", "/api/v1/bookings/"+b.ID, raviToken, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign read: %d", w.Code)
	}
	w = e.do(t, "POST", "/api/v1/bookings/"+b.ID+"/cancel", raviToken, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign cancel: %d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, "GET", "/healthz", "", nil)
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", w.Code, w.Body.String())
	}
}

func TestWebsocketReceivesBookingUpdates(t *testing.T) {
	e := newTestEnv(t)
	token := e.register(t, "asha@example.com")

	ts := httptest.NewServer(e.srv)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/bookings?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// the handler registers the session just after the handshake; give it a
	// beat before triggering a notification
	time.Sleep(50 * time.Millisecond)

	w := e.do(t, "POST", "/api/v1/bookings", token, map[string]string{
		"pickup_location":  "MG Road",
		"dropoff_location": "Airport",
		"cab_type":         "Mini",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create booking: %d", w.Code)
	}
	b := decode[models.Booking](t, w)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var update dispatch.BookingUpdate
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatal(err)
	}
	if update.BookingID != b.ID || update.Status != models.BookingPending {
		t.Fatalf("update %+v", update)
	}
}
