package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/cab-booking/internal/apperr"
	"github.com/example/cab-booking/internal/booking"
	"github.com/example/cab-booking/internal/dispatch"
	"github.com/example/cab-booking/internal/fleet"
	"github.com/example/cab-booking/internal/identity"
	"github.com/example/cab-booking/internal/models"
	"github.com/example/cab-booking/internal/payment"
	"github.com/example/cab-booking/internal/session"
)

// Server owns the router and the services behind it.
type Server struct {
	identity *identity.Service
	bookings *booking.Service
	payments *payment.Service
	fleet    *fleet.Registry
	sessions session.Store
	wsreg    *dispatch.WSRegistry
	logger   *slog.Logger
	mux      *mux.Router
}

// Deps bundles everything a Server needs; wiring happens in cmd/server.
type Deps struct {
	Identity *identity.Service
	Bookings *booking.Service
	Payments *payment.Service
	Fleet    *fleet.Registry
	Sessions session.Store
	WSReg    *dispatch.WSRegistry
}

func NewServer(deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		identity: deps.Identity,
		bookings: deps.Bookings,
		payments: deps.Payments,
		fleet:    deps.Fleet,
		sessions: deps.Sessions,
		wsreg:    deps.WSReg,
		logger:   logger,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/auth/register", s.handleRegister).Methods("POST")
	s.mux.HandleFunc("/api/v1/auth/login", s.handleLogin).Methods("POST")
	s.mux.HandleFunc("/api/v1/auth/logout", s.requireAuth(s.handleLogout)).Methods("POST")

	s.mux.HandleFunc("/api/v1/bookings", s.requireAuth(s.handleCreateBooking)).Methods("POST")
	s.mux.HandleFunc("/api/v1/bookings", s.requireAuth(s.handleMyBookings)).Methods("GET")
	s.mux.HandleFunc("/api/v1/bookings/{id}", s.requireAuth(s.handleGetBooking)).Methods("GET")
	s.mux.HandleFunc("/api/v1/bookings/{id}/cancel", s.requireAuth(s.handleCancelBooking)).Methods("POST")

	s.mux.HandleFunc("/api/v1/payments", s.requireAuth(s.handlePay)).Methods("POST")
	s.mux.HandleFunc("/api/v1/payments", s.requireAuth(s.handleMyPayments)).Methods("GET")
	s.mux.HandleFunc("/api/v1/payments/{id}", s.requireAuth(s.handleGetPayment)).Methods("GET")

	s.mux.HandleFunc("/api/v1/cabs", s.handleAvailableCabs).Methods("GET")

	s.mux.HandleFunc("/ws/bookings", s.requireAuth(s.handleWS))

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type registerRequest struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	u, err := s.identity.Register(r.Context(), req.FirstName, req.LastName, req.Email, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	// Auto-login after registration.
	token, err := s.sessions.Create(r.Context(), u.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: u})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	u, err := s.identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	token, err := s.sessions.Create(r.Context(), u.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: u})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Destroy(r.Context(), bearerToken(r)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req booking.CreateRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	b, err := s.bookings.Create(r.Context(), riderIDFromContext(r.Context()), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleMyBookings(w http.ResponseWriter, r *http.Request) {
	bs, err := s.bookings.ListByRider(r.Context(), riderIDFromContext(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if bs == nil {
		bs = []models.Booking{}
	}
	writeJSON(w, http.StatusOK, bs)
}

func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := s.bookings.Get(r.Context(), riderIDFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	b, err := s.bookings.Cancel(r.Context(), riderIDFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handlePay(w http.ResponseWriter, r *http.Request) {
	var req payment.PayRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	p, err := s.payments.Pay(r.Context(), riderIDFromContext(r.Context()), req)
	if err != nil {
		if apperr.IsSettlement(err) {
			// The declined payment record goes back with the failure so the
			// client can show it; re-attempting means a new payment.
			writeJSON(w, http.StatusPaymentRequired, p)
			return
		}
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleMyPayments(w http.ResponseWriter, r *http.Request) {
	ps, err := s.payments.ListByRider(r.Context(), riderIDFromContext(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if ps == nil {
		ps = []models.Payment{}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := s.payments.Get(r.Context(), riderIDFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleAvailableCabs(w http.ResponseWriter, r *http.Request) {
	var (
		cabs []models.Cab
		err  error
	)
	if t := r.URL.Query().Get("type"); t != "" {
		cabs, err = s.fleet.ByType(r.Context(), models.CabType(t))
	} else {
		cabs, err = s.fleet.Available(r.Context())
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	if cabs == nil {
		cabs = []models.Cab{}
	}
	writeJSON(w, http.StatusOK, cabs)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	riderID := riderIDFromContext(r.Context())
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	s.wsreg.Add(riderID, conn)
}

// writeError maps the error taxonomy onto HTTP statuses; anything
// unexpected is logged and hidden behind a generic message.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case apperr.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, apperr.ErrUnauthenticated), errors.Is(err, identity.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case apperr.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case apperr.IsConflict(err):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case apperr.IsAllocation(err):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	default:
		s.logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "something went wrong, please try again"})
	}
}
