package dispatch

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/cab-booking/internal/models"
)

// BookingUpdate is pushed to a connected rider when one of their bookings
// changes status.
type BookingUpdate struct {
	BookingID string               `json:"booking_id"`
	Status    models.BookingStatus `json:"status"`
}

// Notifier is the booking/payment services' view of rider notification.
type Notifier interface {
	Notify(riderID string, update BookingUpdate) error
}

// WSSession represents one connected rider client.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(update BookingUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(update)
}

// WSRegistry holds rider sessions keyed by rider id. A rider reconnecting
// replaces their previous session.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
	logger   *slog.Logger
}

func NewWSRegistry(logger *slog.Logger) *WSRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSRegistry{sessions: make(map[string]*WSSession), logger: logger}
}

func (r *WSRegistry) Add(riderID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.sessions[riderID]; ok {
		_ = prev.conn.Close()
	}
	r.sessions[riderID] = &WSSession{conn: conn}
}

func (r *WSRegistry) Remove(riderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[riderID]; ok {
		_ = s.conn.Close()
		delete(r.sessions, riderID)
	}
}

// Notify pushes an update to the rider if connected. Disconnected riders
// are not an error; they simply miss the push and see the status on their
// next read.
func (r *WSRegistry) Notify(riderID string, update BookingUpdate) error {
	r.mu.RLock()
	s, ok := r.sessions[riderID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	if err := s.Send(update); err != nil {
		r.logger.Warn("ws send failed", "rider_id", riderID, "error", err)
		r.Remove(riderID)
		return err
	}
	return nil
}
