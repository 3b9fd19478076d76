package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/example/cab-booking/internal/models"
)

// NewMemoryStores builds the in-process backend used when neither Mongo nor
// Postgres is configured, and by tests.
func NewMemoryStores() *Stores {
	return &Stores{
		Users:    &memUsers{byID: make(map[string]models.User)},
		Cabs:     &memCabs{byID: make(map[string]models.Cab)},
		Bookings: &memBookings{byID: make(map[string]models.Booking)},
		Payments: &memPayments{byID: make(map[string]models.Payment)},
	}
}

type memUsers struct {
	mu   sync.RWMutex
	byID map[string]models.User
	ids  []string
}

func (m *memUsers) GetByID(_ context.Context, id string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.ids {
		if u := m.byID[id]; u.Email == email {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (m *memUsers) List(_ context.Context) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.User, 0, len(m.ids))
	for _, id := range m.ids {
		out = append(out, m.byID[id])
	}
	return out, nil
}

func (m *memUsers) Insert(_ context.Context, u models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[u.ID]; !ok {
		m.ids = append(m.ids, u.ID)
	}
	m.byID[u.ID] = u
	return nil
}

func (m *memUsers) Replace(_ context.Context, u models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[u.ID]; !ok {
		return ErrNotFound
	}
	m.byID[u.ID] = u
	return nil
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	for i, v := range m.ids {
		if v == id {
			m.ids = append(m.ids[:i], m.ids[i+1:]...)
			break
		}
	}
	return nil
}

type memCabs struct {
	mu   sync.RWMutex
	byID map[string]models.Cab
	ids  []string
}

func (m *memCabs) GetByID(_ context.Context, id string) (models.Cab, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byID[id]
	if !ok {
		return models.Cab{}, ErrNotFound
	}
	return c, nil
}

func (m *memCabs) List(_ context.Context) ([]models.Cab, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Cab, 0, len(m.ids))
	for _, id := range m.ids {
		out = append(out, m.byID[id])
	}
	return out, nil
}

func (m *memCabs) Insert(_ context.Context, c models.Cab) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[c.ID]; !ok {
		m.ids = append(m.ids, c.ID)
	}
	m.byID[c.ID] = c
	return nil
}

func (m *memCabs) Replace(_ context.Context, c models.Cab) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[c.ID]; !ok {
		return ErrNotFound
	}
	m.byID[c.ID] = c
	return nil
}

func (m *memCabs) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	for i, v := range m.ids {
		if v == id {
			m.ids = append(m.ids[:i], m.ids[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memCabs) FirstAvailable(_ context.Context, t models.CabType) (models.Cab, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.ids {
		if c := m.byID[id]; c.Type == t && c.IsAvailable {
			return c, nil
		}
	}
	return models.Cab{}, ErrNotFound
}

func (m *memCabs) Claim(_ context.Context, t models.CabType) (models.Cab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.ids {
		if c := m.byID[id]; c.Type == t && c.IsAvailable {
			c.IsAvailable = false
			m.byID[id] = c
			return c, nil
		}
	}
	return models.Cab{}, ErrNotFound
}

func (m *memCabs) SetAvailability(_ context.Context, id string, available bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	c.IsAvailable = available
	m.byID[id] = c
	return nil
}

func (m *memCabs) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID), nil
}

type memBookings struct {
	mu   sync.RWMutex
	byID map[string]models.Booking
	ids  []string
}

func (m *memBookings) GetByID(_ context.Context, id string) (models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.byID[id]
	if !ok {
		return models.Booking{}, ErrNotFound
	}
	return b, nil
}

func (m *memBookings) List(_ context.Context) ([]models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Booking, 0, len(m.ids))
	for _, id := range m.ids {
		out = append(out, m.byID[id])
	}
	return out, nil
}

func (m *memBookings) Insert(_ context.Context, b models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[b.ID]; !ok {
		m.ids = append(m.ids, b.ID)
	}
	m.byID[b.ID] = b
	return nil
}

func (m *memBookings) Replace(_ context.Context, b models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[b.ID]; !ok {
		return ErrNotFound
	}
	m.byID[b.ID] = b
	return nil
}

func (m *memBookings) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	for i, v := range m.ids {
		if v == id {
			m.ids = append(m.ids[:i], m.ids[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memBookings) ByRider(_ context.Context, riderID string) ([]models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Booking
	for _, id := range m.ids {
		if b := m.byID[id]; b.RiderID == riderID {
			out = append(out, b)
		}
	}
	sortBookingsNewestFirst(out)
	return out, nil
}

func (m *memBookings) ByStatus(_ context.Context, s models.BookingStatus) ([]models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Booking
	for _, id := range m.ids {
		if b := m.byID[id]; b.Status == s {
			out = append(out, b)
		}
	}
	sortBookingsNewestFirst(out)
	return out, nil
}

func (m *memBookings) Recent(ctx context.Context, n int) ([]models.Booking, error) {
	all, _ := m.List(ctx)
	sortBookingsNewestFirst(all)
	if n < len(all) {
		all = all[:n]
	}
	return all, nil
}

func sortBookingsNewestFirst(bs []models.Booking) {
	sort.SliceStable(bs, func(i, j int) bool { return bs[i].CreatedAt.After(bs[j].CreatedAt) })
}

type memPayments struct {
	mu   sync.RWMutex
	byID map[string]models.Payment
	ids  []string
}

func (m *memPayments) GetByID(_ context.Context, id string) (models.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byID[id]
	if !ok {
		return models.Payment{}, ErrNotFound
	}
	return p, nil
}

func (m *memPayments) List(_ context.Context) ([]models.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Payment, 0, len(m.ids))
	for _, id := range m.ids {
		out = append(out, m.byID[id])
	}
	return out, nil
}

func (m *memPayments) Insert(_ context.Context, p models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[p.ID]; !ok {
		m.ids = append(m.ids, p.ID)
	}
	m.byID[p.ID] = p
	return nil
}

func (m *memPayments) Replace(_ context.Context, p models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[p.ID]; !ok {
		return ErrNotFound
	}
	m.byID[p.ID] = p
	return nil
}

func (m *memPayments) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	for i, v := range m.ids {
		if v == id {
			m.ids = append(m.ids[:i], m.ids[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memPayments) ByBooking(_ context.Context, bookingID string) (models.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.ids {
		if p := m.byID[id]; p.BookingID == bookingID {
			return p, nil
		}
	}
	return models.Payment{}, ErrNotFound
}

func (m *memPayments) ByRider(_ context.Context, riderID string) ([]models.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Payment
	for _, id := range m.ids {
		if p := m.byID[id]; p.RiderID == riderID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memPayments) Recent(ctx context.Context, n int) ([]models.Payment, error) {
	all, _ := m.List(ctx)
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if n < len(all) {
		all = all[:n]
	}
	return all, nil
}
