package tests

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"towdispatch/internal/bus"
	"towdispatch/internal/domain"
	"towdispatch/internal/redis"
	"towdispatch/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK BOOKING REPOSITORY
// ──────────────────────────────────────────────

// MockBookingRepository is a mock implementation of BookingRepository.
// The Mark* methods enforce the same state guards as the SQL versions so
// lifecycle tests exercise the guard behavior, not just the happy path.
type MockBookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]*domain.Booking

	// Counters for verification
	CreateCallCount        int32
	MarkAssignedCallCount  int32
	MarkRefusedCallCount   int32
	MarkCompletedCallCount int32

	// Error injection
	CreateError        error
	MarkAssignedError  error
	MarkCompletedError error
}

// NewMockBookingRepository creates a new mock booking repository.
func NewMockBookingRepository() *MockBookingRepository {
	return &MockBookingRepository{
		bookings: make(map[string]*domain.Booking),
	}
}

// AddBooking adds a booking to the mock repository.
func (m *MockBookingRepository) AddBooking(booking *domain.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[booking.ID] = booking
}

// GetBooking returns a booking for test assertions.
func (m *MockBookingRepository) GetBooking(id string) *domain.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bookings[id]
}

func (m *MockBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[booking.ID] = booking
	return nil
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	booking, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *booking
	return &copy, nil
}

func (m *MockBookingRepository) GetByTrackingToken(ctx context.Context, token string) (*domain.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.bookings {
		if b.TrackingToken == token {
			copy := *b
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockBookingRepository) ListByDriver(ctx context.Context, driverID string, statuses []domain.BookingStatus) ([]*domain.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wanted := make(map[domain.BookingStatus]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}
	result := make([]*domain.Booking, 0)
	for _, b := range m.bookings {
		if b.DriverID == driverID && wanted[b.Status] {
			copy := *b
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MockBookingRepository) MarkAssigned(ctx context.Context, id string, assignedAt time.Time) error {
	atomic.AddInt32(&m.MarkAssignedCallCount, 1)
	if m.MarkAssignedError != nil {
		return m.MarkAssignedError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	if booking.Status != domain.BookingStatusPending {
		return repository.ErrStaleState
	}
	booking.Status = domain.BookingStatusAssigned
	booking.AssignedAt = assignedAt
	return nil
}

func (m *MockBookingRepository) MarkRefused(ctx context.Context, id string) error {
	atomic.AddInt32(&m.MarkRefusedCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	if booking.Status != domain.BookingStatusPending {
		return repository.ErrStaleState
	}
	booking.Status = domain.BookingStatusRefused
	return nil
}

func (m *MockBookingRepository) MarkCompleted(ctx context.Context, id string, completedAt time.Time) error {
	atomic.AddInt32(&m.MarkCompletedCallCount, 1)
	if m.MarkCompletedError != nil {
		return m.MarkCompletedError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	if !booking.Status.InProgress() {
		return repository.ErrStaleState
	}
	booking.Status = domain.BookingStatusCompleted
	booking.CompletedAt = completedAt
	return nil
}

// ──────────────────────────────────────────────
// MOCK DRIVER REPOSITORY
// ──────────────────────────────────────────────

// MockDriverRepository is a mock implementation of DriverRepository.
type MockDriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*domain.Driver

	// Counters for verification
	UpdatePositionCallCount int32
	ClearPositionCallCount  int32

	// Error injection
	UpdatePositionError error
	ClearPositionError  error
}

// NewMockDriverRepository creates a new mock driver repository.
func NewMockDriverRepository() *MockDriverRepository {
	return &MockDriverRepository{
		drivers: make(map[string]*domain.Driver),
	}
}

// AddDriver adds a driver to the mock repository.
func (m *MockDriverRepository) AddDriver(driver *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = driver
}

// GetDriver returns a driver for test assertions.
func (m *MockDriverRepository) GetDriver(id string) *domain.Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.drivers[id]
}

func (m *MockDriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = driver
	return nil
}

func (m *MockDriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	driver, ok := m.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *driver
	return &copy, nil
}

func (m *MockDriverRepository) GetByEmail(ctx context.Context, email string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.drivers {
		if d.Email == email && d.IsActive {
			copy := *d
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockDriverRepository) GetByName(ctx context.Context, name string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.drivers {
		if d.Name == name {
			copy := *d
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockDriverRepository) UpdatePosition(ctx context.Context, id string, lat, lng float64) error {
	atomic.AddInt32(&m.UpdatePositionCallCount, 1)
	if m.UpdatePositionError != nil {
		return m.UpdatePositionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	driver.CurrentLat = &lat
	driver.CurrentLng = &lng
	return nil
}

func (m *MockDriverRepository) ClearPosition(ctx context.Context, id string) error {
	atomic.AddInt32(&m.ClearPositionCallCount, 1)
	if m.ClearPositionError != nil {
		return m.ClearPositionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	driver.CurrentLat = nil
	driver.CurrentLng = nil
	return nil
}

// ──────────────────────────────────────────────
// MOCK LOCATION UPDATE REPOSITORY
// ──────────────────────────────────────────────

// MockLocationUpdateRepository is a mock implementation of
// LocationUpdateRepository. Appends only, like the real store.
type MockLocationUpdateRepository struct {
	mu      sync.RWMutex
	updates []*domain.LocationUpdate

	// Counters for verification
	CreateCallCount int32

	// Error injection
	CreateError error
}

// NewMockLocationUpdateRepository creates a new mock location repository.
func NewMockLocationUpdateRepository() *MockLocationUpdateRepository {
	return &MockLocationUpdateRepository{}
}

func (m *MockLocationUpdateRepository) Create(ctx context.Context, update *domain.LocationUpdate) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if update.CreatedAt.IsZero() {
		update.CreatedAt = time.Now()
	}
	copy := *update
	m.updates = append(m.updates, &copy)
	return nil
}

func (m *MockLocationUpdateRepository) ListByBooking(ctx context.Context, bookingID string, limit int) ([]*domain.LocationUpdate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.LocationUpdate, 0)
	for i := len(m.updates) - 1; i >= 0 && len(result) < limit; i-- {
		if m.updates[i].BookingID == bookingID {
			copy := *m.updates[i]
			result = append(result, &copy)
		}
	}
	return result, nil
}

func (m *MockLocationUpdateRepository) LatestByBooking(ctx context.Context, bookingID string) (*domain.LocationUpdate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.updates) - 1; i >= 0; i-- {
		if m.updates[i].BookingID == bookingID {
			copy := *m.updates[i]
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

// CountForBooking returns the number of stored updates for a booking.
func (m *MockLocationUpdateRepository) CountForBooking(bookingID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, u := range m.updates {
		if u.BookingID == bookingID {
			count++
		}
	}
	return count
}

// ──────────────────────────────────────────────
// MOCK COMPLETION STORE
// ──────────────────────────────────────────────

// MockCompletionStore applies completions against the in-memory repos
// with the same atomicity as the SQL transaction: when the position
// clear fails, the status transition is rolled back with it.
type MockCompletionStore struct {
	bookings *MockBookingRepository
	drivers  *MockDriverRepository

	CompleteCallCount int32

	CompleteError error
}

// NewMockCompletionStore creates a completion store backed by the given
// mock repositories.
func NewMockCompletionStore(bookings *MockBookingRepository, drivers *MockDriverRepository) *MockCompletionStore {
	return &MockCompletionStore{bookings: bookings, drivers: drivers}
}

func (m *MockCompletionStore) Complete(ctx context.Context, bookingID, driverID string, completedAt time.Time, clearPosition bool) error {
	atomic.AddInt32(&m.CompleteCallCount, 1)
	if m.CompleteError != nil {
		return m.CompleteError
	}

	var snapshot *domain.Booking
	if before := m.bookings.GetBooking(bookingID); before != nil {
		copy := *before
		snapshot = &copy
	}

	if err := m.bookings.MarkCompleted(ctx, bookingID, completedAt); err != nil {
		return err
	}
	if clearPosition {
		if err := m.drivers.ClearPosition(ctx, driverID); err != nil {
			if snapshot != nil {
				m.bookings.AddBooking(snapshot)
			}
			return err
		}
	}
	return nil
}

// ──────────────────────────────────────────────
// MOCK TRACKING SESSION STORE
// ──────────────────────────────────────────────

// MockSessionStore is an in-memory TrackingSessionStoreInterface.
type MockSessionStore struct {
	mu       sync.Mutex
	sessions map[string]string // driverID → bookingID

	StartError error
	StopError  error
}

// NewMockSessionStore creates a new mock session store.
func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{sessions: make(map[string]string)}
}

func (m *MockSessionStore) Start(ctx context.Context, driverID, bookingID string) error {
	if m.StartError != nil {
		return m.StartError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[driverID] = bookingID
	return nil
}

func (m *MockSessionStore) Active(ctx context.Context, driverID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bookingID, ok := m.sessions[driverID]
	return bookingID, ok, nil
}

func (m *MockSessionStore) Stop(ctx context.Context, driverID string) error {
	if m.StopError != nil {
		return m.StopError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, driverID)
	return nil
}

// ──────────────────────────────────────────────
// MOCK THROTTLE STORE
// ──────────────────────────────────────────────

// MockThrottleStore is an in-memory ThrottleStoreInterface. It mirrors
// the window semantics: the first call for a booking within the window
// passes, the rest are rejected until the window is advanced.
type MockThrottleStore struct {
	mu     sync.Mutex
	closed map[string]bool

	AllowCallCount int32
	AllowError     error
}

// NewMockThrottleStore creates a new mock throttle store.
func NewMockThrottleStore() *MockThrottleStore {
	return &MockThrottleStore{closed: make(map[string]bool)}
}

func (m *MockThrottleStore) Allow(ctx context.Context, bookingID string) (bool, error) {
	atomic.AddInt32(&m.AllowCallCount, 1)
	if m.AllowError != nil {
		return false, m.AllowError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed[bookingID] {
		return false, nil
	}
	m.closed[bookingID] = true
	return true, nil
}

// AdvanceWindow simulates the window TTL expiring for a booking.
func (m *MockThrottleStore) AdvanceWindow(bookingID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.closed, bookingID)
}

// ──────────────────────────────────────────────
// MOCK EVENT BUS
// ──────────────────────────────────────────────

// MockBus records published events per topic and feeds subscribers from
// an in-memory channel.
type MockBus struct {
	mu        sync.Mutex
	published map[string][]bus.Event

	PublishError error
}

// NewMockBus creates a new mock event bus.
func NewMockBus() *MockBus {
	return &MockBus{published: make(map[string][]bus.Event)}
}

func (m *MockBus) Publish(ctx context.Context, topic string, event bus.Event) error {
	if m.PublishError != nil {
		return m.PublishError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[topic] = append(m.published[topic], event)
	return nil
}

func (m *MockBus) Subscribe(ctx context.Context, topics ...string) (*bus.Subscription, error) {
	events := make(chan bus.Event, 64)
	return bus.NewSubscription(events, func() { close(events) }), nil
}

// PublishedOn returns the events published to a topic.
func (m *MockBus) PublishedOn(topic string) []bus.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bus.Event(nil), m.published[topic]...)
}

// ──────────────────────────────────────────────
// MOCK MAILER
// ──────────────────────────────────────────────

// MockMailer records tracking-link sends.
type MockMailer struct {
	mu   sync.Mutex
	sent []string // tracking URLs

	SendError error
}

// NewMockMailer creates a new mock mailer.
func NewMockMailer() *MockMailer {
	return &MockMailer{}
}

func (m *MockMailer) SendTrackingLink(ctx context.Context, booking *domain.Booking, trackingURL string) error {
	if m.SendError != nil {
		return m.SendError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, trackingURL)
	return nil
}

// SentCount returns how many tracking links were sent.
func (m *MockMailer) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// Ensure mocks implement the interfaces they stand in for.
var (
	_ repository.BookingRepository        = (*MockBookingRepository)(nil)
	_ repository.DriverRepository         = (*MockDriverRepository)(nil)
	_ repository.LocationUpdateRepository = (*MockLocationUpdateRepository)(nil)
	_ repository.CompletionStore          = (*MockCompletionStore)(nil)
	_ redis.TrackingSessionStoreInterface = (*MockSessionStore)(nil)
	_ redis.ThrottleStoreInterface        = (*MockThrottleStore)(nil)
	_ bus.Bus                             = (*MockBus)(nil)
)
