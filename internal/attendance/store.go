package attendance

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"attendboard/internal/notify"
)

// state is the Batches+Students+Ledger aggregate. One mutex guards all of it
// so multi-collection commands are observed atomically.
type state struct {
	mu       sync.Mutex
	batches  []Batch
	students []Student
	records  []AttendanceRecord
}

// Store holds the roster and the attendance ledger in memory.
// Successful mutations emit exactly one notification; no-ops emit none.
type Store struct {
	st       *state
	notifier notify.Notifier
	now      func() time.Time
	newID    func() string
}

// Option configures a Store.
type Option func(*Store)

// WithNotifier sets where mutation notifications go.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		st:       &state{},
		notifier: notify.Discard,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// With returns a view sharing this store's state whose notifications also go
// to n. Used to capture the outcome of a single request.
func (s *Store) With(n notify.Notifier) *Store {
	view := *s
	view.notifier = notify.Multi(s.notifier, n)
	return &view
}

func (s *Store) emit(n notify.Notification) {
	s.notifier.Notify(n)
}

// Snapshot returns a deep copy of the whole state.
func (s *Store) Snapshot() Snapshot {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return Snapshot{
		Batches:  cloneAll(s.st.batches, cloneBatch),
		Students: cloneAll(s.st.students, cloneStudent),
		Records:  cloneAll(s.st.records, cloneRecord),
	}
}

// Restore replaces the whole state with a copy of snap.
func (s *Store) Restore(snap Snapshot) {
	batches := cloneAll(snap.Batches, cloneBatch)
	students := cloneAll(snap.Students, cloneStudent)
	records := cloneAll(snap.Records, cloneRecord)
	for i := range records {
		records[i].Date = Day(records[i].Date)
	}

	s.st.mu.Lock()
	s.st.batches, s.st.students, s.st.records = batches, students, records
	s.st.mu.Unlock()
}

func cloneAll[T any](in []T, clone func(T) T) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = clone(v)
	}
	return out
}

func (st *state) batchIndex(id string) int {
	return slices.IndexFunc(st.batches, func(b Batch) bool { return b.ID == id })
}

func (st *state) studentIndex(id string) int {
	return slices.IndexFunc(st.students, func(s Student) bool { return s.ID == id })
}

func (st *state) recordIndex(id string) int {
	return slices.IndexFunc(st.records, func(r AttendanceRecord) bool { return r.ID == id })
}
