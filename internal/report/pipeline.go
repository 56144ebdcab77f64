package report

import (
	"sync"
	"time"

	"kasirpos/backend/internal/domain"
)

// Snapshot is one complete fetch of report inputs.
type Snapshot struct {
	Transactions []domain.Transaction
	Directory    Directory
	FetchedAt    time.Time
}

type Ticket uint64

type Result struct {
	Transactions []domain.Transaction `json:"transactions"`
	Summary      Summary              `json:"summary"`
	Directory    Directory            `json:"-"`
	FetchedAt    time.Time            `json:"fetched_at"`
}

// Pipeline runs data changed, refilter, reaggregate in that order. Fetches
// are ticketed: only the most recently begun fetch may commit or fail, so a
// slow older fetch never replaces newer data.
type Pipeline struct {
	mu       sync.Mutex
	issued   uint64
	loaded   bool
	snapshot Snapshot
	lastErr  error
}

func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Begin issues a ticket for a fetch that is about to start.
func (p *Pipeline) Begin() Ticket {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.issued++
	return Ticket(p.issued)
}

// Commit installs snapshot if t is still the latest ticket. It reports
// whether the snapshot was accepted.
func (p *Pipeline) Commit(t Ticket, snapshot Snapshot) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if uint64(t) != p.issued {
		return false
	}
	p.snapshot = snapshot
	p.loaded = true
	p.lastErr = nil
	return true
}

// Fail clears the snapshot to empty if t is still the latest ticket, so a
// failed reload never leaves stale rows visible.
func (p *Pipeline) Fail(t Ticket, err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if uint64(t) != p.issued {
		return false
	}
	p.snapshot = Snapshot{}
	p.loaded = true
	p.lastErr = err
	return true
}

// Loaded reports whether a fetch has finished, successfully or not.
func (p *Pipeline) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded
}

func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Apply filters and aggregates the latest committed snapshot.
func (p *Pipeline) Apply(filter Filter, sess domain.Session) Result {
	p.mu.Lock()
	snapshot := p.snapshot
	p.mu.Unlock()
	return snapshot.Apply(filter, sess)
}

// Apply filters and aggregates this snapshot alone.
func (s Snapshot) Apply(filter Filter, sess domain.Session) Result {
	filtered := ApplyFilters(s.Transactions, filter, sess)
	return Result{
		Transactions: filtered,
		Summary:      Summarize(filtered, s.Directory),
		Directory:    s.Directory,
		FetchedAt:    s.FetchedAt,
	}
}
