package app

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/evanschultz/brainboard/internal/domain"
)

const defaultPersistDebounce = 750 * time.Millisecond

// PersisterOptions configures a Persister.
type PersisterOptions struct {
	Debounce time.Duration
	Logger   *log.Logger
}

// Persister writes board snapshots to a Repository after a quiet period.
// Saves never run concurrently and never overwrite a newer snapshot with an
// older one. A failed write stays pending and is retried on the next change
// or Flush.
type Persister struct {
	repo     Repository
	debounce time.Duration
	logger   *log.Logger

	mu      sync.Mutex
	timer   *time.Timer
	latest  domain.Board
	gen     uint64
	pending bool
	running bool
	closed  bool

	saveMu   sync.Mutex
	savedGen uint64
}

// NewPersister constructs a new value for this package.
func NewPersister(repo Repository, opts PersisterOptions) *Persister {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultPersistDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Persister{
		repo:     repo,
		debounce: debounce,
		logger:   logger,
	}
}

// Notify records board as the latest snapshot and restarts the quiet period.
func (p *Persister) Notify(board domain.Board) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.latest = board
	p.gen++
	p.pending = true
	if p.timer == nil {
		p.timer = time.AfterFunc(p.debounce, p.onTimer)
		return
	}
	p.timer.Reset(p.debounce)
}

func (p *Persister) onTimer() {
	p.mu.Lock()
	if p.running {
		p.timer.Reset(p.debounce)
		p.mu.Unlock()
		return
	}
	if !p.pending {
		p.mu.Unlock()
		return
	}
	board, gen := p.latest, p.gen
	p.pending = false
	p.running = true
	p.mu.Unlock()

	err := p.save(context.Background(), board, gen)

	p.mu.Lock()
	p.running = false
	// A failed snapshot waits for Flush instead of spinning on the timer.
	if err == nil && p.pending && !p.closed {
		p.timer.Reset(p.debounce)
	}
	p.mu.Unlock()
}

// Flush saves the latest snapshot now if it has not been written, and waits
// for any in-flight write.
func (p *Persister) Flush(ctx context.Context) error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	if !p.pending {
		p.mu.Unlock()
		p.saveMu.Lock()
		p.saveMu.Unlock()
		return nil
	}
	board, gen := p.latest, p.gen
	p.pending = false
	if p.timer != nil {
		p.timer.Stop()
	}
	p.mu.Unlock()
	return p.save(ctx, board, gen)
}

// Close stops the timer and flushes. Later notifications are ignored.
func (p *Persister) Close(ctx context.Context) error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	p.closed = true
	if p.timer != nil {
		p.timer.Stop()
	}
	p.mu.Unlock()
	return p.Flush(ctx)
}

func (p *Persister) save(ctx context.Context, board domain.Board, gen uint64) error {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()
	if gen <= p.savedGen {
		return nil
	}
	if err := p.repo.SaveBoard(ctx, board); err != nil {
		p.logger.Error("persist board failed", "features", len(board.Features), "err", err)
		p.mu.Lock()
		if gen == p.gen {
			p.pending = true
		}
		p.mu.Unlock()
		return err
	}
	p.savedGen = gen
	p.logger.Debug("board persisted", "features", len(board.Features), "phases", len(board.Phases))
	return nil
}
