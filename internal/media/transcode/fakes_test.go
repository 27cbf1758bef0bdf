package transcode

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Aiden-ho/twitter-server/internal/media/domain"
	"github.com/Aiden-ho/twitter-server/internal/media/models"
	"github.com/Aiden-ho/twitter-server/internal/media/repository"
)

// trackingRepo records every state a job passes through and flags any
// moment where two jobs are Processing at once.
type trackingRepo struct {
	*repository.MemoryRepository

	mu              sync.Mutex
	current         map[string]domain.Status
	history         map[string][]domain.Status
	processingOrder []string
	overlap         bool
	failOn          map[domain.Status]error
}

func newTrackingRepo() *trackingRepo {
	return &trackingRepo{
		MemoryRepository: repository.NewMemoryRepository(),
		current:          make(map[string]domain.Status),
		history:          make(map[string][]domain.Status),
		failOn:           make(map[domain.Status]error),
	}
}

func (r *trackingRepo) Create(ctx context.Context, s *models.VideoStatus) error {
	if err := r.MemoryRepository.Create(ctx, s); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current[s.Name] = s.Status
	r.history[s.Name] = append(r.history[s.Name], s.Status)
	return nil
}

func (r *trackingRepo) UpdateStatus(ctx context.Context, name string, status domain.Status, message string) error {
	r.mu.Lock()
	injected := r.failOn[status]
	r.mu.Unlock()
	if injected != nil {
		return injected
	}

	if err := r.MemoryRepository.UpdateStatus(ctx, name, status, message); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.current[name] = status
	r.history[name] = append(r.history[name], status)
	if status == domain.Processing {
		r.processingOrder = append(r.processingOrder, name)
		var n int
		for _, s := range r.current {
			if s == domain.Processing {
				n++
			}
		}
		if n > 1 {
			r.overlap = true
		}
	}
	return nil
}

func (r *trackingRepo) historyOf(name string) []domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Status(nil), r.history[name]...)
}

func (r *trackingRepo) order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.processingOrder...)
}

func (r *trackingRepo) sawOverlap() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.overlap
}

type fakeEncoder struct {
	mu      sync.Mutex
	calls   []string
	fail    map[string]error
	panicOn map[string]bool
	block   map[string]chan struct{}
	started chan string

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeEncoder() *fakeEncoder {
	return &fakeEncoder{
		fail:    make(map[string]error),
		panicOn: make(map[string]bool),
		block:   make(map[string]chan struct{}),
		started: make(chan string, 64),
	}
}

func (e *fakeEncoder) Encode(ctx context.Context, sourcePath string) error {
	n := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		m := e.maxInFlight.Load()
		if n <= m || e.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	name := JobName(sourcePath)
	e.mu.Lock()
	e.calls = append(e.calls, name)
	ch := e.block[name]
	failErr := e.fail[name]
	shouldPanic := e.panicOn[name]
	e.mu.Unlock()

	e.started <- name
	if ch != nil {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if shouldPanic {
		panic("encoder exploded")
	}
	return failErr
}

func (e *fakeEncoder) callOrder() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

type publishCall struct {
	dir, source string
}

type fakePublisher struct {
	mu    sync.Mutex
	calls []publishCall
	fail  map[string]error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{fail: make(map[string]error)}
}

func (p *fakePublisher) Publish(_ context.Context, dir, sourcePath string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, publishCall{dir: dir, source: sourcePath})
	if err := p.fail[JobName(sourcePath)]; err != nil {
		return 0, err
	}
	return 3, nil
}

func (p *fakePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.calls))
	for _, c := range p.calls {
		out = append(out, JobName(c.source))
	}
	return out
}
