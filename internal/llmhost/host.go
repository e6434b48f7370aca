package llmhost

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	qmderrors "github.com/qmd-search/qmd/internal/errors"
)

// roleState holds one role's lazily-loaded Model plus its current Context
// and idle-eviction timer. Acquisitions are serialized through permit so at
// most one caller holds the Context at a time.
type roleState struct {
	role   Role
	loader Loader

	mu        sync.Mutex
	model     Model
	modelErr  error
	ctxVal    Context
	idleTimer *time.Timer

	permit  chan struct{}
	breaker *qmderrors.CircuitBreaker
}

func newRoleState(role Role, loader Loader) *roleState {
	return &roleState{
		role:   role,
		loader: loader,
		permit: make(chan struct{}, 1),
		breaker: qmderrors.NewCircuitBreaker(string(role),
			qmderrors.WithMaxFailures(3),
			qmderrors.WithResetTimeout(30*time.Second)),
	}
}

// ensure loads the Model on first call and rebuilds the Context if it has
// been evicted. Called with the permit already held, so only one goroutine
// ever runs this for a given role at a time.
func (rs *roleState) ensure(ctx context.Context) (Context, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.idleTimer != nil {
		rs.idleTimer.Stop()
		rs.idleTimer = nil
	}

	if rs.model == nil {
		if rs.modelErr != nil {
			return nil, rs.modelErr
		}
		m, err := rs.loader(ctx)
		if err != nil {
			rs.modelErr = err
			return nil, err
		}
		rs.model = m
	}

	if rs.ctxVal == nil {
		start := time.Now()
		mc, err := rs.model.NewContext(ctx)
		if err != nil {
			return nil, err
		}
		rs.ctxVal = mc
		slog.Debug("llmhost context rebuilt", slog.String("role", string(rs.role)), slog.Duration("elapsed", time.Since(start)))
	}

	return rs.ctxVal, nil
}

// scheduleEviction arms the idle timer; once it fires with no intervening
// acquisition, the Context is closed and dropped. The Model stays loaded.
func (rs *roleState) scheduleEviction() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.idleTimer != nil {
		rs.idleTimer.Stop()
	}
	rs.idleTimer = time.AfterFunc(IdleTimeout, func() {
		rs.mu.Lock()
		defer rs.mu.Unlock()
		if rs.ctxVal != nil {
			_ = rs.ctxVal.Close()
			rs.ctxVal = nil
			slog.Debug("llmhost context evicted", slog.String("role", string(rs.role)))
		}
	})
}

func (rs *roleState) close() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.idleTimer != nil {
		rs.idleTimer.Stop()
		rs.idleTimer = nil
	}
	if rs.ctxVal != nil {
		_ = rs.ctxVal.Close()
		rs.ctxVal = nil
	}
	if rs.model != nil {
		_ = rs.model.Close()
		rs.model = nil
	}
}

// Host manages the process's embedding, reranker, and generator model
// instances. A zero Host is not usable; construct one with NewHost.
type Host struct {
	mu    sync.Mutex
	roles map[Role]*roleState

	stopOnce sync.Once
}

// NewHost returns an empty Host. Register a Loader for each role you intend
// to acquire before calling Acquire.
func NewHost() *Host {
	return &Host{roles: make(map[Role]*roleState)}
}

// Register installs the lazy loader for a role. Calling Register twice for
// the same role replaces the loader for future loads; it does not affect an
// already-loaded Model.
func (h *Host) Register(role Role, loader Loader) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if rs, ok := h.roles[role]; ok {
		rs.mu.Lock()
		rs.loader = loader
		rs.modelErr = nil
		rs.mu.Unlock()
		return
	}
	h.roles[role] = newRoleState(role, loader)
}

func (h *Host) state(role Role) (*roleState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rs, ok := h.roles[role]
	if !ok {
		return nil, fmt.Errorf("llmhost: no loader registered for role %q", role)
	}
	return rs, nil
}

// Acquire obtains the Context for role, loading its Model and/or rebuilding
// its Context as needed. The returned release func must be called exactly
// once, on every exit path including error, to free the role for the next
// caller and arm its idle-eviction timer; callers should defer it
// immediately.
func (h *Host) Acquire(ctx context.Context, role Role) (Context, func(), error) {
	rs, err := h.state(role)
	if err != nil {
		return nil, nil, err
	}

	if !rs.breaker.Allow() {
		return nil, nil, fmt.Errorf("llmhost: role %q unavailable: %w", role, qmderrors.ErrCircuitOpen)
	}

	select {
	case rs.permit <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	release := func() {
		rs.scheduleEviction()
		<-rs.permit
	}

	mc, err := rs.ensure(ctx)
	if err != nil {
		rs.breaker.RecordFailure()
		release()
		return nil, nil, err
	}
	rs.breaker.RecordSuccess()
	return mc, release, nil
}

// AcquireGenerator is Acquire for RoleGenerator, type-asserted to
// GeneratorContext.
func (h *Host) AcquireGenerator(ctx context.Context) (GeneratorContext, func(), error) {
	c, release, err := h.Acquire(ctx, RoleGenerator)
	if err != nil {
		return nil, nil, err
	}
	gc, ok := c.(GeneratorContext)
	if !ok {
		release()
		return nil, nil, fmt.Errorf("llmhost: generator model context does not implement GeneratorContext")
	}
	return gc, release, nil
}

// AcquireReranker is Acquire for RoleReranker, type-asserted to
// RerankerContext.
func (h *Host) AcquireReranker(ctx context.Context) (RerankerContext, func(), error) {
	c, release, err := h.Acquire(ctx, RoleReranker)
	if err != nil {
		return nil, nil, err
	}
	rc, ok := c.(RerankerContext)
	if !ok {
		release()
		return nil, nil, fmt.Errorf("llmhost: reranker model context does not implement RerankerContext")
	}
	return rc, release, nil
}

// AcquireEmbedding is Acquire for RoleEmbedding, type-asserted to
// EmbeddingContext.
func (h *Host) AcquireEmbedding(ctx context.Context) (EmbeddingContext, func(), error) {
	c, release, err := h.Acquire(ctx, RoleEmbedding)
	if err != nil {
		return nil, nil, err
	}
	ec, ok := c.(EmbeddingContext)
	if !ok {
		release()
		return nil, nil, fmt.Errorf("llmhost: embedding model context does not implement EmbeddingContext")
	}
	return ec, release, nil
}

// NewHostFromHTTPConfig builds a Host with the generator and reranker
// roles wired to the local inference server described by cfg. The
// embedding role is left unregistered; callers that want it call
// Register(RoleEmbedding, ...) with an embed.Embedder-backed loader
// themselves, since the active embedding provider may not be local.
func NewHostFromHTTPConfig(cfg HTTPConfig) *Host {
	h := NewHost()
	h.Register(RoleGenerator, func(ctx context.Context) (Model, error) {
		return NewGeneratorModel(cfg), nil
	})
	h.Register(RoleReranker, func(ctx context.Context) (Model, error) {
		return NewRerankerModel(cfg), nil
	})
	return h
}

// Close releases every loaded Context and Model. Safe to call more than
// once; only the first call has effect.
func (h *Host) Close() error {
	h.stopOnce.Do(func() {
		h.mu.Lock()
		roles := make([]*roleState, 0, len(h.roles))
		for _, rs := range h.roles {
			roles = append(roles, rs)
		}
		h.mu.Unlock()

		for _, rs := range roles {
			rs.close()
		}
	})
	return nil
}
