package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/agentmesh/internal/domain/agent"
)

// CardFetcher retrieves the agent card served under a normalized base URL.
type CardFetcher interface {
	FetchCard(ctx context.Context, baseURL string) (agent.Descriptor, error)
}

// RegistryService owns the set of known remote agents and their cached
// descriptors. Callers always receive copies. Descriptors are fetched lazily and, once resolved, never
// re-fetched until the URL is unregistered and registered again.
type RegistryService struct {
	fetcher  CardFetcher
	parallel int

	mu      sync.RWMutex
	order   []string
	entries map[string]*agent.Descriptor
}

// NewRegistryService creates an empty registry. parallel bounds the number
// of concurrent card fetches in List.
func NewRegistryService(fetcher CardFetcher, parallel int) *RegistryService {
	if parallel < 1 {
		parallel = 1
	}
	return &RegistryService{
		fetcher:  fetcher,
		parallel: parallel,
		entries:  make(map[string]*agent.Descriptor),
	}
}

// Register adds url as an unresolved entry and returns its normalized form.
// Registering a known URL is a no-op.
func (s *RegistryService) Register(rawURL string) (string, error) {
	u, err := agent.NormalizeURL(rawURL)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[u]; !ok {
		s.entries[u] = nil
		s.order = append(s.order, u)
		slog.Debug("remote agent registered", "url", u)
	}
	return u, nil
}

// Unregister removes url if present.
func (s *RegistryService) Unregister(rawURL string) {
	u, err := agent.NormalizeURL(rawURL)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[u]; !ok {
		return
	}
	delete(s.entries, u)
	for i, v := range s.order {
		if v == u {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	slog.Debug("remote agent unregistered", "url", u)
}

// URLs returns the registered URLs in registration order.
func (s *RegistryService) URLs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Cached returns the resolved descriptor for url without fetching.
func (s *RegistryService) Cached(rawURL string) (agent.Descriptor, bool) {
	u, err := agent.NormalizeURL(rawURL)
	if err != nil {
		return agent.Descriptor{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := s.entries[u]
	if d == nil {
		return agent.Descriptor{}, false
	}
	return d.Clone(), true
}

// List returns every registered agent whose descriptor is known or can be
// fetched now. Entries that fail to resolve are logged and left out; List
// itself never fails.
func (s *RegistryService) List(ctx context.Context) map[string]agent.Descriptor {
	out := make(map[string]agent.Descriptor)
	var pending []string

	s.mu.RLock()
	for _, u := range s.order {
		if d := s.entries[u]; d != nil {
			out[u] = d.Clone()
		} else {
			pending = append(pending, u)
		}
	}
	s.mu.RUnlock()

	if len(pending) == 0 {
		return out
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)
	for _, u := range pending {
		g.Go(func() error {
			d, err := s.fetch(gctx, u)
			if err != nil {
				slog.WarnContext(ctx, "agent card fetch failed", "url", u, "error", err)
				return nil
			}
			mu.Lock()
			out[u] = d
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Resolve returns the descriptor for url, fetching it when not cached.
// A fetched descriptor is cached only if url is registered.
func (s *RegistryService) Resolve(ctx context.Context, rawURL string) (agent.Descriptor, error) {
	u, err := agent.NormalizeURL(rawURL)
	if err != nil {
		return agent.Descriptor{}, err
	}
	if d, ok := s.Cached(u); ok {
		return d, nil
	}
	return s.fetch(ctx, u)
}

// fetch runs without the lock held. The write-back only fills an entry that
// is still registered and still unresolved, so a concurrent Unregister wins
// and a descriptor that is already set is never replaced.
func (s *RegistryService) fetch(ctx context.Context, u string) (agent.Descriptor, error) {
	d, err := s.fetcher.FetchCard(ctx, u)
	if err != nil {
		return agent.Descriptor{}, fmt.Errorf("resolve %s: %w", u, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.entries[u]; ok {
		if cur != nil {
			return cur.Clone(), nil
		}
		cached := d.Clone()
		s.entries[u] = &cached
		slog.Info("remote agent resolved", "url", u, "name", d.Name)
	}
	return d, nil
}
