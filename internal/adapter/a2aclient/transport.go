package a2aclient

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Strob0t/agentmesh/internal/resilience"
)

// timeouts bounds each phase of an outbound call.
type timeouts struct {
	Overall time.Duration // whole exchange, also the read ceiling
	Connect time.Duration
	Write   time.Duration // per Write on the connection
}

// newTransport builds the composite-timeout round tripper. Slots are taken
// from pool before a request is dialed and held until the body is closed.
func newTransport(t timeouts, maxConns int, pool *resilience.Pool) http.RoundTripper {
	dialer := &net.Dialer{Timeout: t.Connect, KeepAlive: 30 * time.Second}
	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &writeDeadlineConn{Conn: conn, timeout: t.Write}, nil
		},
		ResponseHeaderTimeout: t.Overall,
		MaxConnsPerHost:       maxConns,
		MaxIdleConnsPerHost:   maxConns,
		IdleConnTimeout:       90 * time.Second,
	}
	return &slotTransport{next: base, pool: pool}
}

// writeDeadlineConn arms a fresh write deadline before every Write.
type writeDeadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *writeDeadlineConn) Write(p []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(p)
}

type slotTransport struct {
	next http.RoundTripper
	pool *resilience.Pool
}

func (s *slotTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	release, err := s.pool.Acquire(req.Context())
	if err != nil {
		return nil, err
	}
	resp, err := s.next.RoundTrip(req)
	if err != nil {
		release()
		return nil, err
	}
	resp.Body = &releaseBody{ReadCloser: resp.Body, release: release}
	return resp, nil
}

type releaseBody struct {
	io.ReadCloser
	once    sync.Once
	release func()
}

func (b *releaseBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.release)
	return err
}
