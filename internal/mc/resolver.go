package mc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"mcwatch/pkg/logx"
)

// DefaultPort is assumed when a server address carries no port.
const DefaultPort = "25565"

const maxResponseBytes = 1 << 20 // status APIs return small payloads

// Resolver queries an ordered backend list and returns the first
// parseable result.
type Resolver struct {
	log    logx.Logger
	client *http.Client
}

func NewResolver(log logx.Logger) *Resolver {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Resolver{
		log: log,
		// Per-attempt deadlines come from the backend config; the client
		// itself only bounds dial/TLS setup.
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        16,
				IdleConnTimeout:     60 * time.Second,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		},
	}
}

// SplitAddress splits "host[:port]" and applies the default port.
func SplitAddress(address string) (host, port string) {
	address = strings.TrimSpace(address)
	h, p, err := net.SplitHostPort(address)
	if err != nil || h == "" {
		return address, DefaultPort
	}
	if p == "" {
		p = DefaultPort
	}
	return h, p
}

// Resolve queries each backend in order and returns the first valid status.
//
// Total backend exhaustion is a valid terminal outcome, not an error: the
// returned Status is then a synthetic offline record with Meta.Success=false
// and the last error message. Resolve never returns an error.
func (r *Resolver) Resolve(ctx context.Context, address string, backends []Backend) Status {
	host, port := SplitAddress(address)
	now := time.Now()

	var lastErr error
	for _, b := range backends {
		st, err := r.tryBackend(ctx, b, host, port)
		if err != nil {
			lastErr = err
			r.log.Debug("backend exhausted",
				logx.String("backend", b.Name),
				logx.String("address", address),
				logx.Err(err),
			)
			continue
		}
		st.CheckedAt = now
		st.Meta = ResolverMeta{Backend: b.Name, Success: true}
		return st
	}

	errMsg := "no backends configured"
	if lastErr != nil {
		errMsg = lastErr.Error()
	}
	return Status{
		Online:    false,
		CheckedAt: now,
		Meta:      ResolverMeta{Success: false, Error: errMsg},
	}
}

// tryBackend runs the attempt loop for one backend: 1 + MaxRetries attempts
// with a fixed (linear) delay in between. Transport errors, non-2xx statuses
// and parse failures all count as a failed attempt.
func (r *Resolver) tryBackend(ctx context.Context, b Backend, host, port string) (Status, error) {
	url := strings.NewReplacer("{host}", host, "{port}", port).Replace(b.URL)

	attempts := 1 + b.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 && b.RetryDelay > 0 {
			t := time.NewTimer(b.RetryDelay)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return Status{}, ctx.Err()
			}
		}

		st, err := r.fetchOnce(ctx, b, url)
		if err == nil {
			return st, nil
		}
		lastErr = err
		r.log.Trace("backend attempt failed",
			logx.String("backend", b.Name),
			logx.Int("attempt", attempt),
			logx.Int("max", attempts),
			logx.Err(err),
		)
		if ctx.Err() != nil {
			return Status{}, ctx.Err()
		}
	}
	return Status{}, fmt.Errorf("%s: %w", b.Name, lastErr)
}

func (r *Resolver) fetchOnce(ctx context.Context, b Backend, url string) (Status, error) {
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, url, nil)
	if err != nil {
		return Status{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Status{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return Status{}, fmt.Errorf("unexpected http status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Status{}, err
	}

	var root any
	if err := json.Unmarshal(body, &root); err != nil {
		return Status{}, fmt.Errorf("decode response: %w", err)
	}
	return parseStatus(root, b.Parser)
}
