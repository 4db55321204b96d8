// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retroarch is a client for RetroArch's UDP network command interface.
//
// # Description
//
// Every request dials a fresh UDP socket, writes one command datagram and
// waits for one reply bounded by the configured timeout. There is no
// long-lived connection: a late reply to a timed-out request lands on a
// closed socket and can never be mistaken for the answer to the next one.
//
// # Thread Safety
//
// Client is safe for concurrent use. Requests are serialized so at most one
// is in flight, which is all RetroArch's command handler supports.
package retroarch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxDatagram bounds a single reply. A 4 KiB READ_CORE_MEMORY reply is
// already ~12 KiB of text.
const maxDatagram = 64 * 1024

// Config holds connection settings for the RetroArch client.
//
// # Fields
//
//   - Address: host:port of RetroArch's network command listener.
//   - Timeout: Upper bound for a single request/reply round trip.
//   - RequestsPerSecond: Pacing limit across all requests. 0 disables pacing.
//   - Burst: Requests allowed back-to-back before pacing applies.
type Config struct {
	Address           string        `yaml:"address" validate:"required,hostname_port"`
	Timeout           time.Duration `yaml:"timeout" validate:"gt=0"`
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gte=0"`
	Burst             int           `yaml:"burst" validate:"gte=1"`
}

// DefaultConfig returns the settings for a stock RetroArch install.
//
// # Outputs
//
//   - Config: 127.0.0.1:55355, 1s timeout, 400 req/s with a burst of 32.
//     One poll cycle issues ~22 requests, so the burst covers a full cycle.
func DefaultConfig() Config {
	return Config{
		Address:           "127.0.0.1:55355",
		Timeout:           time.Second,
		RequestsPerSecond: 400,
		Burst:             32,
	}
}

// Liveness is the answer to "is the emulator there and running content".
type Liveness struct {
	Reachable bool
	Version   string
	Content   ContentStatus
}

// Client issues network commands to one RetroArch instance.
type Client struct {
	addr    string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *slog.Logger
	dialer  net.Dialer

	mu sync.Mutex
}

// New creates a Client.
//
// # Inputs
//
//   - cfg: Connection settings. Zero Timeout/Burst fall back to defaults.
//   - logger: Destination for debug logs. nil uses slog.Default().
//
// # Outputs
//
//   - *Client: Ready to use. Holds no sockets between requests.
func New(cfg Config, logger *slog.Logger) *Client {
	def := DefaultConfig()
	if cfg.Address == "" {
		cfg.Address = def.Address
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		addr:    cfg.Address,
		timeout: cfg.Timeout,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		logger:  logger.With(slog.String("component", "retroarch")),
	}
}

// Address returns the host:port this client talks to.
func (c *Client) Address() string {
	return c.addr
}

// Version returns RetroArch's version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	reply, err := c.request(ctx, cmdVersion, func(string) bool { return true })
	if err != nil {
		return "", err
	}
	v := strings.TrimSpace(reply)
	if v == "" {
		return "", fmt.Errorf("%w: empty version", ErrMalformedResponse)
	}
	return v, nil
}

// GetStatus returns the content status.
func (c *Client) GetStatus(ctx context.Context) (ContentStatus, error) {
	reply, err := c.request(ctx, cmdGetStatus, hasPrefix(cmdGetStatus))
	if err != nil {
		return ContentStatus{}, err
	}
	return parseStatus(reply)
}

// ReadMemory reads length bytes at a 24-bit bus address.
//
// # Description
//
// Issues READ_CORE_MEMORY. The returned slice may be shorter than length if
// RetroArch truncated the read.
//
// # Inputs
//
//   - ctx: Cancellation. The request is also bounded by the client timeout.
//   - address: Bus address, e.g. 0x7E09C2.
//   - length: Bytes to read. Must be positive.
//
// # Outputs
//
//   - []byte: The bytes returned.
//   - error: ErrTimeout, ErrNoMemoryMap, ErrReadFailed, ErrMalformedResponse
//     or a wrapped network error.
func (c *Client) ReadMemory(ctx context.Context, address uint32, length int) ([]byte, error) {
	if length <= 0 {
		return nil, fmt.Errorf("read length must be positive, got %d", length)
	}
	// Only a reply echoing our address is ours.
	want := fmt.Sprintf("%s %x ", cmdReadMemory, address)
	reply, err := c.request(ctx, readMemoryCommand(address, length), func(r string) bool {
		return strings.HasPrefix(strings.ToLower(r), strings.ToLower(want))
	})
	if err != nil {
		return nil, err
	}
	return parseReadMemory(reply, address)
}

// Liveness queries version and content status.
//
// # Description
//
// An unanswered GET_STATUS means RetroArch is not listening; that is a
// normal answer (Reachable=false), not an error. Errors are reserved for
// replies that arrive but make no sense.
//
// # Outputs
//
//   - Liveness: Reachable is false when GET_STATUS timed out or the port
//     refused the datagram.
//   - error: Malformed replies only.
func (c *Client) Liveness(ctx context.Context) (Liveness, error) {
	st, err := c.GetStatus(ctx)
	if err != nil {
		if isUnreachable(err) {
			return Liveness{}, nil
		}
		return Liveness{}, err
	}

	l := Liveness{Reachable: true, Content: st}
	v, err := c.Version(ctx)
	if err != nil {
		// Older builds answer GET_STATUS but not VERSION over UDP.
		c.logger.Debug("version query failed", slog.String("error", err.Error()))
	} else {
		l.Version = v
	}
	return l, nil
}

// =============================================================================
// Internal Methods
// =============================================================================

func hasPrefix(p string) func(string) bool {
	return func(reply string) bool { return strings.HasPrefix(reply, p) }
}

// isUnreachable reports whether err means nobody answered.
func isUnreachable(err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// request sends cmd and returns the first reply accepted by match.
func (c *Client) request(ctx context.Context, cmd string, match func(string) bool) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("pace %s: %w", firstWord(cmd), err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	dialCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	conn, err := c.dialer.DialContext(dialCtx, "udp", c.addr)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", c.addr, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline); err != nil {
		return "", fmt.Errorf("set deadline: %w", err)
	}

	// Expiring the deadline unblocks Read when ctx is cancelled early.
	stop := context.AfterFunc(dialCtx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
		return "", fmt.Errorf("send %s: %w", firstWord(cmd), err)
	}

	buf := make([]byte, maxDatagram)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return "", ctxErr
				}
				return "", fmt.Errorf("%w: %s after %s", ErrTimeout, firstWord(cmd), c.timeout)
			}
			return "", fmt.Errorf("receive %s: %w", firstWord(cmd), err)
		}
		reply := string(buf[:n])
		if match(reply) {
			return reply, nil
		}
		c.logger.Debug("discarding unexpected reply",
			slog.String("command", firstWord(cmd)),
			slog.Int("bytes", n),
		)
	}
}

func firstWord(cmd string) string {
	w, _, _ := strings.Cut(cmd, " ")
	return w
}
