package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service BluOS players advertise.
	ServiceType = "_musc._tcp"

	// Domain is the mDNS browse domain.
	Domain = "local."

	defaultTimeout = 5 * time.Second
)

// ErrBrowseFailed wraps resolver failures.
var ErrBrowseFailed = errors.New("discovery: browse failed")

// Candidate is one player seen on the network.
type Candidate struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Port    int    `json:"port"`
}

// Endpoint returns address:port.
func (c Candidate) Endpoint() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// Browser is the subset of *zeroconf.Resolver used by the scanner.
// Browse must close entries when ctx is done.
type Browser interface {
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// Logger is the structured logger used by the scanner.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Scanner browses for BluOS players.
type Scanner struct {
	browser Browser
	timeout time.Duration
	logger  Logger
}

// Options configures a Scanner.
type Options struct {
	// Browser defaults to a zeroconf resolver on all interfaces.
	Browser Browser

	// Timeout is the browse window. Defaults to 5 seconds.
	Timeout time.Duration

	Logger Logger
}

// NewScanner creates a scanner.
//
// Returns:
//   - *Scanner: Scanner ready to browse
//   - error: If the default mDNS resolver cannot be created
func NewScanner(opts Options) (*Scanner, error) {
	browser := opts.Browser
	if browser == nil {
		resolver, err := zeroconf.NewResolver(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: creating resolver: %w", ErrBrowseFailed, err)
		}
		browser = resolver
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Scanner{browser: browser, timeout: timeout, logger: opts.Logger}, nil
}

// Scan browses for one timeout window and returns the players seen, sorted
// by name. Entries without an address are skipped; an endpoint reported
// more than once is returned once.
func (s *Scanner) Scan(ctx context.Context) ([]Candidate, error) {
	browseCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	collected := make(chan []Candidate, 1)

	go func() {
		seen := make(map[string]bool)
		var found []Candidate
		for {
			select {
			case <-browseCtx.Done():
				collected <- found
				return
			case entry, ok := <-entries:
				if !ok {
					collected <- found
					return
				}
				c, valid := candidateFromEntry(entry)
				if !valid || seen[c.Endpoint()] {
					continue
				}
				seen[c.Endpoint()] = true
				found = append(found, c)
				s.logDebug("bluos player seen", "name", c.Name, "endpoint", c.Endpoint())
			}
		}
	}()

	if err := s.browser.Browse(browseCtx, ServiceType, Domain, entries); err != nil {
		cancel()
		<-collected
		return nil, fmt.Errorf("%w: %w", ErrBrowseFailed, err)
	}

	<-browseCtx.Done()
	found := <-collected

	sort.Slice(found, func(i, j int) bool {
		if found[i].Name != found[j].Name {
			return found[i].Name < found[j].Name
		}
		return found[i].Endpoint() < found[j].Endpoint()
	})
	return found, nil
}

// Watch scans immediately and then every interval until ctx is cancelled,
// passing each non-empty result to handle. Scan errors are logged.
func (s *Scanner) Watch(ctx context.Context, interval time.Duration, handle func(context.Context, []Candidate)) error {
	if interval <= 0 {
		return errors.New("discovery interval must be positive")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		found, err := s.Scan(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			s.logError("discovery scan failed", err)
		case len(found) > 0:
			handle(ctx, found)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func candidateFromEntry(entry *zeroconf.ServiceEntry) (Candidate, bool) {
	if entry == nil || entry.Port == 0 {
		return Candidate{}, false
	}

	var addr string
	switch {
	case len(entry.AddrIPv4) > 0:
		addr = entry.AddrIPv4[0].String()
	case len(entry.AddrIPv6) > 0:
		addr = entry.AddrIPv6[0].String()
	default:
		return Candidate{}, false
	}

	return Candidate{Name: entry.Instance, Address: addr, Port: entry.Port}, true
}

func (s *Scanner) logDebug(msg string, keysAndValues ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, keysAndValues...)
	}
}

func (s *Scanner) logError(msg string, err error) {
	if s.logger != nil {
		s.logger.Error(msg, "error", err)
	}
}
