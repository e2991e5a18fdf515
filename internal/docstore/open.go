package docstore

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type OpenParams struct {
	URI            string
	Database       string
	TracingEnabled bool
}

type Opener func(ctx context.Context, params OpenParams) (Backend, error)

// MetricsCollector is implemented by backends exposing connection pool metrics.
type MetricsCollector interface {
	Collector() prometheus.Collector
}

var (
	openersMu sync.RWMutex
	openers   = map[string]Opener{}
)

// Register makes a backend available to Open for the given URI scheme.
// Backends register themselves in init, the same way database/sql drivers do.
func Register(scheme string, opener Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()

	scheme = strings.ToLower(scheme)
	if _, dup := openers[scheme]; dup {
		panic("docstore: Register called twice for scheme " + scheme)
	}
	openers[scheme] = opener
}

func Schemes() []string {
	openersMu.RLock()
	defer openersMu.RUnlock()

	schemes := make([]string, 0, len(openers))
	for s := range openers {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// Open connects to the backend selected by the scheme of params.URI.
func Open(ctx context.Context, params OpenParams) (Backend, error) {
	u, err := url.Parse(params.URI)
	if err != nil {
		return nil, fmt.Errorf("parse database uri: %w", err)
	}

	openersMu.RLock()
	opener, ok := openers[strings.ToLower(u.Scheme)]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported database uri scheme [%s], known: %v", u.Scheme, Schemes())
	}

	return opener(ctx, params)
}
