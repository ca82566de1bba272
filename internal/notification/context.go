// Package notification implements the webhook notification subsystem:
// per-client endpoint bookkeeping against an external collector
// service, and injection of collected push notifications back into
// the resource store.
package notification

import (
	"log/slog"
	"sync"

	"github.com/cactuslab/cactus-client-go/internal/channels"
	"github.com/cactuslab/cactus-client-go/internal/resource"
	"github.com/cactuslab/cactus-client-go/internal/sep2"
	"github.com/cactuslab/cactus-client-go/internal/tracker"
)

// httpDoer is the collector's transport dependency, narrowed to
// channels.HTTPClient so it can be satisfied by *http.Client or a
// test double without depending on net/http directly.
type httpDoer = channels.HTTPClient

// Endpoint is one collector-hosted webhook this client has allocated,
// subscribed against a single (kind, resource-id) pair.
type Endpoint struct {
	ID           string
	URI          string
	ResourceKind sep2.Kind
	ResourceID   resource.ID
}

// Context is the per-client notification bookkeeping: every endpoint
// allocated, keyed by the subscription alias that owns it, plus the
// set of subscriptions the server has told us to treat as cancelled.
type Context struct {
	mu               sync.Mutex
	endpointsByAlias map[string][]*Endpoint
	cancelled        map[string]bool

	collectorBaseURL string
	client           httpDoer
	store            *resource.Store
	responses        *tracker.ResponseTracker
	warnings         *tracker.WarningTracker
	clientAlias      string
	logger           *slog.Logger
}

// NewContext builds an empty notification context for one client.
func NewContext(client httpDoer, collectorBaseURL string, store *resource.Store, responses *tracker.ResponseTracker, warnings *tracker.WarningTracker, clientAlias string, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{
		endpointsByAlias: map[string][]*Endpoint{},
		cancelled:        map[string]bool{},
		collectorBaseURL: collectorBaseURL,
		client:           client,
		store:            store,
		responses:        responses,
		warnings:         warnings,
		clientAlias:      clientAlias,
		logger:           logger.With("component", "notification", "client", clientAlias),
	}
}

func (c *Context) endpointsFor(alias string) []*Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Endpoint, len(c.endpointsByAlias[alias]))
	copy(out, c.endpointsByAlias[alias])
	return out
}

func (c *Context) addEndpoint(alias string, ep *Endpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endpointsByAlias[alias] = append(c.endpointsByAlias[alias], ep)
}

func (c *Context) allEndpoints() []*Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*Endpoint
	for _, eps := range c.endpointsByAlias {
		out = append(out, eps...)
	}
	return out
}

// markCancelled records that href's subscription was cancelled
// server-side; no store change accompanies this.
func (c *Context) markCancelled(href string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled[href] = true
}

// IsCancelled reports whether href's subscription has been marked
// cancelled by a received notification.
func (c *Context) IsCancelled(href string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled[href]
}
