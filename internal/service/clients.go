package service

import (
	"sync"

	"github.com/GoSwapGuard/swapguard/internal/config"
	"golang.org/x/time/rate"
)

// Client is one API consumer of the gateway.
type Client struct {
	ID     string
	APIKey string
}

// ClientRegistry resolves API keys to clients and hands out their
// per-client request limiters.
type ClientRegistry struct {
	mu            sync.RWMutex
	clients       map[string]*Client // key: API key
	limiters      map[string]*rate.Limiter
	defaultClient *Client
}

func NewClientRegistry(cfg *config.Config) *ClientRegistry {
	r := &ClientRegistry{
		clients:  make(map[string]*Client),
		limiters: make(map[string]*rate.Limiter),
	}

	for _, clientCfg := range cfg.Clients {
		client := &Client{ID: clientCfg.ID, APIKey: clientCfg.APIKey}
		r.clients[clientCfg.APIKey] = client

		qps := clientCfg.QPS
		if qps <= 0 {
			qps = 10
		}
		burst := clientCfg.Burst
		if burst <= 0 {
			burst = 20
		}
		r.limiters[clientCfg.ID] = rate.NewLimiter(rate.Limit(qps), burst)
	}

	if !cfg.Auth.RequireAPIKey {
		r.defaultClient = &Client{ID: "default", APIKey: cfg.Auth.APIKey}
		r.limiters["default"] = rate.NewLimiter(rate.Limit(25), 50)
	}

	return r
}

// ByAPIKey resolves a client from its gateway key.
func (r *ClientRegistry) ByAPIKey(apiKey string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[apiKey]
	return client, ok
}

// DefaultClient returns the anonymous client, or nil when keys are required.
func (r *ClientRegistry) DefaultClient() *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultClient
}

// LimiterFor returns the client's request limiter.
func (r *ClientRegistry) LimiterFor(clientID string) *rate.Limiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limiters[clientID]
}
