package shopfront

import (
	"net/http"
	"sync"

	"github.com/shopmesh/shopmesh-client/pkg/config"
	"github.com/shopmesh/shopmesh-client/pkg/logger"
)

// Registry hands out one Connection per shop domain. Connections are created
// lazily and reused so the per-connection mutation lock actually serializes
// all writers against the same shop.
type Registry struct {
	cfg        config.ShopfrontConfig
	httpClient *http.Client
	logger     *logger.Logger

	mu          sync.Mutex
	connections map[string]*Connection
}

func NewRegistry(cfg config.ShopfrontConfig, httpClient *http.Client, logg *logger.Logger) *Registry {
	return &Registry{
		cfg:         cfg,
		httpClient:  httpClient,
		logger:      logg,
		connections: make(map[string]*Connection),
	}
}

// Connect returns the connection for the given shop domain, creating it on
// first use. The access token is captured at creation time; a rotated token
// takes effect after Evict.
func (r *Registry) Connect(domain, accessToken string) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.connections[domain]; ok {
		return conn
	}
	conn := NewConnection(r.cfg, domain, accessToken, r.httpClient, r.logger)
	r.connections[domain] = conn
	return conn
}

// Evict drops the cached connection for a domain.
func (r *Registry) Evict(domain string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connections, domain)
}
