package delivery

import (
	"fmt"
	"sync"

	"github.com/user/scriptdesk/internal/types"
)

// Registry routes deliveries to the transport named by the channel ID's
// prefix (e.g. "whatsapp", "telegram").
type Registry struct {
	mu         sync.RWMutex
	transports map[string]types.Transport
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		transports: make(map[string]types.Transport),
	}
}

// Register adds the transport for channel IDs starting with "<prefix>:".
func (r *Registry) Register(prefix string, t types.Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transports[prefix] = t
}

// Resolve returns the transport that owns channel.
func (r *Registry) Resolve(channel types.ChannelID) (types.Transport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transports[channel.Transport()]
	if !ok {
		return nil, fmt.Errorf("no transport for channel: %s", channel)
	}
	return t, nil
}

// Prefixes lists the registered transport prefixes.
func (r *Registry) Prefixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.transports))
	for p := range r.transports {
		out = append(out, p)
	}
	return out
}
