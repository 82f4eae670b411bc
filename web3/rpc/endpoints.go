package rpc

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// endpointCooldown is how long a failing endpoint stays out of the rotation.
const endpointCooldown = 5 * time.Minute

// ErrNoEndpoints is returned when the client has no endpoint to talk to.
var ErrNoEndpoints = errors.New("no registered endpoints")

// Endpoint is a JSON-RPC node of the chain the client is bound to.
type Endpoint struct {
	URI        string
	client     *ethclient.Client
	rpcClient  *gethrpc.Client
	disabledAt time.Time
}

// Endpoints rotates over a set of endpoints in round-robin order. Endpoints
// that fail are taken out of the rotation until their cooldown expires, and
// when every endpoint has failed all of them are put back.
type Endpoints struct {
	mtx       sync.Mutex
	next      int
	available []*Endpoint
	disabled  []*Endpoint
	cooldown  time.Duration
}

// NewEndpoints returns a rotation over eps.
func NewEndpoints(eps ...*Endpoint) *Endpoints {
	return &Endpoints{
		available: slices.Clone(eps),
		cooldown:  endpointCooldown,
	}
}

// Len returns the total number of endpoints, enabled or not.
func (e *Endpoints) Len() int {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return len(e.available) + len(e.disabled)
}

// Available returns the number of endpoints in the rotation.
func (e *Endpoints) Available() int {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return len(e.available)
}

// Disabled returns the number of endpoints waiting for their cooldown.
func (e *Endpoints) Disabled() int {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return len(e.disabled)
}

// Next returns the next endpoint of the rotation.
func (e *Endpoints) Next() (*Endpoint, error) {
	if e == nil {
		return nil, ErrNoEndpoints
	}
	e.mtx.Lock()
	defer e.mtx.Unlock()

	e.reenableExpired(time.Now())
	if len(e.available) == 0 {
		return nil, ErrNoEndpoints
	}
	if e.next >= len(e.available) {
		e.next = 0
	}
	ep := e.available[e.next]
	e.next = (e.next + 1) % len(e.available)
	return ep, nil
}

// reenableExpired moves back the endpoints whose cooldown is over. Must be
// called with the lock held.
func (e *Endpoints) reenableExpired(now time.Time) {
	e.disabled = slices.DeleteFunc(e.disabled, func(ep *Endpoint) bool {
		if now.Sub(ep.disabledAt) < e.cooldown {
			return false
		}
		ep.disabledAt = time.Time{}
		e.available = append(e.available, ep)
		return true
	})
}

// Disable takes the endpoint with the given uri out of the rotation. Unknown
// or already disabled endpoints are ignored.
func (e *Endpoints) Disable(uri string) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	idx := slices.IndexFunc(e.available, func(ep *Endpoint) bool { return ep.URI == uri })
	if idx < 0 {
		return
	}
	ep := e.available[idx]
	ep.disabledAt = time.Now()
	e.available = slices.Delete(e.available, idx, idx+1)
	e.disabled = append(e.disabled, ep)
	if e.next > idx {
		e.next--
	}

	if len(e.available) == 0 {
		for _, d := range e.disabled {
			d.disabledAt = time.Time{}
		}
		e.available, e.disabled = e.disabled, nil
		e.next = 0
		return
	}
	if e.next >= len(e.available) {
		e.next = 0
	}
}

// close releases the connections of every endpoint.
func (e *Endpoints) close() {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	for _, ep := range slices.Concat(e.available, e.disabled) {
		if ep.client != nil {
			ep.client.Close()
		}
	}
}
