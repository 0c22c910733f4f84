// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.
//
// This file is derived from node/service.go (2018/06/04).
// Modified and improved for the refill automation service.

// Package node provides the process-wide lifecycle container: it starts and
// stops the long-lived services that make up the refill automation daemon
// (the HTTP surface and the reconciliation monitor) in registration order and
// reverse order respectively. The persistence handle is not a Lifecycle; its
// owner closes it after the Node has stopped.
package node

import (
	"fmt"
	"sync"
)

// Lifecycle is an individual long-lived component that the Node manages.
//
// Notes, mirrored from the service abstraction this was generalized from:
//
// • Lifecycle management is delegated to the Node. A Lifecycle is allowed to
// initialize itself upon construction, but no goroutines should be spun up
// outside of Start.
//
// • Restart logic is not required; Stop is only ever called once, at shutdown.
type Lifecycle interface {
	// Name identifies the lifecycle in logs and error messages.
	Name() string

	// Start is called once, after every previously registered lifecycle has
	// already started, to spawn any goroutines the service requires.
	Start() error

	// Stop terminates all goroutines belonging to the lifecycle, blocking
	// until they are all torn down or the lifecycle's own shutdown deadline
	// elapses.
	Stop() error
}

// Node registers and drives a fixed set of Lifecycles in registration order
// (in cmd/refillsvc: the HTTP surface, then the monitor) and stops them in
// reverse. There is no dynamic service discovery — the wiring happens once
// at boot in cmd/refillsvc.
type Node struct {
	mu         sync.Mutex
	lifecycles []Lifecycle
	running    bool
	stopped    chan struct{}
}

// New returns an empty Node ready to have Lifecycles registered.
func New() *Node {
	return &Node{stopped: make(chan struct{})}
}

// Register appends a Lifecycle to the start order. Register must not be
// called after Start.
func (n *Node) Register(l Lifecycle) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lifecycles = append(n.lifecycles, l)
}

// Start starts every registered Lifecycle in registration order. If any
// Lifecycle fails to start, the ones already started are stopped in reverse
// order before the error is returned.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.running {
		return fmt.Errorf("node: already running")
	}

	started := make([]Lifecycle, 0, len(n.lifecycles))
	for _, l := range n.lifecycles {
		if err := l.Start(); err != nil {
			for i := len(started) - 1; i >= 0; i-- {
				_ = started[i].Stop()
			}
			return fmt.Errorf("node: starting %s: %w", l.Name(), err)
		}
		started = append(started, l)
	}
	n.running = true
	return nil
}

// Stop stops every registered Lifecycle in reverse registration order,
// collecting (but not short-circuiting on) individual stop errors.
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.running {
		return nil
	}

	var errs []error
	for i := len(n.lifecycles) - 1; i >= 0; i-- {
		l := n.lifecycles[i]
		if err := l.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", l.Name(), err))
		}
	}
	n.running = false
	close(n.stopped)
	if len(errs) > 0 {
		return fmt.Errorf("node: shutdown errors: %v", errs)
	}
	return nil
}

// Wait blocks until Stop has completed.
func (n *Node) Wait() {
	<-n.stopped
}
