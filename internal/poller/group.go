// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package poller

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Group runs pollers concurrently, each with its own cancel func. A fatal
// error in one poller never stops the others.
type Group struct {
	ctx context.Context

	mu      sync.Mutex
	entries map[string]*entry
	wg      sync.WaitGroup
}

type entry struct {
	p      *Poller
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewGroup returns a group whose pollers stop when ctx is cancelled.
func NewGroup(ctx context.Context) *Group {
	return &Group{ctx: ctx, entries: make(map[string]*entry)}
}

// Start launches p. Names must be unique within the group.
func (g *Group) Start(p *Poller) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.entries[p.Name()]; ok {
		return fmt.Errorf("poller %q already running", p.Name())
	}

	ctx, cancel := context.WithCancel(g.ctx)
	e := &entry{p: p, cancel: cancel, done: make(chan struct{})}
	g.entries[p.Name()] = e

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer close(e.done)
		defer cancel()
		err := p.Run(ctx)
		g.mu.Lock()
		e.err = err
		g.mu.Unlock()
	}()
	return nil
}

// Abort cancels one poller and waits for it to return. It reports whether
// the name was known.
func (g *Group) Abort(name string) bool {
	g.mu.Lock()
	e, ok := g.entries[name]
	g.mu.Unlock()
	if !ok {
		return false
	}
	e.cancel()
	<-e.done
	return true
}

// Done returns a channel closed when the named poller has returned.
func (g *Group) Done(name string) <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok := g.entries[name]; ok {
		return e.done
	}
	return nil
}

// Err returns the fatal error of a finished poller, if any.
func (g *Group) Err(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok := g.entries[name]; ok {
		return e.err
	}
	return nil
}

// Wait blocks until every poller has returned and joins their fatal errors.
func (g *Group) Wait() error {
	g.wg.Wait()
	g.mu.Lock()
	defer g.mu.Unlock()
	var errs []error
	for _, name := range g.namesLocked() {
		if err := g.entries[name].err; err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Statuses returns every poller's status sorted by name.
func (g *Group) Statuses() []Status {
	g.mu.Lock()
	names := g.namesLocked()
	pollers := make([]*Poller, len(names))
	for i, n := range names {
		pollers[i] = g.entries[n].p
	}
	g.mu.Unlock()

	out := make([]Status, len(pollers))
	for i, p := range pollers {
		out[i] = p.Status()
	}
	return out
}

func (g *Group) namesLocked() []string {
	names := make([]string, 0, len(g.entries))
	for n := range g.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
