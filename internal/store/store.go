// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package store keeps compensated readings in arrival order and answers
// queries from the serving layer.
package store

import (
	"iter"
	"sync"

	"github.com/relabs-tech/cubesat_telemetry/internal/telemetry"
)

// DefaultCapacity holds an hour of 1 Hz readings.
const DefaultCapacity = 3600

// Store is a fixed-capacity ring buffer. Insertion order is authoritative;
// timestamps are never used to reorder. Once full, the oldest reading is
// evicted on each append.
type Store struct {
	mu      sync.RWMutex
	buf     []telemetry.Reading
	head    int // index of the oldest entry
	n       int
	total   uint64
	dropped uint64

	subMu  sync.Mutex
	subs   map[int]chan telemetry.Reading
	nextID int
	lost   uint64
}

// New returns a store holding at most capacity readings.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		buf:  make([]telemetry.Reading, capacity),
		subs: make(map[int]chan telemetry.Reading),
	}
}

// Append adds r. It never blocks on subscribers.
func (s *Store) Append(r telemetry.Reading) {
	s.mu.Lock()
	if s.n < len(s.buf) {
		s.buf[(s.head+s.n)%len(s.buf)] = r
		s.n++
	} else {
		s.buf[s.head] = r
		s.head = (s.head + 1) % len(s.buf)
		s.dropped++
	}
	s.total++
	// Published under mu so subscribers see insertion order.
	s.publish(r)
	s.mu.Unlock()
}

// at returns the i-th oldest retained reading. Caller holds mu.
func (s *Store) at(i int) telemetry.Reading {
	return s.buf[(s.head+i)%len(s.buf)]
}

// Latest returns up to n most recent readings, oldest first.
func (s *Store) Latest(n int) []telemetry.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n > s.n {
		n = s.n
	}
	if n <= 0 {
		return nil
	}
	out := make([]telemetry.Reading, n)
	for i := range out {
		out[i] = s.at(s.n - n + i).Clone()
	}
	return out
}

// Sensor returns up to n most recent readings from one sensor, oldest first.
func (s *Store) Sensor(name string, n int) []telemetry.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rev []telemetry.Reading
	for i := s.n - 1; i >= 0 && len(rev) < n; i-- {
		if r := s.at(i); r.Sensor == name {
			rev = append(rev, r.Clone())
		}
	}
	out := make([]telemetry.Reading, len(rev))
	for i, r := range rev {
		out[len(rev)-1-i] = r
	}
	return out
}

// All iterates every retained reading oldest first. The sequence walks a
// copy taken when iteration starts, so it is finite and can be ranged over
// again to observe later appends.
func (s *Store) All() iter.Seq[telemetry.Reading] {
	return func(yield func(telemetry.Reading) bool) {
		s.mu.RLock()
		snap := make([]telemetry.Reading, s.n)
		for i := range snap {
			snap[i] = s.at(i)
		}
		s.mu.RUnlock()

		for _, r := range snap {
			if !yield(r.Clone()) {
				return
			}
		}
	}
}

// Snapshot merges the latest reading of every sensor into one record.
func (s *Store) Snapshot() (telemetry.Record, bool) {
	s.mu.RLock()
	seen := make(map[string]bool)
	var latest []telemetry.Reading
	for i := s.n - 1; i >= 0; i-- {
		r := s.at(i)
		if !seen[r.Sensor] {
			seen[r.Sensor] = true
			latest = append(latest, r)
		}
	}
	s.mu.RUnlock()

	if len(latest) == 0 {
		return telemetry.Record{}, false
	}
	return telemetry.RecordOf(latest...), true
}

// Len returns the number of retained readings.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.n
}

// Cap returns the configured capacity.
func (s *Store) Cap() int { return len(s.buf) }

// Total returns the number of readings ever appended.
func (s *Store) Total() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// Dropped returns how many readings were evicted to make room.
func (s *Store) Dropped() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped
}

// Subscribe returns a channel that receives readings appended from now on,
// and a func that unsubscribes and closes it. A subscriber that falls more
// than buffer readings behind misses readings; appends never wait.
func (s *Store) Subscribe(buffer int) (<-chan telemetry.Reading, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan telemetry.Reading, buffer)

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

// Lost returns how many deliveries were skipped for slow subscribers.
func (s *Store) Lost() uint64 {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return s.lost
}

func (s *Store) publish(r telemetry.Reading) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- r.Clone():
		default:
			s.lost++
		}
	}
}
