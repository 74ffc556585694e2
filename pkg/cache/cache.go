// Copyright 2024 The Zonewatch Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"sync"

	"github.com/zonewatch-project/zonewatch/pkg/zoneinfo"
)

// Store is the shared zone cache: a concurrent mapping from zonedid to the
// zone's last-known record. Any number of goroutines may read concurrently;
// writes come from the single watcher goroutine, so each entry update is
// atomic as a whole and readers never observe a partially-written record.
type Store struct {
	mu    sync.RWMutex
	zones map[uint32]zoneinfo.ZoneInfo

	metrics *StoreMetrics
}

// New creates an empty zone cache.
func New() *Store {
	return &Store{
		zones:   make(map[uint32]zoneinfo.ZoneInfo),
		metrics: NewStoreMetrics(),
	}
}

// Get returns the cached record for a zonedid.
func (s *Store) Get(zonedid uint32) (zoneinfo.ZoneInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	zone, ok := s.zones[zonedid]
	return zone, ok
}

// Upsert inserts or wholesale-replaces the record for zone.ZonedID.
func (s *Store) Upsert(zone zoneinfo.ZoneInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones[zone.ZonedID] = zone
	s.metrics.SetSize(len(s.zones))
}

// BulkLoad upserts every record in zones under one write lock. It is used to
// apply the ready baseline.
func (s *Store) BulkLoad(zones []zoneinfo.ZoneInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, zone := range zones {
		s.zones[zone.ZonedID] = zone
	}
	s.metrics.SetSize(len(s.zones))
}

// Len returns the number of cached zones.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.zones)
}

// Snapshot returns a copy of every cached record. Order is unspecified.
func (s *Store) Snapshot() []zoneinfo.ZoneInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	zones := make([]zoneinfo.ZoneInfo, 0, len(s.zones))
	for _, zone := range s.zones {
		zones = append(zones, zone)
	}
	return zones
}
