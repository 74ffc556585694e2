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

// Package metadata exposes a read-only HTTP view of the zone cache for
// operators and co-located subsystems, along with the prometheus metrics
// endpoint. It never writes to the cache.
package metadata

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"

	"github.com/zonewatch-project/zonewatch/pkg/cache"
)

// Readiness reports whether the zone cache holds its baseline.
type Readiness interface {
	Ready() bool
}

type httpServer struct {
	store     *cache.Store
	readiness Readiness
}

// NewHTTPServer returns an HTTP server exposing zone cache reads.
func NewHTTPServer(addr string, store *cache.Store, readiness Readiness) *http.Server {
	server := &httpServer{
		store:     store,
		readiness: readiness,
	}
	r := mux.NewRouter()
	r.HandleFunc("/zones", server.listZones).Methods("GET")
	r.HandleFunc("/zones/{zonedid}", server.getZone).Methods("GET")
	r.HandleFunc("/healthz", server.healthz).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return &http.Server{
		Addr:    addr,
		Handler: r,
	}
}

func (s *httpServer) listZones(w http.ResponseWriter, r *http.Request) {
	zones := s.store.Snapshot()
	sort.Slice(zones, func(i, j int) bool { return zones[i].ZonedID < zones[j].ZonedID })
	writeJSON(w, http.StatusOK, zones)
}

func (s *httpServer) getZone(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["zonedid"], 10, 32)
	if err != nil {
		http.Error(w, "zonedid must be an unsigned integer", http.StatusBadRequest)
		return
	}

	zone, ok := s.store.Get(uint32(id))
	if !ok {
		http.Error(w, "zone not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, zone)
}

func (s *httpServer) healthz(w http.ResponseWriter, r *http.Request) {
	if s.readiness != nil && !s.readiness.Ready() {
		http.Error(w, "zone cache baseline not yet loaded", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		klog.ErrorS(err, "Failed to encode metadata response")
	}
}
