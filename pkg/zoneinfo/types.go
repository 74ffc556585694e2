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

package zoneinfo

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ZoneInfo is the zone record published by zoneinfod. The record is treated
// as an atomic unit: consumers replace it wholesale and never merge
// individual fields.
type ZoneInfo struct {
	ZonedID   uint32    `json:"zonedid"`
	UUID      uuid.UUID `json:"uuid"`
	Alias     string    `json:"alias"`
	State     string    `json:"state"`
	Brand     string    `json:"brand,omitempty"`
	OwnerUUID uuid.UUID `json:"owner_uuid"`
}

// Change names one field path touched by a modify event. Path segments may be
// JSON null; a null first segment matches no field name.
type Change struct {
	Path []*string `json:"path"`
}

// EventType identifies the kind of a zoneinfod event.
type EventType string

const (
	EventTypeReady  EventType = "ready"
	EventTypeCreate EventType = "create"
	EventTypeModify EventType = "modify"
	EventTypeDelete EventType = "delete"
)

// Event is one decoded zoneinfod stream event.
type Event interface {
	GetType() EventType
}

// ReadyEvent carries the full zone baseline. The vms payload is itself a
// JSON-encoded array, doubly encoded on the wire, so it is decoded lazily
// via Snapshot.
type ReadyEvent struct {
	RawVMs string
}

func (e *ReadyEvent) GetType() EventType { return EventTypeReady }

// Snapshot decodes the baseline payload into zone records, in payload order.
func (e *ReadyEvent) Snapshot() ([]ZoneInfo, error) {
	var zones []ZoneInfo
	if err := json.Unmarshal([]byte(e.RawVMs), &zones); err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("ready vms payload: %w", err)}
	}
	return zones, nil
}

// CreateEvent announces a new zone.
type CreateEvent struct {
	Zone ZoneInfo
}

func (e *CreateEvent) GetType() EventType { return EventTypeCreate }

// ModifyEvent announces a changed zone along with the list of field paths
// that changed.
type ModifyEvent struct {
	Zone    ZoneInfo
	Changes []Change
}

func (e *ModifyEvent) GetType() EventType { return EventTypeModify }

// DeleteEvent announces a removed zone. The record carried is the zone's
// last-known state.
type DeleteEvent struct {
	Zone ZoneInfo
}

func (e *DeleteEvent) GetType() EventType { return EventTypeDelete }

// ClientConfig contains configuration for the zoneinfod stream client.
type ClientConfig struct {
	// Endpoint is the zoneinfod events URL.
	Endpoint string `validate:"required,url"`

	// UserAgent is sent on the stream request so zoneinfod can attribute
	// its watchers.
	UserAgent string `validate:"required"`

	// EventChannelBufferSize bounds the ordered event channel. A full
	// channel blocks the network read, which is acceptable backpressure
	// for a single push feed.
	EventChannelBufferSize int `validate:"gt=0"`

	// MaxLineSize caps a single stream line. The ready baseline carries
	// every zone on the host in one line, so this is much larger than the
	// bufio default.
	MaxLineSize int `validate:"gt=0"`
}

const (
	DefaultEndpoint  = "http://127.0.0.1:9090/events"
	DefaultUserAgent = "zonewatchd - ZoneinfodWatcher (firewall-logger-agent)"

	DefaultEventChannelBufferSize = 1024
	DefaultMaxLineSize            = 16 * 1024 * 1024
)

// DefaultClientConfig returns a default configuration pointing at the local
// zoneinfod instance.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Endpoint:               DefaultEndpoint,
		UserAgent:              DefaultUserAgent,
		EventChannelBufferSize: DefaultEventChannelBufferSize,
		MaxLineSize:            DefaultMaxLineSize,
	}
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// ValidateConfig validates the stream client configuration.
func ValidateConfig(config *ClientConfig) error {
	if config == nil {
		return fmt.Errorf("client config is required")
	}
	if err := configValidator.Struct(config); err != nil {
		return fmt.Errorf("invalid client config: %w", err)
	}
	return nil
}
