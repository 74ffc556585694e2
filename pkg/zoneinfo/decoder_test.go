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
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEventReady(t *testing.T) {
	zones := []ZoneInfo{
		{ZonedID: 1, UUID: uuid.MustParse("c8b3ed9c-9035-44a5-a3f1-d6b7bf688ddd"), Alias: "web0", State: "running"},
		{ZonedID: 2, UUID: uuid.MustParse("6b9c14d7-57e7-43e4-ba40-4f0e0cdb77f8"), Alias: "db0", State: "running"},
	}
	inner, err := json.Marshal(zones)
	require.NoError(t, err)
	line, err := json.Marshal(map[string]any{"type": "ready", "vms": string(inner)})
	require.NoError(t, err)

	event, err := DecodeEvent(line)
	require.NoError(t, err)
	assert.Equal(t, EventTypeReady, event.GetType())

	ready, ok := event.(*ReadyEvent)
	require.True(t, ok)
	snapshot, err := ready.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, zones, snapshot)
}

func TestDecodeEventReadyBadPayload(t *testing.T) {
	line := []byte(`{"type":"ready","vms":"not json"}`)
	event, err := DecodeEvent(line)
	require.NoError(t, err)

	_, err = event.(*ReadyEvent).Snapshot()
	require.Error(t, err)
	var decodeErr *DecodeError
	assert.True(t, errors.As(err, &decodeErr))
}

func TestDecodeEventCreate(t *testing.T) {
	line := []byte(`{"type":"create","vm":{"zonedid":7,"uuid":"c8b3ed9c-9035-44a5-a3f1-d6b7bf688ddd","alias":"new0","state":"provisioning"}}`)

	event, err := DecodeEvent(line)
	require.NoError(t, err)

	create, ok := event.(*CreateEvent)
	require.True(t, ok)
	assert.Equal(t, uint32(7), create.Zone.ZonedID)
	assert.Equal(t, "new0", create.Zone.Alias)
}

func TestDecodeEventModify(t *testing.T) {
	line := []byte(`{"type":"modify","vm":{"zonedid":7,"uuid":"c8b3ed9c-9035-44a5-a3f1-d6b7bf688ddd","alias":"renamed0","state":"running"},"changes":[{"path":["alias"]},{"path":[null,"nested"]}]}`)

	event, err := DecodeEvent(line)
	require.NoError(t, err)

	modify, ok := event.(*ModifyEvent)
	require.True(t, ok)
	assert.Equal(t, "renamed0", modify.Zone.Alias)
	require.Len(t, modify.Changes, 2)
	require.Len(t, modify.Changes[0].Path, 1)
	require.NotNil(t, modify.Changes[0].Path[0])
	assert.Equal(t, "alias", *modify.Changes[0].Path[0])
	// Null path segments decode as nil, not as empty strings.
	require.Len(t, modify.Changes[1].Path, 2)
	assert.Nil(t, modify.Changes[1].Path[0])
}

func TestDecodeEventDelete(t *testing.T) {
	line := []byte(`{"type":"delete","vm":{"zonedid":7,"uuid":"c8b3ed9c-9035-44a5-a3f1-d6b7bf688ddd","alias":"gone0","state":"destroyed"}}`)

	event, err := DecodeEvent(line)
	require.NoError(t, err)
	assert.Equal(t, EventTypeDelete, event.GetType())
	assert.Equal(t, "gone0", event.(*DeleteEvent).Zone.Alias)
}

func TestDecodeEventErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"malformed json", `{"type":"create","vm":`},
		{"unknown type", `{"type":"reboot","vm":{"zonedid":1}}`},
		{"missing type", `{"vm":{"zonedid":1}}`},
		{"ready without vms", `{"type":"ready"}`},
		{"create without vm", `{"type":"create"}`},
		{"modify without vm", `{"type":"modify","changes":[]}`},
		{"delete without vm", `{"type":"delete"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := DecodeEvent([]byte(tt.line))
			assert.Nil(t, event)
			require.Error(t, err)
			var decodeErr *DecodeError
			assert.True(t, errors.As(err, &decodeErr))
		})
	}
}

func TestZoneInfoMarshalKeepsOwnerUUID(t *testing.T) {
	// owner_uuid must survive a round trip even when zero: downstream
	// consumers key on its presence, and a uuid.UUID array is never
	// "empty" as far as encoding/json is concerned.
	encoded, err := json.Marshal(ZoneInfo{ZonedID: 1, Alias: "web0"})
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"owner_uuid"`)

	var decoded ZoneInfo
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, uuid.Nil, decoded.OwnerUUID)
}

func TestValidateConfig(t *testing.T) {
	require.NoError(t, ValidateConfig(DefaultClientConfig()))

	assert.Error(t, ValidateConfig(nil))
	assert.Error(t, ValidateConfig(&ClientConfig{}))

	config := DefaultClientConfig()
	config.Endpoint = "not a url"
	assert.Error(t, ValidateConfig(config))

	config = DefaultClientConfig()
	config.EventChannelBufferSize = 0
	assert.Error(t, ValidateConfig(config))
}
