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

package constants

// Environment variables recognized by zonewatchd. Flags take precedence.
const (
	// EnvZoneinfodEndpoint overrides the zoneinfod events URL.
	EnvZoneinfodEndpoint = "ZONEWATCH_ZONEINFOD_ENDPOINT"

	// EnvEventChannelBufferSize overrides the ordered event channel depth.
	EnvEventChannelBufferSize = "ZONEWATCH_EVENT_CHANNEL_BUFFER_SIZE"

	// EnvTrackedField overrides the zone record field whose change
	// triggers a cache update on modify events.
	EnvTrackedField = "ZONEWATCH_TRACKED_FIELD"

	// EnvReconnectEnabled turns on exponential-backoff reconnect after a
	// stream termination. Off by default: without a fresh baseline the
	// cache cannot be verified, so the default is to fail loudly.
	EnvReconnectEnabled = "ZONEWATCH_RECONNECT_ENABLED"
)
