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

import "time"

// ReconnectPolicy decides whether and when the watcher reopens the zoneinfod
// stream after a transport-level termination. Decode and protocol errors are
// never retried regardless of policy: past either, the stream's contents
// cannot be trusted.
type ReconnectPolicy interface {
	// NextDelay returns the delay before reconnect attempt number attempt
	// (0-based). ok=false stops retrying and makes the termination fatal.
	NextDelay(attempt int) (delay time.Duration, ok bool)
}

// NoRetry makes any stream termination fatal. This is the default: the cache
// cannot be verified after an unplanned disconnect without a fresh baseline,
// so the decision to reconnect is left to the operator.
type NoRetry struct{}

func (NoRetry) NextDelay(int) (time.Duration, bool) { return 0, false }

// Reconnect backoff defaults.
const (
	DefaultReconnectInterval = 1 * time.Second
	MaxReconnectInterval     = 30 * time.Second
	ReconnectBackoffFactor   = 2.0
)

// ExponentialBackoff retries indefinitely with exponentially increasing
// delays, capped at Max. Every reconnected stream starts over in the
// awaiting-ready phase: the cache keeps serving last-known records, and the
// next ready baseline overwrites them.
type ExponentialBackoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
}

// DefaultExponentialBackoff returns the standard backoff policy.
func DefaultExponentialBackoff() ExponentialBackoff {
	return ExponentialBackoff{
		Initial: DefaultReconnectInterval,
		Max:     MaxReconnectInterval,
		Factor:  ReconnectBackoffFactor,
	}
}

func (p ExponentialBackoff) NextDelay(attempt int) (time.Duration, bool) {
	delay := p.Initial
	for i := 0; i < attempt; i++ {
		delay = time.Duration(float64(delay) * p.Factor)
		if delay >= p.Max {
			return p.Max, true
		}
	}
	return delay, true
}
