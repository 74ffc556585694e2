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
	"bufio"
	"context"
	"fmt"
	"net/http"
	"sync"

	"k8s.io/klog/v2"
)

// Client consumes the zoneinfod event stream over one long-lived HTTP GET.
// Each response line is decoded into an Event and forwarded, in wire order,
// onto the channel returned by Events. The channel is closed when the stream
// terminates for any reason; Err reports why.
//
// There is no reconnect at this layer. The stream's consumer decides whether
// termination is fatal or retried with a fresh client.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client

	events chan Event

	mu      sync.Mutex
	err     error
	started bool

	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics *ClientMetrics
}

// NewClient creates a stream client for the configured zoneinfod endpoint.
func NewClient(config *ClientConfig) (*Client, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}
	return &Client{
		config: config,
		// No overall timeout: the response body is an unbounded stream.
		httpClient: &http.Client{},
		events:     make(chan Event, config.EventChannelBufferSize),
		metrics:    NewClientMetrics(config.Endpoint),
	}, nil
}

// Events returns the ordered event channel. It is closed when the stream
// terminates.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Err returns the error that terminated the stream, nil if the stream ended
// cleanly or is still running. It is meaningful once Events is closed.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Start establishes the stream connection and begins decoding events. It
// returns once the connection is up; decoding continues on a background
// goroutine until the stream terminates or ctx is cancelled.
func (c *Client) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		cancel()
		return fmt.Errorf("zoneinfod client already started")
	}
	c.started = true
	c.cancel = cancel
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.Endpoint, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("build zoneinfod request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		c.metrics.IncrementConnectionFailures()
		return fmt.Errorf("connect to zoneinfod at %s: %w", c.config.Endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		cancel()
		c.metrics.IncrementConnectionFailures()
		return fmt.Errorf("zoneinfod returned status %s", resp.Status)
	}

	klog.InfoS("Connected to zoneinfod event stream", "endpoint", c.config.Endpoint)
	c.metrics.SetConnected(true)

	c.wg.Add(1)
	go c.consume(ctx, resp)

	return nil
}

// Stop cancels the stream and waits for the decode goroutine to exit. The
// event channel is closed before Stop returns.
func (c *Client) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}

// consume reads the response body line by line until the stream ends.
func (c *Client) consume(ctx context.Context, resp *http.Response) {
	defer c.wg.Done()
	defer close(c.events)
	defer c.metrics.SetConnected(false)
	defer func() { _ = resp.Body.Close() }()

	scanner := bufio.NewScanner(resp.Body)
	// The scanner's token limit is the larger of the initial capacity and
	// the max argument, so the initial buffer must not exceed MaxLineSize.
	initial := 64 * 1024
	if c.config.MaxLineSize < initial {
		initial = c.config.MaxLineSize
	}
	scanner.Buffer(make([]byte, 0, initial), c.config.MaxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		event, err := DecodeEvent(line)
		if err != nil {
			// Never skip a malformed line: the cache's input can
			// no longer be trusted past this point.
			klog.ErrorS(err, "Zoneinfod stream line failed to decode, terminating stream")
			c.metrics.IncrementDecodeErrors()
			c.setErr(err)
			return
		}
		c.metrics.IncrementEventsReceived(string(event.GetType()))

		select {
		case c.events <- event:
		case <-ctx.Done():
			c.setErr(ctx.Err())
			return
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			// Cancellation surfaces as a read error on the body.
			c.setErr(ctx.Err())
			return
		}
		klog.ErrorS(err, "Zoneinfod event stream read failed", "endpoint", c.config.Endpoint)
		c.setErr(fmt.Errorf("read zoneinfod stream: %w", err))
		return
	}

	klog.InfoS("Zoneinfod event stream ended", "endpoint", c.config.Endpoint)
}

func (c *Client) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
}
