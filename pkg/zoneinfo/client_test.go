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
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamServer serves lines from the channel as a newline-delimited stream,
// one flush per line. Closing the channel ends the response body, which the
// client observes as a clean stream end.
func streamServer(t *testing.T, lines <-chan string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		w.WriteHeader(http.StatusOK)
		flusher.Flush()
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					return
				}
				_, _ = io.WriteString(w, line+"\n")
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	config := DefaultClientConfig()
	config.Endpoint = endpoint
	client, err := NewClient(config)
	require.NoError(t, err)
	return client
}

func nextEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case event, ok := <-events:
		require.True(t, ok, "event channel closed early")
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func waitClosed(t *testing.T, events <-chan Event) {
	t.Helper()
	select {
	case event, ok := <-events:
		require.False(t, ok, "expected channel close, got event %v", event)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event channel to close")
	}
}

func TestClientReceivesEventsInOrder(t *testing.T) {
	lines := make(chan string, 8)
	lines <- `{"type":"create","vm":{"zonedid":1,"uuid":"c8b3ed9c-9035-44a5-a3f1-d6b7bf688ddd","alias":"web0"}}`
	lines <- "" // blank keepalive-style lines are skipped
	lines <- `{"type":"modify","vm":{"zonedid":1,"uuid":"c8b3ed9c-9035-44a5-a3f1-d6b7bf688ddd","alias":"web1"},"changes":[{"path":["alias"]}]}`
	lines <- `{"type":"delete","vm":{"zonedid":1,"uuid":"c8b3ed9c-9035-44a5-a3f1-d6b7bf688ddd","alias":"web1"}}`
	close(lines)
	srv := streamServer(t, lines)

	client := testClient(t, srv.URL)
	require.NoError(t, client.Start(context.Background()))
	defer client.Stop()

	assert.Equal(t, EventTypeCreate, nextEvent(t, client.Events()).GetType())
	assert.Equal(t, EventTypeModify, nextEvent(t, client.Events()).GetType())
	assert.Equal(t, EventTypeDelete, nextEvent(t, client.Events()).GetType())
	waitClosed(t, client.Events())
	assert.NoError(t, client.Err())
}

func TestClientSendsUserAgent(t *testing.T) {
	userAgent := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent <- r.Header.Get("User-Agent")
	}))
	t.Cleanup(srv.Close)

	client := testClient(t, srv.URL)
	require.NoError(t, client.Start(context.Background()))
	defer client.Stop()

	assert.Equal(t, DefaultUserAgent, <-userAgent)
}

func TestClientDecodeErrorTerminatesStream(t *testing.T) {
	lines := make(chan string, 4)
	lines <- `{"type":"create","vm":{"zonedid":1,"uuid":"c8b3ed9c-9035-44a5-a3f1-d6b7bf688ddd","alias":"web0"}}`
	lines <- `this is not json`
	lines <- `{"type":"delete","vm":{"zonedid":1,"uuid":"c8b3ed9c-9035-44a5-a3f1-d6b7bf688ddd","alias":"web0"}}`
	close(lines)
	srv := streamServer(t, lines)

	client := testClient(t, srv.URL)
	require.NoError(t, client.Start(context.Background()))
	defer client.Stop()

	assert.Equal(t, EventTypeCreate, nextEvent(t, client.Events()).GetType())
	// The malformed line kills the stream; the delete after it is never
	// delivered.
	waitClosed(t, client.Events())

	var decodeErr *DecodeError
	assert.True(t, errors.As(client.Err(), &decodeErr))
}

func TestClientConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	client := testClient(t, endpoint)
	assert.Error(t, client.Start(context.Background()))
}

func TestClientRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	client := testClient(t, srv.URL)
	assert.Error(t, client.Start(context.Background()))
}

func TestClientStop(t *testing.T) {
	lines := make(chan string) // never closed: stream stays open
	srv := streamServer(t, lines)

	client := testClient(t, srv.URL)
	require.NoError(t, client.Start(context.Background()))

	client.Stop()
	waitClosed(t, client.Events())
	assert.True(t, errors.Is(client.Err(), context.Canceled))
}

func TestClientLineTooLong(t *testing.T) {
	lines := make(chan string, 2)
	lines <- strings.Repeat("x", 2048)
	close(lines)
	srv := streamServer(t, lines)

	config := DefaultClientConfig()
	config.Endpoint = srv.URL
	config.MaxLineSize = 512
	client, err := NewClient(config)
	require.NoError(t, err)

	require.NoError(t, client.Start(context.Background()))
	defer client.Stop()

	waitClosed(t, client.Events())
	assert.True(t, errors.Is(client.Err(), bufio.ErrTooLong))
}

func TestClientStartStopConcurrent(t *testing.T) {
	lines := make(chan string)
	srv := streamServer(t, lines)

	client := testClient(t, srv.URL)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = client.Start(context.Background())
	}()
	go func() {
		defer wg.Done()
		client.Stop()
	}()
	wg.Wait()

	// Regardless of which call won, a second Stop tears everything down.
	client.Stop()
}

func TestClientStartTwice(t *testing.T) {
	lines := make(chan string)
	srv := streamServer(t, lines)

	client := testClient(t, srv.URL)
	require.NoError(t, client.Start(context.Background()))
	defer client.Stop()

	assert.Error(t, client.Start(context.Background()))
}
