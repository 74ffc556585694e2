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
)

// DecodeError reports a stream line that could not be decoded into an event.
// It is terminal for the pipeline: a line that fails to decode means the
// cache's input can no longer be trusted, so the stream is never resumed
// past one.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Line == "" {
		return fmt.Sprintf("decode zoneinfod event: %v", e.Err)
	}
	return fmt.Sprintf("decode zoneinfod event %q: %v", truncate(e.Line, 256), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// eventEnvelope is the wire shape of a zoneinfod event. The type field is
// the discriminator; create and delete events are otherwise shape-identical.
type eventEnvelope struct {
	Type    EventType `json:"type"`
	VMs     *string   `json:"vms,omitempty"`
	VM      *ZoneInfo `json:"vm,omitempty"`
	Changes []Change  `json:"changes,omitempty"`
}

// DecodeEvent decodes one newline-delimited stream line into a typed event.
func DecodeEvent(line []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, &DecodeError{Line: string(line), Err: err}
	}

	switch env.Type {
	case EventTypeReady:
		if env.VMs == nil {
			return nil, &DecodeError{Line: string(line), Err: fmt.Errorf("ready event missing vms payload")}
		}
		return &ReadyEvent{RawVMs: *env.VMs}, nil
	case EventTypeCreate:
		if env.VM == nil {
			return nil, &DecodeError{Line: string(line), Err: fmt.Errorf("create event missing vm")}
		}
		return &CreateEvent{Zone: *env.VM}, nil
	case EventTypeModify:
		if env.VM == nil {
			return nil, &DecodeError{Line: string(line), Err: fmt.Errorf("modify event missing vm")}
		}
		return &ModifyEvent{Zone: *env.VM, Changes: env.Changes}, nil
	case EventTypeDelete:
		if env.VM == nil {
			return nil, &DecodeError{Line: string(line), Err: fmt.Errorf("delete event missing vm")}
		}
		return &DeleteEvent{Zone: *env.VM}, nil
	default:
		return nil, &DecodeError{Line: string(line), Err: fmt.Errorf("unknown event type %q", env.Type)}
	}
}
