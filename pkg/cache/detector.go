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

import "github.com/zonewatch-project/zonewatch/pkg/zoneinfo"

// fieldChanged reports whether any change path in a modify payload names
// field as its first segment. Path segments may be null on the wire; a null
// or missing first segment matches nothing.
func fieldChanged(changes []zoneinfo.Change, field string) bool {
	for _, change := range changes {
		if len(change.Path) == 0 {
			continue
		}
		if first := change.Path[0]; first != nil && *first == field {
			return true
		}
	}
	return false
}
