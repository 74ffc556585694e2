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

package utils

import (
	"os"
	"strconv"

	"k8s.io/klog/v2"
)

// LoadEnv returns the value of the environment variable, or defaultValue if
// unset or empty.
func LoadEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// LoadEnvInt returns the integer value of the environment variable, or
// defaultValue if unset or unparseable.
func LoadEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		klog.InfoS("Failed to parse environment variable as int, using default",
			"key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return parsed
}

// LoadEnvBool returns the boolean value of the environment variable, or
// defaultValue if unset or unparseable.
func LoadEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		klog.InfoS("Failed to parse environment variable as bool, using default",
			"key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return parsed
}
