// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"encoding/json"
	"testing"
)

func jsonKeys(t *testing.T, v interface{}) map[string]json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}

func TestFixAndLogFixShareCoordinateKeys(t *testing.T) {
	fix := jsonKeys(t, Fix{Latitude: 1, Longitude: 2})
	logFix := jsonKeys(t, LogFix{Latitude: 1, Longitude: 2})
	for _, key := range []string{"lat", "lon"} {
		if _, ok := fix[key]; !ok {
			t.Fatalf("Fix has no %q key: %v", key, fix)
		}
		if string(fix[key]) != string(logFix[key]) {
			t.Fatalf("%s: Fix %s, LogFix %s", key, fix[key], logFix[key])
		}
	}
}
