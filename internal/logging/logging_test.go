// Copyright 2026 The FalconZ Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logging

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestOpenWritesExpectedFilename(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	log, err := Open(dir, now)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	log.Info("hello %s", "world")
	log.Close()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "falconz-2026-07-31-12-00-00.log" {
		t.Fatalf("unexpected directory contents: %v", entries)
	}

	data, err := os.ReadFile(dir + "/" + entries[0].Name())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello world") {
		t.Errorf("log contents = %q", data)
	}
	if !strings.Contains(string(data), "[INFO]") {
		t.Errorf("expected an INFO level tag, got %q", data)
	}
}
