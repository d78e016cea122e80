package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/coffee-env/internal/environment"
)

func TestShowJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := show(&buf, environment.Development(), "json"); err != nil {
		t.Fatalf("show returned error: %v", err)
	}

	var got environment.Environment
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if got != environment.Development() {
		t.Fatalf("expected development record, got %+v", got)
	}
}

func TestShowYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := show(&buf, environment.Production(), "yaml"); err != nil {
		t.Fatalf("show returned error: %v", err)
	}

	var got environment.Environment
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not YAML: %v", err)
	}
	if got != environment.Production() {
		t.Fatalf("expected production record, got %+v", got)
	}
	if !bytes.Contains(buf.Bytes(), []byte("apiServerUrl:")) {
		t.Fatalf("expected camelCase keys in output:\n%s", buf.String())
	}
}

func TestShowRejectsUnknownFormat(t *testing.T) {
	if err := show(&bytes.Buffer{}, environment.Development(), "toml"); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}
