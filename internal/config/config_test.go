package config

import (
	"strings"
	"testing"
)

func TestParseFull(t *testing.T) {
	cfg, err := Parse([]byte(`
policies:
  - name: inbound
    path: policies/inbound.ruta
    entry: drop_specifics
  - name: outbound
    path: policies/outbound.ruta
budget: 50000
rib:
  path: rib.db
watch: true
`))
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Policies) != 2 {
		t.Fatalf("got %d policies, want 2", len(cfg.Policies))
	}
	if cfg.Policies[0].Entry != "drop_specifics" {
		t.Fatalf("entry = %q", cfg.Policies[0].Entry)
	}
	if cfg.Budget != 50000 || !cfg.Watch || cfg.Rib.Path != "rib.db" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestUnknownKeyRejected(t *testing.T) {
	_, err := Parse([]byte(`
policies:
  - name: p
    path: p.ruta
budgget: 10
`))
	if err == nil || !strings.Contains(err.Error(), "budgget") {
		t.Fatalf("want unknown-key error, got %v", err)
	}
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"no policies", `budget: 10`, "no policies"},
		{"missing name", "policies:\n  - path: p.ruta", "missing name"},
		{"missing path", "policies:\n  - name: p", "missing path"},
		{"duplicate name", "policies:\n  - name: p\n    path: a.ruta\n  - name: p\n    path: b.ruta", "duplicate"},
		{"negative budget", "policies:\n  - name: p\n    path: p.ruta\nbudget: -1", "negative"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.src))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("got %v, want error containing %q", err, tc.want)
			}
		})
	}
}
