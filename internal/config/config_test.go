package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/edgelink/internal/protocol/frame"
	"github.com/danmuck/edgelink/internal/testutil/testlog"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "edgelink.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestTemplateLoadsToDefaults(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "edgelink.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	def := Default()
	if cfg.SystemID != def.SystemID || cfg.SequenceScope != def.SequenceScope || cfg.Link != def.Link {
		t.Fatalf("template diverges from defaults: %+v", cfg)
	}
}

func TestLoadOverridesOnlyDefinedKeys(t *testing.T) {
	testlog.Start(t)
	path := writeFile(t, `
system_id = 200
sequence_scope = "component"
start_resync = true

[link]
read_timeout = "30s"

[link.backoff]
jitter = false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SystemID != 200 || cfg.ComponentID != 1 {
		t.Fatalf("ids=%d/%d", cfg.SystemID, cfg.ComponentID)
	}
	if cfg.SequenceScope != frame.ScopeComponent || !cfg.StartResync {
		t.Fatalf("scope=%s resync=%v", cfg.SequenceScope, cfg.StartResync)
	}
	if cfg.Link.ReadTimeout != 30*time.Second || cfg.Link.Backoff.Jitter {
		t.Fatalf("link=%+v", cfg.Link)
	}
	if cfg.Link.WriteTimeout != Default().Link.WriteTimeout {
		t.Fatalf("undefined key changed: %v", cfg.Link.WriteTimeout)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"id range":     "system_id = 256\n",
		"scope":        "sequence_scope = \"per-link\"\n",
		"duration":     "[link]\nwrite_timeout = \"soon\"\n",
		"unknown key":  "sytem_id = 1\n",
		"buffer":       "[link]\nread_buffer_size = 0\n",
		"log level":    "log_level = \"loud\"\n",
		"no endpoints": "listen_addr = \"\"\ndial_addr = \"\"\n",
		"malformed":    "system_id = \n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeFile(t, body)); err == nil {
				t.Fatalf("expected error for %q", body)
			}
		})
	}
}

func TestRenderRoundTrips(t *testing.T) {
	testlog.Start(t)
	cfg := Default()
	cfg.SystemID = 9
	cfg.SequenceScope = frame.ScopeComponent
	cfg.Link.ReadTimeout = 3 * time.Second

	data, err := Render(cfg)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(string(data), "sequence_scope") || !strings.Contains(string(data), "component") {
		t.Fatalf("unexpected render:\n%s", data)
	}
	got, err := Load(writeFile(t, string(data)))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.SystemID != 9 || got.SequenceScope != frame.ScopeComponent || got.Link != cfg.Link {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}
