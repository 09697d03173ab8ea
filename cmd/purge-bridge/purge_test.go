package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cdnRecorder struct {
	mu    sync.Mutex
	zones []string
	fail  bool
}

func (c *cdnRecorder) handler(w http.ResponseWriter, r *http.Request) {
	// /client/v4/zones/{zone}/purge_cache
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	c.mu.Lock()
	c.zones = append(c.zones, parts[len(parts)-2])
	fail := c.fail
	c.mu.Unlock()

	_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": !fail, "errors": []interface{}{}})
}

func writePurgeConfig(t *testing.T, apiBase string, enabled bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "purge-bridge.yaml")
	cfg := fmt.Sprintf(`bridge_id: cli-test
purge:
  enabled: %t
  api_token: token
  zone_id: zone-default
  zones:
    a.com: Z1
    b.com: Z2
  api_base_url: %s
logging:
  level: error
`, enabled, apiBase)
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestPurgeCommand(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantZones []string
		wantOut   string
	}{
		{"everything across zones", nil, []string{"Z1", "Z2"}, "across 2 zone(s)"},
		{"url", []string{"--url", "https://b.com/page"}, []string{"Z2"}, "Purging cache for URL(s)"},
		{"zone", []string{"--zone", "Z7"}, []string{"Z7"}, "zone: Z7"},
		{"domain", []string{"--domain", "a.com"}, []string{"Z1"}, "zone: Z1"},
		{"url beats zone and domain", []string{"--url", "https://a.com/x", "--zone", "Z7", "--domain", "b.com"}, []string{"Z1"}, "URL(s)"},
		{"zone beats domain", []string{"--zone", "Z7", "--domain", "b.com"}, []string{"Z7"}, "zone: Z7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cdn := &cdnRecorder{}
			srv := httptest.NewServer(http.HandlerFunc(cdn.handler))
			defer srv.Close()

			configPath := writePurgeConfig(t, srv.URL+"/client/v4", true)
			args := append([]string{"purge", "-c", configPath}, tt.args...)

			out, _, err := runCLI(t, args...)
			require.NoError(t, err)
			assert.Contains(t, out, tt.wantOut)
			assert.Contains(t, out, "Cache purged successfully!")
			assert.ElementsMatch(t, tt.wantZones, cdn.zones)
		})
	}
}

func TestPurgeCommand_Failures(t *testing.T) {
	cdn := &cdnRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(cdn.handler))
	defer srv.Close()

	t.Run("disabled", func(t *testing.T) {
		configPath := writePurgeConfig(t, srv.URL+"/client/v4", false)
		_, errOut, err := runCLI(t, "purge", "-c", configPath)
		assert.ErrorIs(t, err, errPurgeCommand)
		assert.Contains(t, errOut, "disabled in configuration")
	})

	t.Run("unknown domain", func(t *testing.T) {
		configPath := writePurgeConfig(t, srv.URL+"/client/v4", true)
		_, errOut, err := runCLI(t, "purge", "-c", configPath, "--domain", "missing.com")
		assert.ErrorIs(t, err, errPurgeCommand)
		assert.Contains(t, errOut, "No zone configured for domain: missing.com")
	})

	t.Run("cdn rejects", func(t *testing.T) {
		cdn.fail = true
		configPath := writePurgeConfig(t, srv.URL+"/client/v4", true)
		_, errOut, err := runCLI(t, "purge", "-c", configPath, "--zone", "Z1")
		assert.ErrorIs(t, err, errPurgeCommand)
		assert.Contains(t, errOut, "Failed to purge cache")
	})

	t.Run("missing config", func(t *testing.T) {
		_, errOut, err := runCLI(t, "purge", "-c", filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, errPurgeCommand)
		assert.Contains(t, errOut, "Failed to load configuration")
	})
}
