// Where: internal/app/app_test.go
// What: Tests for CLI run behavior.
// Why: stdout must always hold exactly one JSON result matching the exit code.
package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/privatebox/create-apikey/internal/config"
	"github.com/privatebox/create-apikey/internal/ports"
	"github.com/privatebox/create-apikey/internal/version"
)

const applianceConfig = `<?xml version="1.0"?>
<opnsense>
  <system>
    <user>
      <name>root</name>
      <uid>0</uid>
    </user>
  </system>
</opnsense>
`

type stubUser struct {
	cred ports.Credential
}

func (u stubUser) Name() string { return "root" }

func (u stubUser) AddAPIKey() (ports.Credential, error) { return u.cred, nil }

type stubStore struct {
	user    ports.User
	saveErr error
	locks   int
	unlocks int
}

func (s *stubStore) Lock() error                           { s.locks++; return nil }
func (s *stubStore) Unlock() error                         { s.unlocks++; return nil }
func (s *stubStore) UserByName(string) (ports.User, error) { return s.user, nil }
func (s *stubStore) SerializeToConfig() error              { return nil }
func (s *stubStore) Save() error                           { return s.saveErr }

func stubOpener(store ports.ConfigManager) StoreOpener {
	return func(config.Settings, *slog.Logger) (ports.ConfigManager, error) {
		return store, nil
	}
}

func writeAppliance(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.xml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func testDeps(out *bytes.Buffer) Dependencies {
	return Dependencies{
		Out:          out,
		SettingsPath: "/nonexistent/create-apikey.yaml",
	}
}

func decodeResult(t *testing.T, out string) map[string]string {
	t.Helper()
	if strings.Count(out, "\n") != 1 || !strings.HasSuffix(out, "\n") {
		t.Fatalf("expected exactly one line of output, got %q", out)
	}
	var decoded map[string]string
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("stdout is not a JSON object: %v (%q)", err, out)
	}
	return decoded
}

func TestRunScenarios(t *testing.T) {
	tests := []struct {
		name     string
		store    *stubStore
		wantOut  string
		wantCode int
	}{
		{
			name:     "happy path",
			store:    &stubStore{user: stubUser{cred: ports.Credential{Key: "abc123", Secret: "xyz789"}}},
			wantOut:  `{"result":"ok","key":"abc123","secret":"xyz789"}` + "\n",
			wantCode: 0,
		},
		{
			name:     "missing user",
			store:    &stubStore{},
			wantOut:  `{"result":"failed","error":"Root user not found"}` + "\n",
			wantCode: 1,
		},
		{
			name:     "generation failure",
			store:    &stubStore{user: stubUser{}},
			wantOut:  `{"result":"failed","error":"Failed to generate API key"}` + "\n",
			wantCode: 1,
		},
		{
			name: "save throws",
			store: &stubStore{
				user:    stubUser{cred: ports.Credential{Key: "abc123", Secret: "xyz789"}},
				saveErr: errors.New("disk full"),
			},
			wantOut:  `{"result":"failed","error":"disk full"}` + "\n",
			wantCode: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			deps := testDeps(&out)
			deps.OpenStore = stubOpener(tt.store)

			exitCode := Run(nil, deps)
			if exitCode != tt.wantCode {
				t.Fatalf("expected exit code %d, got %d", tt.wantCode, exitCode)
			}
			if out.String() != tt.wantOut {
				t.Fatalf("expected %q, got %q", tt.wantOut, out.String())
			}
			if tt.store.locks != 1 || tt.store.unlocks != 1 {
				t.Fatalf("expected one lock and one unlock, got %d/%d", tt.store.locks, tt.store.unlocks)
			}
		})
	}
}

func TestRunAgainstApplianceConfig(t *testing.T) {
	path := writeAppliance(t, applianceConfig)
	var out bytes.Buffer

	exitCode := Run([]string{"--config", path}, testDeps(&out))
	if exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d (%s)", exitCode, out.String())
	}
	result := decodeResult(t, out.String())
	if result["result"] != "ok" || result["key"] == "" || result["secret"] == "" {
		t.Fatalf("unexpected result: %v", result)
	}
	if _, ok := result["error"]; ok {
		t.Fatalf("ok result must not carry error: %v", result)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(data), "<key>"+result["key"]+"</key>") {
		t.Fatalf("key not persisted:\n%s", data)
	}
	if strings.Contains(string(data), result["secret"]) {
		t.Fatalf("plaintext secret persisted")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(path), "backup")); err != nil {
		t.Fatalf("expected backup dir next to config: %v", err)
	}
}

func TestRunTwiceAddsTwoKeys(t *testing.T) {
	path := writeAppliance(t, applianceConfig)
	var keys []string
	for i := 0; i < 2; i++ {
		var out bytes.Buffer
		if code := Run([]string{"--config", path}, testDeps(&out)); code != 0 {
			t.Fatalf("run %d: exit %d (%s)", i, code, out.String())
		}
		keys = append(keys, decodeResult(t, out.String())["key"])
	}
	if keys[0] == keys[1] {
		t.Fatalf("expected distinct keys, got %v", keys)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if got := strings.Count(string(data), "<item>"); got != 2 {
		t.Fatalf("expected 2 stored keys, got %d", got)
	}
}

func TestRunMissingRootInApplianceConfig(t *testing.T) {
	content := "<opnsense><system><user><name>admin</name></user></system></opnsense>"
	path := writeAppliance(t, content)
	var out bytes.Buffer

	exitCode := Run([]string{"--config", path}, testDeps(&out))
	if exitCode != 1 {
		t.Fatalf("expected exit code 1, got %d", exitCode)
	}
	want := `{"result":"failed","error":"Root user not found"}` + "\n"
	if out.String() != want {
		t.Fatalf("expected %q, got %q", want, out.String())
	}
}

func TestRunFailuresAreJSON(t *testing.T) {
	dir := t.TempDir()
	badSettings := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(badSettings, []byte("backup_count: -3\n"), 0o600); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown flag", args: []string{"--bogus"}},
		{name: "unexpected argument", args: []string{"extra"}},
		{name: "missing config", args: []string{"--config", filepath.Join(dir, "absent.xml")}},
		{name: "missing explicit settings", args: []string{"--settings", filepath.Join(dir, "absent.yaml")}},
		{name: "invalid settings", args: []string{"--settings", badSettings}},
		{name: "bad log level", args: []string{"--log-level", "loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			exitCode := Run(tt.args, testDeps(&out))
			if exitCode != 1 {
				t.Fatalf("expected exit code 1, got %d", exitCode)
			}
			result := decodeResult(t, out.String())
			if result["result"] != "failed" || result["error"] == "" {
				t.Fatalf("unexpected result: %v", result)
			}
			if _, ok := result["key"]; ok {
				t.Fatalf("failed result must not carry key: %v", result)
			}
			if _, ok := result["secret"]; ok {
				t.Fatalf("failed result must not carry secret: %v", result)
			}
		})
	}
}

func TestRunUsesSettingsFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "conf", "config.xml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(configPath, []byte(applianceConfig), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	settingsPath := filepath.Join(dir, "create-apikey.yaml")
	settings := "config_path: conf/config.xml\nbackup_dir: history\nbackup_count: 1\nlog_file: logs/run.log\nlog_level: debug\n"
	if err := os.WriteFile(settingsPath, []byte(settings), 0o600); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	var out bytes.Buffer
	deps := testDeps(&out)
	deps.SettingsPath = settingsPath
	if code := Run(nil, deps); code != 0 {
		t.Fatalf("expected exit code 0, got %d (%s)", code, out.String())
	}
	if decodeResult(t, out.String())["result"] != "ok" {
		t.Fatalf("unexpected output %q", out.String())
	}

	entries, err := os.ReadDir(filepath.Join(dir, "history"))
	if err != nil {
		t.Fatalf("read backup dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 backup, got %d", len(entries))
	}
	logData, err := os.ReadFile(filepath.Join(dir, "logs", "run.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	for _, msg := range []string{"configuration locked", "api key generated", "configuration saved"} {
		if !strings.Contains(string(logData), msg) {
			t.Fatalf("log missing %q:\n%s", msg, logData)
		}
	}
}

func TestRunFlagsOverrideSettings(t *testing.T) {
	dir := t.TempDir()
	settingsPath := filepath.Join(dir, "create-apikey.yaml")
	if err := os.WriteFile(settingsPath, []byte("config_path: /nonexistent/config.xml\n"), 0o600); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	configPath := writeAppliance(t, applianceConfig)

	var out bytes.Buffer
	code := Run([]string{"--settings", settingsPath, "--config", configPath}, testDeps(&out))
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d (%s)", code, out.String())
	}
}

func TestRunVersion(t *testing.T) {
	var out bytes.Buffer
	deps := testDeps(&out)
	deps.OpenStore = func(config.Settings, *slog.Logger) (ports.ConfigManager, error) {
		t.Fatalf("store must not be opened for --version")
		return nil, nil
	}

	if code := Run([]string{"--version"}, deps); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if strings.TrimSpace(out.String()) != version.String() {
		t.Fatalf("unexpected version output %q", out.String())
	}
}
