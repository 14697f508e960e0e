package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nugget/lifeops/internal/action"
	"github.com/nugget/lifeops/internal/compose"
	"github.com/nugget/lifeops/internal/executor"
)

const validConfig = `
mcp:
  url: ${LIFEOPS_TEST_MCP_URL}
  bearer: ${LIFEOPS_TEST_BEARER}
notion:
  life_domains: db-domains
  projects: db-projects
  tasks: db-tasks
  content: db-content
  journal: db-journal
calendar:
  timezone: America/Chicago
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// unsetAfter removes variables a .env file may have set.
func unsetAfter(t *testing.T, keys ...string) {
	t.Helper()
	t.Cleanup(func() {
		for _, k := range keys {
			os.Unsetenv(k)
		}
	})
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), strings.NewReader(""), &stdout, &stderr, args)
	return stdout.String(), err
}

func TestRun_Usage(t *testing.T) {
	for _, args := range [][]string{nil, {"-h"}, {"--help"}} {
		out, err := runCmd(t, args...)
		if err != nil {
			t.Fatalf("run %v: %v", args, err)
		}
		if !strings.Contains(out, "Usage: lifeops") {
			t.Errorf("run %v output = %q", args, out)
		}
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown command", []string{"launch"}, "unknown command"},
		{"unknown flag", []string{"-verbose", "version"}, "unknown flag"},
		{"bad output format", []string{"-o", "yaml", "version"}, "unknown output format"},
		{"exec without argument", []string{"exec"}, "usage: lifeops exec"},
		{"ask without message", []string{"ask"}, "usage: lifeops ask"},
		{"missing config", []string{"-config", "/nonexistent/config.yaml", "tools"}, "config file not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCmd(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestRun_VersionJSON(t *testing.T) {
	out, err := runCmd(t, "-o", "json", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var info map[string]string
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if info["version"] == "" || info["go_version"] == "" {
		t.Errorf("info = %v", info)
	}
}

func TestRun_ExecRequiresToolEndpoint(t *testing.T) {
	t.Setenv("LIFEOPS_TEST_MCP_URL", "")
	path := writeConfig(t, validConfig)

	_, err := runCmd(t, "-config", path, "exec", `{"action":"createProject","params":{"name":"Garden"}}`)
	if !errors.Is(err, errMCPNotConfigured) {
		t.Errorf("err = %v, want errMCPNotConfigured", err)
	}
}

func TestLoadConfig_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "log_format: xml\n")
	_, _, err := loadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Fatalf("err = %v, want invalid config", err)
	}
	if !strings.Contains(err.Error(), "notion.projects") {
		t.Errorf("err = %v, want missing database ids listed", err)
	}
}

func TestLoadConfig_DotEnvBesideConfig(t *testing.T) {
	unsetAfter(t, "LIFEOPS_TEST_BEARER", "LIFEOPS_TEST_MCP_URL")
	os.Unsetenv("LIFEOPS_TEST_BEARER")
	os.Unsetenv("LIFEOPS_TEST_MCP_URL")
	t.Chdir(t.TempDir())

	path := writeConfig(t, validConfig)
	env := "LIFEOPS_TEST_MCP_URL=https://tools.example/mcp\nLIFEOPS_TEST_BEARER=secret-token\n"
	if err := os.WriteFile(filepath.Join(filepath.Dir(path), ".env"), []byte(env), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, _, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.MCP.URL != "https://tools.example/mcp" || cfg.MCP.Bearer != "secret-token" {
		t.Errorf("mcp = %+v", cfg.MCP)
	}
}

func TestLoadConfig_EnvironmentWinsOverDotEnv(t *testing.T) {
	t.Setenv("LIFEOPS_TEST_BEARER", "from-env")
	unsetAfter(t, "LIFEOPS_TEST_MCP_URL")
	t.Chdir(t.TempDir())

	path := writeConfig(t, validConfig)
	if err := os.WriteFile(filepath.Join(filepath.Dir(path), ".env"), []byte("LIFEOPS_TEST_BEARER=from-file\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, _, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.MCP.Bearer != "from-env" {
		t.Errorf("bearer = %q, want from-env", cfg.MCP.Bearer)
	}
}

type fakeRunner struct {
	calls  []action.Action
	result executor.Result
}

func (f *fakeRunner) Execute(_ context.Context, act action.Action) executor.Result {
	f.calls = append(f.calls, act)
	return f.result
}

func TestExecuteRaw(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		result    executor.Result
		wantCalls int
		check     func(t *testing.T, resp compose.Response)
	}{
		{
			name:      "success",
			raw:       `{"action":"create_project","params":{"name":"Garden"}}`,
			result:    &executor.Success{Kind: action.CreateProject, RecordID: "proj-1"},
			wantCalls: 1,
			check: func(t *testing.T, resp compose.Response) {
				if !resp.Success || resp.RecordID != "proj-1" {
					t.Errorf("resp = %+v", resp)
				}
			},
		},
		{
			name: "parse failure",
			raw:  `make me a project`,
			check: func(t *testing.T, resp compose.Response) {
				if resp.ErrorType != "parse_error" || resp.Stage != "parse" {
					t.Errorf("resp = %+v", resp)
				}
			},
		},
		{
			name: "sentinel",
			raw:  `{"action":"logNote","params":{"title":"Standup","type":"MISSING_INFO"}}`,
			check: func(t *testing.T, resp compose.Response) {
				if !resp.NeedsInput() || resp.MissingFields[0] != "type" {
					t.Errorf("resp = %+v", resp)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{result: tt.result}
			resp := executeRaw(context.Background(), r, []byte(tt.raw))
			if len(r.calls) != tt.wantCalls {
				t.Errorf("calls = %d, want %d", len(r.calls), tt.wantCalls)
			}
			tt.check(t, resp)
		})
	}
}

func TestActionCommand(t *testing.T) {
	r := &fakeRunner{result: &executor.Success{Kind: action.CreateProject, RecordID: "proj-1"}}
	handler := actionCommand(r, slog.New(slog.NewTextHandler(io.Discard, nil)))

	out := handler(context.Background(), []byte(`{"action":"createProject","params":{"name":"Garden"}}`))

	var resp map[string]any
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if resp["success"] != true || resp["action"] != "createProject" {
		t.Errorf("reply = %v", resp)
	}
}

func TestMQTTStats_ToolStatus(t *testing.T) {
	s := &mqttStats{model: "qwen3:4b"}
	if got := s.ToolStatus(); got != "not_configured" {
		t.Errorf("ToolStatus = %q, want not_configured", got)
	}
	if s.DefaultModel() != "qwen3:4b" || s.Version() == "" {
		t.Errorf("stats = %q %q", s.DefaultModel(), s.Version())
	}
}
