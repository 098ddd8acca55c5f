package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := fmt.Sprintf("[paths]\ndata_dir = %q\nlog_dir = %q\n",
		filepath.Join(dir, "data"), filepath.Join(dir, "logs"))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestAddListShowRoundTrip(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCLI(t, configPath, "add", "https://example.com/article")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out, "Tracking #1") {
		t.Fatalf("add output = %q", out)
	}

	out, err = runCLI(t, configPath, "add", "https://example.com/article")
	if err != nil {
		t.Fatalf("duplicate add must not error: %v", err)
	}
	if !strings.Contains(out, "Already tracked as #1") {
		t.Fatalf("duplicate add output = %q", out)
	}

	out, err = runCLI(t, configPath, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "example.com/article") || !strings.Contains(out, "Not Started") {
		t.Fatalf("list output = %q", out)
	}

	out, err = runCLI(t, configPath, "show", "1")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "Record #1") || !strings.Contains(out, "No processing history") {
		t.Fatalf("show output = %q", out)
	}
}

func TestListStatusFilterRejectsUnknown(t *testing.T) {
	configPath := writeTestConfig(t)
	if _, err := runCLI(t, configPath, "list", "--status", "bogus"); err == nil {
		t.Fatal("unknown status must fail")
	}
}

func TestIntentCommand(t *testing.T) {
	configPath := writeTestConfig(t)
	if _, err := runCLI(t, configPath, "add", "https://example.com/a"); err != nil {
		t.Fatalf("add: %v", err)
	}

	out, err := runCLI(t, configPath, "intent", "1", "manual-only")
	if err != nil {
		t.Fatalf("intent: %v", err)
	}
	if !strings.Contains(out, "intent set to manual-only") {
		t.Fatalf("intent output = %q", out)
	}

	if _, err := runCLI(t, configPath, "intent", "1", "whenever"); err == nil {
		t.Fatal("unknown intent must fail")
	}
}

func TestStatusSummarizesCounts(t *testing.T) {
	configPath := writeTestConfig(t)
	for _, url := range []string{"https://example.com/a", "https://example.com/b"} {
		if _, err := runCLI(t, configPath, "add", url); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	out, err := runCLI(t, configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "2 total") || !strings.Contains(out, "2 pending") {
		t.Fatalf("status output = %q", out)
	}
}

func TestShowMissingRecordNamesIt(t *testing.T) {
	configPath := writeTestConfig(t)
	_, err := runCLI(t, configPath, "show", "42")
	if err == nil {
		t.Fatal("show of an untracked id must fail")
	}
	if !strings.Contains(err.Error(), "42") || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("error should name the missing record: %v", err)
	}
}

func TestRetryWithNothingFailed(t *testing.T) {
	configPath := writeTestConfig(t)
	out, err := runCLI(t, configPath, "retry")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !strings.Contains(out, "Reset 0 failed record(s)") {
		t.Fatalf("retry output = %q", out)
	}
}

func TestPurgeRequiresConfirmation(t *testing.T) {
	configPath := writeTestConfig(t)
	if _, err := runCLI(t, configPath, "purge"); err == nil {
		t.Fatal("purge without --yes must fail")
	}
}

func TestConfigInit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")

	out, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("init output = %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	if _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("second init without --overwrite must fail")
	}
	if _, err := runCLI(t, "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("init --overwrite: %v", err)
	}
}

func TestConfigShowPrintsResolvedValues(t *testing.T) {
	configPath := writeTestConfig(t)
	out, err := runCLI(t, configPath, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, configPath) || !strings.Contains(out, "base_url") {
		t.Fatalf("config show output = %q", out)
	}
}
