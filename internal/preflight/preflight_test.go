package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"thermolog/internal/config"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	if r := CheckDirectoryAccess("Data", dir); !r.Passed {
		t.Fatalf("expected pass, got %+v", r)
	}
	missing := filepath.Join(dir, "missing")
	if r := CheckDirectoryAccess("Data", missing); r.Passed || !strings.Contains(r.Detail, "does not exist") {
		t.Fatalf("expected missing failure, got %+v", r)
	}
	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if r := CheckDirectoryAccess("Data", file); r.Passed || !strings.Contains(r.Detail, "not a directory") {
		t.Fatalf("expected not-a-directory failure, got %+v", r)
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if r := CheckFreeSpace("Disk", dir, 1); !r.Passed {
		t.Fatalf("expected pass with 1 byte floor, got %+v", r)
	}
	if r := CheckFreeSpace("Disk", dir, ^uint64(0)); r.Passed {
		t.Fatalf("expected failure with max floor, got %+v", r)
	}
}

func TestCheckRemote(t *testing.T) {
	cases := []struct {
		name   string
		remote config.Remote
		passed bool
	}{
		{"unset", config.Remote{}, false},
		{"invalid", config.Remote{Endpoint: "::nope"}, false},
		{"valid", config.Remote{Endpoint: "https://logs.example.test/api/entries", APIToken: "t"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if r := CheckRemote(tc.remote); r.Passed != tc.passed {
				t.Fatalf("CheckRemote = %+v, want passed=%v", r, tc.passed)
			}
		})
	}
}

func TestRunAllIncludesLinkCheckInLinkMode(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Connectivity.SysfsRoot = base
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), &cfg)
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
	}
	if !strings.Contains(strings.Join(names, ","), "Link state") {
		t.Fatalf("expected link check, got %v", names)
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "Remote endpoint" {
		t.Fatalf("expected only the remote check to fail, got %+v", failed)
	}

	cfg.Connectivity.Mode = config.ConnectivityAlways
	for _, r := range RunAll(context.Background(), &cfg) {
		if r.Name == "Link state" {
			t.Fatal("link check should be skipped outside link mode")
		}
	}
}
