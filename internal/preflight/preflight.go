package preflight

import (
	"context"

	"thermolog/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes every preflight check that applies to cfg.
func RunAll(_ context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckFreeSpace("Queue disk space", cfg.Paths.DataDir, MinFreeBytes),
		CheckRemote(cfg.Remote),
	}
	if cfg.Connectivity.Mode == config.ConnectivityLink {
		results = append(results, CheckLinkState(cfg.Connectivity.SysfsRoot))
	}
	return results
}

// Failed returns the subset of results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
