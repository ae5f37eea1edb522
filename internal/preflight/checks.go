package preflight

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"thermolog/internal/config"
)

// MinFreeBytes is the free-space floor below which enqueues are at risk.
const MinFreeBytes = 64 << 20

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies the filesystem holding path has at least minBytes available.
func CheckFreeSpace(name, path string, minBytes uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	detail := fmt.Sprintf("%s free", humanize.IBytes(free))
	if free < minBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s (below %s)", detail, humanize.IBytes(minBytes))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckRemote validates the remote endpoint settings without contacting it.
func CheckRemote(cfg config.Remote) Result {
	const name = "Remote endpoint"
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return Result{Name: name, Detail: "not configured (entries queue locally only)"}
	}
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Host == "" {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: invalid url)", endpoint)}
	}
	detail := parsed.Redacted()
	if strings.TrimSpace(cfg.APIToken) == "" {
		detail += " (no api token)"
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckLinkState verifies the sysfs network directory used for link monitoring is readable.
func CheckLinkState(root string) Result {
	const name = "Link state"
	entries, err := os.ReadDir(root)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", root, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d interfaces)", root, len(entries))}
}
