// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ytgate/ytgate/internal/cookies"
	"github.com/ytgate/ytgate/internal/fsutil"
)

// runCommand is replaceable in tests.
var runCommand = func(ctx context.Context, bin string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, bin, args...).Output()
	return string(out), err
}

// BinaryChecker verifies a dependency binary responds to its version flag.
type BinaryChecker struct {
	Component string
	Bin       string
	Args      []string
}

func (c BinaryChecker) Name() string { return c.Component }

func (c BinaryChecker) Check(ctx context.Context) CheckResult {
	out, err := runCommand(ctx, c.Bin, c.Args...)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: fmt.Sprintf("%s not available: %v", c.Bin, err)}
	}
	version := strings.TrimSpace(out)
	if i := strings.IndexByte(version, '\n'); i >= 0 {
		version = version[:i]
	}
	return CheckResult{Status: StatusHealthy, Message: version}
}

// minNodeMajor is the lowest runtime major the extractor's JS challenges
// are known to work with.
const minNodeMajor = 20

// NodeChecker verifies the scripting runtime version.
type NodeChecker struct {
	Bin string
}

func (c NodeChecker) Name() string { return "nodejs" }

func (c NodeChecker) Check(ctx context.Context) CheckResult {
	bin := c.Bin
	if bin == "" {
		bin = "node"
	}
	out, err := runCommand(ctx, bin, "--version")
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: fmt.Sprintf("node not available: %v", err)}
	}
	version := strings.TrimSpace(out)
	major, err := parseNodeMajor(version)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	if major < minNodeMajor {
		return CheckResult{
			Status: StatusUnhealthy,
			Error:  fmt.Sprintf("node %s is too old; need major >= %d", version, minNodeMajor),
		}
	}
	return CheckResult{Status: StatusHealthy, Message: version}
}

func parseNodeMajor(version string) (int, error) {
	v := strings.TrimPrefix(version, "v")
	parts := strings.SplitN(v, ".", 2)
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("unparseable node version %q", version)
	}
	return major, nil
}

// CookieChecker reports each provider jar's state from the store.
type CookieChecker struct {
	Store    *cookies.Store
	Provider string
}

func (c CookieChecker) Name() string { return "cookies_" + c.Provider }

func (c CookieChecker) Check(_ context.Context) CheckResult {
	for _, st := range c.Store.StatusAll() {
		if st.Provider != c.Provider {
			continue
		}
		switch {
		case !st.Exists:
			return CheckResult{Status: StatusUnhealthy, Error: "cookie file missing"}
		case st.State == cookies.StateInvalid:
			return CheckResult{Status: StatusUnhealthy, Error: "cookie failed validation"}
		case st.Warning != "":
			return CheckResult{Status: StatusDegraded, Message: st.Warning}
		default:
			return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("state=%s age=%.1fh", st.State, st.AgeHours)}
		}
	}
	return CheckResult{Status: StatusUnhealthy, Error: "no cookie registered"}
}

// DiskChecker degrades when the output filesystem crosses the cleanup
// threshold and fails when it cannot be statted.
type DiskChecker struct {
	Dir              string
	ThresholdPercent float64

	// replaceable in tests
	Usage func(string) (fsutil.DiskUsage, error)
}

func (c DiskChecker) Name() string { return "disk" }

func (c DiskChecker) Check(_ context.Context) CheckResult {
	usage := c.Usage
	if usage == nil {
		usage = fsutil.Usage
	}
	du, err := usage(c.Dir)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: fmt.Sprintf("statfs failed: %v", err)}
	}
	msg := fmt.Sprintf("%.1f%% used, %d bytes free", du.PercentUsed, du.AvailableBytes)
	if du.PercentUsed >= c.ThresholdPercent {
		return CheckResult{Status: StatusDegraded, Message: msg}
	}
	return CheckResult{Status: StatusHealthy, Message: msg}
}

// WritableDirChecker verifies the output directory accepts writes.
type WritableDirChecker struct {
	Dir string
}

func (c WritableDirChecker) Name() string { return "output_dir" }

func (c WritableDirChecker) Check(_ context.Context) CheckResult {
	info, err := os.Stat(c.Dir)
	if err != nil || !info.IsDir() {
		return CheckResult{Status: StatusUnhealthy, Error: fmt.Sprintf("output dir unavailable: %v", err)}
	}
	probe := filepath.Join(c.Dir, ".write-probe")
	if err := os.WriteFile(probe, nil, 0o600); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: fmt.Sprintf("output dir not writable: %v", err)}
	}
	_ = os.Remove(probe)
	return CheckResult{Status: StatusHealthy, Message: c.Dir}
}

// connectivityCacheTTL keeps upstream probes rare.
const connectivityCacheTTL = 5 * time.Minute

// ConnectivityChecker probes upstream reachability through the primary
// provider. Failures degrade rather than fail readiness; results are
// cached so the probe does not run on every scrape.
type ConnectivityChecker struct {
	Probe func(ctx context.Context) error

	mu      sync.Mutex
	last    CheckResult
	checked time.Time
}

func (c *ConnectivityChecker) Name() string { return "connectivity" }

func (c *ConnectivityChecker) Check(ctx context.Context) CheckResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.checked.IsZero() && time.Since(c.checked) < connectivityCacheTTL {
		return c.last
	}

	result := CheckResult{Status: StatusHealthy, Message: "upstream reachable"}
	if err := c.Probe(ctx); err != nil {
		result = CheckResult{Status: StatusDegraded, Error: fmt.Sprintf("upstream probe failed: %v", err)}
	}
	c.last = result
	c.checked = time.Now()
	return result
}
