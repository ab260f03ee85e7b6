// SPDX-License-Identifier: MIT

package cookies

import (
	"context"
	"time"

	"github.com/ytgate/ytgate/internal/extractor"
)

// stableProbeURL is a long-lived public video; fetching its metadata with a
// jar proves the credential is accepted upstream.
const stableProbeURL = "https://www.youtube.com/watch?v=jNQXAC9IVRw"

const defaultProbeTimeout = 30 * time.Second

// RunnerProber validates a jar by running a metadata-only extraction
// against a stable known video.
type RunnerProber struct {
	Runner   extractor.Runner
	ProbeURL string
	Timeout  time.Duration
}

// NewRunnerProber wires a prober over the given extractor runner.
func NewRunnerProber(runner extractor.Runner) *RunnerProber {
	return &RunnerProber{
		Runner:   runner,
		ProbeURL: stableProbeURL,
		Timeout:  defaultProbeTimeout,
	}
}

func (p *RunnerProber) Probe(ctx context.Context, cookiePath string) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := p.Runner.Run(ctx, extractor.Request{
		Op:         extractor.OpInfo,
		URL:        p.ProbeURL,
		CookiePath: cookiePath,
	})
	return err
}
