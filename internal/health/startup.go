// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"
	"strings"

	"github.com/ytgate/ytgate/internal/log"
)

// alwaysCritical checks abort startup even in degraded mode.
var alwaysCritical = map[string]struct{}{
	"ytdlp":      {},
	"output_dir": {},
}

// StartupValidator runs the readiness checks once at boot with strict
// semantics: failures abort startup unless degraded mode downgrades them to
// warnings. The pass seeds the first readiness snapshot.
type StartupValidator struct {
	Manager      *Manager
	DegradedMode bool

	// OnDegrade is invoked for each check that failed but was tolerated;
	// callers disable the affected binding.
	OnDegrade func(name string, result CheckResult)
}

// Validate runs all checks and returns an error naming every fatal failure.
func (v *StartupValidator) Validate(ctx context.Context) error {
	logger := log.WithComponent("startup")
	resp := v.Manager.Readiness(ctx)

	var fatal []string
	for name, result := range resp.Checks {
		switch result.Status {
		case StatusHealthy:
			logger.Info().
				Str("event", "startup.check_ok").
				Str("check", name).
				Str("detail", result.Message).
				Msg("startup check passed")
		case StatusDegraded:
			logger.Warn().
				Str("event", "startup.check_degraded").
				Str("check", name).
				Str("detail", result.Message+result.Error).
				Msg("startup check degraded")
		case StatusUnhealthy:
			_, critical := alwaysCritical[name]
			if critical || !v.DegradedMode {
				fatal = append(fatal, fmt.Sprintf("%s: %s", name, result.Error))
				logger.Error().
					Str("event", "startup.check_failed").
					Str("check", name).
					Str("detail", result.Error).
					Msg("startup check failed")
				continue
			}
			logger.Warn().
				Str("event", "startup.check_downgraded").
				Str("check", name).
				Str("detail", result.Error).
				Msg("startup check failed; continuing degraded")
			if v.OnDegrade != nil {
				v.OnDegrade(name, result)
			}
		}
	}

	if len(fatal) > 0 {
		return fmt.Errorf("startup validation failed: %s", strings.Join(fatal, "; "))
	}
	return nil
}
