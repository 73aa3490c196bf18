// Package resourceguard implements CPU-based admission control for
// WebSocket upgrades: an instance rejects new connections once its
// CPU usage crosses a configured threshold, relative to its cgroup
// allocation when running in a container and host CPU otherwise.
//
// Measurement failures fail open — a guard that cannot read CPU usage
// accepts connections rather than blocking the instance entirely.
package resourceguard

import (
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
)

// Guard decides whether a new WebSocket connection should be admitted.
type Guard struct {
	rejectThreshold float64
	logger          zerolog.Logger
	cgroup          *cgroupCPU
}

// New builds a Guard that rejects new connections once CPU usage
// exceeds rejectThreshold percent of this instance's allocation. It
// tries cgroup v2 accounting first and silently falls back to
// host-wide CPU sampling (via gopsutil) when that's unavailable —
// e.g. running outside a container.
func New(rejectThreshold float64, logger zerolog.Logger) *Guard {
	g := &Guard{rejectThreshold: rejectThreshold, logger: logger}

	cg, err := newCgroupCPU()
	if err != nil {
		logger.Info().Err(err).Msg("cgroup v2 CPU accounting unavailable, falling back to host CPU sampling")
		return g
	}
	g.cgroup = cg
	return g
}

// ShouldAccept reports whether a new connection may be admitted, and a
// human-readable reason when it may not. A failure to measure CPU
// usage is treated as "accept" — admission control must never be the
// reason the whole instance wedges.
func (g *Guard) ShouldAccept() (accept bool, reason string) {
	percent, err := g.currentCPUPercent()
	if err != nil {
		g.logger.Warn().Err(err).Msg("CPU measurement failed, admitting connection (fail-open)")
		return true, ""
	}

	if percent >= g.rejectThreshold {
		return false, "cpu usage above reject threshold"
	}
	return true, ""
}

func (g *Guard) currentCPUPercent() (float64, error) {
	if g.cgroup != nil {
		return g.cgroup.percent()
	}

	percents, err := cpu.Percent(0, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, nil
	}
	return percents[0], nil
}
