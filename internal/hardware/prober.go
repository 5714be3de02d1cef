package hardware

import (
	"context"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/cfab/hwagent/internal/apperr"
)

// Prober detects current machine characteristics. The system implementation
// talks to the OS; tests inject fakes.
type Prober interface {
	Probe(ctx context.Context) (*Profile, error)
}

// SystemProbe probes the live machine through gopsutil and external commands.
type SystemProbe struct {
	run    CommandRunner
	logger *slog.Logger
}

// NewSystemProbe creates a prober with the given command runner.
func NewSystemProbe(run CommandRunner, logger *slog.Logger) *SystemProbe {
	if logger == nil {
		logger = slog.Default()
	}
	return &SystemProbe{run: run, logger: logger.With(slog.String("component", "hardware_probe"))}
}

// Probe collects OS, CPU, memory and GPU facts and derives the optimization
// flags and recommendations. CPU and memory failures are fatal; GPU detection
// is best effort.
func (p *SystemProbe) Probe(ctx context.Context) (*Profile, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeHardware, "failed to read host info")
	}

	logical, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeHardware, "failed to count logical cpus")
	}
	physical, err := cpu.CountsWithContext(ctx, false)
	if err != nil || physical <= 0 {
		// Some platforms cannot report physical cores; fall back to logical.
		physical = logical
	}

	processor := ""
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		processor = infos[0].ModelName
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeHardware, "failed to read memory stats")
	}

	gpu := detectGPU(ctx, p.run)
	if gpu == "" {
		p.logger.Debug("no gpu detected")
	}

	now := time.Now().UTC()
	profile := &Profile{
		UUID:             StableUUID(ctx, p.run),
		System:           info.OS,
		Release:          info.PlatformVersion,
		Machine:          info.KernelArch,
		Processor:        processor,
		CPUCountLogical:  logical,
		CPUCountPhysical: physical,
		MemoryTotal:      vm.Total,
		GPU:              gpu,
		Timestamp:        now,
		CreatedAt:        now,
		Flags:            deriveFlags(physical, vm.Total),
		Recommendations:  deriveRecommendations(physical, vm.Total, gpu),
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return profile, nil
}
