// Package hardware probes machine characteristics and maintains the persisted
// hardware profile the agent is keyed by.
package hardware

import (
	"strings"
	"time"

	"github.com/cfab/hwagent/internal/apperr"
)

// Capability levels used for per-component recommendations.
const (
	LevelExcellent = "excellent"
	LevelGood      = "good"
	LevelMinimal   = "minimal"
	LevelLimited   = "limited"
	LevelUnknown   = "unknown"
)

// OptimizationFlags are the feature toggles derived from the probe.
type OptimizationFlags struct {
	Multithreading          bool `json:"multithreading"`
	AdvancedMultithreading  bool `json:"advanced_multithreading"`
	StandardMemoryBuffering bool `json:"standard_memory_buffering"`
	HighMemoryBuffering     bool `json:"high_memory_buffering"`
}

// Recommendations grade each component and the machine overall.
type Recommendations struct {
	CPU     string `json:"cpu"`
	RAM     string `json:"ram"`
	GPU     string `json:"gpu"`
	Overall string `json:"overall"`
}

// Profile is the persisted snapshot of the machine, keyed by a UUID that
// stays stable until the underlying hardware changes.
type Profile struct {
	UUID             string            `json:"uuid"`
	System           string            `json:"system"`
	Release          string            `json:"release"`
	Machine          string            `json:"machine"`
	Processor        string            `json:"processor"`
	CPUCountLogical  int               `json:"cpu_count_logical"`
	CPUCountPhysical int               `json:"cpu_count_physical"`
	MemoryTotal      uint64            `json:"memory_total"`
	GPU              string            `json:"gpu"`
	Timestamp        time.Time         `json:"timestamp"`
	CreatedAt        time.Time         `json:"created_at"`
	Flags            OptimizationFlags `json:"optimization_flags"`
	Recommendations  Recommendations   `json:"recommendations"`
}

// Validate checks that the profile carries the fields every consumer
// depends on.
func (p *Profile) Validate() error {
	switch {
	case p.UUID == "":
		return apperr.New(apperr.CodeHardware, "profile missing uuid")
	case p.System == "":
		return apperr.New(apperr.CodeHardware, "profile missing system")
	case p.CPUCountLogical <= 0:
		return apperr.New(apperr.CodeHardware, "profile missing logical cpu count")
	case p.MemoryTotal == 0:
		return apperr.New(apperr.CodeHardware, "profile missing memory total")
	}
	return nil
}

const (
	gib = uint64(1) << 30

	multithreadingCores    = 4
	advancedCores          = 8
	standardBufferingBytes = 8 * (1 << 30)
	highBufferingBytes     = 16 * (1 << 30)
)

// deriveFlags computes the optimization flags from core and memory counts.
func deriveFlags(physicalCores int, memoryTotal uint64) OptimizationFlags {
	return OptimizationFlags{
		Multithreading:          physicalCores >= multithreadingCores,
		AdvancedMultithreading:  physicalCores >= advancedCores,
		StandardMemoryBuffering: memoryTotal >= standardBufferingBytes,
		HighMemoryBuffering:     memoryTotal >= highBufferingBytes,
	}
}

// cpuLevel grades the CPU by physical core count.
func cpuLevel(physicalCores int) string {
	switch {
	case physicalCores >= 8:
		return LevelExcellent
	case physicalCores >= 4:
		return LevelGood
	case physicalCores >= 2:
		return LevelMinimal
	case physicalCores >= 1:
		return LevelLimited
	default:
		return LevelUnknown
	}
}

// ramLevel grades the machine by total memory.
func ramLevel(memoryTotal uint64) string {
	switch {
	case memoryTotal >= 32*gib:
		return LevelExcellent
	case memoryTotal >= 16*gib:
		return LevelGood
	case memoryTotal >= 8*gib:
		return LevelMinimal
	case memoryTotal > 0:
		return LevelLimited
	default:
		return LevelUnknown
	}
}

// gpuLevel grades the GPU from its reported name.
func gpuLevel(gpu string) string {
	name := strings.ToLower(gpu)
	if name == "" {
		return LevelUnknown
	}
	if strings.Contains(name, "nvidia") {
		for _, tier := range []string{"rtx", "titan", "a100", "v100"} {
			if strings.Contains(name, tier) {
				return LevelExcellent
			}
		}
		for _, tier := range []string{"gtx", "quadro", "tesla"} {
			if strings.Contains(name, tier) {
				return LevelGood
			}
		}
		return LevelMinimal
	}
	for _, vendor := range []string{"amd", "radeon", "intel", "iris"} {
		if strings.Contains(name, vendor) {
			return LevelLimited
		}
	}
	return LevelUnknown
}

var levelScores = map[string]float64{
	LevelExcellent: 3,
	LevelGood:      2,
	LevelMinimal:   1,
	LevelLimited:   0.5,
	LevelUnknown:   0,
}

// deriveRecommendations grades each component and combines them into an
// overall level. CPU weighs heaviest, then RAM, then GPU.
func deriveRecommendations(physicalCores int, memoryTotal uint64, gpu string) Recommendations {
	rec := Recommendations{
		CPU: cpuLevel(physicalCores),
		RAM: ramLevel(memoryTotal),
		GPU: gpuLevel(gpu),
	}

	const (
		cpuWeight = 1.5
		ramWeight = 1.2
		gpuWeight = 1.0
	)
	weighted := (levelScores[rec.CPU]*cpuWeight +
		levelScores[rec.RAM]*ramWeight +
		levelScores[rec.GPU]*gpuWeight) /
		(cpuWeight + ramWeight + gpuWeight)

	switch {
	case weighted >= 2.5:
		rec.Overall = LevelExcellent
	case weighted >= 1.5:
		rec.Overall = LevelGood
	default:
		rec.Overall = LevelMinimal
	}
	return rec
}
