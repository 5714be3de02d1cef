package hardware

import (
	"context"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	machineUUIDOnce sync.Once
	machineUUID     string
)

// StableUUID derives a UUID from machine identity so the same hardware always
// produces the same value. Computed once per process.
func StableUUID(ctx context.Context, run CommandRunner) string {
	machineUUIDOnce.Do(func() {
		machineUUID = uuid.NewSHA1(uuid.NameSpaceDNS, []byte(machineIdentity(ctx, run))).String()
	})
	return machineUUID
}

// machineIdentity collects the most stable identifier the platform offers,
// falling back to hostname plus architecture when nothing better exists.
func machineIdentity(ctx context.Context, run CommandRunner) string {
	switch runtime.GOOS {
	case "linux":
		if data, err := os.ReadFile("/etc/machine-id"); err == nil {
			if id := strings.TrimSpace(string(data)); id != "" {
				return id
			}
		}
	case "darwin":
		if out, err := run.Run(ctx, "ioreg", "-rd1", "-c", "IOPlatformExpertDevice"); err == nil {
			for _, line := range strings.Split(out, "\n") {
				if !strings.Contains(line, "IOPlatformUUID") {
					continue
				}
				if _, value, found := strings.Cut(line, "= "); found {
					return strings.Trim(strings.TrimSpace(value), `"`)
				}
			}
		}
	case "windows":
		if out, err := run.Run(ctx, "wmic", "baseboard", "get", "serialnumber"); err == nil {
			for _, line := range strings.Split(out, "\n") {
				line = strings.TrimSpace(line)
				if line == "" || strings.EqualFold(line, "SerialNumber") {
					continue
				}
				return line
			}
		}
	}

	hostname, _ := os.Hostname()
	return hostname + "|" + runtime.GOARCH + "|" + runtime.GOOS
}
