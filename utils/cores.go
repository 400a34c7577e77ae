package utils

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// ResolveCores reads the core-count preference. A missing, unreadable or out
// of range value is replaced by the hardware core count, which is written back.
func ResolveCores(path string) (int, error) {
	maxCores := runtime.NumCPU()

	data, err := os.ReadFile(path)
	if err == nil {
		lines := strings.SplitN(string(data), "\n", 2)
		if cores, err := strconv.Atoi(strings.TrimSpace(lines[0])); err == nil && cores > 0 && cores <= maxCores {
			return cores, nil
		}
	}

	if err := SetCores(path, maxCores); err != nil {
		return maxCores, err
	}
	return maxCores, nil
}

// SetCores persists the core-count preference.
func SetCores(path string, cores int) error {
	if cores <= 0 || cores > runtime.NumCPU() {
		return fmt.Errorf("core count %d outside 1..%d", cores, runtime.NumCPU())
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(cores)), 0644); err != nil {
		return fmt.Errorf("failed to write core count %s: %w", path, err)
	}
	return nil
}
