package logger

import (
	"fmt"
	"os"
	"path/filepath"
)

// ensureLogsAreWritable verifies the directory for logFile exists and accepts new files. Being
// able to open logFile alone is not enough because lumberjack creates rotated siblings.
func ensureLogsAreWritable(logFile string) error {
	if logFile == "" {
		return fmt.Errorf("log.type is %s but no log.file was provided", LogFile)
	}
	dir := filepath.Dir(logFile)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("unable to access log directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("log directory %s is not a directory", dir)
	}
	probe, err := os.CreateTemp(dir, ".fsstrata-log-probe-*")
	if err != nil {
		return fmt.Errorf("log directory %s is not writable: %w", dir, err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}
