package logger

import (
	"log/syslog"
	"strings"
)

// SyslogWriteSyncer implements zapcore.WriteSyncer on top of log/syslog.
type SyslogWriteSyncer struct {
	writer *syslog.Writer
}

// NewSyslogWriteSyncer connects to the local syslog daemon. The priority is only used for
// entries whose zap level cannot be recovered from the encoded message.
func NewSyslogWriteSyncer(priority syslog.Priority, tag string) (*SyslogWriteSyncer, error) {
	writer, err := syslog.New(priority, tag)
	if err != nil {
		return nil, err
	}
	return &SyslogWriteSyncer{
		writer: writer,
	}, nil
}

// Write expects console encoded entries in the form <TIMESTAMP>\t<LEVEL>\t<MESSAGE...> and
// forwards them with the matching RFC5424 severity. The timestamp is dropped since syslog adds
// its own.
func (s *SyslogWriteSyncer) Write(p []byte) (n int, err error) {
	fields := strings.Split(string(p), "\t")
	if len(fields) < 3 {
		return s.writer.Write(p)
	}
	msg := strings.Join(fields[2:], "")

	switch fields[1] {
	case "debug":
		return len(p), s.writer.Debug(msg)
	case "info":
		return len(p), s.writer.Info(msg)
	case "warn":
		return len(p), s.writer.Warning(msg)
	case "error":
		return len(p), s.writer.Err(msg)
	case "dpanic", "panic", "fatal":
		return len(p), s.writer.Crit(msg)
	default:
		return s.writer.Write(p)
	}
}

// Sync is a no-op, log/syslog does not buffer.
func (s *SyslogWriteSyncer) Sync() error {
	return nil
}
