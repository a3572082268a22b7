package log

import (
	"bytes"
	stdlog "log"
)

// Config holds the process-wide logging knobs.
type Config struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// ApplyConfig builds a Logger from a Config. Unknown values fall back to
// info/text rather than failing startup.
func ApplyConfig(cfg *Config) (Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		level = InfoLevel
	}
	var formatter Formatter = &TextFormatter{}
	if cfg.Format == "json" {
		formatter = &JSONFormatter{}
	}
	return NewLogger(WithLevel(level), WithFormatter(formatter)), err
}

type stdBridge struct {
	logger Logger
}

func (b stdBridge) Write(p []byte) (int, error) {
	b.logger.Debug(string(bytes.TrimRight(p, "\n")), Component("stdlog"))
	return len(p), nil
}

// RedirectStdLog routes standard library log output (Pebble uses it) through
// the given Logger at debug level.
func RedirectStdLog(logger Logger) {
	stdlog.SetFlags(0)
	stdlog.SetOutput(stdBridge{logger: logger})
}
