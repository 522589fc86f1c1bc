package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var auditName = regexp.MustCompile(`^logger_(\d+)\.txt$`)

type Options struct {
	Dir   string // audit log directory; empty disables the file
	Level string // debug, info, warn, error
}

// NextLogPath returns dir/logger_N.txt where N is one past the highest
// existing index, or 0 when there is none.
func NextLogPath(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("read log dir: %w", err)
	}
	next := 0
	for _, e := range entries {
		m := auditName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n+1 > next {
			next = n + 1
		}
	}
	return filepath.Join(dir, fmt.Sprintf("logger_%d.txt", next)), nil
}

// New builds a logger writing to stderr and, when Dir is set, to a fresh
// audit file. The returned path is empty when no file is written.
func New(opts Options) (*zap.Logger, string, error) {
	level := zap.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, "", fmt.Errorf("log level %q: %w", opts.Level, err)
		}
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	console := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level)

	if opts.Dir == "" {
		return zap.New(console), "", nil
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("create log dir: %w", err)
	}
	path, err := NextLogPath(opts.Dir)
	if err != nil {
		return nil, "", err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, "", fmt.Errorf("open audit log: %w", err)
	}

	fileCfg := encCfg
	fileCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	file := zapcore.NewCore(zapcore.NewConsoleEncoder(fileCfg), zapcore.AddSync(f), zap.DebugLevel)

	return zap.New(zapcore.NewTee(console, file)), path, nil
}
