package runtime

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/wippyai/wasm-bridge/errors"
)

// NewLogger builds a JSON logger writing to stderr, or to a rotating file
// when File is set. The returned function flushes and closes the file.
func NewLogger(cfg LogConfig) (*zap.Logger, func() error, error) {
	level := zap.NewAtomicLevel()
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, nil, errors.New(errors.PhaseLoad, errors.KindInvalidInput).
				Path("log", "level").
				Cause(err).
				Build()
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewJSONEncoder(encCfg)

	var (
		rw   *lumberjack.Logger
		sink zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	)
	if cfg.File != "" {
		rw = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,  // megabytes
			MaxAge:     cfg.MaxAgeDays, // days
			MaxBackups: cfg.MaxBackups, // files
			Compress:   cfg.Compress,
		}
		sink = zapcore.AddSync(rw)
	}

	l := zap.New(zapcore.NewCore(enc, sink, level))
	closeFn := func() error {
		_ = l.Sync()
		if rw != nil {
			return rw.Close()
		}
		return nil
	}
	return l, closeFn, nil
}
