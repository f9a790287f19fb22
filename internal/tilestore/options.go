package tilestore

import (
	"runtime"

	"go.uber.org/zap"
)

// LoadOptions controls parallel tile loading and error handling.
type LoadOptions struct {
	// Workers specifies the number of concurrent tile decoders.
	// If 0, defaults to runtime.NumCPU().
	Workers int

	// SkipErrors causes loading to continue when individual tiles fail.
	// Failed tiles are skipped and their errors collected.
	// When false, the first error stops loading and is returned.
	SkipErrors bool

	// Progress is an optional callback called after each tile is processed,
	// successfully or not, with the number of tiles processed so far.
	Progress func(loaded, total int)

	// CacheSize bounds the number of features kept in decoded layers.
	// 0 means unlimited.
	CacheSize int64

	// Logger receives load diagnostics. Defaults to a no-op logger.
	Logger *zap.Logger
}

// DefaultLoadOptions returns load options with sensible defaults.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		Workers:    runtime.NumCPU(),
		SkipErrors: true,
		Progress:   nil,
		CacheSize:  1 << 20,
		Logger:     zap.NewNop(),
	}
}
