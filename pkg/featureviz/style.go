package featureviz

import (
	"io"

	"go.uber.org/zap"

	"github.com/beetlebugorg/featureviz/internal/style"
)

// LoadStyle reads a YAML style document from path. Malformed fields are
// logged and skipped; see RuleSet.Warnings.
func LoadStyle(path string, logger *zap.Logger) (*RuleSet, error) {
	return style.LoadFile(path, logger)
}

// ReadStyle reads a YAML style document from r.
func ReadStyle(r io.Reader, logger *zap.Logger) (*RuleSet, error) {
	return style.Load(r, logger)
}
