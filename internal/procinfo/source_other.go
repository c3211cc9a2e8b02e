//go:build !darwin

package procinfo

import "go.uber.org/zap"

type unsupportedSource struct{}

// NewSource returns a source that reports ErrUnsupported.
func NewSource(*zap.Logger) Source {
	return unsupportedSource{}
}

func (unsupportedSource) Processes() ([]Process, error) {
	return nil, ErrUnsupported
}

func (unsupportedSource) Cwd(int) (string, error) {
	return "", ErrUnsupported
}
