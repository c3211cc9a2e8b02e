//go:build !darwin

package ax

type unsupportedSystem struct{}

// NewSystem returns an implementation that reports ErrUnsupported.
func NewSystem() System {
	return unsupportedSystem{}
}

func (unsupportedSystem) Application(int) (Element, error) {
	return nil, ErrUnsupported
}

func (unsupportedSystem) Trusted() bool {
	return false
}

func (unsupportedSystem) RequestTrust(bool) bool {
	return false
}
