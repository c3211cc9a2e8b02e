//go:build !darwin

package platform

type unsupportedWorkspace struct{}

// NewWorkspace returns a workspace that knows no applications.
func NewWorkspace() Workspace {
	return unsupportedWorkspace{}
}

func (unsupportedWorkspace) FrontmostPID() (int, bool)       { return 0, false }
func (unsupportedWorkspace) BundleID(int) (string, bool)     { return "", false }
func (unsupportedWorkspace) DisplayName(int) (string, bool)  { return "", false }
func (unsupportedWorkspace) PIDForBundle(string) (int, bool) { return 0, false }
func (unsupportedWorkspace) Activate(int) error              { return ErrUnsupported }

type unsupportedKeyboard struct{}

// NewKeyboard returns a keyboard that rejects every event.
func NewKeyboard() Keyboard {
	return unsupportedKeyboard{}
}

func (unsupportedKeyboard) TypeText(string) error     { return ErrUnsupported }
func (unsupportedKeyboard) Press(Key, Modifier) error { return ErrUnsupported }
