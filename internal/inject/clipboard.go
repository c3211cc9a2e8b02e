package inject

import "github.com/atotto/clipboard"

// Clipboard is the system pasteboard.
type Clipboard interface {
	WriteAll(text string) error
	ReadAll() (string, error)
}

// SystemClipboard uses the OS pasteboard.
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error {
	return clipboard.WriteAll(text)
}

func (SystemClipboard) ReadAll() (string, error) {
	return clipboard.ReadAll()
}
