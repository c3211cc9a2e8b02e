//go:build darwin

package platform

/*
#cgo LDFLAGS: -framework ApplicationServices -framework CoreFoundation
#include <ApplicationServices/ApplicationServices.h>

static int cmdk_post_unicode(const UniChar *chars, int length) {
	CGEventSourceRef source = CGEventSourceCreate(kCGEventSourceStateHIDSystemState);
	CGEventRef down = CGEventCreateKeyboardEvent(source, 0, true);
	CGEventRef up = CGEventCreateKeyboardEvent(source, 0, false);
	if (down == NULL || up == NULL) {
		if (down != NULL) CFRelease(down);
		if (up != NULL) CFRelease(up);
		if (source != NULL) CFRelease(source);
		return 0;
	}
	CGEventKeyboardSetUnicodeString(down, (UniCharCount)length, chars);
	CGEventKeyboardSetUnicodeString(up, (UniCharCount)length, chars);
	CGEventPost(kCGHIDEventTap, down);
	CGEventPost(kCGHIDEventTap, up);
	CFRelease(down);
	CFRelease(up);
	if (source != NULL) CFRelease(source);
	return 1;
}

static int cmdk_post_key(CGKeyCode key, CGEventFlags flags) {
	CGEventSourceRef source = CGEventSourceCreate(kCGEventSourceStateHIDSystemState);
	CGEventRef down = CGEventCreateKeyboardEvent(source, key, true);
	CGEventRef up = CGEventCreateKeyboardEvent(source, key, false);
	if (down == NULL || up == NULL) {
		if (down != NULL) CFRelease(down);
		if (up != NULL) CFRelease(up);
		if (source != NULL) CFRelease(source);
		return 0;
	}
	CGEventSetFlags(down, flags);
	CGEventSetFlags(up, flags);
	CGEventPost(kCGHIDEventTap, down);
	CGEventPost(kCGHIDEventTap, up);
	CFRelease(down);
	CFRelease(up);
	if (source != NULL) CFRelease(source);
	return 1;
}
*/
import "C"

import (
	"errors"
	"fmt"
	"unicode/utf16"
	"unsafe"
)

type darwinKeyboard struct{}

// NewKeyboard returns a Keyboard posting CGEvents to the HID event tap.
func NewKeyboard() Keyboard {
	return darwinKeyboard{}
}

func (darwinKeyboard) TypeText(text string) error {
	units := utf16.Encode([]rune(text))
	if len(units) == 0 {
		return nil
	}
	if len(units) > MaxUnicodeUnits {
		return fmt.Errorf("text of %d UTF-16 units exceeds the %d unit event limit", len(units), MaxUnicodeUnits)
	}
	if C.cmdk_post_unicode((*C.UniChar)(unsafe.Pointer(&units[0])), C.int(len(units))) == 0 {
		return errors.New("failed to create keyboard event")
	}
	return nil
}

func (darwinKeyboard) Press(key Key, mods Modifier) error {
	if C.cmdk_post_key(C.CGKeyCode(key), C.CGEventFlags(mods)) == 0 {
		return fmt.Errorf("failed to create keyboard event for key %#x", uint16(key))
	}
	return nil
}
