//go:build darwin

package ax

/*
#cgo LDFLAGS: -framework ApplicationServices -framework CoreFoundation
#include <stdlib.h>
#include <ApplicationServices/ApplicationServices.h>

static CFStringRef cmdk_cfstring(const char *s) {
	return CFStringCreateWithCString(kCFAllocatorDefault, s, kCFStringEncodingUTF8);
}

static CFTypeRef cmdk_ax_application(int pid) {
	return (CFTypeRef)AXUIElementCreateApplication((pid_t)pid);
}

static int cmdk_ax_copy(CFTypeRef el, const char *attr, CFTypeRef *out) {
	CFStringRef name = cmdk_cfstring(attr);
	if (name == NULL) {
		return kAXErrorIllegalArgument;
	}
	AXError err = AXUIElementCopyAttributeValue((AXUIElementRef)el, name, out);
	CFRelease(name);
	return (int)err;
}

static int cmdk_ax_set_bool(CFTypeRef el, const char *attr, int value) {
	CFStringRef name = cmdk_cfstring(attr);
	if (name == NULL) {
		return kAXErrorIllegalArgument;
	}
	AXError err = AXUIElementSetAttributeValue((AXUIElementRef)el, name, value ? kCFBooleanTrue : kCFBooleanFalse);
	CFRelease(name);
	return (int)err;
}

static int cmdk_ax_set_timeout(CFTypeRef el, float seconds) {
	return (int)AXUIElementSetMessagingTimeout((AXUIElementRef)el, seconds);
}

static int cmdk_is_element(CFTypeRef v) {
	return v != NULL && CFGetTypeID(v) == AXUIElementGetTypeID();
}

static int cmdk_is_array(CFTypeRef v) {
	return v != NULL && CFGetTypeID(v) == CFArrayGetTypeID();
}

static long cmdk_array_count(CFTypeRef a) {
	return (long)CFArrayGetCount((CFArrayRef)a);
}

// Returns a retained element at index i, or NULL when the item is not an element.
static CFTypeRef cmdk_array_element(CFTypeRef a, long i) {
	CFTypeRef item = CFArrayGetValueAtIndex((CFArrayRef)a, (CFIndex)i);
	if (!cmdk_is_element(item)) {
		return NULL;
	}
	return CFRetain(item);
}

// Returns a malloc'd UTF-8 copy of a CFString, or NULL for any other type.
static char *cmdk_utf8(CFTypeRef v) {
	if (v == NULL || CFGetTypeID(v) != CFStringGetTypeID()) {
		return NULL;
	}
	CFStringRef s = (CFStringRef)v;
	CFIndex max = CFStringGetMaximumSizeForEncoding(CFStringGetLength(s), kCFStringEncodingUTF8) + 1;
	char *buf = malloc((size_t)max);
	if (buf == NULL) {
		return NULL;
	}
	if (!CFStringGetCString(s, buf, max, kCFStringEncodingUTF8)) {
		free(buf);
		return NULL;
	}
	return buf;
}

static int cmdk_is_trusted(void) {
	return AXIsProcessTrusted() ? 1 : 0;
}

static int cmdk_request_trust(int prompt) {
	const void *keys[] = { kAXTrustedCheckOptionPrompt };
	const void *values[] = { prompt ? kCFBooleanTrue : kCFBooleanFalse };
	CFDictionaryRef options = CFDictionaryCreate(kCFAllocatorDefault, keys, values, 1,
		&kCFTypeDictionaryKeyCallBacks, &kCFTypeDictionaryValueCallBacks);
	if (options == NULL) {
		return cmdk_is_trusted();
	}
	Boolean trusted = AXIsProcessTrustedWithOptions(options);
	CFRelease(options);
	return trusted ? 1 : 0;
}
*/
import "C"

import (
	"time"
	"unsafe"
)

type darwinSystem struct{}

// NewSystem returns the native accessibility implementation.
func NewSystem() System {
	return darwinSystem{}
}

func (darwinSystem) Application(pid int) (Element, error) {
	ref := C.cmdk_ax_application(C.int(pid))
	if ref == 0 {
		return nil, &Error{Op: "open", Code: CodeInvalidUIElement}
	}
	return &element{ref: ref}, nil
}

func (darwinSystem) Trusted() bool {
	return C.cmdk_is_trusted() != 0
}

func (darwinSystem) RequestTrust(prompt bool) bool {
	p := 0
	if prompt {
		p = 1
	}
	return C.cmdk_request_trust(C.int(p)) != 0
}

// element owns one +1 reference to a native AXUIElement.
type element struct {
	ref C.CFTypeRef
}

func (e *element) copy(attr string) (C.CFTypeRef, error) {
	if e.ref == 0 {
		return 0, ErrReleased
	}
	name := C.CString(attr)
	defer C.free(unsafe.Pointer(name))

	var value C.CFTypeRef
	if code := C.cmdk_ax_copy(e.ref, name, &value); code != 0 {
		return 0, &Error{Op: "copy", Attr: attr, Code: Code(code)}
	}
	if value == 0 {
		return 0, &Error{Op: "copy", Attr: attr, Code: CodeNoValue}
	}
	return value, nil
}

func (e *element) String(attr string) (string, error) {
	value, err := e.copy(attr)
	if err != nil {
		return "", err
	}
	defer C.CFRelease(value)

	cstr := C.cmdk_utf8(value)
	if cstr == nil {
		return "", ErrUnexpectedType
	}
	defer C.free(unsafe.Pointer(cstr))
	return C.GoString(cstr), nil
}

func (e *element) Element(attr string) (Element, error) {
	value, err := e.copy(attr)
	if err != nil {
		return nil, err
	}
	if C.cmdk_is_element(value) == 0 {
		C.CFRelease(value)
		return nil, ErrUnexpectedType
	}
	return &element{ref: value}, nil
}

func (e *element) Elements(attr string) ([]Element, error) {
	value, err := e.copy(attr)
	if err != nil {
		return nil, err
	}
	defer C.CFRelease(value)

	if C.cmdk_is_array(value) == 0 {
		return nil, ErrUnexpectedType
	}
	count := int(C.cmdk_array_count(value))
	out := make([]Element, 0, count)
	for i := 0; i < count; i++ {
		item := C.cmdk_array_element(value, C.long(i))
		if item == 0 {
			continue
		}
		out = append(out, &element{ref: item})
	}
	return out, nil
}

func (e *element) SetBool(attr string, value bool) error {
	if e.ref == 0 {
		return ErrReleased
	}
	name := C.CString(attr)
	defer C.free(unsafe.Pointer(name))

	v := 0
	if value {
		v = 1
	}
	if code := C.cmdk_ax_set_bool(e.ref, name, C.int(v)); code != 0 {
		return &Error{Op: "set", Attr: attr, Code: Code(code)}
	}
	return nil
}

func (e *element) SetTimeout(d time.Duration) error {
	if e.ref == 0 {
		return ErrReleased
	}
	if code := C.cmdk_ax_set_timeout(e.ref, C.float(d.Seconds())); code != 0 {
		return &Error{Op: "timeout", Code: Code(code)}
	}
	return nil
}

func (e *element) Retain() Element {
	if e.ref == 0 {
		return &element{}
	}
	return &element{ref: C.CFRetain(e.ref)}
}

func (e *element) Close() {
	if e.ref == 0 {
		return
	}
	C.CFRelease(e.ref)
	e.ref = 0
}
