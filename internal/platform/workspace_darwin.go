//go:build darwin

package platform

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework AppKit -framework Foundation
#include <stdlib.h>
#include <string.h>
#import <AppKit/AppKit.h>

static int cmdk_frontmost_pid(void) {
	@autoreleasepool {
		NSRunningApplication *app = [[NSWorkspace sharedWorkspace] frontmostApplication];
		if (app == nil) {
			return -1;
		}
		return (int)app.processIdentifier;
	}
}

static char *cmdk_copy_nsstring(NSString *s) {
	if (s == nil) {
		return NULL;
	}
	const char *utf8 = [s UTF8String];
	if (utf8 == NULL) {
		return NULL;
	}
	return strdup(utf8);
}

static char *cmdk_bundle_id(int pid) {
	@autoreleasepool {
		NSRunningApplication *app = [NSRunningApplication runningApplicationWithProcessIdentifier:(pid_t)pid];
		if (app == nil) {
			return NULL;
		}
		return cmdk_copy_nsstring(app.bundleIdentifier);
	}
}

static char *cmdk_localized_name(int pid) {
	@autoreleasepool {
		NSRunningApplication *app = [NSRunningApplication runningApplicationWithProcessIdentifier:(pid_t)pid];
		if (app == nil) {
			return NULL;
		}
		return cmdk_copy_nsstring(app.localizedName);
	}
}

static int cmdk_pid_for_bundle(const char *bundle) {
	@autoreleasepool {
		NSString *bid = [NSString stringWithUTF8String:bundle];
		if (bid == nil) {
			return -1;
		}
		NSArray<NSRunningApplication *> *apps = [NSRunningApplication runningApplicationsWithBundleIdentifier:bid];
		if (apps.count == 0) {
			return -1;
		}
		return (int)apps[0].processIdentifier;
	}
}

static int cmdk_activate(int pid) {
	@autoreleasepool {
		NSRunningApplication *app = [NSRunningApplication runningApplicationWithProcessIdentifier:(pid_t)pid];
		if (app == nil) {
			return 0;
		}
		return [app activateWithOptions:NSApplicationActivateIgnoringOtherApps] ? 1 : 0;
	}
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

type darwinWorkspace struct{}

// NewWorkspace returns the NSWorkspace backed implementation.
func NewWorkspace() Workspace {
	return darwinWorkspace{}
}

func takeCString(p *C.char) (string, bool) {
	if p == nil {
		return "", false
	}
	defer C.free(unsafe.Pointer(p))
	s := C.GoString(p)
	return s, s != ""
}

func (darwinWorkspace) FrontmostPID() (int, bool) {
	pid := int(C.cmdk_frontmost_pid())
	return pid, pid > 0
}

func (darwinWorkspace) BundleID(pid int) (string, bool) {
	return takeCString(C.cmdk_bundle_id(C.int(pid)))
}

func (darwinWorkspace) DisplayName(pid int) (string, bool) {
	return takeCString(C.cmdk_localized_name(C.int(pid)))
}

func (darwinWorkspace) PIDForBundle(bundleID string) (int, bool) {
	cs := C.CString(bundleID)
	defer C.free(unsafe.Pointer(cs))
	pid := int(C.cmdk_pid_for_bundle(cs))
	return pid, pid > 0
}

func (darwinWorkspace) Activate(pid int) error {
	if C.cmdk_activate(C.int(pid)) == 0 {
		return fmt.Errorf("failed to activate application with pid %d", pid)
	}
	return nil
}
