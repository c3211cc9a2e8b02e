//go:build darwin

package procinfo

/*
#include <stdlib.h>
#include <string.h>
#include <libproc.h>
#include <sys/proc_info.h>

static int cmdk_pid_path(int pid, char *buf, int size) {
	int n = proc_pidpath(pid, buf, (uint32_t)size);
	return n > 0 ? n : -1;
}

static int cmdk_pid_cwd(int pid, char *buf, int size) {
	struct proc_vnodepathinfo info;
	int n = proc_pidinfo(pid, PROC_PIDVNODEPATHINFO, 0, &info, sizeof(info));
	if (n != (int)sizeof(info)) {
		return -1;
	}
	size_t len = strnlen(info.pvi_cdir.vip_path, sizeof(info.pvi_cdir.vip_path));
	if (len == 0 || (int)len >= size) {
		return -1;
	}
	memcpy(buf, info.pvi_cdir.vip_path, len);
	buf[len] = '\0';
	return (int)len;
}
*/
import "C"

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"unsafe"

	"github.com/atinylittleshell/cmdk/internal/chain"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// pathBufferSize matches PROC_PIDPATHINFO_MAXSIZE.
const pathBufferSize = 4 * 1024

type darwinSource struct {
	logger *zap.Logger
}

// NewSource returns the libproc and sysctl backed process source.
func NewSource(logger *zap.Logger) Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &darwinSource{logger: logger}
}

func (s *darwinSource) Processes() ([]Process, error) {
	kprocs, err := unix.SysctlKinfoProcSlice("kern.proc.all")
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	procs := make([]Process, 0, len(kprocs))
	for i := range kprocs {
		kp := &kprocs[i]
		pid := int(kp.Proc.P_pid)
		if pid <= 0 {
			continue
		}
		name := executableName(pid)
		if name == "" {
			name = unix.ByteSliceToString(kp.Proc.P_comm[:])
		}
		procs = append(procs, Process{
			PID:  pid,
			PPID: int(kp.Eproc.Ppid),
			Name: name,
		})
	}
	return procs, nil
}

func executableName(pid int) string {
	buf := make([]byte, pathBufferSize)
	n := C.cmdk_pid_path(C.int(pid), (*C.char)(unsafe.Pointer(&buf[0])), C.int(len(buf)))
	if n <= 0 {
		return ""
	}
	return filepath.Base(string(buf[:n]))
}

func (s *darwinSource) Cwd(pid int) (string, error) {
	return chain.First(context.Background(), s.logger,
		chain.Step[string]{Name: "libproc", Try: func(context.Context) (string, error) {
			return libprocCwd(pid)
		}},
		chain.Step[string]{Name: "lsof", Try: func(ctx context.Context) (string, error) {
			return lsofCwd(ctx, pid)
		}},
	)
}

func libprocCwd(pid int) (string, error) {
	buf := make([]byte, pathBufferSize)
	n := C.cmdk_pid_cwd(C.int(pid), (*C.char)(unsafe.Pointer(&buf[0])), C.int(len(buf)))
	if n <= 0 {
		return "", errors.New("proc_pidinfo returned no vnode path")
	}
	return string(buf[:n]), nil
}
