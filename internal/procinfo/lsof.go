package procinfo

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const lsofTimeout = 2 * time.Second

// lsofCwd reads the cwd of pid from `lsof -a -p PID -d cwd -Fn`.
func lsofCwd(ctx context.Context, pid int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, lsofTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "lsof", "-a", "-p", strconv.Itoa(pid), "-d", "cwd", "-Fn").Output()
	if err != nil {
		return "", fmt.Errorf("lsof failed for pid %d: %w", pid, err)
	}
	return parseLsofCwd(string(out))
}

// parseLsofCwd extracts the path from lsof field output, where the name
// field is the line starting with 'n'.
func parseLsofCwd(output string) (string, error) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "n") && len(line) > 1 {
			return line[1:], nil
		}
	}
	return "", fmt.Errorf("no cwd entry in lsof output")
}
