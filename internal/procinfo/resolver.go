package procinfo

import (
	"os"
	"sort"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	// maxWrapperDepth bounds the walk through wrappers and multiplexers.
	maxWrapperDepth = 3
	// maxAncestryHops bounds the parent-chain walk in the system-wide scan.
	maxAncestryHops = 15
)

// Resolver finds the foreground shell of an application by walking the
// process tree. Every failure degrades to absence.
type Resolver struct {
	source       Source
	apps         AppLookup
	defaultShell string
	logger       *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithDefaultShell sets the shell name preferred when several descendant
// shells qualify. It defaults to the basename of $SHELL.
func WithDefaultShell(name string) Option {
	return func(r *Resolver) {
		r.defaultShell = normalizeName(name)
	}
}

func NewResolver(source Source, apps AppLookup, logger *zap.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{
		source:       source,
		apps:         apps,
		defaultShell: normalizeName(os.Getenv("SHELL")),
		logger:       logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Identity resolves the bundle id and display name of pid.
func (r *Resolver) Identity(pid int) Identity {
	id := Identity{PID: pid}
	if r.apps == nil || pid <= 0 {
		return id
	}
	if bundle, ok := r.apps.BundleID(pid); ok {
		id.BundleID = bundle
	}
	if name, ok := r.apps.DisplayName(pid); ok {
		id.DisplayName = name
	}
	return id
}

// ShellState finds the foreground shell under pid and reads its cwd and
// the program running inside it.
func (r *Resolver) ShellState(pid int) ShellState {
	t, ok := r.snapshot()
	if !ok {
		return ShellState{}
	}

	shell, ok := r.findShell(t, pid, "")
	if !ok {
		r.logger.Debug("no shell found", zap.Int("pid", pid))
		return ShellState{}
	}

	state := ShellState{
		ShellPID:       shell.PID,
		ShellType:      normalizeName(shell.Name),
		RunningProcess: t.runningProcess(shell),
	}
	if cwd, err := r.source.Cwd(shell.PID); err == nil {
		state.Cwd = cwd
	} else {
		r.logger.Debug("failed to read shell cwd", zap.Int("shellPid", shell.PID), zap.Error(err))
	}

	r.logger.Debug("resolved shell",
		zap.Int("pid", pid),
		zap.Int("shellPid", state.ShellPID),
		zap.String("shellType", state.ShellType),
		zap.String("runningProcess", state.RunningProcess))
	return state
}

// ShellPID returns the foreground shell pid under pid. When several shells
// qualify in the system-wide scan, one whose cwd equals cwdHint wins.
func (r *Resolver) ShellPID(pid int, cwdHint string) (int, bool) {
	t, ok := r.snapshot()
	if !ok {
		return 0, false
	}
	shell, ok := r.findShell(t, pid, cwdHint)
	if !ok {
		return 0, false
	}
	return shell.PID, true
}

func (r *Resolver) snapshot() (*processTree, bool) {
	if r.source == nil {
		return nil, false
	}
	procs, err := r.source.Processes()
	if err != nil {
		r.logger.Debug("failed to snapshot process table", zap.Error(err))
		return nil, false
	}
	return newProcessTree(procs), true
}

func (r *Resolver) findShell(t *processTree, pid int, cwdHint string) (Process, bool) {
	if pid <= 0 {
		return Process{}, false
	}
	if shell, ok := t.walkChildren(pid, maxWrapperDepth); ok {
		return shell, true
	}
	return r.findDescendantShell(t, pid, cwdHint)
}

// findDescendantShell scans every shell in the system and keeps those whose
// parent chain reaches pid. This covers editors that nest shells several
// helper processes deep.
func (r *Resolver) findDescendantShell(t *processTree, pid int, cwdHint string) (Process, bool) {
	candidates := lo.Filter(t.all, func(p Process, _ int) bool {
		return IsShell(p.Name) && t.isDescendant(p.PID, pid)
	})
	if len(candidates) == 0 {
		return Process{}, false
	}

	if cwdHint != "" && len(candidates) > 1 {
		inHint := lo.Filter(candidates, func(p Process, _ int) bool {
			cwd, err := r.source.Cwd(p.PID)
			return err == nil && cwd == cwdHint
		})
		if len(inHint) > 0 {
			candidates = inHint
		}
	}

	if r.defaultShell != "" && len(candidates) > 1 {
		preferred := lo.Filter(candidates, func(p Process, _ int) bool {
			return normalizeName(p.Name) == r.defaultShell
		})
		if len(preferred) > 0 {
			candidates = preferred
		}
	}

	best := lo.MaxBy(candidates, func(a, b Process) bool {
		return a.PID > b.PID
	})
	r.logger.Debug("selected descendant shell",
		zap.Int("pid", pid),
		zap.Int("shellPid", best.PID),
		zap.Int("candidates", len(candidates)))
	return best, true
}

type processTree struct {
	all      []Process
	byPID    map[int]Process
	children map[int][]Process
}

func newProcessTree(procs []Process) *processTree {
	t := &processTree{
		all:      procs,
		byPID:    make(map[int]Process, len(procs)),
		children: make(map[int][]Process),
	}
	for _, p := range procs {
		t.byPID[p.PID] = p
		t.children[p.PPID] = append(t.children[p.PPID], p)
	}
	for _, kids := range t.children {
		sort.Slice(kids, func(i, j int) bool { return kids[i].PID < kids[j].PID })
	}
	return t
}

// walkChildren looks for a shell among the children of pid, then through
// wrapper children, then through the first child as an unlisted wrapper.
func (t *processTree) walkChildren(pid int, depth int) (Process, bool) {
	if depth == 0 {
		return Process{}, false
	}
	kids := t.children[pid]
	if len(kids) == 0 {
		return Process{}, false
	}

	for _, child := range kids {
		if IsShell(child.Name) {
			return child, true
		}
	}

	for _, child := range kids {
		if isWrapper(child.Name) {
			if shell, ok := t.walkChildren(child.PID, depth-1); ok {
				return shell, true
			}
		}
	}

	return t.walkChildren(kids[0].PID, depth-1)
}

func (t *processTree) isDescendant(pid, ancestor int) bool {
	current := pid
	for range maxAncestryHops {
		p, ok := t.byPID[current]
		if !ok {
			return false
		}
		switch {
		case p.PPID == ancestor:
			return true
		case p.PPID <= 1:
			return false
		}
		current = p.PPID
	}
	return false
}

// runningProcess returns the first child of shell with a different name.
func (t *processTree) runningProcess(shell Process) string {
	shellName := normalizeName(shell.Name)
	for _, child := range t.children[shell.PID] {
		name := normalizeName(child.Name)
		if name != "" && name != shellName {
			return name
		}
	}
	return ""
}
