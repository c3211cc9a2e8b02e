// Package apps classifies macOS applications by bundle identifier.
package apps

import (
	"strings"

	"github.com/samber/lo"
)

// Kind is the broad category a host application falls into.
type Kind int

const (
	KindOther Kind = iota
	KindTerminal
	KindIDE
	KindBrowser
)

func (k Kind) String() string {
	switch k {
	case KindTerminal:
		return "terminal"
	case KindIDE:
		return "ide"
	case KindBrowser:
		return "browser"
	default:
		return "other"
	}
}

const (
	BundleTerminal = "com.apple.Terminal"
	BundleITerm2   = "com.googlecode.iterm2"
	BundleDock     = "com.apple.dock"
)

var defaultTerminals = []string{
	BundleTerminal,
	BundleITerm2,
	"io.alacritty",
	"net.kovidgoyal.kitty",
	"com.github.wez.wezterm",
	"com.mitchellh.ghostty",
	"dev.warp.Warp-Stable",
}

var defaultGPUTerminals = []string{
	"io.alacritty",
	"net.kovidgoyal.kitty",
	"com.github.wez.wezterm",
	"com.mitchellh.ghostty",
	"dev.warp.Warp-Stable",
}

var defaultScriptable = []string{
	BundleITerm2,
}

var defaultIDEs = []string{
	"com.microsoft.VSCode",
	"com.microsoft.VSCodeInsiders",
	"com.todesktop.230313mzl4w4u92",
	"com.exafunction.windsurf",
	"dev.zed.Zed",
	"com.vscodium",
}

// JetBrains ships one bundle id per product and edition.
const jetbrainsPrefix = "com.jetbrains."

var defaultBrowsers = []string{
	"com.google.Chrome",
	"com.google.Chrome.canary",
	"com.apple.Safari",
	"com.apple.SafariTechnologyPreview",
	"org.mozilla.firefox",
	"org.mozilla.firefoxdeveloperedition",
	"com.microsoft.edgemac",
	"com.brave.Browser",
	"company.thebrowser.Browser",
	"com.operasoftware.Opera",
	"com.vivaldi.Vivaldi",
}

// Extra lists bundle ids added on top of the built-in catalog.
type Extra struct {
	Terminals    []string `yaml:"terminals"`
	GPUTerminals []string `yaml:"gpu_terminals"`
	IDEs         []string `yaml:"ides"`
	Browsers     []string `yaml:"browsers"`
}

// Catalog answers classification questions about bundle ids.
type Catalog struct {
	terminals  map[string]struct{}
	gpu        map[string]struct{}
	scriptable map[string]struct{}
	ides       map[string]struct{}
	browsers   map[string]struct{}
}

// NewCatalog builds a catalog from the built-in lists plus extra. A GPU
// terminal listed in extra is implicitly a terminal.
func NewCatalog(extra Extra) *Catalog {
	return &Catalog{
		terminals:  toSet(defaultTerminals, extra.Terminals, extra.GPUTerminals),
		gpu:        toSet(defaultGPUTerminals, extra.GPUTerminals),
		scriptable: toSet(defaultScriptable),
		ides:       toSet(defaultIDEs, extra.IDEs),
		browsers:   toSet(defaultBrowsers, extra.Browsers),
	}
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	return NewCatalog(Extra{})
}

func toSet(lists ...[]string) map[string]struct{} {
	all := lo.Uniq(lo.Flatten(lists))
	return lo.SliceToMap(all, func(id string) (string, struct{}) {
		return id, struct{}{}
	})
}

func (c *Catalog) IsTerminal(bundleID string) bool {
	_, ok := c.terminals[bundleID]
	return ok
}

// IsGPUTerminal reports whether the terminal draws its own glyphs and so
// exposes no text through the accessibility tree.
func (c *Catalog) IsGPUTerminal(bundleID string) bool {
	_, ok := c.gpu[bundleID]
	return ok
}

// IsScriptable reports whether the terminal accepts text through its
// AppleScript dictionary.
func (c *Catalog) IsScriptable(bundleID string) bool {
	_, ok := c.scriptable[bundleID]
	return ok
}

// IsIDE reports whether the app is an editor with an integrated terminal.
func (c *Catalog) IsIDE(bundleID string) bool {
	if _, ok := c.ides[bundleID]; ok {
		return true
	}
	return strings.HasPrefix(bundleID, jetbrainsPrefix)
}

func (c *Catalog) IsBrowser(bundleID string) bool {
	_, ok := c.browsers[bundleID]
	return ok
}

// HasAccessibleText reports whether the accessibility reader should be used
// for terminal text. Unknown bundles count as GPU rendered.
func (c *Catalog) HasAccessibleText(bundleID string) bool {
	return c.IsTerminal(bundleID) && !c.IsGPUTerminal(bundleID)
}

func (c *Catalog) Kind(bundleID string) Kind {
	switch {
	case c.IsTerminal(bundleID):
		return KindTerminal
	case c.IsIDE(bundleID):
		return KindIDE
	case c.IsBrowser(bundleID):
		return KindBrowser
	default:
		return KindOther
	}
}

var displayNames = map[string]string{
	"Google Chrome":             "Chrome",
	"Google Chrome Canary":      "Chrome Canary",
	"Visual Studio Code":        "Code",
	"Code - Insiders":           "Code",
	"Microsoft Edge":            "Edge",
	"Brave Browser":             "Brave",
	"Firefox Developer Edition": "Firefox",
	"Safari Technology Preview": "Safari",
}

// CleanDisplayName shortens a localized application name for display.
func CleanDisplayName(name string) string {
	name = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(name), ".app"))
	if short, ok := displayNames[name]; ok {
		return short
	}
	return name
}
