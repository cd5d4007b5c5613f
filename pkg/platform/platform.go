// Package platform defines the capability set a desktop backend implements
// and the table backends register themselves in.
package platform

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"sync"

	"github.com/hashicorp/go-hclog"

	mberrors "github.com/provide-io/menubuilder/go/menubuilder/pkg/errors"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/icon"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/prefix"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/registry"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/shortcut"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/utils/permissions"
)

// Backend writes native launchers, icons and associations for one desktop.
type Backend interface {
	// Name returns the registration name (e.g. "xdg").
	Name() string

	// Init resolves and creates the backend's output directories.
	Init(env *prefix.Prefix) (*Context, error)

	// BuildDesktopLink writes a launcher onto the desktop.
	BuildDesktopLink(ctx *Context, link *Link) error

	// BuildMenuLink writes a launcher into the application menu.
	BuildMenuLink(ctx *Context, link *Link) error

	// WriteIcon converts an icon and returns the name launchers refer to it by.
	WriteIcon(ctx *Context, req *IconRequest) (string, error)

	// Associations returns nil when the backend cannot register file types.
	Associations() AssociationHooks
}

// AssociationHooks is the optional file-type registration capability.
type AssociationHooks interface {
	RefreshInit(ctx *Context) error
	RefreshCleanup(ctx *Context, changed bool) error
	MimeTypeForExtension(ctx *Context, ext string) (string, bool)
	WriteMimeTypeEntry(ctx *Context, ext, mime, comment string) error
	WriteAssociationEntry(ctx *Context, a *registry.Association) error
	RemoveFileTypeAssociation(ctx *Context, ext string) error
}

// ==================== Context ====================

// State tracks where a backend context is in its lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateActive
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateActive:
		return "active"
	default:
		return "uninitialized"
	}
}

// Context is the state Init produces and every later call consumes.
type Context struct {
	Prefix *prefix.Prefix
	Logger hclog.Logger

	// Store receives artifact -> source shortcut records; may be nil.
	Store *registry.Store

	// Wine is the command (already split) that runs Windows programs.
	Wine []string

	// Runner executes helper tools such as update-mime-database.
	Runner CommandRunner

	// Dirs holds the resolved output directories by role.
	Dirs map[string]string

	// LauncherMode is the mode of executable launchers.
	LauncherMode os.FileMode

	// Data is backend-private state.
	Data any

	state State
}

// NewContext returns an initialized context for p.
func NewContext(p *prefix.Prefix, logger hclog.Logger) *Context {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Context{
		Prefix: p,
		Logger: logger,
		Wine:   []string{"wine"},
		Runner: ExecRunner{},
		Dirs:   make(map[string]string),

		LauncherMode: permissions.DefaultLauncherMode,
		state:        StateInitialized,
	}
}

// State returns the lifecycle state.
func (c *Context) State() State {
	return c.state
}

// Activate marks the context as having produced output.
func (c *Context) Activate() {
	if c.state == StateInitialized {
		c.state = StateActive
	}
}

// Dir returns the directory registered for role.
func (c *Context) Dir(role string) string {
	return c.Dirs[role]
}

// Record maps a written artifact back to the shortcut it came from.
func (c *Context) Record(artifact, source string) {
	c.Activate()
	if c.Store == nil || source == "" {
		return
	}
	c.Store.SetMenuFile(artifact, source)
}

// ==================== Requests ====================

// Link describes one launcher to write.
type Link struct {
	// Name is the display name and the artifact base name.
	Name string

	// Location is the special folder the shortcut was found in.
	Location shortcut.Location

	// MenuPath holds the folders between the start menu root and the
	// shortcut, e.g. ["Programs", "Vendor"].
	MenuPath []string

	// Source is the shortcut file the launcher was built from.
	Source string

	// Args is the argument list passed to wine, Windows program first.
	Args []string

	// WorkDir is a host path; empty when unset.
	WorkDir string

	Description string

	// Icon is the name WriteIcon returned; empty for no icon.
	Icon string

	WMClass string
}

// IconRequest asks a backend to convert one icon.
type IconRequest struct {
	// Identifier is the stable icon name from icon.ComputeIdentifier.
	Identifier string

	Source *icon.Source

	// Outputs is filled by WriteIcon with the files it wrote.
	Outputs []string
}

// ==================== Commands ====================

// CommandRunner runs an external helper program.
type CommandRunner interface {
	Run(name string, args ...string) error
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name and waits for it to finish.
func (ExecRunner) Run(name string, args ...string) error {
	path, err := exec.LookPath(name)
	if err != nil {
		return fmt.Errorf("failed to find %s: %w", name, err)
	}
	output, err := exec.Command(path, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to run %s: %w: %s", name, err, output)
	}
	return nil
}

// ==================== Registry ====================

var (
	registryMu sync.RWMutex
	backends   = make(map[string]Backend)
)

// Register adds a backend under its name, replacing any previous one.
func Register(b Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[b.Name()] = b
}

// Get retrieves a backend by name.
func Get(name string) (Backend, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	b, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", mberrors.ErrUnknownBackend, name)
	}
	return b, nil
}

// Names lists the registered backends.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultName returns the native backend for the running OS.
func DefaultName() string {
	if runtime.GOOS == "darwin" {
		return "appbundle"
	}
	return "xdg"
}
