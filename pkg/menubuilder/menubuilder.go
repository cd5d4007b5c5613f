// Package menubuilder ties shortcut resolution, icon conversion and a
// platform backend together into the operations the CLI exposes.
package menubuilder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/menubuilder/go/menubuilder/internal/iconcache"
	"github.com/provide-io/menubuilder/go/menubuilder/internal/xdgdirs"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/lock"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/platform"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/prefix"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/registry"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/shortcut"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/shortcut/lnk"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/shortcut/urlfile"

	_ "github.com/provide-io/menubuilder/go/menubuilder/pkg/platform/appbundle"
	_ "github.com/provide-io/menubuilder/go/menubuilder/pkg/platform/xdg"
)

// Options configures a Builder. Zero values select the defaults.
type Options struct {
	Config *Config

	// Backend is the --backend flag value.
	Backend string

	// Wait defers to the parent process when no icon can be extracted yet.
	Wait bool

	// ParentPID is the process waited for under Wait; 0 means os.Getppid().
	ParentPID int

	Prefix *prefix.Prefix
	Loader shortcut.Loader

	// LockDir overrides where the cross-process lock file lives.
	LockDir string

	// Runner overrides the backend's helper-tool runner.
	Runner platform.CommandRunner

	Logger hclog.Logger
}

// Builder runs menubuilder operations against one prefix and backend.
type Builder struct {
	opts     Options
	logger   hclog.Logger
	prefix   *prefix.Prefix
	backend  platform.Backend
	ctx      *platform.Context
	store    *registry.Store
	resolver *shortcut.Resolver
	cache    *iconcache.Cache
	classes  *registry.ClassesSource
}

// errIconPending means no icon could be extracted and the caller asked to
// wait for the parent process before trying again.
var errIconPending = errors.New("icon not available yet")

// New resolves the prefix, backend and state store.
func New(opts Options) (*Builder, error) {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if opts.Config == nil {
		opts.Config = &Config{}
	}

	p := opts.Prefix
	if p == nil {
		discovered, err := prefix.Discover()
		if err != nil {
			return nil, fmt.Errorf("failed to find wine prefix: %w", err)
		}
		p = discovered
	}
	logger.Debug("🍷 Using prefix", "root", p.Root(), "user", p.User())

	name, source := opts.Config.ResolveBackend(opts.Backend)
	backend, err := platform.Get(name)
	if err != nil {
		return nil, err
	}
	logger.Debug("🔌 Selected backend", "backend", name, "source", source)

	ctx, err := backend.Init(p)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise %s backend: %w", name, err)
	}
	ctx.Logger = logger.Named(name)
	if opts.Runner != nil {
		ctx.Runner = opts.Runner
	}
	if ctx.Wine, err = opts.Config.WineCommand(); err != nil {
		return nil, err
	}
	if ctx.LauncherMode, err = opts.Config.LauncherFileMode(); err != nil {
		return nil, err
	}

	store, err := registry.OpenStore(opts.Config.StatePath(), logger)
	if err != nil {
		return nil, err
	}
	ctx.Store = store

	loader := opts.Loader
	if loader == nil {
		loader = lnk.NativeLoader()
	}

	return &Builder{
		opts:     opts,
		logger:   logger,
		prefix:   p,
		backend:  backend,
		ctx:      ctx,
		store:    store,
		resolver: &shortcut.Resolver{Prefix: p, Logger: logger, Loader: loader},
		cache:    iconcache.New(filepath.Join(xdgdirs.CacheRoot(), "markers")),
	}, nil
}

// Store returns the persisted state.
func (b *Builder) Store() *registry.Store {
	return b.store
}

// Context returns the backend context.
func (b *Builder) Context() *platform.Context {
	return b.ctx
}

// withLock runs fn while holding the cross-process menu lock.
func (b *Builder) withLock(fn func() error) error {
	var (
		l   *lock.Lock
		err error
	)
	if b.opts.LockDir != "" {
		l, err = lock.AcquireIn(b.opts.LockDir, lock.DefaultName, b.logger)
	} else {
		l, err = lock.Acquire(lock.DefaultName, b.logger)
	}
	if err != nil {
		return err
	}
	defer l.Release()

	if err := fn(); err != nil {
		return err
	}
	return b.store.Save()
}

// hostPath maps a Windows path into the host filesystem; host paths are
// made absolute.
func (b *Builder) hostPath(path string) (string, error) {
	if !isWindowsPath(path) {
		return filepath.Abs(path)
	}
	return b.prefix.ToUnix(path)
}

func isWindowsPath(path string) bool {
	if strings.HasPrefix(path, "/") {
		return false
	}
	return strings.ContainsRune(path, '\\') || (len(path) >= 2 && path[1] == ':')
}

// ==================== Shortcuts ====================

// locate finds the special folder a shortcut is in and its host path. A
// shortcut outside the eligible folders is reported and skipped.
func (b *Builder) locate(path string) (shortcut.Location, string, string, error) {
	host, err := b.hostPath(path)
	if err != nil {
		return shortcut.Unknown, "", "", fmt.Errorf("failed to locate shortcut %s: %w", path, err)
	}
	lookup := host
	if isWindowsPath(path) {
		lookup = path
	}
	location, rest := shortcut.LocateLink(b.prefix, lookup)
	if !location.Eligible() {
		b.logger.Info("⏭️ Shortcut is not in a menu or desktop folder", "path", path, "location", location)
	}
	return location, rest, host, nil
}

// ProcessLink writes the launcher for a .lnk file.
func (b *Builder) ProcessLink(linkPath string) error {
	return b.retryAfterParent(func(wait bool) error {
		return b.processLink(linkPath, wait)
	})
}

// ProcessURL writes the launcher for a .url file.
func (b *Builder) ProcessURL(urlPath string) error {
	return b.retryAfterParent(func(wait bool) error {
		return b.processURL(urlPath, wait)
	})
}

// retryAfterParent runs attempt once; if it is waiting for an icon, it
// waits for the parent process to exit and runs it once more without
// waiting.
func (b *Builder) retryAfterParent(attempt func(wait bool) error) error {
	err := b.withLock(func() error { return attempt(b.opts.Wait) })
	if !errors.Is(err, errIconPending) {
		return err
	}

	pid := b.opts.ParentPID
	if pid == 0 {
		pid = os.Getppid()
	}
	b.logger.Info("⏳ Waiting for parent process before retrying icon", "pid", pid)
	if err := lock.WaitForProcessExit(pid, b.logger); err != nil {
		return fmt.Errorf("failed to wait for parent process: %w", err)
	}
	return b.withLock(func() error { return attempt(false) })
}

func (b *Builder) processLink(linkPath string, wait bool) error {
	location, rest, host, err := b.locate(linkPath)
	if err != nil || !location.Eligible() {
		return err
	}
	desc, err := b.resolver.Resolve(host)
	if err != nil {
		return err
	}
	b.logger.Debug("🔗 Resolved shortcut", "path", host, "target", desc.Target, "args", desc.Arguments)

	iconName, err := b.linkIcon(desc)
	if err != nil {
		if wait {
			return errIconPending
		}
		b.logger.Warn("⚠️ Writing launcher without icon", "path", host, "error", err)
	}

	link := &platform.Link{
		Name:        shortcut.Name(linkPath),
		Location:    location,
		MenuPath:    menuFolders(rest),
		Source:      host,
		Args:        append([]string{desc.Target}, shortcut.SplitWindowsArgs(desc.Arguments)...),
		Description: desc.Description,
		Icon:        iconName,
		WMClass:     wmClass(desc),
	}
	if desc.WorkDir != "" {
		if dir, err := b.prefix.ToUnix(desc.WorkDir); err == nil {
			link.WorkDir = dir
		}
	}
	return b.build(link)
}

func (b *Builder) processURL(urlPath string, wait bool) error {
	location, rest, host, err := b.locate(urlPath)
	if err != nil || !location.Eligible() {
		return err
	}
	sc, err := urlfile.Load(host)
	if err != nil {
		return err
	}
	b.logger.Debug("🌐 Resolved internet shortcut", "path", host, "url", sc.URL)

	var iconName string
	if sc.IconFile != "" {
		iconName, err = b.iconFor(sc.IconFile, sc.IconIndex)
		if err != nil {
			if wait {
				return errIconPending
			}
			b.logger.Warn("⚠️ Writing launcher without icon", "path", host, "error", err)
		}
	}

	return b.build(&platform.Link{
		Name:     shortcut.Name(urlPath),
		Location: location,
		MenuPath: menuFolders(rest),
		Source:   host,
		Args:     []string{"start", "/unix", host},
		Icon:     iconName,
	})
}

func (b *Builder) build(link *platform.Link) error {
	var err error
	if link.Location.IsDesktop() {
		err = b.backend.BuildDesktopLink(b.ctx, link)
	} else {
		err = b.backend.BuildMenuLink(b.ctx, link)
	}
	if err != nil {
		return fmt.Errorf("failed to write launcher for %s: %w", link.Source, err)
	}
	b.logger.Info("✅ Wrote launcher", "name", link.Name, "location", link.Location)
	return nil
}

// menuFolders returns the folders of a path relative to a special folder.
func menuFolders(rest string) []string {
	parts := strings.Split(strings.Trim(rest, `\`), `\`)
	if len(parts) <= 1 {
		return nil
	}
	return parts[:len(parts)-1]
}

func wmClass(desc *shortcut.Descriptor) string {
	if desc.Original != "" || strings.EqualFold(desc.Target, shortcut.StartExe) {
		return ""
	}
	base := desc.Target[strings.LastIndexAny(desc.Target, `\/`)+1:]
	return strings.ToLower(base)
}

// ==================== Maintenance ====================

// Cleanup removes launchers whose source shortcut no longer exists and
// returns how many were removed.
func (b *Builder) Cleanup() (int, error) {
	removed := 0
	err := b.withLock(func() error {
		for _, artifact := range b.store.MenuFiles() {
			source, _ := b.store.MenuFileSource(artifact)
			if _, err := os.Stat(source); err == nil || !os.IsNotExist(err) {
				continue
			}
			if err := os.RemoveAll(artifact); err != nil {
				b.logger.Warn("⚠️ Failed to remove stale launcher", "path", artifact, "error", err)
				continue
			}
			b.store.RemoveMenuFile(artifact)
			removed++
			b.logger.Info("🗑️ Removed stale launcher", "path", artifact, "source", source)
		}
		return nil
	})
	return removed, err
}
