// Package shortcut turns Windows shortcut files into the command, icon and
// placement information menubuilder needs to write native launchers.
package shortcut

import (
	"fmt"
	"path"
	"strings"

	"github.com/hashicorp/go-hclog"

	mberrors "github.com/provide-io/menubuilder/go/menubuilder/pkg/errors"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/prefix"
)

// StartExe launches documents and URLs through their registered handler.
const StartExe = `C:\windows\command\start.exe`

// Descriptor is the content of one shortcut.
type Descriptor struct {
	Target      string
	Arguments   string
	WorkDir     string
	Description string
	IconPath    string
	IconIndex   int

	// DarwinCommand is the MSI (Darwin) descriptor of an advertised shortcut.
	DarwinCommand string

	HasIDList  bool
	IDListPath string

	// Original is the target before it was rewritten to go through start.exe.
	Original string
}

// Loader reads a shortcut file without interpreting it.
type Loader interface {
	Load(path string) (*Descriptor, error)
}

// Resolver loads shortcuts and normalises them into launchable commands.
type Resolver struct {
	Prefix *prefix.Prefix
	Logger hclog.Logger
	Loader Loader
}

var executableExts = map[string]bool{
	".exe": true,
	".com": true,
	".bat": true,
	".cmd": true,
	".lnk": true,
}

// Resolve loads lnkPath and returns its descriptor with environment
// references expanded and non-executable targets routed through start.exe.
func (r *Resolver) Resolve(lnkPath string) (*Descriptor, error) {
	logger := r.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	d, err := r.Loader.Load(lnkPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load shortcut %s: %w", lnkPath, err)
	}

	expand := r.Prefix.ExpandEnv
	d.Target = expand(d.Target)
	d.Arguments = expand(d.Arguments)
	d.WorkDir = expand(d.WorkDir)
	d.IconPath = expand(d.IconPath)

	if d.Target == "" && d.HasIDList && d.IDListPath != "" {
		logger.Debug("🔍 Using shell item path", "path", d.IDListPath)
		d.Target = d.IDListPath
	}

	switch {
	case d.Target == "" && d.DarwinCommand != "":
		// Advertised MSI shortcut: let start.exe open the link itself.
		unixLink, err := r.Prefix.ToUnix(lnkPath)
		if err != nil {
			unixLink = lnkPath
		}
		logger.Debug("📦 Advertised shortcut", "darwin", d.DarwinCommand)
		d.Target = StartExe
		d.Arguments = "/unix " + QuoteWindowsArg(unixLink)

	case d.Target == "":
		return nil, fmt.Errorf("shortcut %s has no target: %w", lnkPath, mberrors.ErrInvalidShortcut)

	case !IsExecutable(d.Target):
		d.Original = d.Target
		startArgs := QuoteWindowsArg(d.Target)
		if unixTarget, err := r.Prefix.ToUnix(d.Target); err == nil {
			startArgs = "/unix " + QuoteWindowsArg(unixTarget)
		}
		if d.Arguments != "" {
			startArgs += " " + d.Arguments
		}
		logger.Debug("🔀 Routing document through start.exe", "target", d.Target)
		d.Target = StartExe
		d.Arguments = startArgs
	}

	return d, nil
}

// IsExecutable reports whether a Windows path names something wine can run
// directly.
func IsExecutable(winPath string) bool {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(winPath, `\`, "/")))
	return executableExts[ext]
}

// Name returns the display name of a shortcut path: its base name without
// the extension.
func Name(linkPath string) string {
	base := path.Base(strings.ReplaceAll(linkPath, `\`, "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}
