package menubuilder

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/provide-io/menubuilder/go/menubuilder/pkg/assoc"
	mberrors "github.com/provide-io/menubuilder/go/menubuilder/pkg/errors"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/icon"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/platform"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/registry"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/shortcut"
)

// genericIcon is used when nothing more specific can be found.
var genericIcon = iconRef{path: `C:\windows\system32\shell32.dll`, index: -1}

const systemDir = `C:\windows\system32`

type iconRef struct {
	path  string
	index int
}

// iconCandidates lists where an icon for desc may come from, best first:
// the shortcut's own icon, the target program, the target's file type and
// the generic icon.
func (b *Builder) iconCandidates(desc *shortcut.Descriptor) []iconRef {
	var refs []iconRef
	if desc.IconPath != "" {
		refs = append(refs, iconRef{desc.IconPath, desc.IconIndex})
	}

	target := desc.Target
	if desc.Original != "" {
		target = desc.Original
	}
	if target != "" && !strings.EqualFold(target, shortcut.StartExe) {
		if shortcut.IsExecutable(target) {
			refs = append(refs, iconRef{target, 0})
		} else if ext := path.Ext(strings.ReplaceAll(target, `\`, "/")); ext != "" {
			if file, index, ok := b.classSource().DefaultIcon(strings.ToLower(ext)); ok {
				refs = append(refs, iconRef{file, index})
			}
		}
	}
	return append(refs, genericIcon)
}

// iconHostPath maps an icon location to the host filesystem. Bare file
// names are looked up in the system directory.
func (b *Builder) iconHostPath(location string) (string, error) {
	if !strings.HasPrefix(location, "/") && !strings.ContainsAny(location, `\:`) {
		location = systemDir + `\` + location
	}
	return b.hostPath(location)
}

func (b *Builder) openIcon(ref iconRef) (*icon.Source, error) {
	host, err := b.iconHostPath(ref.path)
	if err != nil {
		return nil, err
	}
	return icon.Open(host, ref.index)
}

// linkIcon walks the candidates for desc and returns the first icon name
// the backend accepts.
func (b *Builder) linkIcon(desc *shortcut.Descriptor) (string, error) {
	var errs []error
	for _, ref := range b.iconCandidates(desc) {
		name, err := b.iconFor(ref.path, ref.index)
		if err == nil {
			return name, nil
		}
		b.logger.Debug("🔍 Icon candidate failed", "path", ref.path, "index", ref.index, "error", err)
		errs = append(errs, err)
	}
	return "", errors.Join(errs...)
}

// iconFor converts one icon through the backend, reusing an earlier
// conversion when its source is unchanged.
func (b *Builder) iconFor(location string, index int) (string, error) {
	host, err := b.iconHostPath(location)
	if err != nil {
		return "", err
	}
	id := icon.ComputeIdentifier(host, index)
	if name, ok := b.cache.Lookup(id, host, index); ok {
		b.logger.Trace("♻️ Icon already converted", "id", id)
		return name, nil
	}

	src, err := icon.Open(host, index)
	if err != nil {
		return "", err
	}
	req := &platform.IconRequest{Identifier: id, Source: src}
	name, err := b.backend.WriteIcon(b.ctx, req)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", nil
	}
	if err := b.cache.MarkConverted(id, host, index, name, req.Outputs); err != nil {
		b.logger.Warn("⚠️ Failed to record icon conversion", "id", id, "error", err)
	}
	return name, nil
}

// classSource loads the prefix's file-type classes on first use.
func (b *Builder) classSource() *registry.ClassesSource {
	if b.classes != nil {
		return b.classes
	}
	cfg := b.opts.Config
	userFile, systemFile := cfg.RegistryFiles(b.prefix)
	classes := &registry.ClassesSource{}

	if user, err := registry.LoadRegFile(userFile); err == nil {
		classes.User = user
	} else {
		b.logger.Debug("⚠️ No user registry", "path", userFile, "error", err)
	}

	if cfg.Registry.Hive != "" {
		if hive, err := registry.OpenHive(cfg.Registry.Hive, "Software"); err == nil {
			classes.Machine = hive
		} else {
			b.logger.Warn("⚠️ Failed to open registry hive", "path", cfg.Registry.Hive, "error", err)
		}
	} else if system, err := registry.LoadRegFile(systemFile); err == nil {
		classes.Machine = system
	} else {
		b.logger.Debug("⚠️ No system registry", "path", systemFile, "error", err)
	}

	b.classes = classes
	return classes
}

// ==================== Associations ====================

// Associations synchronizes file-type associations and reports whether
// any registration changed.
func (b *Builder) Associations() (bool, error) {
	changed := false
	err := b.withLock(func() error {
		sync := &assoc.Synchronizer{
			Source:  b.classSource(),
			Store:   b.store,
			Backend: b.backend,
			Ctx:     b.ctx,
			Logger:  b.logger.Named("assoc"),
			Icons: func(ext, executable string) string {
				name, err := b.iconFor(executable, 0)
				if err != nil {
					b.logger.Debug("⚠️ No icon for association", "ext", ext, "error", err)
				}
				return name
			},
		}
		var err error
		changed, err = sync.Sync()
		return err
	})
	return changed, err
}

// ==================== Thumbnails ====================

// Thumbnail writes the best icon for input as a PNG to out. input may be a
// shortcut or any icon container.
func (b *Builder) Thumbnail(input, out string) error {
	host, err := b.hostPath(input)
	if err != nil {
		return fmt.Errorf("failed to locate %s: %w", input, err)
	}

	refs := []iconRef{{host, 0}}
	if strings.EqualFold(path.Ext(host), ".lnk") {
		desc, err := b.resolver.Resolve(host)
		if err != nil {
			return err
		}
		refs = b.iconCandidates(desc)
	}

	var errs []error
	for _, ref := range refs {
		src, err := b.openIcon(ref)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		conv := icon.NewConverter(b.logger)
		if err := conv.WriteFile(out, src, conv.ConvertToPNG); err != nil {
			return fmt.Errorf("failed to write thumbnail %s: %w", out, err)
		}
		b.logger.Info("🖼️ Wrote thumbnail", "input", input, "output", out)
		return nil
	}
	return fmt.Errorf("no icon for %s: %w", input, errors.Join(append(errs, mberrors.ErrNotFound)...))
}
