package platform

import (
	"errors"
	"path/filepath"
	"testing"

	mberrors "github.com/provide-io/menubuilder/go/menubuilder/pkg/errors"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/prefix"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/registry"
)

func TestGet(t *testing.T) {
	b, err := Get("none")
	if err != nil {
		t.Fatalf("Get(none): %v", err)
	}
	if b.Name() != "none" {
		t.Errorf("Name() = %q", b.Name())
	}

	if _, err := Get("amiga"); !errors.Is(err, mberrors.ErrUnknownBackend) {
		t.Errorf("Get(amiga) = %v, want ErrUnknownBackend", err)
	}
}

func TestContext_Lifecycle(t *testing.T) {
	root := t.TempDir()
	store, err := registry.OpenStore(filepath.Join(root, "state.toml"), nil)
	if err != nil {
		t.Fatal(err)
	}

	var zero Context
	if zero.State() != StateUninitialized {
		t.Errorf("zero context state = %v", zero.State())
	}

	ctx := NewContext(prefix.New(root, "tester"), nil)
	ctx.Store = store
	if ctx.State() != StateInitialized {
		t.Errorf("new context state = %v", ctx.State())
	}

	ctx.Record("/out/App.desktop", `C:\link.lnk`)
	if ctx.State() != StateActive {
		t.Errorf("state after Record = %v", ctx.State())
	}
	if src, ok := store.MenuFileSource("/out/App.desktop"); !ok || src != `C:\link.lnk` {
		t.Errorf("MenuFileSource = %q, %v", src, ok)
	}
}

func TestNone(t *testing.T) {
	b := None{}
	ctx, err := b.Init(prefix.New(t.TempDir(), "tester"))
	if err != nil {
		t.Fatal(err)
	}
	if err := b.BuildDesktopLink(ctx, &Link{Name: "App"}); err != nil {
		t.Error(err)
	}
	if err := b.BuildMenuLink(ctx, &Link{Name: "App"}); err != nil {
		t.Error(err)
	}
	if name, err := b.WriteIcon(ctx, &IconRequest{}); err != nil || name != "" {
		t.Errorf("WriteIcon = %q, %v", name, err)
	}
	if b.Associations() != nil {
		t.Error("none backend reports association support")
	}
}
