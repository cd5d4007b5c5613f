package platform

import "github.com/provide-io/menubuilder/go/menubuilder/pkg/prefix"

// None accepts every request and writes nothing.
type None struct{}

func init() {
	Register(None{})
}

func (None) Name() string { return "none" }

func (None) Init(env *prefix.Prefix) (*Context, error) {
	return NewContext(env, nil), nil
}

func (None) BuildDesktopLink(ctx *Context, link *Link) error { return nil }

func (None) BuildMenuLink(ctx *Context, link *Link) error { return nil }

func (None) WriteIcon(ctx *Context, req *IconRequest) (string, error) { return "", nil }

func (None) Associations() AssociationHooks { return nil }
