package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "state.toml")

	store, err := OpenStore(path, nil)
	require.NoError(t, err)
	assert.Empty(t, store.MenuFiles())

	store.SetMenuFile("/home/u/Desktop/App.desktop", `C:\users\Public\Desktop\App.lnk`)
	store.SetAssociation(Association{Extension: ".FOO", MimeType: "application/x-foo", ProgID: "App.Foo", AppName: "Foo"})
	require.NoError(t, store.Save())

	reopened, err := OpenStore(path, nil)
	require.NoError(t, err)

	source, ok := reopened.MenuFileSource("/home/u/Desktop/App.desktop")
	assert.True(t, ok)
	assert.Equal(t, `C:\users\Public\Desktop\App.lnk`, source)

	a, ok := reopened.Association(".foo")
	require.True(t, ok)
	assert.Equal(t, ".foo", a.Extension)
	assert.Equal(t, "App.Foo", a.ProgID)
	assert.Equal(t, []string{".foo"}, reopened.AssociationExtensions())
}

func TestStore_SaveOnlyWhenDirty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.toml")
	store, err := OpenStore(path, nil)
	require.NoError(t, err)

	require.NoError(t, store.Save())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "clean store should not be written")

	a := Association{Extension: ".bar", MimeType: "text/x-bar", ProgID: "App.Bar"}
	store.SetAssociation(a)
	require.NoError(t, store.Save())

	_, err = os.Stat(path)
	require.NoError(t, err)

	store.SetAssociation(a)
	store.RemoveMenuFile("/not/recorded")
	assert.False(t, store.dirty, "no-op updates must not dirty the store")

	store.RemoveAssociation(".BAR")
	assert.True(t, store.dirty)
	require.NoError(t, store.Save())
	_, ok := store.Association(".bar")
	assert.False(t, ok)
}

func TestStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.toml")
	require.NoError(t, os.WriteFile(path, []byte("menu_files = [broken"), 0644))
	_, err := OpenStore(path, nil)
	assert.Error(t, err)
}
