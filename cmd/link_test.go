package cmd

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"packsync/db"
)

func TestScanUnmanaged(t *testing.T) {
	dir := t.TempDir()
	modsDir := filepath.Join(dir, "mods")
	if err := os.MkdirAll(modsDir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.jar", "stray.jar", "stray2.jar.disabled", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(modsDir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	mods := fakeMods{"mod-a": {ModID: "mod-a", FileName: "a.jar"}}
	pack := &db.Modpack{PackID: "p", ModIDs: db.StringList{"mod-a"}}

	got := scanUnmanaged(mods, pack, dir)

	want := []string{
		filepath.Join("mods", "stray.jar"),
		filepath.Join("mods", "stray2.jar.disabled"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("unmanaged = %v, want %v", got, want)
	}
}
