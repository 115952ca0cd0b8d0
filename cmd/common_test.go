package cmd

import (
	"reflect"
	"testing"

	"packsync/db"

	"gorm.io/gorm"
)

type fakeMods map[string]*db.Mod

func (f fakeMods) GetMod(modID string) (*db.Mod, error) {
	mod, ok := f[modID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return mod, nil
}

type fakeHistory []db.PackVersion

func (f fakeHistory) ListVersions(string) ([]db.PackVersion, error) {
	return f, nil
}

func TestDesiredState(t *testing.T) {
	mods := fakeMods{
		"mod-a": {ModID: "mod-a", FileName: "a.jar", ContentType: db.ContentMod, ProjectID: 1, FileID: 10},
		"mod-b": {ModID: "mod-b", FileName: "b.jar", ContentType: db.ContentMod, ProjectID: 2, FileID: 20},
	}
	pack := &db.Modpack{
		PackID:         "p",
		ModIDs:         db.StringList{"mod-a", "mod-b", "mod-gone"},
		DisabledModIDs: db.StringList{"mod-b"},
	}

	desired, warnings := desiredState(mods, pack)

	if len(desired) != 2 {
		t.Fatalf("got %d desired mods, want 2", len(desired))
	}
	if desired[0].ID != "mod-a" || desired[0].Disabled {
		t.Errorf("desired[0] = %+v", desired[0])
	}
	if desired[1].ID != "mod-b" || !desired[1].Disabled {
		t.Errorf("mod-b should carry the disabled flag: %+v", desired[1])
	}
	if len(warnings) != 1 {
		t.Errorf("missing library record should produce one warning, got %v", warnings)
	}
}

func TestLockedFileNames(t *testing.T) {
	mods := fakeMods{
		"mod-a": {ModID: "mod-a", FileName: "a.jar"},
	}
	pack := &db.Modpack{
		PackID:       "p",
		ModIDs:       db.StringList{"mod-a"},
		LockedModIDs: db.StringList{"mod-a", "mod-gone"},
	}

	locked := lockedFileNames(mods, pack)

	if !reflect.DeepEqual(locked, map[string]bool{"a.jar": true}) {
		t.Errorf("locked = %v", locked)
	}
}

func TestPreviousFileNames(t *testing.T) {
	mods := fakeMods{
		"mod-a": {ModID: "mod-a", FileName: "a-2.0.jar"},
		"mod-b": {ModID: "mod-b", FileName: "b.jar"},
	}
	pack := &db.Modpack{
		PackID: "p",
		ModIDs: db.StringList{"mod-a", "mod-b"},
	}
	history := fakeHistory{
		{
			ModpackID: "p",
			ModIDs:    db.StringList{"mod-a", "mod-b", "mod-removed"},
			Snapshots: db.SnapshotList{
				{ModID: "mod-a", FileName: "a-1.0.jar"},    // older file of a current mod
				{ModID: "mod-b", FileName: "b.jar"},        // unchanged
				{ModID: "mod-removed", FileName: "r.jar"},  // no longer in the pack
			},
		},
	}

	previous := previousFileNames(history, mods, pack)

	if !reflect.DeepEqual(previous, map[string]string{"a-1.0.jar": "mod-a"}) {
		t.Errorf("previous = %v", previous)
	}
}
