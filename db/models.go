package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Content types map to the instance subfolder a mod file lives in.
const (
	ContentMod          = "mod"
	ContentResourcePack = "resourcepack"
	ContentShaderPack   = "shaderpack"
)

// Instance states. An installing instance must not be touched by sync.
const (
	InstanceIdle       = "idle"
	InstanceInstalling = "installing"
)

// ContentTypeForClass maps a registry class id to a content type. 6 is the
// mods class, 12 resource packs, 6552 shader packs.
func ContentTypeForClass(classID int) string {
	switch classID {
	case 12:
		return ContentResourcePack
	case 6552:
		return ContentShaderPack
	default:
		return ContentMod
	}
}

// StringList is an ordered list of ids stored as a JSON text column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *StringList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case string:
		return json.Unmarshal([]byte(v), l)
	case []byte:
		return json.Unmarshal(v, l)
	default:
		return fmt.Errorf("unsupported type for StringList: %T", src)
	}
}

// Contains reports whether id is present in the list.
func (l StringList) Contains(id string) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

// without returns a copy of the list with id removed.
func (l StringList) without(id string) StringList {
	out := make(StringList, 0, len(l))
	for _, v := range l {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// ModSnapshot is a denormalized copy of a Mod's identity fields, recorded on
// a PackVersion so the mod can be re-acquired even if it is later deleted
// from the library.
type ModSnapshot struct {
	ModID        string `json:"modId"`
	ProjectID    int    `json:"projectId"`
	FileID       int    `json:"fileId"`
	FileName     string `json:"fileName"`
	ContentType  string `json:"contentType"`
	DisplayName  string `json:"displayName"`
	VersionLabel string `json:"versionLabel"`
	Disabled     bool   `json:"disabled,omitempty"`
}

// SnapshotList is stored as a JSON text column.
type SnapshotList []ModSnapshot

func (l SnapshotList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *SnapshotList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = SnapshotList{}
		return nil
	case string:
		return json.Unmarshal([]byte(v), l)
	case []byte:
		return json.Unmarshal(v, l)
	default:
		return fmt.Errorf("unsupported type for SnapshotList: %T", src)
	}
}

// Modpack is the declarative record of desired mods and overrides for a
// game setup.
type Modpack struct {
	gorm.Model
	PackID         string     `gorm:"uniqueIndex"` // Opaque public pack identifier
	Name           string     // Display name
	ModIDs         StringList `gorm:"type:text"` // Ordered, unique mod ids
	DisabledModIDs StringList `gorm:"type:text"` // Always a subset of ModIDs
	LockedModIDs   StringList `gorm:"type:text"` // Always a subset of ModIDs
	Loader         string     // e.g. fabric, forge
	LoaderVersion  string
	GameVersion    string
	OverridesPath  string // Source folder for config/override files
}

// AddModID appends id to the mod set if not already present. Returns true if
// the set changed.
func (p *Modpack) AddModID(id string) bool {
	if p.ModIDs.Contains(id) {
		return false
	}
	p.ModIDs = append(p.ModIDs, id)
	return true
}

// RemoveModID removes id from the mod set and from the disabled/locked
// subsets, keeping the subset invariants intact. Returns true if the set
// changed.
func (p *Modpack) RemoveModID(id string) bool {
	if !p.ModIDs.Contains(id) {
		return false
	}
	p.ModIDs = p.ModIDs.without(id)
	p.DisabledModIDs = p.DisabledModIDs.without(id)
	p.LockedModIDs = p.LockedModIDs.without(id)
	return true
}

// SetModDisabled flags or unflags a member mod as disabled. Ids not in the
// mod set are ignored so DisabledModIDs stays a subset of ModIDs.
func (p *Modpack) SetModDisabled(id string, disabled bool) {
	if !p.ModIDs.Contains(id) {
		return
	}
	if disabled {
		if !p.DisabledModIDs.Contains(id) {
			p.DisabledModIDs = append(p.DisabledModIDs, id)
		}
	} else {
		p.DisabledModIDs = p.DisabledModIDs.without(id)
	}
}

// IsModDisabled reports whether id is flagged disabled.
func (p *Modpack) IsModDisabled(id string) bool {
	return p.DisabledModIDs.Contains(id)
}

// Mod is a single library entry. Immutable once created: a version change is
// a new Mod with a new FileID, never an in-place mutation.
type Mod struct {
	gorm.Model
	ModID        string `gorm:"uniqueIndex"` // Opaque public mod identifier
	FileName     string // Installed file name
	ContentType  string // mod, resourcepack or shaderpack
	ProjectID    int    // Registry project id
	FileID       int    // Registry file id
	DisplayName  string
	VersionLabel string
}

// Instance is the on-disk game installation a modpack is synchronized onto.
type Instance struct {
	gorm.Model
	InstanceID    string `gorm:"uniqueIndex"`
	Path          string // Filesystem root of the installation
	Loader        string
	LoaderVersion string
	ModpackID     string // Linked pack id, empty if not linked
	State         string // idle or installing
	LastSynced    time.Time
}

// PackVersion is an immutable snapshot of a modpack's mod set. Created only
// by the version engine; never mutated, only superseded.
type PackVersion struct {
	gorm.Model
	VersionID     string `gorm:"uniqueIndex"`
	ModpackID     string `gorm:"index"`
	Message       string
	Tag           string
	ModIDs        StringList   `gorm:"type:text"`
	Snapshots     SnapshotList `gorm:"type:text"`
	Loader        string
	LoaderVersion string
}

// SnapshotFor returns the snapshot entry for a mod id, if recorded.
func (v *PackVersion) SnapshotFor(modID string) (ModSnapshot, bool) {
	for _, s := range v.Snapshots {
		if s.ModID == modID {
			return s, true
		}
	}
	return ModSnapshot{}, false
}
