package db

import (
	"gorm.io/gorm"
)

// Store is the metadata store: CRUD over packs, mods, instances and version
// history. Single-record reads and writes go through gorm, which gives us
// atomic read-modify-write per record.
type Store struct {
	gdb *gorm.DB
}

// NewStore wraps an open gorm handle.
func NewStore(gdb *gorm.DB) *Store {
	return &Store{gdb: gdb}
}

func (s *Store) GetModpack(packID string) (*Modpack, error) {
	var pack Modpack
	if err := s.gdb.Where("pack_id = ?", packID).First(&pack).Error; err != nil {
		return nil, err
	}
	return &pack, nil
}

func (s *Store) CreateModpack(pack *Modpack) error {
	return s.gdb.Create(pack).Error
}

func (s *Store) SaveModpack(pack *Modpack) error {
	return s.gdb.Save(pack).Error
}

func (s *Store) GetMod(modID string) (*Mod, error) {
	var mod Mod
	if err := s.gdb.Where("mod_id = ?", modID).First(&mod).Error; err != nil {
		return nil, err
	}
	return &mod, nil
}

func (s *Store) CreateMod(mod *Mod) error {
	return s.gdb.Create(mod).Error
}

func (s *Store) DeleteMod(modID string) error {
	return s.gdb.Where("mod_id = ?", modID).Delete(&Mod{}).Error
}

// GetInstanceForModpack returns the instance linked to packID, or
// gorm.ErrRecordNotFound if no instance is linked.
func (s *Store) GetInstanceForModpack(packID string) (*Instance, error) {
	var inst Instance
	if err := s.gdb.Where("modpack_id = ?", packID).First(&inst).Error; err != nil {
		return nil, err
	}
	return &inst, nil
}

func (s *Store) GetInstance(instanceID string) (*Instance, error) {
	var inst Instance
	if err := s.gdb.Where("instance_id = ?", instanceID).First(&inst).Error; err != nil {
		return nil, err
	}
	return &inst, nil
}

func (s *Store) SaveInstance(inst *Instance) error {
	return s.gdb.Save(inst).Error
}

func (s *Store) CreateVersion(v *PackVersion) error {
	return s.gdb.Create(v).Error
}

func (s *Store) GetVersion(versionID string) (*PackVersion, error) {
	var v PackVersion
	if err := s.gdb.Where("version_id = ?", versionID).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// LatestVersion returns the most recently created version for a pack, or
// gorm.ErrRecordNotFound if the pack has no history yet.
func (s *Store) LatestVersion(packID string) (*PackVersion, error) {
	var v PackVersion
	if err := s.gdb.Where("modpack_id = ?", packID).Order("created_at DESC").First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVersions returns a pack's history, newest first.
func (s *Store) ListVersions(packID string) ([]PackVersion, error) {
	var versions []PackVersion
	if err := s.gdb.Where("modpack_id = ?", packID).Order("created_at DESC").Find(&versions).Error; err != nil {
		return nil, err
	}
	return versions, nil
}
