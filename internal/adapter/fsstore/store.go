// Package fsstore stores downloaded media and profile info on the local
// filesystem. The path of a file is its own dedup key.
package fsstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cwygoda/feedgrab/internal/domain"
)

const (
	archivedDir  = "archived"
	profileInfo  = "info.json"
	dirPerm      = 0755
	filePerm     = 0644
	tempFileGlob = ".feedgrab-*"
)

// Store lays out files for one profile under root:
//
//	<root>/<profile>/info.json
//	<root>/<profile>/<kind>s/<id><ext>
//	<root>/<profile>/archived/<kind>s/<id><ext>
type Store struct {
	dir string
}

// New creates a Store for profile under root.
func New(root, profile string) *Store {
	return &Store{dir: filepath.Join(root, profile)}
}

// Dir returns the profile directory.
func (s *Store) Dir() string {
	return s.dir
}

// MediaPath returns the destination of media m.
func (s *Store) MediaPath(archived bool, m domain.Media, ext string) string {
	dir := s.dir
	if archived {
		dir = filepath.Join(dir, archivedDir)
	}
	return filepath.Join(dir, m.Kind.Dir(), strconv.FormatInt(m.ID, 10)+ext)
}

// Exists reports whether a file is present at path.
func (s *Store) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Save writes data to path. The file is written next to its destination
// and renamed into place, so a partial download never occupies path.
func (s *Store) Save(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tempFileGlob)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), filePerm); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

type profileJSON struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	About    string `json:"about"`
	JoinDate string `json:"joinDate"`
	Website  string `json:"website"`
	Wishlist string `json:"wishlist"`
	Location string `json:"location"`
	LastSeen string `json:"lastSeen"`
}

// SaveProfile writes info.json unless it already exists. It reports
// whether the file was written.
func (s *Store) SaveProfile(p *domain.Profile) (bool, error) {
	path := filepath.Join(s.dir, profileInfo)
	exists, err := s.Exists(path)
	if err != nil || exists {
		return false, err
	}

	data, err := json.Marshal(profileJSON{
		ID:       p.ID,
		Name:     p.Name,
		Username: p.Username,
		About:    p.About,
		JoinDate: p.JoinDate,
		Website:  p.Website,
		Wishlist: p.Wishlist,
		Location: p.Location,
		LastSeen: p.LastSeen,
	})
	if err != nil {
		return false, err
	}
	if err := s.Save(path, data); err != nil {
		return false, err
	}
	return true, nil
}

// LoadProfile reads info.json back.
func (s *Store) LoadProfile() (*domain.Profile, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, profileInfo))
	if err != nil {
		return nil, err
	}
	var pj profileJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return nil, fmt.Errorf("parse %s: %w", profileInfo, err)
	}
	return &domain.Profile{
		ID:       pj.ID,
		Name:     pj.Name,
		Username: pj.Username,
		About:    pj.About,
		JoinDate: pj.JoinDate,
		Website:  pj.Website,
		Wishlist: pj.Wishlist,
		Location: pj.Location,
		LastSeen: pj.LastSeen,
	}, nil
}
