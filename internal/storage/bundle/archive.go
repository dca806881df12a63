package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bobbyquantum/inkweld-sub009/internal/core/domain"
)

const (
	filePrefix    = "bundle-"
	FileExtension = ".iwsnap"

	DefaultRetentionCount = 5
)

// Config configures an on-disk archive.
type Config struct {
	Dir string

	// RetentionCount is how many bundles Prune keeps.
	RetentionCount int
}

// DefaultConfig returns the default archive configuration.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:            dir,
		RetentionCount: DefaultRetentionCount,
	}
}

// Archive is a directory of bundle files named
// bundle-<timestamp>-<sequence>.iwsnap.
type Archive struct {
	cfg Config
	now func() time.Time
}

// NewArchive creates the archive directory if needed.
func NewArchive(cfg Config) (*Archive, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("bundle: dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
		return nil, fmt.Errorf("bundle: create dir: %w", err)
	}
	if cfg.RetentionCount == 0 {
		cfg.RetentionCount = DefaultRetentionCount
	}
	return &Archive{cfg: cfg, now: time.Now}, nil
}

// Dir returns the archive directory.
func (a *Archive) Dir() string {
	return a.cfg.Dir
}

// Info contains metadata about a bundle file.
type Info struct {
	ID          string    `json:"id"`
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	Checksum    string    `json:"checksum,omitempty"`
	RecordCount int       `json:"record_count,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Create writes recs to a new bundle file. The file appears under its final
// name only once fully written and synced.
func (a *Archive) Create(meta Meta, recs []*domain.SnapshotRecord) (*Info, error) {
	now := a.now()
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}
	id := a.generateID(now)

	tempPath := filepath.Join(a.cfg.Dir, id+".tmp")
	file, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("bundle: create temp file: %w", err)
	}
	defer os.Remove(tempPath)

	sum, err := Write(file, meta, recs)
	if err != nil {
		file.Close()
		return nil, err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return nil, fmt.Errorf("bundle: sync: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("bundle: close: %w", err)
	}

	stat, err := os.Stat(tempPath)
	if err != nil {
		return nil, err
	}

	finalPath := filepath.Join(a.cfg.Dir, id+FileExtension)
	if err := os.Rename(tempPath, finalPath); err != nil {
		return nil, fmt.Errorf("bundle: rename: %w", err)
	}

	return &Info{
		ID:          id,
		Path:        finalPath,
		Size:        stat.Size(),
		Checksum:    sum,
		RecordCount: len(recs),
		CreatedAt:   meta.CreatedAt,
	}, nil
}

// Load reads the bundle with the given id.
func (a *Archive) Load(id string) (*Bundle, *Info, error) {
	id = strings.TrimSuffix(filepath.Base(id), FileExtension)
	path := filepath.Join(a.cfg.Dir, id+FileExtension)
	return LoadFile(path)
}

// Latest reads the newest valid bundle, skipping corrupted files.
func (a *Archive) Latest() (*Bundle, *Info, error) {
	infos, err := a.List()
	if err != nil {
		return nil, nil, err
	}
	for i := len(infos) - 1; i >= 0; i-- {
		b, info, err := LoadFile(infos[i].Path)
		if err == nil {
			return b, info, nil
		}
	}
	return nil, nil, ErrNotFound
}

// LoadFile reads and verifies a bundle file.
func LoadFile(path string) (*Bundle, *Info, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}

	b, err := Read(f)
	if err != nil {
		return nil, nil, err
	}

	return b, &Info{
		ID:          strings.TrimSuffix(filepath.Base(path), FileExtension),
		Path:        path,
		Size:        stat.Size(),
		Checksum:    b.Checksum,
		RecordCount: len(b.Records),
		CreatedAt:   b.Meta.CreatedAt,
	}, nil
}

// List lists bundle files oldest first (metadata from the file system only).
func (a *Archive) List() ([]*Info, error) {
	entries, err := os.ReadDir(a.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, FileExtension) {
			paths = append(paths, filepath.Join(a.cfg.Dir, name))
		}
	}
	sort.Strings(paths)

	var infos []*Info
	for _, p := range paths {
		stat, err := os.Stat(p)
		if err != nil {
			continue
		}
		infos = append(infos, &Info{
			ID:        strings.TrimSuffix(filepath.Base(p), FileExtension),
			Path:      p,
			Size:      stat.Size(),
			CreatedAt: stat.ModTime(),
		})
	}
	return infos, nil
}

// Prune keeps the newest RetentionCount bundles and deletes the rest.
// Returns the number of files removed.
func (a *Archive) Prune() (int, error) {
	infos, err := a.List()
	if err != nil {
		return 0, err
	}
	excess := len(infos) - a.cfg.RetentionCount
	if excess <= 0 {
		return 0, nil
	}

	removed := 0
	for _, info := range infos[:excess] {
		if err := os.Remove(info.Path); err == nil {
			removed++
		}
	}
	return removed, nil
}

func (a *Archive) generateID(t time.Time) string {
	ts := t.UTC().Format("20060102150405")
	prefix := filePrefix + ts + "-"
	seq := 0

	// Sequence continues after the highest existing one.
	entries, _ := os.ReadDir(a.cfg.Dir)
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, FileExtension) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, prefix), FileExtension))
		if err == nil && n > seq {
			seq = n
		}
	}

	return fmt.Sprintf("%s%04d", prefix, seq+1)
}
