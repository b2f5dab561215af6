// Package filestore keeps user records in a single JSON document that is
// rewritten in full on every change.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-sale-provisioner/internal/domain"
)

// fileRecord is the on-disk shape of a record. password and credits keep the
// legacy credentials.json keys so existing consumers can still read the file.
type fileRecord struct {
	Secret       string     `json:"password"`
	Credits      int        `json:"credits"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastAccessAt *time.Time `json:"last_access_at,omitempty"`
}

// UserRepo is a flat-file user store. A single mutex covers read-modify-write
// cycles, and writes go through a temp file plus rename so readers never see
// a half-written document.
type UserRepo struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

func NewUserRepo(path string) *UserRepo {
	return &UserRepo{path: path, now: func() time.Time { return time.Now().UTC() }}
}

func (r *UserRepo) Upsert(ctx context.Context, email, secretHash string, credits int) (*domain.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("upsert user: %w: %w", domain.ErrStorage, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load()
	if err != nil {
		return nil, err
	}
	now := r.now()
	rec, ok := users[email]
	if !ok {
		rec.CreatedAt = now
	}
	rec.Secret = secretHash
	rec.Credits = credits
	rec.UpdatedAt = now
	users[email] = rec

	if err := r.save(users); err != nil {
		return nil, err
	}
	return toDomain(email, rec), nil
}

func (r *UserRepo) Exists(ctx context.Context, email string) (bool, error) {
	_, err := r.Get(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *UserRepo) Get(_ context.Context, email string) (*domain.UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load()
	if err != nil {
		return nil, err
	}
	rec, ok := users[email]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", email, domain.ErrNotFound)
	}
	return toDomain(email, rec), nil
}

func (r *UserRepo) Snapshot(_ context.Context) (domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load()
	if err != nil {
		return nil, err
	}
	snap := make(domain.Snapshot, len(users))
	for email, rec := range users {
		snap[email] = domain.SnapshotEntry{Secret: rec.Secret, Credits: rec.Credits}
	}
	return snap, nil
}

// Ping checks that the store file can be read and that its directory accepts
// new files.
func (r *UserRepo) Ping(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.load(); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(r.path), ".ping-*")
	if err != nil {
		return fmt.Errorf("store directory not writable: %w: %w", domain.ErrStorage, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return nil
}

func (r *UserRepo) load() (map[string]fileRecord, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]fileRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", r.path, domain.ErrStorage, err)
	}
	users := map[string]fileRecord{}
	if len(data) == 0 {
		return users, nil
	}
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("decode %s: %w: %w", r.path, domain.ErrStorage, err)
	}
	return users, nil
}

func (r *UserRepo) save(users map[string]fileRecord) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("encode users: %w: %w", domain.ErrStorage, err)
	}
	if err := WriteFileAtomic(r.path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w: %w", r.path, domain.ErrStorage, err)
	}
	return nil
}

// WriteFileAtomic writes data next to path and renames it into place.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func toDomain(email string, rec fileRecord) *domain.UserRecord {
	return &domain.UserRecord{
		Email:        email,
		SecretHash:   rec.Secret,
		Credits:      rec.Credits,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
		LastAccessAt: rec.LastAccessAt,
	}
}
