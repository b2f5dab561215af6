// Package mirror publishes user store snapshots into a local directory,
// typically a synced or separately versioned working copy.
package mirror

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-sale-provisioner/internal/domain"
)

const stagingDir = ".staging"

// Publisher writes the snapshot to dir/file. Every publish starts from a
// freshly reset staging area, so callers must not run two publishes at once.
type Publisher struct {
	dir  string
	file string
}

func NewPublisher(dir, file string) *Publisher {
	return &Publisher{dir: dir, file: file}
}

func (p *Publisher) Publish(ctx context.Context, snap domain.Snapshot) error {
	data, err := snap.Marshal()
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	staging := filepath.Join(p.dir, stagingDir)
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("reset staging: %w", err)
	}
	if err := os.MkdirAll(staging, 0o700); err != nil {
		return fmt.Errorf("create staging: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp := filepath.Join(staging, p.file)
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open staging file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write staging file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close staging file: %w", err)
	}

	if err := os.Rename(tmp, filepath.Join(p.dir, p.file)); err != nil {
		return fmt.Errorf("move snapshot into place: %w", err)
	}
	return nil
}

func (p *Publisher) String() string { return filepath.Join(p.dir, p.file) }
