package rates

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"

	"github.com/xenking/bike-order-form/internal/domain/rate"
	"github.com/xenking/bike-order-form/internal/kurzy"
)

var _ rate.Provider = (*Snapshot)(nil)

// Snapshot serves a rate table from a gzipped rate list file, as written by
// WriteSnapshot. It lets the service run without reaching the live feed.
type Snapshot struct {
	path string
}

// NewSnapshot returns a Snapshot reading path.
func NewSnapshot(path string) *Snapshot {
	return &Snapshot{path: path}
}

// Fetch reads and decodes the snapshot file.
func (s *Snapshot) Fetch(ctx context.Context) (*rate.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", s.path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "create gzip reader for %s", s.path)
	}
	defer func() { _ = gz.Close() }()

	tbl, err := kurzy.Decode(gz)
	if err != nil {
		return nil, errors.Wrapf(err, "read snapshot %s", s.path)
	}
	return tbl, nil
}

// WriteSnapshot atomically writes tbl to path as a gzipped rate list.
func WriteSnapshot(path string, tbl *rate.Table) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	var e jx.Encoder
	kurzy.Encode(&e, tbl)

	gz := pgzip.NewWriter(tmp)
	if _, err := gz.Write(e.Bytes()); err != nil {
		return errors.Wrap(err, "write snapshot")
	}
	if err := gz.Close(); err != nil {
		return errors.Wrap(err, "flush snapshot")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close snapshot")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "rename snapshot")
	}
	return nil
}
