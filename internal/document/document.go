package document

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/keithlinneman/htmlsplice/internal/cryptoutil"
	"github.com/keithlinneman/htmlsplice/internal/xerrors"
)

// ErrNotUTF8 is returned by Load when the file is not valid UTF-8 text.
var ErrNotUTF8 = errors.New("document is not valid UTF-8")

// Document is a text file loaded once into memory.
type Document struct {
	Path   string
	Text   string
	Mode   fs.FileMode
	SHA256 string
}

// Size returns the length of the document in bytes.
func (d *Document) Size() int { return len(d.Text) }

// Load reads the whole file at path and checks that it decodes as UTF-8.
func Load(path string) (*Document, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, xerrors.Wrapf(err, "stat %s", path)
	}
	if !fi.Mode().IsRegular() {
		return nil, xerrors.Newf("%s is not a regular file", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Wrapf(err, "read %s", path)
	}
	if !utf8.Valid(data) {
		return nil, xerrors.Wrapf(ErrNotUTF8, "decode %s", path)
	}

	return &Document{
		Path:   path,
		Text:   string(data),
		Mode:   fi.Mode().Perm(),
		SHA256: cryptoutil.SHA256Hex(data),
	}, nil
}

// test hooks
var (
	osRename  = os.Rename
	fileWrite = func(f *os.File, data []byte) (int, error) { return f.Write(data) }
)

// WriteFile writes data to a temp file next to path and renames it into
// place, so readers never see a partially written file. The temp file is
// removed on every failure path.
func WriteFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return xerrors.Wrapf(err, "create temp file in %s", dir)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := fileWrite(tmp, data); err != nil {
		return xerrors.Wrapf(err, "write %s", tmpPath)
	}
	if err := tmp.Sync(); err != nil {
		return xerrors.Wrapf(err, "sync %s", tmpPath)
	}
	if err := tmp.Chmod(perm); err != nil {
		return xerrors.Wrapf(err, "chmod %s", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		return xerrors.Wrapf(err, "close %s", tmpPath)
	}
	if err := osRename(tmpPath, path); err != nil {
		return xerrors.Wrapf(err, "rename %s to %s", tmpPath, path)
	}
	committed = true
	return nil
}
