package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/anchore/tarstream/internal/log"
	"github.com/anchore/tarstream/pkg/entry"
)

// perEntryReadLimit bounds how much of a single entry is extracted.
const perEntryReadLimit = 2 << 30

var ErrStopIteration = fmt.Errorf("halt iterating archive")

// ErrUnsafePath is returned by ExtractToFs for an entry that would be written outside of the destination.
var ErrUnsafePath = fmt.Errorf("entry path escapes extraction root")

// entryFile is a ReadCloser over the data of a single archive entry.
type entryFile struct {
	io.Reader
	io.Closer
}

// Visitor is a visitor function meant to be used in conjunction with Iterate.
type Visitor func(int, entry.Entry, io.Reader) error

// ErrEntryNotFound returned from ReaderFromArchive if an entry is not found in the given archive.
type ErrEntryNotFound struct {
	Name string
}

func (e *ErrEntryNotFound) Error() string {
	return fmt.Sprintf("entry not found (name=%s)", e.Name)
}

// Iterate reads across an archive and invokes a visitor function for each entry discovered. The iteration stops
// when there are no more entries to read, if there is an error in the underlying reader or visitor function, or if
// the visitor function returns the ErrStopIteration sentinel error.
func Iterate(reader io.Reader, visitor Visitor) error {
	return iterate(NewReader(reader), visitor)
}

func iterate(r *Reader, visitor Visitor) error {
	index := 0
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		if err := visitor(index, *e, r); err != nil {
			if errors.Is(err, ErrStopIteration) {
				return nil
			}
			return fmt.Errorf("failed to visit archive entry=%q : %w", e.Name, err)
		}
		index++
	}
	return nil
}

// ReaderFromArchive returns a io.ReadCloser for the named entry within an archive. Closing it closes the archive
// stream.
func ReaderFromArchive(reader io.ReadCloser, name string) (io.ReadCloser, error) {
	var result io.ReadCloser

	visitor := func(_ int, e entry.Entry, contents io.Reader) error {
		if e.Name == name {
			result = &entryFile{
				Reader: contents,
				Closer: reader,
			}
			return ErrStopIteration
		}
		return nil
	}
	if err := Iterate(reader, visitor); err != nil {
		return nil, err
	}

	if result == nil {
		return nil, &ErrEntryNotFound{name}
	}

	return result, nil
}

// EntryFromArchive returns the metadata of the named entry within an archive.
func EntryFromArchive(reader io.Reader, name string) (entry.Entry, error) {
	var found *entry.Entry
	visitor := func(_ int, e entry.Entry, _ io.Reader) error {
		if e.Name == name {
			found = &e
			return ErrStopIteration
		}
		return nil
	}
	if err := Iterate(reader, visitor); err != nil {
		return entry.Entry{}, err
	}
	if found == nil {
		return entry.Entry{}, &ErrEntryNotFound{name}
	}
	return *found, nil
}

// EnumerateEntries streams the metadata of every entry in the archive. The channel is closed at the end of the
// archive, on the first read failure (which is logged) or once ctx is done. Consumers that stop draining the
// channel early must cancel ctx to release the producing goroutine.
func EnumerateEntries(ctx context.Context, reader io.Reader) <-chan entry.Entry {
	result := make(chan entry.Entry)
	go func() {
		defer close(result)

		visitor := func(_ int, e entry.Entry, _ io.Reader) error {
			select {
			case result <- e:
				return nil
			case <-ctx.Done():
				return ErrStopIteration
			}
		}

		if err := Iterate(reader, visitor); err != nil {
			log.Errorf("failed to enumerate archive entries: %+v", err)
		}
	}()
	return result
}

// ExtractToFs writes the entries of the archive into the given filesystem under dst. Entry names are cleaned so
// that nothing lands outside of dst: an entry whose path crosses a symlink already present under dst, or a symlink
// pointing outside of dst, fails with ErrUnsafePath. Entry types other than directories, regular files and
// symlinks are skipped.
func ExtractToFs(reader io.Reader, fs afero.Fs, dst string) error {
	visitor := func(_ int, e entry.Entry, contents io.Reader) error {
		// always ensure relative path notations cannot escape the destination
		rel := path.Clean(entry.Separator + e.Name)
		if rel == entry.Separator {
			return nil
		}
		target := path.Join(dst, rel)

		// a symlink extracted earlier (or already present) must never be followed
		if err := checkNoSymlinks(fs, dst, rel); err != nil {
			return err
		}

		switch {
		case e.IsDirectory():
			if err := fs.MkdirAll(target, e.FileMode().Perm()); err != nil {
				return fmt.Errorf("unable to create directory: %w", err)
			}

		case e.IsFile():
			if err := fs.MkdirAll(path.Dir(target), 0o755); err != nil {
				return fmt.Errorf("unable to create parent directory: %w", err)
			}
			f, err := fs.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, e.FileMode().Perm())
			if err != nil {
				return err
			}

			numBytes, err := io.Copy(f, io.LimitReader(contents, perEntryReadLimit))
			if numBytes >= perEntryReadLimit {
				_ = f.Close()
				return fmt.Errorf("entry read limit hit for %q", e.Name)
			}
			if err != nil {
				_ = f.Close()
				return fmt.Errorf("unable to copy file: %w", err)
			}

			if err = f.Close(); err != nil {
				log.Errorf("failed to close file during extraction of path=%q: %+v", target, err)
			}

			if err := fs.Chtimes(target, e.ModTime, e.ModTime); err != nil {
				log.Debugf("unable to set mtime of path=%q: %+v", target, err)
			}

		case e.IsSymlink():
			linker, ok := fs.(afero.Linker)
			if !ok {
				log.Debugf("filesystem does not support symlinks, skipping entry=%q", e.Name)
				return nil
			}
			if err := checkLinkTarget(rel, e.LinkName); err != nil {
				return err
			}
			if err := fs.MkdirAll(path.Dir(target), 0o755); err != nil {
				return fmt.Errorf("unable to create parent directory: %w", err)
			}
			if err := linker.SymlinkIfPossible(e.LinkName, target); err != nil {
				return fmt.Errorf("unable to create symlink: %w", err)
			}

		default:
			log.Debugf("skipping extraction of entry=%q type=%s", e.Name, e.TypeFlag)
		}
		return nil
	}

	return Iterate(reader, visitor)
}

// checkNoSymlinks walks the components of rel below dst and fails if any existing one is a symlink.
func checkNoSymlinks(fs afero.Fs, dst, rel string) error {
	lstater, ok := fs.(afero.Lstater)
	if !ok {
		return nil
	}

	current := dst
	for _, part := range strings.Split(strings.TrimPrefix(rel, entry.Separator), entry.Separator) {
		current = path.Join(current, part)
		info, _, err := lstater.LstatIfPossible(current)
		if errors.Is(err, os.ErrNotExist) {
			// nothing below a missing component can exist yet
			return nil
		}
		if err != nil {
			return fmt.Errorf("unable to stat path=%q: %w", current, err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return errors.Wrapf(ErrUnsafePath, "entry=%q crosses symlink path=%q", rel, current)
		}
	}
	return nil
}

// checkLinkTarget fails for symlink targets that are absolute or resolve outside of the extraction root.
func checkLinkTarget(rel, target string) error {
	if target == "" || path.IsAbs(target) || filepath.IsAbs(target) {
		return errors.Wrapf(ErrUnsafePath, "symlink entry=%q has absolute or empty target %q", rel, target)
	}
	resolved := path.Join(path.Dir(strings.TrimPrefix(rel, entry.Separator)), filepath.ToSlash(target))
	if resolved == ".." || strings.HasPrefix(resolved, "../") {
		return errors.Wrapf(ErrUnsafePath, "symlink entry=%q target %q resolves outside of the root", rel, target)
	}
	return nil
}

// WriteFromFs adds every path under root of the given filesystem to the archive, in lexical walk order. Entry
// names are relative to root.
func WriteFromFs(w *Writer, fs afero.Fs, root string) error {
	return afero.Walk(fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := relativeName(root, p)
		if err != nil {
			return err
		}
		if rel == "" {
			return nil
		}

		e, err := entry.FromPath(fs, p, rel)
		if err != nil {
			return err
		}
		if err := w.PutEntry(e); err != nil {
			return err
		}

		if e.IsFile() && e.Size > 0 {
			f, err := fs.Open(p)
			if err != nil {
				return fmt.Errorf("unable to open path=%q: %w", p, err)
			}
			_, err = io.Copy(w, f)
			_ = f.Close()
			if err != nil {
				return fmt.Errorf("unable to copy path=%q: %w", p, err)
			}
		}
		return w.CloseEntry()
	})
}

func relativeName(root, p string) (string, error) {
	root = path.Clean(filepath.ToSlash(root))
	p = path.Clean(filepath.ToSlash(p))
	if p == root {
		return "", nil
	}
	prefix := root + entry.Separator
	if root == entry.Separator {
		prefix = root
	}
	if len(p) <= len(prefix) || p[:len(prefix)] != prefix {
		return "", fmt.Errorf("path=%q is not under root=%q", p, root)
	}
	return p[len(prefix):], nil
}
