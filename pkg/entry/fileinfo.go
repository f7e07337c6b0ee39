package entry

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
)

// FromFileInfo creates an entry named name from file information, inferring the type, size, mode and modification
// time. Directories always get a size of 0 and a trailing separator.
func FromFileInfo(info os.FileInfo, name string) Entry {
	fm := info.Mode()
	e := Entry{
		Name:    name,
		ModTime: info.ModTime(),
		Mode:    int64(fm.Perm()),
	}

	switch {
	case fm.IsDir():
		e.TypeFlag = TypeDirectory
		e.Mode |= modeDir
	case fm&os.ModeSymlink != 0:
		e.TypeFlag = TypeSymlink
		e.Mode |= modeSymlink
	case fm&os.ModeNamedPipe != 0:
		e.TypeFlag = TypeFifo
		e.Mode |= modeFifo
	case fm&os.ModeDevice != 0:
		if fm&os.ModeCharDevice != 0 {
			e.TypeFlag = TypeChar
			e.Mode |= modeChar
		} else {
			e.TypeFlag = TypeBlock
			e.Mode |= modeBlock
		}
	default:
		e.TypeFlag = TypeRegular
		e.Mode |= modeRegular
		e.Size = info.Size()
	}

	if fm&os.ModeSetuid != 0 {
		e.Mode |= modeSetUID
	}
	if fm&os.ModeSetgid != 0 {
		e.Mode |= modeSetGID
	}
	if fm&os.ModeSticky != 0 {
		e.Mode |= modeSticky
	}

	e.UserID, e.GroupID = ownerOf(info)

	return e.Normalized()
}

// FromPath creates an entry for the file at path on the given filesystem. The entry is named name, or path when no
// name is given. Symlinks are not followed when the filesystem supports it, in which case the link target is recorded.
func FromPath(fs afero.Fs, path, name string) (Entry, error) {
	if name == "" {
		name = path
	}

	info, err := lstat(fs, path)
	if err != nil {
		return Entry{}, fmt.Errorf("unable to stat path=%q: %w", path, err)
	}

	e := FromFileInfo(info, name)

	if e.IsSymlink() {
		reader, ok := fs.(afero.LinkReader)
		if !ok {
			return Entry{}, fmt.Errorf("unable to read link path=%q: filesystem does not support links", path)
		}
		target, err := reader.ReadlinkIfPossible(path)
		if err != nil {
			return Entry{}, fmt.Errorf("unable to read link path=%q: %w", path, err)
		}
		e.LinkName = target
	}

	return e, nil
}

func lstat(fs afero.Fs, path string) (os.FileInfo, error) {
	if l, ok := fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(path)
		return info, err
	}
	return fs.Stat(path)
}

// Perm returns only the permission bits (including setuid, setgid and sticky) of the entry mode.
func (e Entry) Perm() int64 {
	return e.Mode & modePermMask
}

// FileMode converts the header mode bits of the entry into an os.FileMode.
func (e Entry) FileMode() os.FileMode {
	mode := os.FileMode(e.Mode & 0o777)
	if e.Mode&modeSetUID != 0 {
		mode |= os.ModeSetuid
	}
	if e.Mode&modeSetGID != 0 {
		mode |= os.ModeSetgid
	}
	if e.Mode&modeSticky != 0 {
		mode |= os.ModeSticky
	}

	switch e.Mode & modeTypeMask {
	case modeDir:
		mode |= os.ModeDir
	case modeFifo:
		mode |= os.ModeNamedPipe
	case modeSymlink:
		mode |= os.ModeSymlink
	case modeBlock:
		mode |= os.ModeDevice
	case modeChar:
		mode |= os.ModeDevice | os.ModeCharDevice
	}

	switch e.TypeFlag {
	case TypeDirectory:
		mode |= os.ModeDir
	case TypeSymlink:
		mode |= os.ModeSymlink
	case TypeFifo:
		mode |= os.ModeNamedPipe
	case TypeChar:
		mode |= os.ModeDevice | os.ModeCharDevice
	case TypeBlock:
		mode |= os.ModeDevice
	}
	if e.IsDirectory() {
		mode |= os.ModeDir
	}
	return mode
}
