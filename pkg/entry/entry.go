package entry

import (
	"path/filepath"
	"strings"
	"time"
)

// Separator is the path separator used for entry names, regardless of the host OS.
const Separator = "/"

const (
	// DefaultFileMode is the mode given to regular file entries when none is provided.
	DefaultFileMode int64 = 0o100644
	// DefaultDirMode is the mode given to directory entries when none is provided.
	DefaultDirMode int64 = 0o40755
)

// mode type bits as stored in the header mode field
const (
	modeSetUID   = 0o4000
	modeSetGID   = 0o2000
	modeSticky   = 0o1000
	modeDir      = 0o40000
	modeFifo     = 0o10000
	modeRegular  = 0o100000
	modeSymlink  = 0o120000
	modeBlock    = 0o60000
	modeChar     = 0o20000
	modeTypeMask = 0o170000
	modePermMask = 0o7777
)

// Entry represents the metadata of a single archive member.
type Entry struct {
	// Name is the member path within the archive, always using "/" as the separator
	Name string
	// Size of the member data in bytes (always 0 for directories)
	Size int64
	// ModTime is the modification time, stored with one second granularity
	ModTime time.Time
	// Mode holds the permission and file type bits
	Mode int64
	// UserID is the numeric UID of the owner
	UserID int64
	// GroupID is the numeric GID of the owner
	GroupID int64
	// UserName is the optional symbolic owner name
	UserName string
	// GroupName is the optional symbolic group name
	GroupName string
	// LinkName is the target of a symlink or hard link, empty otherwise
	LinkName string
	// TypeFlag identifies the kind of member
	TypeFlag TypeFlag
	// DevMajor is the major device number of a character or block device
	DevMajor int64
	// DevMinor is the minor device number of a character or block device
	DevMinor int64
}

// Option sets a piece of entry metadata during construction.
type Option func(*Entry)

func WithSize(size int64) Option {
	return func(e *Entry) {
		e.Size = size
	}
}

func WithModTime(t time.Time) Option {
	return func(e *Entry) {
		e.ModTime = t
	}
}

// WithMode sets the mode bits. A zero mode is replaced with the default for the entry type.
func WithMode(mode int64) Option {
	return func(e *Entry) {
		e.Mode = mode
	}
}

func WithOwner(uid, gid int64) Option {
	return func(e *Entry) {
		e.UserID = uid
		e.GroupID = gid
	}
}

func WithOwnerNames(user, group string) Option {
	return func(e *Entry) {
		e.UserName = user
		e.GroupName = group
	}
}

func WithType(t TypeFlag) Option {
	return func(e *Entry) {
		e.TypeFlag = t
	}
}

func WithLinkName(target string) Option {
	return func(e *Entry) {
		e.LinkName = target
	}
}

func WithDevice(major, minor int64) Option {
	return func(e *Entry) {
		e.DevMajor = major
		e.DevMinor = minor
	}
}

// New creates a normalized entry for the given name. Names ending in "/" describe directories, which always have a
// size of 0 regardless of any WithSize option.
func New(name string, options ...Option) Entry {
	e := Entry{
		Name:     name,
		TypeFlag: TypeRegular,
		ModTime:  time.Now(),
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		option(&e)
	}
	if e.Mode == 0 {
		if e.IsDirectory() {
			e.Mode = DefaultDirMode
		} else {
			e.Mode = DefaultFileMode
		}
	}
	return e.Normalized()
}

// NewDirectory creates a normalized directory entry; the name gains a trailing separator if it does not have one.
func NewDirectory(name string, options ...Option) Entry {
	return New(name, append(options, WithType(TypeDirectory))...)
}

// Normalized returns a copy of the entry in the canonical shape written to an archive:
//   - the name uses "/" separators and has no leading "/"
//   - directories end with "/", carry TypeDirectory and have a size of 0
//   - links, devices and fifos have a size of 0 (no data region follows their header)
//   - the modification time is truncated to whole seconds
func (e Entry) Normalized() Entry {
	e.Name = normalizeName(e.Name)
	if e.TypeFlag == TypeRegularA {
		e.TypeFlag = TypeRegular
	}
	if e.IsDirectory() {
		if !strings.HasSuffix(e.Name, Separator) {
			e.Name += Separator
		}
		e.TypeFlag = TypeDirectory
		e.Size = 0
	}
	if !e.TypeFlag.hasData() {
		e.Size = 0
	}
	e.ModTime = TruncateTime(e.ModTime)
	return e
}

// TruncateTime drops any sub-second precision; the value is floored so an mtime never moves forward.
func TruncateTime(t time.Time) time.Time {
	return time.Unix(t.Unix(), 0)
}

func normalizeName(name string) string {
	name = filepath.ToSlash(name)
	return strings.TrimLeft(name, Separator)
}

// IsDirectory indicates the entry describes a directory, either by type or by a trailing separator on the name.
func (e Entry) IsDirectory() bool {
	return e.TypeFlag == TypeDirectory || strings.HasSuffix(e.Name, Separator)
}

// IsFile indicates the entry is a regular file.
func (e Entry) IsFile() bool {
	if e.IsDirectory() {
		return false
	}
	switch e.TypeFlag {
	case TypeRegular, TypeRegularA, TypeContiguous:
		return true
	}
	return false
}

func (e Entry) IsSymlink() bool {
	return e.TypeFlag == TypeSymlink
}

func (e Entry) IsHardLink() bool {
	return e.TypeFlag == TypeHardLink
}

// IsLongNameMarker indicates the entry is a GNU long-name record rather than a real member.
func (e Entry) IsLongNameMarker() bool {
	return e.TypeFlag == TypeLongName
}

// HasData indicates a data region is expected to follow the header of this entry.
func (e Entry) HasData() bool {
	if e.IsDirectory() {
		return false
	}
	return e.TypeFlag.hasData()
}
