package entry

import "fmt"

// TypeFlag is the single byte in a header identifying what kind of member an entry describes.
type TypeFlag byte

const (
	TypeRegular    TypeFlag = '0'
	TypeRegularA   TypeFlag = '\x00' // pre-POSIX regular file
	TypeHardLink   TypeFlag = '1'
	TypeSymlink    TypeFlag = '2'
	TypeChar       TypeFlag = '3'
	TypeBlock      TypeFlag = '4'
	TypeDirectory  TypeFlag = '5'
	TypeFifo       TypeFlag = '6'
	TypeContiguous TypeFlag = '7'

	// TypeLongName marks a GNU long-name record: the data that follows is the name of the next entry.
	TypeLongName TypeFlag = 'L'
)

// hasData reports whether members of this type carry a data region on the wire.
func (t TypeFlag) hasData() bool {
	switch t {
	case TypeHardLink, TypeSymlink, TypeChar, TypeBlock, TypeDirectory, TypeFifo:
		return false
	}
	return true
}

func (t TypeFlag) String() string {
	switch t {
	case TypeRegular, TypeRegularA:
		return "RegularFile"
	case TypeHardLink:
		return "HardLink"
	case TypeSymlink:
		return "SymbolicLink"
	case TypeChar:
		return "CharacterDevice"
	case TypeBlock:
		return "BlockDevice"
	case TypeDirectory:
		return "Directory"
	case TypeFifo:
		return "FIFONode"
	case TypeContiguous:
		return "ContiguousFile"
	case TypeLongName:
		return "LongName"
	}
	return fmt.Sprintf("Other(%q)", byte(t))
}
