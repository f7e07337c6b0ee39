package header

const (
	// BlockSize is the size of every header and data block in an archive.
	BlockSize = 512

	// NameSize is the width of the native name field.
	NameSize = 100
)

// Block is a single 512 byte unit of an archive.
type Block [BlockSize]byte

var zeroBlock Block

// field describes the position of a header field within a block.
type field struct {
	name       string
	start, end int
}

var (
	fieldName      = field{"name", 0, 100}
	fieldMode      = field{"mode", 100, 108}
	fieldUID       = field{"uid", 108, 116}
	fieldGID       = field{"gid", 116, 124}
	fieldSize      = field{"size", 124, 136}
	fieldModTime   = field{"mtime", 136, 148}
	fieldChecksum  = field{"chksum", 148, 156}
	fieldTypeFlag  = field{"typeflag", 156, 157}
	fieldLinkName  = field{"linkname", 157, 257}
	fieldMagic     = field{"magic", 257, 263}
	fieldVersion   = field{"version", 263, 265}
	fieldUserName  = field{"uname", 265, 297}
	fieldGroupName = field{"gname", 297, 329}
	fieldDevMajor  = field{"devmajor", 329, 337}
	fieldDevMinor  = field{"devminor", 337, 345}
	fieldPrefix    = field{"prefix", 345, 500}
)

const (
	magicPOSIX   = "ustar\x00"
	versionPOSIX = "00"
	magicGNU     = "ustar "
	versionGNU   = " \x00"
)

func (f field) of(b *Block) []byte {
	return b[f.start:f.end]
}

func (f field) width() int {
	return f.end - f.start
}

// IsZero reports whether every byte of the block is zero (an end of archive marker).
func (b *Block) IsZero() bool {
	return *b == zeroBlock
}

// Checksum computes the unsigned sum of all bytes in the block, treating the checksum field itself as spaces.
func Checksum(b *Block) int64 {
	var sum int64
	for i, c := range b {
		if i >= fieldChecksum.start && i < fieldChecksum.end {
			sum += ' '
			continue
		}
		sum += int64(c)
	}
	return sum
}

// PaddingFor returns the number of zero bytes needed after size bytes of data to reach a block boundary.
func PaddingFor(size int64) int64 {
	return (BlockSize - size%BlockSize) % BlockSize
}

// BlocksFor returns the number of blocks needed to hold size bytes of data.
func BlocksFor(size int64) int64 {
	return (size + BlockSize - 1) / BlockSize
}
