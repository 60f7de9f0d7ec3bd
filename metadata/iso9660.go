package metadata

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"time"
)

// ISO-9660 layout constants. Sectors 0-15 are the system area; the volume
// descriptors, path tables and root directory occupy fixed sectors so file
// extents always start at sector 21.
const (
	isoSectorSize    = 2048
	pvdSector        = 16
	terminatorSector = 17
	lPathSector      = 18
	mPathSector      = 19
	rootDirSector    = 20
	firstFileSector  = 21

	dirRecordFixed = 33   // directory record bytes before the identifier
	maxIdentifier  = 30   // keeps record length within a single byte, version-free
	flagDirectory  = 0x02
)

// CreateISO9660 streams an ISO-9660 image to w. label is the volume
// identifier (e.g. "cidata"); files maps filename → content, all placed in
// the root directory. Identifiers are written verbatim (no version suffix),
// which the kernel's iso9660 driver and cloud-init's NoCloud source accept.
func CreateISO9660(w io.Writer, label string, files map[string][]byte) error {
	b := newISOBuilder(label)

	// Sort keys: ISO-9660 requires directory records in identifier order,
	// and it keeps output deterministic.
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := b.addFile(name, files[name]); err != nil {
			return err
		}
	}
	return b.writeTo(w)
}

// isoBuilder accumulates root-directory files and streams the full image on
// writeTo. All metadata fits in the fixed sectors; only file extents grow.
type isoBuilder struct {
	label    string
	files    []isoFile
	rootUsed int // root directory bytes consumed
	now      time.Time
}

type isoFile struct {
	name    string
	data    []byte
	lba     uint32
	sectors int
}

func newISOBuilder(label string) *isoBuilder {
	return &isoBuilder{
		label:    label,
		rootUsed: 2 * (dirRecordFixed + 1), // self + parent records
		now:      time.Now().UTC(),
	}
}

// addFile registers a file for the root directory, validating the identifier
// and root-directory capacity.
func (b *isoBuilder) addFile(name string, content []byte) error {
	if err := validateIdentifier(name); err != nil {
		return err
	}
	rl := recordLen(len(name))
	if b.rootUsed+rl > isoSectorSize {
		return fmt.Errorf("iso9660: root directory full")
	}
	b.rootUsed += rl
	b.files = append(b.files, isoFile{
		name:    name,
		data:    content,
		sectors: (len(content) + isoSectorSize - 1) / isoSectorSize,
	})
	return nil
}

// writeTo streams: system area → PVD → terminator → path tables → root
// directory → file extents.
func (b *isoBuilder) writeTo(w io.Writer) error {
	// Assign extents in registration (sorted) order.
	next := uint32(firstFileSector)
	for i := range b.files {
		b.files[i].lba = next
		next += uint32(b.files[i].sectors) //nolint:gosec
	}
	total := next

	zero := make([]byte, isoSectorSize)
	for n := 0; n < pvdSector; n++ {
		if _, err := w.Write(zero); err != nil {
			return err
		}
	}

	for _, sector := range [][]byte{
		b.makePVD(total),
		makeTerminator(),
		b.makePathTable(binary.LittleEndian),
		b.makePathTable(binary.BigEndian),
		b.makeRootDir(),
	} {
		if err := writeSector(w, sector); err != nil {
			return err
		}
	}

	for _, f := range b.files {
		for i := 0; i < f.sectors; i++ {
			clear(zero)
			start := i * isoSectorSize
			if start < len(f.data) {
				copy(zero, f.data[start:min(start+isoSectorSize, len(f.data))])
			}
			if _, err := w.Write(zero); err != nil {
				return err
			}
		}
	}
	return nil
}

// makePVD builds the Primary Volume Descriptor.
func (b *isoBuilder) makePVD(totalSectors uint32) []byte {
	pvd := make([]byte, isoSectorSize)

	pvd[0] = 1 // type: primary
	copy(pvd[1:], "CD001")
	pvd[6] = 1 // version

	padField(pvd[8:40], "")       // system identifier
	padField(pvd[40:72], b.label) // volume identifier

	putBoth32(pvd[80:], totalSectors)    // volume space size
	putBoth16(pvd[120:], 1)              // volume set size
	putBoth16(pvd[124:], 1)              // volume sequence number
	putBoth16(pvd[128:], isoSectorSize)  // logical block size
	putBoth32(pvd[132:], pathTableSize)  // path table size
	binary.LittleEndian.PutUint32(pvd[140:], lPathSector)
	binary.BigEndian.PutUint32(pvd[148:], mPathSector)

	putDirRecord(pvd[156:], "\x00", rootDirSector, isoSectorSize, true, b.now)

	padField(pvd[190:318], "") // volume set identifier
	padField(pvd[318:446], "") // publisher
	padField(pvd[446:574], "") // data preparer
	padField(pvd[574:702], "") // application
	padField(pvd[702:739], "") // copyright file
	padField(pvd[739:776], "") // abstract file
	padField(pvd[776:813], "") // bibliographic file

	putDecimalDateTime(pvd[813:], b.now) // creation
	putDecimalDateTime(pvd[830:], b.now) // modification
	copy(pvd[847:], "0000000000000000")  // expiration: none
	copy(pvd[864:], "0000000000000000")  // effective: none

	pvd[881] = 1 // file structure version
	return pvd
}

func makeTerminator() []byte {
	t := make([]byte, isoSectorSize)
	t[0] = 0xFF //nolint:mnd
	copy(t[1:], "CD001")
	t[6] = 1
	return t
}

// pathTableSize is fixed: the single root entry (1-byte identifier, padded).
const pathTableSize = 10

// makePathTable builds the root-only path table in the given byte order.
func (b *isoBuilder) makePathTable(order binary.ByteOrder) []byte {
	pt := make([]byte, pathTableSize)
	pt[0] = 1 // identifier length
	order.PutUint32(pt[2:], rootDirSector)
	order.PutUint16(pt[6:], 1) // parent directory number
	// identifier 0x00 + pad already zero
	return pt
}

// makeRootDir builds the root directory sector: self, parent, then files.
func (b *isoBuilder) makeRootDir() []byte {
	dir := make([]byte, isoSectorSize)
	off := 0
	off += putDirRecord(dir[off:], "\x00", rootDirSector, isoSectorSize, true, b.now)
	off += putDirRecord(dir[off:], "\x01", rootDirSector, isoSectorSize, true, b.now)
	for _, f := range b.files {
		off += putDirRecord(dir[off:], f.name, f.lba, uint32(len(f.data)), false, b.now) //nolint:gosec
	}
	return dir
}

// --- directory records ---

// recordLen returns the on-disk directory record length for an identifier,
// even-padded as ISO-9660 requires.
func recordLen(idLen int) int {
	rl := dirRecordFixed + idLen
	if rl%2 == 1 { //nolint:mnd
		rl++
	}
	return rl
}

// putDirRecord writes one directory record and returns its length.
func putDirRecord(dst []byte, id string, lba, size uint32, isDir bool, t time.Time) int {
	rl := recordLen(len(id))
	dst[0] = byte(rl)
	putBoth32(dst[2:], lba)   // extent location
	putBoth32(dst[10:], size) // data length
	putRecordDateTime(dst[18:], t)
	if isDir {
		dst[25] = flagDirectory
	}
	putBoth16(dst[28:], 1) // volume sequence number
	dst[32] = byte(len(id))
	copy(dst[dirRecordFixed:], id)
	return rl
}

func validateIdentifier(name string) error {
	if name == "" || len(name) > maxIdentifier {
		return fmt.Errorf("iso9660: invalid file name %q", name)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.' || r == '-' || r == '_':
		default:
			return fmt.Errorf("iso9660: invalid character %q in file name %q", r, name)
		}
	}
	return nil
}

// --- field encoding ---

// putBoth32 writes a 32-bit value in both-endian form (LE then BE, 8 bytes).
func putBoth32(b []byte, v uint32) {
	binary.LittleEndian.PutUint32(b, v)
	binary.BigEndian.PutUint32(b[4:], v)
}

// putBoth16 writes a 16-bit value in both-endian form (LE then BE, 4 bytes).
func putBoth16(b []byte, v uint16) {
	binary.LittleEndian.PutUint16(b, v)
	binary.BigEndian.PutUint16(b[2:], v)
}

// padField writes a space-padded text field. The value is copied verbatim:
// cloud-init matches the volume label case-sensitively, so no upper-casing.
func padField(dst []byte, s string) {
	for i := range dst {
		dst[i] = ' '
	}
	copy(dst, s)
}

// putDecimalDateTime writes the 17-byte ASCII volume timestamp
// (YYYYMMDDHHMMSS + hundredths + GMT offset byte).
func putDecimalDateTime(dst []byte, t time.Time) {
	copy(dst, t.Format("20060102150405"))
	copy(dst[14:], "00")
	dst[16] = 0 // UTC
}

// putRecordDateTime writes the 7-byte binary directory timestamp.
func putRecordDateTime(dst []byte, t time.Time) {
	dst[0] = byte(t.Year() - 1900) //nolint:mnd
	dst[1] = byte(t.Month())
	dst[2] = byte(t.Day())
	dst[3] = byte(t.Hour())
	dst[4] = byte(t.Minute())
	dst[5] = byte(t.Second())
	dst[6] = 0 // UTC
}

func writeSector(w io.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return err
	}
	if rem := len(data) % isoSectorSize; rem != 0 {
		if _, err := w.Write(make([]byte, isoSectorSize-rem)); err != nil {
			return err
		}
	}
	return nil
}
