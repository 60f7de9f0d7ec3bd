package metadata

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
)

// readISO parses the PVD and root directory of an image built by
// CreateISO9660 and returns file name → content.
func readISO(t *testing.T, img []byte) map[string][]byte {
	t.Helper()

	if len(img)%isoSectorSize != 0 {
		t.Fatalf("image size %d not sector-aligned", len(img))
	}
	pvd := img[pvdSector*isoSectorSize:]
	if pvd[0] != 1 || string(pvd[1:6]) != "CD001" {
		t.Fatalf("bad PVD header: % x", pvd[:8])
	}

	rootLBA := binary.LittleEndian.Uint32(pvd[156+2:])
	dir := img[rootLBA*isoSectorSize : (rootLBA+1)*isoSectorSize]

	files := make(map[string][]byte)
	off := 0
	for off < isoSectorSize {
		rl := int(dir[off])
		if rl == 0 {
			break
		}
		idLen := int(dir[off+32])
		id := string(dir[off+33 : off+33+idLen])
		if id != "\x00" && id != "\x01" {
			lba := binary.LittleEndian.Uint32(dir[off+2:])
			size := binary.LittleEndian.Uint32(dir[off+10:])
			files[id] = img[lba*isoSectorSize : lba*isoSectorSize+size]
		}
		off += rl
	}
	return files
}

// --- structure ---

func TestCreateISO9660_Structure(t *testing.T) {
	var buf bytes.Buffer
	err := CreateISO9660(&buf, "cidata", map[string][]byte{
		"user-data": []byte("#cloud-config\n"),
		"meta-data": []byte("instance-id: x\n"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	img := buf.Bytes()

	if len(img) < firstFileSector*isoSectorSize {
		t.Fatalf("image too small: %d bytes", len(img))
	}
	pvd := img[pvdSector*isoSectorSize:]

	label := strings.TrimRight(string(pvd[40:72]), " ")
	if label != "cidata" {
		t.Errorf("expected volume label cidata, got %q", label)
	}

	// Both-endian volume space size must agree.
	le := binary.LittleEndian.Uint32(pvd[80:])
	be := binary.BigEndian.Uint32(pvd[84:])
	if le != be {
		t.Errorf("volume space size mismatch: LE %d, BE %d", le, be)
	}
	if int(le)*isoSectorSize != len(img) {
		t.Errorf("volume space %d sectors, image has %d", le, len(img)/isoSectorSize)
	}

	// Logical block size.
	if bs := binary.LittleEndian.Uint16(pvd[128:]); bs != isoSectorSize {
		t.Errorf("expected block size %d, got %d", isoSectorSize, bs)
	}

	term := img[terminatorSector*isoSectorSize:]
	if term[0] != 0xFF || string(term[1:6]) != "CD001" {
		t.Errorf("bad terminator: % x", term[:8])
	}
}

func TestCreateISO9660_PathTables(t *testing.T) {
	var buf bytes.Buffer
	if err := CreateISO9660(&buf, "cidata", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	img := buf.Bytes()

	l := img[lPathSector*isoSectorSize:]
	if l[0] != 1 {
		t.Errorf("L path table identifier length = %d", l[0])
	}
	if got := binary.LittleEndian.Uint32(l[2:]); got != rootDirSector {
		t.Errorf("L path table root extent = %d, want %d", got, rootDirSector)
	}
	if got := binary.LittleEndian.Uint16(l[6:]); got != 1 {
		t.Errorf("L path table parent = %d, want 1", got)
	}

	m := img[mPathSector*isoSectorSize:]
	if got := binary.BigEndian.Uint32(m[2:]); got != rootDirSector {
		t.Errorf("M path table root extent = %d, want %d", got, rootDirSector)
	}
}

// --- file content ---

func TestCreateISO9660_FilesRoundTrip(t *testing.T) {
	big := bytes.Repeat([]byte("0123456789abcdef"), 320) // 5120 bytes, 3 sectors
	var buf bytes.Buffer
	err := CreateISO9660(&buf, "cidata", map[string][]byte{
		"user-data": big,
		"meta-data": []byte("instance-id: 42\nlocal-hostname: vm\n"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	files := readISO(t, buf.Bytes())
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d (%v)", len(files), files)
	}
	if !bytes.Equal(files["user-data"], big) {
		t.Error("user-data content mismatch")
	}
	if string(files["meta-data"]) != "instance-id: 42\nlocal-hostname: vm\n" {
		t.Errorf("meta-data content mismatch: %q", files["meta-data"])
	}
}

func TestCreateISO9660_EmptyFile(t *testing.T) {
	var buf bytes.Buffer
	err := CreateISO9660(&buf, "cidata", map[string][]byte{"meta-data": nil})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	files := readISO(t, buf.Bytes())
	content, ok := files["meta-data"]
	if !ok {
		t.Fatal("meta-data record missing")
	}
	if len(content) != 0 {
		t.Errorf("expected empty content, got %d bytes", len(content))
	}
}

// --- validation ---

func TestCreateISO9660_RejectsBadNames(t *testing.T) {
	for _, name := range []string{"", "has space", "has/slash", strings.Repeat("x", 31)} {
		var buf bytes.Buffer
		err := CreateISO9660(&buf, "cidata", map[string][]byte{name: []byte("x")})
		if err == nil {
			t.Errorf("expected error for file name %q", name)
		}
	}
}
