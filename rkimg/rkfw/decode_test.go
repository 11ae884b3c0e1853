package rkfw

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rkunpack/rkimg/region"
)

const testBootOffset = 0x66

// buildWrapperImage lays out a wrapper image with version 8.1.515, build
// date 2024-01-02 03:04:05 and chip code RK3566, followed by the two
// payload regions back to back.
func buildWrapperImage(bootPayload []byte, updatePayload []byte) []byte {
	updateOffset := testBootOffset + len(bootPayload)
	buf := make([]byte, updateOffset+len(updatePayload))

	copy(buf, SignatureBytes)
	binary.LittleEndian.PutUint16(buf[6:], 515)
	buf[8] = 1
	buf[9] = 8
	binary.LittleEndian.PutUint32(buf[0x0a:], 0x01060000)
	binary.LittleEndian.PutUint16(buf[0x0e:], 2024)
	buf[0x10] = 1
	buf[0x11] = 2
	buf[0x12] = 3
	buf[0x13] = 4
	buf[0x14] = 5
	buf[0x15] = 0x38
	binary.LittleEndian.PutUint32(buf[0x19:], testBootOffset)
	binary.LittleEndian.PutUint32(buf[0x1d:], uint32(len(bootPayload)))
	binary.LittleEndian.PutUint32(buf[0x21:], uint32(updateOffset))
	binary.LittleEndian.PutUint32(buf[0x25:], uint32(len(updatePayload)))

	copy(buf[testBootOffset:], bootPayload)
	copy(buf[updateOffset:], updatePayload)
	return buf
}

func createUpdatePayload(size int) []byte {
	payload := make([]byte, size)
	copy(payload, "RKAF")
	for i := 4; i < size; i++ {
		payload[i] = byte(i * 3)
	}
	return payload
}

func TestUnpack(t *testing.T) {
	bootPayload := []byte("bootloader-bytes")
	updatePayload := createUpdatePayload(512)
	buf := buildWrapperImage(bootPayload, updatePayload)
	dst := filepath.Join(t.TempDir(), "out")

	info, err := Unpack(buf, dst)
	require.NoError(t, err)

	assert.Equal(t, "8.1.515", info.Version)
	assert.Equal(t, uint32(0x01060000), info.Code)
	expectedTimestamp := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Unix()
	assert.Equal(t, expectedTimestamp, info.Timestamp)
	assert.Equal(t, "RK3566", info.ChipFamily)
	assert.Equal(t, byte(0x38), info.ChipCode)
	assert.Equal(t, uint32(testBootOffset), info.BootOffset)
	assert.Equal(t, uint32(len(bootPayload)), info.BootSize)

	boot, err := os.ReadFile(filepath.Join(dst, BootFileName))
	require.NoError(t, err)
	assert.Equal(t, bootPayload, boot)

	update, err := os.ReadFile(filepath.Join(dst, UpdateFileName))
	require.NoError(t, err)
	assert.Equal(t, updatePayload, update)
}

func TestUnpack_RoundTrip(t *testing.T) {
	bootPayload := []byte("a-small-bootloader")
	updatePayload := createUpdatePayload(256)
	buf := buildWrapperImage(bootPayload, updatePayload)
	dst := filepath.Join(t.TempDir(), "out")

	info, err := Unpack(buf, dst)
	require.NoError(t, err)

	// putting the extracted files back at their recorded offsets must
	// reproduce the original bytes of both regions exactly
	reconstructed := make([]byte, len(buf))
	boot, err := os.ReadFile(filepath.Join(dst, BootFileName))
	require.NoError(t, err)
	update, err := os.ReadFile(filepath.Join(dst, UpdateFileName))
	require.NoError(t, err)
	copy(reconstructed[info.BootOffset:], boot)
	copy(reconstructed[info.UpdateOffset:], update)

	assert.Equal(t, buf[info.BootOffset:info.BootOffset+info.BootSize], reconstructed[info.BootOffset:info.BootOffset+info.BootSize])
	assert.Equal(t, buf[info.UpdateOffset:info.UpdateOffset+info.UpdateSize], reconstructed[info.UpdateOffset:info.UpdateOffset+info.UpdateSize])
}

func TestUnpack_InvalidMonth(t *testing.T) {
	buf := buildWrapperImage([]byte("boot"), createUpdatePayload(16))
	buf[0x10] = 13
	dst := filepath.Join(t.TempDir(), "out")

	_, err := Unpack(buf, dst)
	assert.ErrorIs(t, err, ErrInvalidDateTime)
	assert.NoDirExists(t, dst)
}

func TestUnpack_NonExistentDay(t *testing.T) {
	buf := buildWrapperImage([]byte("boot"), createUpdatePayload(16))
	buf[0x10] = 2
	buf[0x11] = 30
	dst := filepath.Join(t.TempDir(), "out")

	_, err := Unpack(buf, dst)
	assert.ErrorIs(t, err, ErrInvalidDateTime)
}

func TestUnpack_UnknownChip(t *testing.T) {
	buf := buildWrapperImage([]byte("boot"), createUpdatePayload(16))
	buf[0x15] = 0x99
	dst := filepath.Join(t.TempDir(), "out")

	info, err := Unpack(buf, dst)
	require.NoError(t, err)
	assert.Equal(t, ChipFamilyUnknown, info.ChipFamily)
	assert.Equal(t, byte(0x99), info.ChipCode)
	assert.FileExists(t, filepath.Join(dst, BootFileName))
	assert.FileExists(t, filepath.Join(dst, UpdateFileName))
}

func TestUnpack_MissingEmbeddedUpdate(t *testing.T) {
	bootPayload := []byte("bootloader-bytes")
	updatePayload := createUpdatePayload(64)
	copy(updatePayload, "JUNK")
	buf := buildWrapperImage(bootPayload, updatePayload)
	dst := filepath.Join(t.TempDir(), "out")

	_, err := Unpack(buf, dst)
	assert.ErrorIs(t, err, ErrMissingEmbeddedUpdate)

	// the bootloader was extracted before the embedded signature check ran
	boot, err := os.ReadFile(filepath.Join(dst, BootFileName))
	require.NoError(t, err)
	assert.Equal(t, bootPayload, boot)
	assert.NoFileExists(t, filepath.Join(dst, UpdateFileName))
}

func TestUnpack_BootRegionOutOfBounds(t *testing.T) {
	buf := buildWrapperImage([]byte("boot"), createUpdatePayload(16))
	binary.LittleEndian.PutUint32(buf[0x1d:], uint32(len(buf)))
	dst := filepath.Join(t.TempDir(), "out")

	_, err := Unpack(buf, dst)
	assert.ErrorIs(t, err, region.ErrInsufficientLength)
}

func TestChipFamily(t *testing.T) {
	families := map[byte]string{
		0x50: "RK29xx",
		0x60: "RK30xx",
		0x70: "RK31xx",
		0x80: "RK32xx",
		0x41: "RK3368",
		0x36: "RK3326",
		0x32: "RK3562",
		0x38: "RK3566",
		0x30: "PX30",
	}
	for code, expected := range families {
		assert.Equal(t, expected, ChipFamily(code))
	}
	assert.Equal(t, ChipFamilyUnknown, ChipFamily(0x99))
}
