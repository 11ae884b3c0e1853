package rkfw

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"rkunpack/rkimg/rbytes"
	"rkunpack/rkimg/region"
	"rkunpack/rkimg/rkaf"
)

var (
	ErrInvalidDateTime       = errors.New("invalid date/time in wrapper header")
	ErrMissingEmbeddedUpdate = errors.New("cannot find embedded RKAF update image")
)

// Unpack decodes the wrapper header of buf and writes the bootloader region
// and the embedded update package into dstPath. The embedded region must
// start with the RKAF signature; the bootloader region is copied without any
// content check (a historical signature check on it is deliberately left
// disabled).
func Unpack(buf []byte, dstPath string) (*Info, error) {
	info, err := decodeHeader(buf)
	if err != nil {
		err := errors.Wrap(err, "Unpack error")
		return nil, err
	}

	if err := os.MkdirAll(dstPath, 0755); err != nil {
		err := errors.Wrapf(err, `Unpack error: create destination directory "%s"`, dstPath)
		return nil, err
	}

	boot, err := sliceRegion(buf, info.BootOffset, info.BootSize)
	if err != nil {
		err := errors.Wrap(err, "Unpack error: bootloader region")
		return nil, err
	}
	// if !bytes.HasPrefix(boot, []byte("BOOT")) {
	// 	return nil, errors.New("cannot find BOOT signature")
	// }
	bootPath := filepath.Join(dstPath, BootFileName)
	if err := os.WriteFile(bootPath, boot, 0644); err != nil {
		err := errors.Wrapf(err, `Unpack error: write "%s"`, bootPath)
		return nil, err
	}

	update, err := sliceRegion(buf, info.UpdateOffset, info.UpdateSize)
	if err != nil {
		err := errors.Wrap(err, "Unpack error: embedded update region")
		return nil, err
	}
	if !bytes.HasPrefix(update, rkaf.SignatureBytes) {
		head := update
		if len(head) > 4 {
			head = head[:4]
		}
		err := errors.Wrapf(
			ErrMissingEmbeddedUpdate,
			"Unpack error: region at %#x starts with % x",
			info.UpdateOffset, head,
		)
		return nil, err
	}
	updatePath := filepath.Join(dstPath, UpdateFileName)
	if err := os.WriteFile(updatePath, update, 0644); err != nil {
		err := errors.Wrapf(err, `Unpack error: write "%s"`, updatePath)
		return nil, err
	}

	return info, nil
}

func decodeHeader(buf []byte) (*Info, error) {
	reader := rbytes.NewReader(buf)
	info := Info{}
	err := error(nil)

	// bytes 0-3 hold the signature the dispatcher already matched;
	// bytes 4-5 are unused
	if err := reader.Skip(6); err != nil {
		return nil, errors.Wrap(err, "decodeHeader error: skip to version field")
	}
	patch, err := reader.ReadUint16()
	if err != nil {
		return nil, errors.Wrap(err, "decodeHeader error: read version patch")
	}
	minor, err := reader.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "decodeHeader error: read version minor")
	}
	major, err := reader.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "decodeHeader error: read version major")
	}
	// field order within the version bytes is non-monotonic on the wire:
	// patch sits at the lowest offset, major at the highest
	info.Version = fmt.Sprintf("%d.%d.%d", major, minor, patch)

	info.Code, err = reader.ReadUint32()
	if err != nil {
		return nil, errors.Wrap(err, "decodeHeader error: read code field")
	}

	year, err := reader.ReadUint16()
	if err != nil {
		return nil, errors.Wrap(err, "decodeHeader error: read year")
	}
	clock, err := reader.ReadBytes(5)
	if err != nil {
		return nil, errors.Wrap(err, "decodeHeader error: read month/day/hour/minute/second")
	}
	info.Timestamp, err = unixTimestamp(year, clock[0], clock[1], clock[2], clock[3], clock[4])
	if err != nil {
		return nil, errors.Wrap(err, "decodeHeader error")
	}

	info.ChipCode, err = reader.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "decodeHeader error: read chip code")
	}
	info.ChipFamily = ChipFamily(info.ChipCode)

	if err := reader.Skip(3); err != nil {
		return nil, errors.Wrap(err, "decodeHeader error: skip to bootloader fields")
	}
	info.BootOffset, err = reader.ReadUint32()
	if err != nil {
		return nil, errors.Wrap(err, "decodeHeader error: read bootloader offset")
	}
	info.BootSize, err = reader.ReadUint32()
	if err != nil {
		return nil, errors.Wrap(err, "decodeHeader error: read bootloader size")
	}
	info.UpdateOffset, err = reader.ReadUint32()
	if err != nil {
		return nil, errors.Wrap(err, "decodeHeader error: read update offset")
	}
	info.UpdateSize, err = reader.ReadUint32()
	if err != nil {
		return nil, errors.Wrap(err, "decodeHeader error: read update size")
	}

	return &info, nil
}

// unixTimestamp combines the six packed calendar fields into a Unix
// timestamp. Out-of-range fields are rejected explicitly: time.Date would
// silently normalize a month 13 or a February 30 into a different date.
func unixTimestamp(year uint16, month byte, day byte, hour byte, minute byte, second byte) (int64, error) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		err := errors.Wrapf(ErrInvalidDateTime, "date %d-%02d-%02d", year, month, day)
		return 0, err
	}
	if hour > 23 || minute > 59 || second > 59 {
		err := errors.Wrapf(ErrInvalidDateTime, "time %02d:%02d:%02d", hour, minute, second)
		return 0, err
	}
	t := time.Date(
		int(year), time.Month(month), int(day),
		int(hour), int(minute), int(second),
		0, time.UTC,
	)
	if t.Day() != int(day) || t.Month() != time.Month(month) {
		err := errors.Wrapf(ErrInvalidDateTime, "date %d-%02d-%02d", year, month, day)
		return 0, err
	}
	return t.Unix(), nil
}

func sliceRegion(buf []byte, offset uint32, size uint32) ([]byte, error) {
	end := uint64(offset) + uint64(size)
	if end > uint64(len(buf)) {
		err := errors.Wrapf(
			region.ErrInsufficientLength,
			"region [%#x, %#x) exceeds file size %d",
			offset, end, len(buf),
		)
		return nil, err
	}
	return buf[offset:end], nil
}
