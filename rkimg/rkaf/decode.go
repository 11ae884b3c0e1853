package rkaf

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"rkunpack/rkimg/rbytes"
	"rkunpack/rkimg/region"
)

var (
	ErrInvalidMagic = errors.New("invalid header magic id")
)

// Unpack reads the update header of the image at filePath, then streams each
// listed partition into its own file under dstPath and records its geometry
// in the partition metadata manifest. The source stays open for the whole
// run: partitions are copied chunk by chunk instead of being loaded whole.
func Unpack(filePath string, dstPath string) (*Info, error) {
	fp, err := os.Open(filePath)
	if err != nil {
		err := errors.Wrapf(err, `Unpack error: open "%s"`, filePath)
		return nil, err
	}
	defer fp.Close()

	headerBytes := make([]byte, HeaderSize)
	if _, err := io.ReadFull(fp, headerBytes); err != nil {
		err := errors.Wrap(err, "Unpack error: read update header")
		return nil, err
	}
	header, err := decodeHeader(headerBytes)
	if err != nil {
		err := errors.Wrap(err, "Unpack error")
		return nil, err
	}

	stat, err := fp.Stat()
	if err != nil {
		err := errors.Wrapf(err, `Unpack error: stat "%s"`, filePath)
		return nil, err
	}
	info := Info{
		FileSize:   uint64(stat.Size()),
		Partitions: make([]Partition, 0, len(header.Parts)),
	}
	// the length field leaves out the leading magic; a mismatch is advisory
	// only since nothing in the format backs it with a real checksum
	info.LengthMismatch = info.FileSize-4 != uint64(header.Length)

	info.Manufacturer = textOrFallback(header.Manufacturer)
	info.Model = textOrFallback(header.Model)

	if err := os.MkdirAll(filepath.Join(dstPath, ImageDirName), 0755); err != nil {
		err := errors.Wrapf(err, `Unpack error: create destination directory "%s"`, dstPath)
		return nil, err
	}
	metadataPath := filepath.Join(dstPath, MetadataFileName)
	metadataFile, err := os.Create(metadataPath)
	if err != nil {
		err := errors.Wrapf(err, `Unpack error: create manifest "%s"`, metadataPath)
		return nil, err
	}
	defer metadataFile.Close()

	parts := lo.Filter(header.Parts, func(part Part, _ int) bool {
		fullPath, ok := rbytes.CString(part.FullPath)
		if !ok {
			return false
		}
		return fullPath != placeholderSelf && fullPath != placeholderReserved
	})
	for _, part := range parts {
		fullPath, _ := rbytes.CString(part.FullPath)
		name, ok := rbytes.CString(part.Name)
		if !ok {
			name = ""
		}

		line := fmt.Sprintf(
			"%s,%s,%#010x,%#010x,%#010x,%#010x,%#010x\n",
			name, fullPath,
			part.FlashSize, part.FlashOffset,
			part.PartOffset, part.PaddedSize, part.PartByteCount,
		)
		if _, err := metadataFile.WriteString(line); err != nil {
			err := errors.Wrapf(err, `Unpack error: write manifest "%s"`, metadataPath)
			return nil, err
		}

		info.Partitions = append(info.Partitions, Partition{
			Name:          name,
			FullPath:      fullPath,
			FlashSize:     part.FlashSize,
			FlashOffset:   part.FlashOffset,
			PartOffset:    part.PartOffset,
			PaddedSize:    part.PaddedSize,
			PartByteCount: part.PartByteCount,
		})

		outPath := filepath.Join(dstPath, filepath.FromSlash(fullPath))
		if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
			err := errors.Wrapf(err, `Unpack error: create directories for "%s"`, outPath)
			return nil, err
		}
		err = region.Extract(fp, uint64(part.PartOffset), uint64(part.PartByteCount), outPath)
		if err != nil {
			err := errors.Wrapf(err, `Unpack error: extract partition "%s"`, fullPath)
			return nil, err
		}
	}

	return &info, nil
}

func decodeHeader(bs []byte) (*Header, error) {
	reader := rbytes.NewReader(bs)
	header := Header{}
	err := error(nil)

	header.Magic, err = reader.ReadBytes(4)
	if err != nil {
		return nil, errors.Wrap(err, "decodeHeader error: read magic")
	}
	if !bytes.Equal(header.Magic, SignatureBytes) {
		err := errors.Wrapf(
			ErrInvalidMagic,
			`decodeHeader error: expected "%s", got % x`,
			SignatureBytes, header.Magic,
		)
		return nil, err
	}
	header.Length, err = reader.ReadUint32()
	if err != nil {
		return nil, errors.Wrap(err, "decodeHeader error: read length")
	}
	header.Model, err = reader.ReadBytes(modelFieldSize)
	if err != nil {
		return nil, errors.Wrap(err, "decodeHeader error: read model")
	}
	header.ID, err = reader.ReadBytes(idFieldSize)
	if err != nil {
		return nil, errors.Wrap(err, "decodeHeader error: read id")
	}
	header.Manufacturer, err = reader.ReadBytes(manufacturerFieldSize)
	if err != nil {
		return nil, errors.Wrap(err, "decodeHeader error: read manufacturer")
	}
	header.Unknown, err = reader.ReadUint32()
	if err != nil {
		return nil, errors.Wrap(err, "decodeHeader error: read unknown field")
	}
	header.Version, err = reader.ReadUint32()
	if err != nil {
		return nil, errors.Wrap(err, "decodeHeader error: read version")
	}
	header.NumParts, err = reader.ReadUint32()
	if err != nil {
		return nil, errors.Wrap(err, "decodeHeader error: read partition count")
	}
	if header.NumParts > MaxParts {
		err := fmt.Errorf(
			"decodeHeader error: partition count %d exceeds table size %d",
			header.NumParts, MaxParts,
		)
		return nil, err
	}

	header.Parts = make([]Part, 0, header.NumParts)
	for i := uint32(0); i < header.NumParts; i++ {
		part, err := decodePart(reader)
		if err != nil {
			err := errors.Wrapf(err, "decodeHeader error: partition table entry %d", i)
			return nil, err
		}
		header.Parts = append(header.Parts, *part)
	}

	return &header, nil
}

func decodePart(reader *rbytes.Reader) (*Part, error) {
	part := Part{}
	err := error(nil)

	part.Name, err = reader.ReadBytes(nameFieldSize)
	if err != nil {
		return nil, errors.Wrap(err, "decodePart error: read name")
	}
	part.FullPath, err = reader.ReadBytes(fullPathFieldSize)
	if err != nil {
		return nil, errors.Wrap(err, "decodePart error: read full path")
	}
	part.FlashSize, err = reader.ReadUint32()
	if err != nil {
		return nil, errors.Wrap(err, "decodePart error: read flash size")
	}
	part.FlashOffset, err = reader.ReadUint32()
	if err != nil {
		return nil, errors.Wrap(err, "decodePart error: read flash offset")
	}
	part.PartOffset, err = reader.ReadUint32()
	if err != nil {
		return nil, errors.Wrap(err, "decodePart error: read part offset")
	}
	part.PaddedSize, err = reader.ReadUint32()
	if err != nil {
		return nil, errors.Wrap(err, "decodePart error: read padded size")
	}
	part.PartByteCount, err = reader.ReadUint32()
	if err != nil {
		return nil, errors.Wrap(err, "decodePart error: read part byte count")
	}

	return &part, nil
}

func textOrFallback(bs []byte) string {
	text, ok := rbytes.CString(bs)
	if !ok {
		return fallbackText
	}
	return text
}
