package rkaf

type (
	// Part is one raw partition-table entry exactly as laid out on the wire.
	Part struct {
		Name          []byte
		FullPath      []byte
		FlashSize     uint32
		FlashOffset   uint32
		PartOffset    uint32
		PaddedSize    uint32
		PartByteCount uint32
	}

	// Header is the decoded 2048-byte update header.
	Header struct {
		Magic        []byte
		Length       uint32
		Model        []byte
		ID           []byte
		Manufacturer []byte
		Unknown      uint32
		Version      uint32
		NumParts     uint32
		Parts        []Part
	}

	// Partition describes one extracted partition. The geometry fields are
	// copied verbatim from the table entry; PartByteCount bytes starting at
	// PartOffset in the source file is the exact range that was extracted.
	Partition struct {
		Name          string `json:"name"`
		FullPath      string `json:"full_path"`
		FlashSize     uint32 `json:"flash_size"`
		FlashOffset   uint32 `json:"flash_offset"`
		PartOffset    uint32 `json:"part_offset"`
		PaddedSize    uint32 `json:"padded_size"`
		PartByteCount uint32 `json:"part_byte_count"`
	}

	Info struct {
		Manufacturer   string      `json:"manufacturer"`
		Model          string      `json:"model"`
		FileSize       uint64      `json:"file_size"`
		LengthMismatch bool        `json:"length_mismatch"`
		Partitions     []Partition `json:"partitions"`
	}
)

const (
	HeaderSize = 2048
	MaxParts   = 16

	modelFieldSize        = 0x22
	idFieldSize           = 0x1e
	manufacturerFieldSize = 0x38
	nameFieldSize         = 32
	fullPathFieldSize     = 60

	ImageDirName     = "Image"
	MetadataFileName = "partition-metadata.txt"

	// placeholder table entries carrying no extractable payload
	placeholderSelf     = "SELF"
	placeholderReserved = "RESERVED"

	fallbackText = "unknown"
)

var (
	SignatureBytes = []byte("RKAF")
)
