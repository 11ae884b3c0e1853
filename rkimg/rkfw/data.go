package rkfw

type (
	// Info holds the metadata derived from an RKFW wrapper header. It is
	// built once per successful parse and never mutated afterwards.
	Info struct {
		Version      string `json:"version"`
		Code         uint32 `json:"code"`
		Timestamp    int64  `json:"timestamp"`
		ChipFamily   string `json:"chip_family"`
		ChipCode     byte   `json:"chip_code"`
		BootOffset   uint32 `json:"boot_offset"`
		BootSize     uint32 `json:"boot_size"`
		UpdateOffset uint32 `json:"update_offset"`
		UpdateSize   uint32 `json:"update_size"`
	}
)

const (
	ChipFamilyUnknown = "unknown"

	BootFileName   = "BOOT"
	UpdateFileName = "embedded-update.img"
)

var (
	SignatureBytes = []byte("RKFW")

	chipFamilies = map[byte]string{
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
)

// ChipFamily maps the raw chip code byte to its family label. Unmapped codes
// are not an error: the caller gets ChipFamilyUnknown and parsing goes on.
func ChipFamily(code byte) string {
	family, ok := chipFamilies[code]
	if !ok {
		return ChipFamilyUnknown
	}
	return family
}
