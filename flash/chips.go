package flash

import "fmt"

// Chip describes one supported SPI NOR flash part.
type Chip struct {
	Name         string  `json:"name"`
	Manufacturer string  `json:"manufacturer"`
	JEDECID      [3]byte `json:"jedecId"`
	Size         int     `json:"size"`
	PageSize     int     `json:"pageSize"`
	SectorSize   int     `json:"sectorSize"`
	BlockSize    int     `json:"blockSize"`
}

func (c Chip) String() string {
	return fmt.Sprintf("%s %s (%s, JEDEC %02X%02X%02X)",
		c.Manufacturer, c.Name, sizeString(c.Size),
		c.JEDECID[0], c.JEDECID[1], c.JEDECID[2])
}

func sizeString(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%dMiB", n>>20)
	case n >= 1<<10:
		return fmt.Sprintf("%dKiB", n>>10)
	}
	return fmt.Sprintf("%dB", n)
}

func chip(manufacturer, name string, id [3]byte, size int) Chip {
	return Chip{
		Name:         name,
		Manufacturer: manufacturer,
		JEDECID:      id,
		Size:         size,
		PageSize:     256,
		SectorSize:   4096,
		BlockSize:    65536,
	}
}

// knownChips lists the parts commonly found on routers, mainboards and
// dev kits.
var knownChips = []Chip{
	chip("Winbond", "W25Q16JV", [3]byte{0xEF, 0x40, 0x15}, 2<<20),
	chip("Winbond", "W25Q32JV", [3]byte{0xEF, 0x40, 0x16}, 4<<20),
	chip("Winbond", "W25Q64JV", [3]byte{0xEF, 0x40, 0x17}, 8<<20),
	chip("Winbond", "W25Q128JV", [3]byte{0xEF, 0x40, 0x18}, 16<<20),
	chip("Winbond", "W25Q256JV", [3]byte{0xEF, 0x40, 0x19}, 32<<20),
	chip("GigaDevice", "GD25Q32", [3]byte{0xC8, 0x40, 0x16}, 4<<20),
	chip("GigaDevice", "GD25Q64", [3]byte{0xC8, 0x40, 0x17}, 8<<20),
	chip("GigaDevice", "GD25Q128", [3]byte{0xC8, 0x40, 0x18}, 16<<20),
	chip("Macronix", "MX25L3206E", [3]byte{0xC2, 0x20, 0x16}, 4<<20),
	chip("Macronix", "MX25L6406E", [3]byte{0xC2, 0x20, 0x17}, 8<<20),
	chip("Macronix", "MX25L12835F", [3]byte{0xC2, 0x20, 0x18}, 16<<20),
	chip("Cypress", "S25FL128S", [3]byte{0x01, 0x20, 0x18}, 16<<20),
	chip("ISSI", "IS25LP064", [3]byte{0x9D, 0x60, 0x17}, 8<<20),
	chip("ISSI", "IS25LP128", [3]byte{0x9D, 0x60, 0x18}, 16<<20),
	chip("XMC", "XM25QH64A", [3]byte{0x20, 0x40, 0x17}, 8<<20),
	chip("EON", "EN25Q64", [3]byte{0x1C, 0x30, 0x17}, 8<<20),
	chip("ESMT", "F25L32QA", [3]byte{0x8C, 0x41, 0x16}, 4<<20),
}

// KnownChips returns the supported chip database.
func KnownChips() []Chip {
	out := make([]Chip, len(knownChips))
	copy(out, knownChips)
	return out
}

// Identify looks up a JEDEC ID in the database. When the part is unknown
// but the capacity byte follows the common power-of-two encoding, a
// best-effort generic entry is returned with ok still false.
func Identify(id [3]byte) (Chip, bool) {
	for _, c := range knownChips {
		if c.JEDECID == id {
			return c, true
		}
	}
	return unknownChip(id), false
}

// unknownChip guesses the geometry of an unlisted part. The third ID byte
// encodes the capacity as a power of two on nearly every vendor's parts.
func unknownChip(id [3]byte) Chip {
	size := 0
	if id[2] >= 0x10 && id[2] <= 0x1A {
		size = 1 << id[2]
	}
	c := chip("Unknown", fmt.Sprintf("ID %02X%02X%02X", id[0], id[1], id[2]), id, size)
	return c
}
