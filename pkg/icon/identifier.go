package icon

import (
	"fmt"
	"path/filepath"
	"strings"
)

// CRC16 is the reflected CRC-16 with polynomial 0xA001 and zero seed.
func CRC16(data []byte) uint16 {
	var crc uint16
	for _, c := range data {
		for j := 0; j < 8; j++ {
			mix := (uint16(c) ^ crc) & 1
			crc >>= 1
			if mix != 0 {
				crc ^= 0xA001
			}
			c >>= 1
		}
	}
	return crc
}

// ComputeIdentifier derives the icon cache key for an icon source. Both
// Windows and Unix separators are honoured when taking the basename.
func ComputeIdentifier(iconPath string, index int) string {
	base := iconPath
	if i := strings.LastIndexAny(base, `\/`); i >= 0 {
		base = base[i+1:]
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("%04X_%s.%d", CRC16([]byte(iconPath)), base, index)
}
