package utils

import (
	"net"

	"github.com/google/uuid"
)

// MACFromName derives a stable locally-administered unicast MAC address from
// a VM name. The first byte has bit 1 set (locally administered) and bit 0
// clear (unicast). Deterministic so operator tooling can resolve a VM's MAC
// from its name alone.
func MACFromName(name string) net.HardwareAddr {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte("mac:"+name))
	buf := make([]byte, 6)
	copy(buf, id[:6])
	buf[0] = (buf[0] | 0x02) & 0xFE // locally administered, unicast
	return net.HardwareAddr(buf)
}
