package network

import (
	"bufio"
	"bytes"
	"net"
	"strings"
)

// parseARP extracts address pairs from `arp -an` output, lines of the
// form:
//
//	? (192.168.64.2) at 2:0:0:0:0:1 on bridge100 ifscope [bridge]
//
// Incomplete entries carry "(incomplete)" in the MAC column and are
// skipped.
func parseARP(out []byte) []Neighbor {
	var entries []Neighbor
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || fields[2] != "at" {
			continue
		}
		ip := net.ParseIP(strings.Trim(fields[1], "()"))
		if ip == nil {
			continue
		}
		mac, err := net.ParseMAC(padMACOctets(fields[3]))
		if err != nil {
			continue
		}
		entries = append(entries, Neighbor{IP: ip, MAC: mac})
	}
	return entries
}

// padMACOctets widens the unpadded octets BSD arp prints (2:0:0:0:0:1)
// to the two-digit form net.ParseMAC requires.
func padMACOctets(s string) string {
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return s
	}
	for i, p := range parts {
		if len(p) == 1 {
			parts[i] = "0" + p
		}
	}
	return strings.Join(parts, ":")
}
