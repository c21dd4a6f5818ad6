package parse

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
)

// arpFlagComplete is ATF_COM from the kernel's ARP flags.
const arpFlagComplete = 0x2

// Neighbor is one usable row of the kernel ARP table.
type Neighbor struct {
	IP        string
	MAC       string
	Interface string
}

// ParseARPTable reads the /proc/net/arp format:
//
//	IP address       HW type     Flags       HW address            Mask     Device
//	192.168.1.20     0x1         0x2         aa:bb:cc:11:22:33     *        wlan0
//
// Incomplete entries, malformed lines and rows for other interfaces are
// skipped. An empty iface keeps every interface.
func ParseARPTable(r io.Reader, iface string) ([]Neighbor, error) {
	var neighbors []Neighbor
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			first = false
			if strings.HasPrefix(strings.TrimSpace(line), "IP") {
				continue
			}
		}

		fields := strings.Fields(line)
		if len(fields) < 6 {
			continue
		}
		ip, flags, hw, dev := fields[0], fields[2], fields[3], fields[5]

		if iface != "" && dev != iface {
			continue
		}
		if parsed := net.ParseIP(ip); parsed == nil || parsed.To4() == nil {
			continue
		}
		var f int
		if _, err := fmt.Sscanf(flags, "0x%x", &f); err != nil || f&arpFlagComplete == 0 {
			continue
		}
		mac, err := NormalizeMAC(hw)
		if err != nil || IsZeroMAC(mac) {
			continue
		}
		if seen[mac] {
			continue
		}
		seen[mac] = true

		neighbors = append(neighbors, Neighbor{IP: ip, MAC: mac, Interface: dev})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ARP table: %w", err)
	}
	return neighbors, nil
}

// LookupMAC returns the MAC the table holds for ip.
func LookupMAC(neighbors []Neighbor, ip string) (string, bool) {
	for _, n := range neighbors {
		if n.IP == ip {
			return n.MAC, true
		}
	}
	return "", false
}
