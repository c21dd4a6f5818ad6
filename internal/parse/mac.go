package parse

import (
	"fmt"
	"regexp"
	"strings"
)

var macRe = regexp.MustCompile(`^[0-9a-f]{2}(:[0-9a-f]{2}){5}$`)

// NormalizeMAC lower-cases a hardware address and accepts '-' as the octet
// separator. It fails unless the result is six colon separated octets.
func NormalizeMAC(raw string) (string, error) {
	mac := strings.ToLower(strings.TrimSpace(raw))
	mac = strings.ReplaceAll(mac, "-", ":")
	if !macRe.MatchString(mac) {
		return "", fmt.Errorf("invalid MAC address: %q", raw)
	}
	return mac, nil
}

// IsZeroMAC reports an incomplete ARP entry.
func IsZeroMAC(mac string) bool {
	return mac == "00:00:00:00:00:00"
}
