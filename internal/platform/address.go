package platform

import (
	"errors"
	"fmt"
	"net"
)

// ErrInvalidAddress is returned when an address is not a usable IPv4 value.
var ErrInvalidAddress = errors.New("invalid ipv4 address")

// FormatIPv4 renders a raw address in dotted-quad notation. The first octet
// lives in the low byte, so 0x0A01A8C0 is "192.168.1.10". Zero renders as "".
func FormatIPv4(raw uint32) string {
	if raw == 0 {
		return ""
	}
	return fmt.Sprintf("%d.%d.%d.%d",
		raw&0xff, raw>>8&0xff, raw>>16&0xff, raw>>24&0xff)
}

// PackIPv4 is the inverse of FormatIPv4.
func PackIPv4(ip net.IP) (uint32, error) {
	v4 := ip.To4()
	if v4 == nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAddress, ip)
	}
	return uint32(v4[0]) | uint32(v4[1])<<8 | uint32(v4[2])<<16 | uint32(v4[3])<<24, nil
}

// ParseIPv4 packs a dotted-quad string.
func ParseIPv4(s string) (uint32, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return PackIPv4(ip)
}
