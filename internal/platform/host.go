package platform

import (
	"fmt"
	"net"

	"v.io/x/lib/netstate"
)

// Host answers platform queries from the netstate cache. The cache is
// refreshed lazily after notify sources invalidate it, so reads are cheap.
type Host struct {
	iface string

	// overridable in tests
	accessibleIPs func() (netstate.AddrList, error)
	interfaces    func() (netstate.InterfaceList, error)
}

var (
	_ ConnectivityQuery = (*Host)(nil)
	_ WifiAddressQuery  = (*Host)(nil)
)

// NewHost returns queries bound to the named wireless interface.
func NewHost(wifiInterface string) *Host {
	return &Host{
		iface:         wifiInterface,
		accessibleIPs: netstate.GetAccessibleIPs,
		interfaces:    netstate.GetAllInterfaces,
	}
}

// Interface returns the wireless interface name.
func (h *Host) Interface() string {
	return h.iface
}

// ActiveNetwork reports whether any non-loopback unicast IPv4 address is up.
func (h *Host) ActiveNetwork() (bool, error) {
	addrs, err := h.accessibleIPs()
	if err != nil {
		return false, fmt.Errorf("list accessible addresses: %w", err)
	}
	for _, a := range addrs.Filter(netstate.IsUnicastIPv4) {
		if ifc := a.Interface(); ifc != nil && ifc.Flags()&net.FlagUp == 0 {
			continue
		}
		return true, nil
	}
	return false, nil
}

// RawAddress returns the first IPv4 address of the wireless interface, or
// zero when the interface is missing or has no IPv4 address.
func (h *Host) RawAddress() (uint32, error) {
	ifcs, err := h.interfaces()
	if err != nil {
		return 0, fmt.Errorf("list interfaces: %w", err)
	}
	for _, ifc := range ifcs {
		if ifc.Name() != h.iface {
			continue
		}
		for _, a := range ifc.Addrs() {
			ip := netstate.AsIP(a)
			if ip == nil || ip.To4() == nil || ip.IsLoopback() {
				continue
			}
			return PackIPv4(ip)
		}
		return 0, nil
	}
	return 0, nil
}

// FormatAddress implements WifiAddressQuery.
func (h *Host) FormatAddress(raw uint32) (string, error) {
	return FormatIPv4(raw), nil
}
