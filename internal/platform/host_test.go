package platform

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"v.io/x/lib/netstate"
)

type fakeIfc struct {
	name  string
	flags net.Flags
	addrs []net.Addr
}

func (f *fakeIfc) Addrs() []net.Addr              { return f.addrs }
func (f *fakeIfc) Index() int                     { return 1 }
func (f *fakeIfc) Name() string                   { return f.name }
func (f *fakeIfc) MTU() int                       { return 1500 }
func (f *fakeIfc) HardwareAddr() net.HardwareAddr { return nil }
func (f *fakeIfc) Flags() net.Flags               { return f.flags }
func (f *fakeIfc) Networks() []net.Addr           { return nil }
func (f *fakeIfc) String() string                 { return f.name }

type fakeAddr struct {
	ip  string
	ifc *fakeIfc
}

func (a *fakeAddr) Network() string                      { return "ip" }
func (a *fakeAddr) String() string                       { return a.ip }
func (a *fakeAddr) Interface() netstate.NetworkInterface { return a.ifc }
func (a *fakeAddr) DebugString() string                  { return a.ip + "@" + a.ifc.name }

func cidr(t *testing.T, s string) net.Addr {
	t.Helper()
	ip, ipnet, err := net.ParseCIDR(s)
	require.NoError(t, err)
	ipnet.IP = ip
	return ipnet
}

func hostWith(ifcs ...*fakeIfc) *Host {
	h := NewHost("wlan0")
	h.interfaces = func() (netstate.InterfaceList, error) {
		list := netstate.InterfaceList{}
		for _, ifc := range ifcs {
			list = append(list, ifc)
		}
		return list, nil
	}
	h.accessibleIPs = func() (netstate.AddrList, error) {
		var out netstate.AddrList
		for _, ifc := range ifcs {
			for _, a := range ifc.addrs {
				ip := netstate.AsIP(a)
				if ip == nil || ip.IsLoopback() {
					continue
				}
				out = append(out, &fakeAddr{ip: ip.String(), ifc: ifc})
			}
		}
		return out, nil
	}
	return h
}

func TestHostActiveNetwork(t *testing.T) {
	lo := &fakeIfc{name: "lo", flags: net.FlagUp | net.FlagLoopback, addrs: []net.Addr{cidr(t, "127.0.0.1/8")}}

	active, err := hostWith(lo).ActiveNetwork()
	require.NoError(t, err)
	assert.False(t, active, "loopback only")

	down := &fakeIfc{name: "eth0", addrs: []net.Addr{cidr(t, "10.1.2.3/24")}}
	active, err = hostWith(lo, down).ActiveNetwork()
	require.NoError(t, err)
	assert.False(t, active, "interface down")

	wlan := &fakeIfc{name: "wlan0", flags: net.FlagUp, addrs: []net.Addr{cidr(t, "192.168.1.10/24")}}
	active, err = hostWith(lo, wlan).ActiveNetwork()
	require.NoError(t, err)
	assert.True(t, active)
}

func TestHostActiveNetworkError(t *testing.T) {
	h := NewHost("wlan0")
	h.accessibleIPs = func() (netstate.AddrList, error) { return nil, errors.New("boom") }

	active, err := h.ActiveNetwork()
	assert.Error(t, err)
	assert.False(t, active)
}

func TestHostRawAddress(t *testing.T) {
	wlan := &fakeIfc{name: "wlan0", flags: net.FlagUp, addrs: []net.Addr{
		cidr(t, "fe80::1/64"),
		cidr(t, "192.168.1.10/24"),
	}}
	eth := &fakeIfc{name: "eth0", flags: net.FlagUp, addrs: []net.Addr{cidr(t, "10.0.0.10/8")}}

	raw, err := hostWith(eth, wlan).RawAddress()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x0A01A8C0), raw)

	formatted, err := NewHost("wlan0").FormatAddress(raw)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.10", formatted)
}

func TestHostRawAddressMissingInterface(t *testing.T) {
	eth := &fakeIfc{name: "eth0", flags: net.FlagUp, addrs: []net.Addr{cidr(t, "10.0.0.10/8")}}

	raw, err := hostWith(eth).RawAddress()
	require.NoError(t, err)
	assert.Zero(t, raw, "wifi address is read even when another interface is active")
}
