// Package platform answers the two questions the status monitor asks the
// host: is any network active, and what is the Wi-Fi interface's IPv4
// address.
package platform

// ConnectivityQuery reports whether the host currently has an active network.
type ConnectivityQuery interface {
	ActiveNetwork() (bool, error)
}

// WifiAddressQuery reads the raw IPv4 value of the wireless interface and
// renders it in dotted-quad form.
type WifiAddressQuery interface {
	RawAddress() (uint32, error)
	FormatAddress(raw uint32) (string, error)
}
