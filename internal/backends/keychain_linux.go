//go:build linux

package backends

import "os"

// Secret Service is reached over the session D-Bus; without one there is no
// keyring daemon to talk to.
func platformKeychainAvailable() bool {
	return os.Getenv("DBUS_SESSION_BUS_ADDRESS") != ""
}
