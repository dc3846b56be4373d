//go:build darwin

package backends

// The login keychain is always present on macOS.
func platformKeychainAvailable() bool {
	return true
}
