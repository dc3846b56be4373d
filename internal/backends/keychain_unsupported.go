//go:build !darwin && !linux

package backends

import "runtime"

func platformKeychainAvailable() bool {
	return runtime.GOOS == "windows"
}
