package secure

import (
	"sync"

	"github.com/awnumar/memguard"
)

// SecureBuffer holds one secret encrypted at rest in a memguard enclave.
type SecureBuffer struct {
	mu        sync.RWMutex
	enclave   *memguard.Enclave // nil for an empty secret
	destroyed bool
}

// NewSecureBuffer seals a copy of data. The caller's slice is left
// untouched and should be wiped by the caller.
func NewSecureBuffer(data []byte) *SecureBuffer {
	if len(data) == 0 {
		return &SecureBuffer{}
	}
	// NewEnclave wipes its argument.
	sealed := make([]byte, len(data))
	copy(sealed, data)
	return &SecureBuffer{enclave: memguard.NewEnclave(sealed)}
}

// Open decrypts the secret into a locked buffer that the caller must
// Destroy. A destroyed or empty buffer opens to an empty LockedBuffer.
func (s *SecureBuffer) Open() (*memguard.LockedBuffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.destroyed || s.enclave == nil {
		return memguard.NewBuffer(0), nil
	}
	return s.enclave.Open()
}

// Size reports the plaintext length, 0 once destroyed.
func (s *SecureBuffer) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.destroyed || s.enclave == nil {
		return 0
	}
	return s.enclave.Size()
}

// Destroy drops the enclave. It is safe to call more than once.
func (s *SecureBuffer) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enclave = nil
	s.destroyed = true
}
