package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/openclaw-secure/pkg/backend"
)

// BackendTestCase defines a backend under test with its test data.
type BackendTestCase struct {
	// Name is a descriptive name for this test case (usually the backend name)
	Name string

	// Backend is the implementation to test. It must accept Set for every
	// key in TestData.
	Backend backend.Backend

	// TestData maps keychain names to the values stored during the test.
	TestData map[string]string

	// SkipConcurrency skips the concurrency test if true
	SkipConcurrency bool
}

// RunBackendContractTests runs the shared backend contract:
//   - Name() is stable and lowercase
//   - Set() then Get() round-trips every value
//   - Get() on an absent key yields backend.ErrNotFound
//   - concurrent Get() calls agree
//
// Example usage:
//
//	testutil.RunBackendContractTests(t, testutil.BackendTestCase{
//	    Name:     "memory",
//	    Backend:  backends.NewMemory(),
//	    TestData: map[string]string{"gateway-auth-token": "abc"},
//	})
func RunBackendContractTests(t *testing.T, tc BackendTestCase) {
	t.Helper()

	require.NotNil(t, tc.Backend, "Backend cannot be nil")
	require.NotEmpty(t, tc.Name, "Test case name cannot be empty")
	require.NotEmpty(t, tc.TestData, "TestData must contain at least one secret")

	t.Run("Name", func(t *testing.T) {
		name := tc.Backend.Name()
		assert.NotEmpty(t, name)
		assert.Equal(t, name, tc.Backend.Name(), "Name() must return consistent value")
		assert.Regexp(t, `^[a-z0-9][a-z0-9-]*$`, name)
	})

	t.Run("SetGet", func(t *testing.T) {
		testBackendRoundTrip(t, tc)
	})

	t.Run("NotFound", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		missing := "absent-key-" + time.Now().Format("20060102150405")
		_, err := tc.Backend.Get(ctx, missing)
		require.Error(t, err)
		assert.True(t, backend.IsNotFound(err), "Get() on a missing key must wrap ErrNotFound, got %v", err)
	})

	if !tc.SkipConcurrency {
		t.Run("Concurrency", func(t *testing.T) {
			testBackendConcurrency(t, tc)
		})
	}
}

func testBackendRoundTrip(t *testing.T, tc BackendTestCase) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for key, value := range tc.TestData {
		t.Run(fmt.Sprintf("Key_%s", sanitizeTestName(key)), func(t *testing.T) {
			require.NoError(t, tc.Backend.Set(ctx, key, value))

			got, err := tc.Backend.Get(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, value, got)
		})
	}
}

func testBackendConcurrency(t *testing.T, tc BackendTestCase) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping concurrency test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var key, want string
	for k, v := range tc.TestData {
		key, want = k, v
		break
	}
	require.NoError(t, tc.Backend.Set(ctx, key, want))

	const concurrency = 20
	var wg sync.WaitGroup
	errs := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			got, err := tc.Backend.Get(ctx, key)
			if err != nil {
				errs <- fmt.Errorf("goroutine %d: Get failed: %w", id, err)
				return
			}
			if got != want {
				errs <- fmt.Errorf("goroutine %d: got %q, want %q", id, got, want)
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

// sanitizeTestName converts a secret key to a valid test name
func sanitizeTestName(key string) string {
	out := []rune(key)
	for i, ch := range out {
		if !((ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')) {
			out[i] = '_'
		}
	}
	return string(out)
}
