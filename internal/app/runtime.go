package app

import (
	"os"
	"strconv"
	"sync"
	"sync/atomic"
)

// TestModeEnv names the variable that keeps the binaries from dialling
// PostgreSQL and Redis when they are started by a test harness.
const TestModeEnv = "ODYSSEY_TEST_MODE"

var (
	testMode     atomic.Bool
	testModeInit sync.Once
)

func loadTestMode() {
	enabled, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	testMode.Store(err == nil && enabled)
}

// InTestMode reports whether cmd/odyssey and cmd/worker should exit before
// opening any connection. Accepts "1" or "true".
func InTestMode() bool {
	testModeInit.Do(loadTestMode)
	return testMode.Load()
}

// RefreshTestMode re-reads TestModeEnv, for tests that change it.
func RefreshTestMode() {
	testModeInit.Do(func() {})
	loadTestMode()
}
