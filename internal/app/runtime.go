package app

import (
	"os"
	"sync"
	"sync/atomic"
)

var (
	testModeOnce sync.Once
	testMode     atomic.Bool
)

// InTestMode reports whether the process runs under the test harness.
// Controlled by the CARGOTRAIL_TEST_MODE env var and sampled once per
// process.
func InTestMode() bool {
	testModeOnce.Do(func() {
		testMode.Store(os.Getenv("CARGOTRAIL_TEST_MODE") == "1")
	})
	return testMode.Load()
}
