// Package testing switches the process into test mode when imported by a test binary.
// Import it for side effects: _ "github.com/easyhotel/easyhotel/testing".
package testing

import (
	"os"
	"sync"
)

const testModeEnv = "EASYHOTEL_TEST_MODE"

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv(testModeEnv, "1")
	})
}

func init() {
	ensureTestMode()
}
