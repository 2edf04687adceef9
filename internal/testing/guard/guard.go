// Package guard switches the process into test mode when imported, so that
// binaries exercised from tests never dial the database or the data endpoint.
package guard

import (
	"os"
	"sync"
)

const testModeEnv = "STOCKPULSE_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(testModeEnv) == "" {
			_ = os.Setenv(testModeEnv, "1")
		}
	})
}
