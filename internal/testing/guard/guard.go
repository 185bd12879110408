// Package guard switches the sales binaries into test mode. Import it for its
// side effect from any test package that may start cmd/odyssey or cmd/worker
// code paths.
package guard

import "os"

// EnvVar mirrors app.TestModeEnv; this package cannot import internal/app.
const EnvVar = "ODYSSEY_TEST_MODE"

func init() {
	if _, set := os.LookupEnv(EnvVar); !set {
		_ = os.Setenv(EnvVar, "true")
	}
}
