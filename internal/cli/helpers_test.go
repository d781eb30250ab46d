package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// testSecret is a fixed ed25519 seed so controller ids are stable.
var testSecret = strings.Repeat("01", 32)

// writeConfig writes a settings file for driver and database into a
// temporary directory and returns its path.
func writeConfig(t *testing.T, driver, database string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "node.yaml")
	content := fmt.Sprintf("private_key: %q\ndriver: %s\ndatabase: %q\n", testSecret, driver, database)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// controllerFor returns the controller id of testSecret.
func controllerFor(t *testing.T) string {
	t.Helper()
	res := validateSettings(&NodeFlags{Config: writeConfig(t, "memory", "")})
	require.True(t, res.Valid, res.Error)
	return res.Controller
}
