package e2e

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmokeFlow(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)

	stdout, stderr, err := runAnonx(t, binaryPath, home, "version")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "dev")

	stdout, stderr, err = runAnonx(t, binaryPath, home, "status")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "Assistant Sessions")
	assert.Contains(t, stdout, "configured: 2/5")
	assert.Contains(t, stdout, "Assistant 1")
	assert.Contains(t, stdout, "Assistant 3")
}

func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "anonx-e2e")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/anonx")
	cmd.Dir = repoRoot(t)

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build anonx binary: %s", string(output))
	return binaryPath
}

func runAnonx(t *testing.T, binaryPath, home string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Dir = home
	cmd.Env = append(os.Environ(),
		"HOME="+home,
		"API_ID=12345",
		"API_HASH=e2e-hash",
		"BOT_TOKEN=110:e2e-token",
		"LOGGER_ID=-1001234567890",
		"STRING_SESSION=e2e-session-slot-one",
		"STRING_SESSION3=e2e-session-slot-three",
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func repoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}
