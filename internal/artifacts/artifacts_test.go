package artifacts

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flowmium-io/flowmium/internal/platform/logger"
)

// TestArtifactClientEmulatorLifecycle exercises Put/Get/GetToClient against
// a real fake-gcs-server, grounded on the teacher's
// TestBucketServiceEmulatorCRUDLifecycle skip-unless-reachable pattern:
// it never runs in CI by default since no emulator is running there.
func TestArtifactClientEmulatorLifecycle(t *testing.T) {
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("FLOWMIUM_RUN_GCS_EMULATOR_INTEGRATION")), "true") {
		t.Skip("set FLOWMIUM_RUN_GCS_EMULATOR_INTEGRATION=true to run emulator integration tests")
	}

	emulatorHost := strings.TrimRight(strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")), "/")
	if emulatorHost == "" {
		emulatorHost = "http://127.0.0.1:4443"
	}
	if !isEmulatorReachable(t, emulatorHost) {
		t.Skipf("storage emulator not reachable at %s", emulatorHost)
	}

	t.Setenv("OBJECT_STORAGE_MODE", "gcs_emulator")
	t.Setenv("STORAGE_EMULATOR_HOST", emulatorHost)

	log, err := logger.New("test")
	require.NoError(t, err)

	ctx := context.Background()
	client, err := New(ctx, "flowmium-it", "http://store.internal", log)
	require.NoError(t, err)

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "output.bin")
	require.NoError(t, os.WriteFile(srcPath, []byte("payload"), 0o644))

	require.NoError(t, client.Put(ctx, 1, "binary", srcPath))

	rc, err := client.GetToClient(ctx, 1, "binary")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "payload", string(body))

	dstPath := filepath.Join(dir, "downloaded.bin")
	require.NoError(t, client.Get(ctx, 1, "binary", dstPath))
	downloaded, err := os.ReadFile(dstPath)
	require.NoError(t, err)
	require.Equal(t, "payload", string(downloaded))
}

func TestKeyJoinsFlowIDAndOutputName(t *testing.T) {
	require.Equal(t, "42/binary", key(42, "binary"))
}

func TestParentDirFindsTheLastPathSeparator(t *testing.T) {
	require.Equal(t, "/a/b", parentDir("/a/b/c.bin"))
	require.Equal(t, "", parentDir("c.bin"))
}

func isEmulatorReachable(t *testing.T, host string) bool {
	t.Helper()
	c := http.Client{Timeout: 2 * time.Second}
	resp, err := c.Get(host + "/storage/v1/b")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}
