package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the CLI with a fresh command tree and returns stdout.
func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// testConfig writes a config whose api_base_url points at a closed port,
// so opportunistic syncs fail fast and commands stay offline.
func testConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "stallpos.yaml")
	body := fmt.Sprintf(`
device_id: test-terminal
api_base_url: http://127.0.0.1:1/api
db_path: %s
backoff:
  base_ms: 3600000
  max_ms: 3600000
`, filepath.Join(dir, "pos.db"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))
	return cfgPath
}

func orderID(t *testing.T, createOut string) string {
	t.Helper()
	fields := strings.Fields(createOut)
	require.GreaterOrEqual(t, len(fields), 3, "unexpected create output: %s", createOut)
	return fields[2]
}

func TestOrderNew_CreatesAndLists(t *testing.T) {
	cfg := testConfig(t)

	out, err := run(t, cfg, "order", "new", "--item", "burger:2", "--item", "fries:1")
	require.NoError(t, err)
	assert.Contains(t, out, "total 24.00")

	listed, err := run(t, cfg, "orders")
	require.NoError(t, err)
	assert.Contains(t, listed, "pending")
	assert.Contains(t, listed, "24.00")
}

func TestOrderNew_RejectsUnknownItem(t *testing.T) {
	cfg := testConfig(t)

	_, err := run(t, cfg, "order", "new", "--item", "sushi:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown menu item")
}

func TestOrderNew_RejectsBadQuantity(t *testing.T) {
	cfg := testConfig(t)

	_, err := run(t, cfg, "order", "new", "--item", "burger:zero")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid quantity")
}

func TestOrderStatus_UpdatesExistingOrder(t *testing.T) {
	cfg := testConfig(t)

	out, err := run(t, cfg, "order", "new", "--item", "pepsi:1")
	require.NoError(t, err)
	id := orderID(t, out)

	updated, err := run(t, cfg, "order", "status", id, "ready")
	require.NoError(t, err)
	assert.Contains(t, updated, "is now ready")
}

func TestOrderStatus_MissingOrderFails(t *testing.T) {
	cfg := testConfig(t)

	_, err := run(t, cfg, "order", "status", "nope", "ready")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestPrintReceipt_QueuesAndDrains(t *testing.T) {
	cfg := testConfig(t)

	out, err := run(t, cfg, "order", "new", "--item", "burger:1")
	require.NoError(t, err)
	id := orderID(t, out)

	_, err = run(t, cfg, "print", "receipt", id)
	require.NoError(t, err)

	jobs, err := run(t, cfg, "print", "jobs")
	require.NoError(t, err)
	assert.Contains(t, jobs, "done")
}

func TestPrintReceipt_DefaultsToLatestOrder(t *testing.T) {
	cfg := testConfig(t)

	_, err := run(t, cfg, "order", "new", "--item", "water:1")
	require.NoError(t, err)

	_, err = run(t, cfg, "print", "receipt")
	require.NoError(t, err)

	jobs, err := run(t, cfg, "print", "jobs")
	require.NoError(t, err)
	assert.Contains(t, jobs, "done")
}

func TestPrintReceipt_NoOrders(t *testing.T) {
	cfg := testConfig(t)

	_, err := run(t, cfg, "print", "receipt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no orders")
}

func TestPrintJobs_EmptyQueue(t *testing.T) {
	cfg := testConfig(t)

	out, err := run(t, cfg, "print", "jobs")
	require.NoError(t, err)
	assert.Contains(t, out, "no print jobs")
}

func TestSync_UnreachableBackendFails(t *testing.T) {
	cfg := testConfig(t)

	_, err := run(t, cfg, "sync")
	require.Error(t, err)
}
