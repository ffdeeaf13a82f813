package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/invsync/internal/app"
	"github.com/tphakala/invsync/internal/conf"
)

const seedFile = `
entities:
  - kind: Customer
    key: [1]
    fields:
      name: acme corp
  - kind: Customer
    key: [2]
    fields:
      name: globex
      soft_delete: true
  - kind: Note
    key: [1]
    fields:
      customer_id: 1
      body: call back
`

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "source:\n  project: legacy\n  data_dir: " + dir + "\n" +
		"target:\n  project: acme\n  data_dir: " + dir + "\n" +
		"logging:\n  console:\n    enabled: false\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := RootCommand(&conf.Settings{}, app.BuildInfo{Version: "test"})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestKindsCommand(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "--config", cfg, "kinds")
	require.NoError(t, err)
	assert.Contains(t, out, "projects/acme/customers")
	assert.Contains(t, out, "legacy/acme/plant_grows")

	out, err = execute(t, "--config", cfg, "kinds", "--yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "kind: SalesOrder")
	assert.Contains(t, out, "nested_under: Customer")
}

func TestSeedSyncWalkStatus(t *testing.T) {
	cfg := writeConfig(t)
	seed := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(seed, []byte(seedFile), 0o600))

	out, err := execute(t, "--config", cfg, "seed", seed)
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 3 entities")

	out, err = execute(t, "--config", cfg, "sync", "--plan", "Note")
	require.NoError(t, err)
	assert.Equal(t, "1. Customer -> projects/acme/customers\n2. Note -> projects/acme/notes\n", out)

	out, err = execute(t, "--config", cfg, "sync", "--strategy", "linear", "Customer")
	require.NoError(t, err)
	assert.Contains(t, out, "Customer")
	assert.Contains(t, out, "Note")

	out, err = execute(t, "--config", cfg, "walk", "Customer")
	require.NoError(t, err)
	assert.Equal(t,
		"projects/acme/customers/Customer-1/notes/Note-1\nprojects/acme/customers/Customer-1\n",
		out)

	out, err = execute(t, "--config", cfg, "walk", "--count", "projects/acme/customers")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	out, err = execute(t, "--config", cfg, "status", "--kind", "Customer")
	require.NoError(t, err)
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "done")
}

func TestSyncRejectsUnknownStrategy(t *testing.T) {
	cfg := writeConfig(t)
	_, err := execute(t, "--config", cfg, "sync", "--strategy", "fast")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy")
}

func TestWalkRejectsUnknownTarget(t *testing.T) {
	cfg := writeConfig(t)
	_, err := execute(t, "--config", cfg, "walk", "Invoice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "neither a registered kind")
}
