package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[scheduler]
dump = true

[store]
path = "runs.db"

[log]
level = "debug"
format = "json"
`))
	require.NoError(t, err)
	assert.True(t, cfg.Scheduler.Verify, "unset keys keep their default")
	assert.True(t, cfg.Scheduler.Dump)
	assert.True(t, cfg.Retype.Enabled)
	assert.Equal(t, "runs.db", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"unknown key":  "[scheduler]\nverbose = true\n",
		"wrong type":   "[retype]\nenabled = \"yes\"\n",
		"bad level":    "[log]\nlevel = \"loud\"\n",
		"bad format":   "[log]\nformat = \"xml\"\n",
		"syntax error": "[scheduler\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestLoadAndFind(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := Find(nested)
	require.NoError(t, err)
	if found != "" {
		// a gatesched.toml above the temp dir would shadow the test
		t.Skipf("unexpected config at %s", found)
	}

	path := filepath.Join(root, FileName)
	require.NoError(t, os.WriteFile(path, []byte("[retype]\nenabled = false\n"), 0o644))

	found, err = Find(nested)
	require.NoError(t, err)
	assert.Equal(t, path, found)

	cfg, err := Load(found)
	require.NoError(t, err)
	assert.False(t, cfg.Retype.Enabled)

	_, err = Load(filepath.Join(root, "missing.toml"))
	assert.Error(t, err)
}

func TestHash(t *testing.T) {
	a := Default()
	b := Default()
	b.Store.Path = "elsewhere.db"
	b.Log.Level = "debug"
	assert.Equal(t, a.Hash(), b.Hash(), "store and log settings do not affect output")

	b.Retype.Enabled = false
	assert.NotEqual(t, a.Hash(), b.Hash())
	assert.Len(t, a.Hash(), 64)
}
