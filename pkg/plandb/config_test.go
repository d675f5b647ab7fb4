package plandb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSolverConfig = `
flaw_managers:
  - kind: threat
    default_priority: 100
    rules:
      - class: Resource
        predicate: Resource.use
        priority: 400
  - kind: open-condition
    default_priority: 200
    rules:
      - variable: mode
        guard:
          - variable: mode
            value: 2
        priority: 300
`

func TestLoadSolverConfigParsesOrderedManagers(t *testing.T) {
	cfg, err := LoadSolverConfig([]byte(sampleSolverConfig))
	require.NoError(t, err)

	require.Len(t, cfg.FlawManagers, 2)
	assert.Equal(t, "threat", cfg.FlawManagers[0].Kind)
	assert.Equal(t, 100, cfg.FlawManagers[0].DefaultPriority)
	require.Len(t, cfg.FlawManagers[0].Rules, 1)
	assert.Equal(t, "Resource.use", cfg.FlawManagers[0].Rules[0].Predicate)
	assert.Equal(t, "open-condition", cfg.FlawManagers[1].Kind)
}

func TestLoadSolverConfigRejectsUnknownKind(t *testing.T) {
	_, err := LoadSolverConfig([]byte("flaw_managers:\n  - kind: bogus\n"))
	assert.Error(t, err)
}

func TestLoadSolverConfigFileReadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "solver.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleSolverConfig), 0o644))

	cfg, err := LoadSolverConfigFile(path)
	require.NoError(t, err)
	assert.Len(t, cfg.FlawManagers, 2)
}

func TestLoadSolverConfigFileMissingFile(t *testing.T) {
	_, err := LoadSolverConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// TestCompileBuildsManagersInDeclarationOrderWithRulesAttached exercises
// Compile end to end: the returned managers preserve declaration order and
// carry the rules declared for them, reachable through SelectFlaw.
func TestCompileBuildsManagersInDeclarationOrderWithRulesAttached(t *testing.T) {
	cfg, err := LoadSolverConfig([]byte(sampleSolverConfig))
	require.NoError(t, err)

	managers, err := cfg.Compile()
	require.NoError(t, err)
	require.Len(t, managers, 2)

	_, ok := managers[0].(*ThreatManager)
	assert.True(t, ok)
	_, ok = managers[1].(*OpenConditionManager)
	assert.True(t, ok)

	db, client := newTestDB(false)
	ob, err := client.CreateObject("Resource", "TL", true)
	require.NoError(t, err)
	require.NoError(t, ob.Base().Close())
	tok, err := mustActivateToken(client, "Resource.use", "T", 0, 10, 1, 3)
	require.NoError(t, err)

	flaw, ok := SelectFlaw(db, managers)
	require.True(t, ok)
	assert.Equal(t, FlawThreat, flaw.Kind)
	assert.Equal(t, tok, flaw.Token)
}
