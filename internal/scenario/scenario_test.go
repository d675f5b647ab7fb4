package scenario

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRunDispatchesEveryNamedScenario exercises Run/Names end to end: every
// name Names() lists resolves to a scenario that runs without error and
// reports a non-empty trace.
func TestRunDispatchesEveryNamedScenario(t *testing.T) {
	for _, name := range Names() {
		name := name
		t.Run(name, func(t *testing.T) {
			result, err := Run(name)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(result.Name, name+" "), result.Name)
			assert.NotEmpty(t, result.Lines)
		})
	}
}

func TestRunRejectsUnknownScenario(t *testing.T) {
	_, err := Run("S99")
	assert.Error(t, err)
}

func TestResultStringRendersNameAndLines(t *testing.T) {
	r := Result{Name: "S1", Lines: []string{"one", "two"}}
	s := r.String()
	assert.Contains(t, s, "=== S1 ===")
	assert.Contains(t, s, "one")
	assert.Contains(t, s, "two")
}
