package bloomfilter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainsIsSupersetOfAdded(t *testing.T) {
	f := New(1000, 0.01)
	names := []string{"Alice", "bob", "CHARLIE"}
	for _, n := range names {
		f.Add(n)
	}
	for _, n := range names {
		assert.True(t, f.Contains(n))
	}
	assert.True(t, f.Contains("alice"), "lookup must be case-insensitive")
}

func TestRemoveDecrementsButNeverUndercounts(t *testing.T) {
	f := New(1000, 0.01)
	f.Add("dup")
	f.Add("dup")
	f.Remove("dup")
	assert.True(t, f.Contains("dup"), "one remaining reference keeps it present")
	f.Remove("dup")
	assert.False(t, f.Contains("dup"))
}

func TestSaturatedCounterTreatedAsPresent(t *testing.T) {
	f := New(10, 0.5)
	for i := 0; i < counterMax+5; i++ {
		f.Add("hot")
	}
	for i := 0; i < counterMax+5; i++ {
		f.Remove("hot")
	}
	// Saturated slots stop decrementing once they hit counterMax, so the
	// key is still reported present even after an equal number of removes.
	assert.True(t, f.Contains("hot"))
}

func TestSidecarRoundTrip(t *testing.T) {
	f := New(500, 0.01)
	f.Add("alpha")
	f.Add("beta")

	path := filepath.Join(t.TempDir(), "db.cbloom")
	require.NoError(t, f.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.True(t, loaded.Contains("alpha"))
	assert.True(t, loaded.Contains("beta"))
	assert.Equal(t, f.Stats(), loaded.Stats())
}

func TestLoadRejectsTruncatedSidecar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.cbloom")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
