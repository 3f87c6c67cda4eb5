//go:build profile

package profiler

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalanceDropsOrphansAndClosesOpenScopes(t *testing.T) {
	evs := []event{
		{at: 0, scope: 1, open: false}, // open fell out of the ring
		{at: 1000, scope: 2, open: true},
		{at: 2000, scope: 3, open: true},
		{at: 3000, scope: 3, open: false},
	}
	out, end := balance(evs)
	require.Len(t, out, 4)
	assert.Equal(t, ssEvent{Type: "O", At: 1, Frame: 2}, out[0])
	assert.Equal(t, ssEvent{Type: "C", At: 3, Frame: 3}, out[2])
	assert.Equal(t, ssEvent{Type: "C", At: 3, Frame: 2}, out[3])
	assert.Equal(t, int64(3), end)
}

func TestDump(t *testing.T) {
	Init(64)
	end := Start("frame")
	Start("record")()
	end()

	path, err := Dump(t.TempDir())
	require.NoError(t, err)
	b, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc ssFile
	require.NoError(t, json.Unmarshal(b, &doc))
	require.Len(t, doc.Profiles, 1)
	assert.Len(t, doc.Profiles[0].Events, 4)
	assert.GreaterOrEqual(t, len(doc.Shared.Frames), 2)
}

func TestScopesSumClosedRuns(t *testing.T) {
	Init(16)
	for i := 0; i < 3; i++ {
		Start("frame.fence")()
	}
	open := Start("frame.record")

	scopes := Scopes()
	require.Len(t, scopes, 2)
	byName := map[string]Scope{}
	for _, s := range scopes {
		byName[s.Name] = s
	}
	assert.Equal(t, 3, byName["frame.fence"].Count)
	assert.Equal(t, 0, byName["frame.record"].Count)
	open()
	for _, s := range Scopes() {
		if s.Name == "frame.record" {
			assert.Equal(t, 1, s.Count)
			assert.LessOrEqual(t, s.Mean(), s.Max)
		}
	}
}

func TestRingKeepsNewestEvents(t *testing.T) {
	Init(4)
	for i := 0; i < 5; i++ {
		Start("sprite.upload")()
	}
	evs := rec.events()
	require.Len(t, evs, 4)
	assert.True(t, evs[0].open)
	assert.False(t, evs[3].open)
}
