package events

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privatepay/internal/types"
)

func TestJSONLSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "events.jsonl")
	sink, err := NewJSONLSink(path, zerolog.Nop())
	require.NoError(t, err)

	caller := types.MustParseAddress("0x00000000000000000000000000000000000000a1")
	sink.Emit(Event{Kind: Deposit, Source: "custody", Caller: caller, Time: time.Unix(10, 0).UTC(),
		Fields: map[string]interface{}{"amount": 5}})
	sink.Emit(Event{Kind: Withdraw, Source: "custody", Caller: caller, Time: time.Unix(11, 0).UTC()})
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var kinds []Kind
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Event
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		assert.Equal(t, caller, e.Caller)
		kinds = append(kinds, e.Kind)
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, []Kind{Deposit, Withdraw}, kinds)
}

func TestMultiAndRecorder(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	Multi{a, b, Noop{}}.Emit(Event{Kind: Paused})

	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.OfKind(Paused), 1)
	assert.Empty(t, b.OfKind(Unpaused))

	a.Reset()
	assert.Empty(t, a.Events())
}
