package handles

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable(t *testing.T) {
	table := NewTable()

	h1 := table.New("first")
	h2 := table.New(42)
	assert.NotZero(t, h1)
	assert.NotEqual(t, h1, h2)
	assert.Equal(t, 2, table.Len())

	v, ok := table.Value(h1)
	require.True(t, ok)
	assert.Equal(t, "first", v)

	table.Delete(h1)
	table.Delete(h1)
	_, ok = table.Value(h1)
	assert.False(t, ok)
	assert.Equal(t, 1, table.Len())

	_, ok = table.Value(0)
	assert.False(t, ok)

	table.Clear()
	assert.Equal(t, 0, table.Len())
}

func TestTable_Concurrent(t *testing.T) {
	table := NewTable()
	const workers, per = 8, 200

	var wg sync.WaitGroup
	seen := make([][]Handle, workers)
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range per {
				h := table.New(i)
				seen[w] = append(seen[w], h)
				v, ok := table.Value(h)
				assert.True(t, ok)
				assert.Equal(t, i, v)
			}
		}()
	}
	wg.Wait()

	unique := make(map[Handle]struct{})
	for _, hs := range seen {
		for _, h := range hs {
			unique[h] = struct{}{}
		}
	}
	assert.Len(t, unique, workers*per)
	assert.Equal(t, workers*per, table.Len())
}

type blockKey struct {
	serial uint64
	vaddr  uint64
}

func TestLedger(t *testing.T) {
	table := NewTable()
	ledger := NewLedger[blockKey](table)

	a := blockKey{serial: 1, vaddr: 0x1000}
	b := blockKey{serial: 2, vaddr: 0x2000}

	ha := ledger.Pin(a, "a0")
	ledger.Pin(a, "a1")
	hb := ledger.Pin(b, "b0")
	assert.Equal(t, 2, ledger.Groups())
	assert.Equal(t, 3, table.Len())

	assert.Equal(t, 2, ledger.Release(a))
	_, ok := table.Value(ha)
	assert.False(t, ok)
	_, ok = table.Value(hb)
	assert.True(t, ok)
	assert.Equal(t, 0, ledger.Release(a))

	assert.Equal(t, 1, ledger.ReleaseAll())
	assert.Equal(t, 0, table.Len())
	assert.Equal(t, 0, ledger.Groups())
}
