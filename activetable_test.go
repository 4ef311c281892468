package ldapserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActiveTableInsertRemove(t *testing.T) {
	table := newActiveTable()
	_, cancel := context.WithCancel(context.Background())
	table.insert(1, cancel)
	assert.Equal(t, 1, table.len())
	table.remove(1)
	assert.Equal(t, 0, table.len())
}

func TestActiveTableRemoveUnknownIsNoop(t *testing.T) {
	table := newActiveTable()
	table.remove(42)
	assert.Equal(t, 0, table.len())
}

func TestActiveTableCancelInvokesAndClears(t *testing.T) {
	table := newActiveTable()
	called := false
	_, cancel := context.WithCancel(context.Background())
	table.insert(1, func() { called = true; cancel() })
	table.cancel(1)
	assert.True(t, called)
	assert.Equal(t, 0, table.len())
}

func TestActiveTableCancelUnknownIsNoop(t *testing.T) {
	table := newActiveTable()
	table.cancel(99) // must not panic
	assert.Equal(t, 0, table.len())
}

func TestActiveTableCancelAll(t *testing.T) {
	table := newActiveTable()
	n := 0
	for i := 1; i <= 3; i++ {
		table.insert(i, func() { n++ })
	}
	table.cancelAll()
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, table.len())
}

func TestActiveTableInsertOverwritesWithoutCancellingPrevious(t *testing.T) {
	table := newActiveTable()
	firstCalled := false
	table.insert(1, func() { firstCalled = true })
	table.insert(1, func() {})
	assert.False(t, firstCalled)
	assert.Equal(t, 1, table.len())
}
