package extensions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHookManager_ExecuteInOrder(t *testing.T) {
	m := NewHookManager()
	var seen []string
	m.Register(HookOptimisticInsert, func(_ context.Context, data interface{}) error {
		seen = append(seen, "first:"+data.(HookData).EntityID)
		return nil
	})
	m.Register(HookOptimisticInsert, func(_ context.Context, data interface{}) error {
		seen = append(seen, "second")
		return nil
	})

	require.NoError(t, m.Execute(context.Background(), HookOptimisticInsert, HookData{EntityID: "temp-1"}))
	assert.Equal(t, []string{"first:temp-1", "second"}, seen)
	assert.Equal(t, 2, m.Count(HookOptimisticInsert))
}

func TestHookManager_StopsAtFailure(t *testing.T) {
	m := NewHookManager()
	boom := errors.New("boom")
	called := false
	m.Register(HookMutationFailed, func(context.Context, interface{}) error { return boom })
	m.Register(HookMutationFailed, func(context.Context, interface{}) error { called = true; return nil })

	err := m.Execute(context.Background(), HookMutationFailed, nil)
	assert.ErrorIs(t, err, boom)
	assert.False(t, called)

	m.Clear(HookMutationFailed)
	assert.NoError(t, m.Execute(context.Background(), HookMutationFailed, nil))
}

func TestHookManager_NilIsNoop(t *testing.T) {
	var m *HookManager
	assert.NoError(t, m.Execute(context.Background(), HookAuthStateChange, nil))
}
