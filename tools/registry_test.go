package tools

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context, Args) (any, error) { return nil, nil }

func TestRegistryMergedView(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{Name: "move_file", Category: "File Ops", Func: noop}))
	require.NoError(t, r.Register(Definition{Name: "get_current_weather", Category: "Weather", Func: noop}))
	require.ErrorIs(t, r.Register(Definition{Name: "move_file", Func: noop}), ErrDuplicateTool)

	require.NoError(t, r.RegisterDynamic(Definition{Name: "word_count", Func: noop}))
	require.ErrorIs(t, r.RegisterDynamic(Definition{Name: "move_file", Func: noop}), ErrDuplicateTool)

	def, ok := r.Lookup("word_count")
	require.True(t, ok)
	assert.True(t, def.Dynamic)
	assert.Equal(t, CategoryDynamic, def.Category)

	weather := r.ForCategories([]string{"Weather"})
	names := []string{}
	for _, d := range weather {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"get_current_weather", "word_count"}, names)
	assert.Len(t, r.ForCategories(nil), 3)
	assert.Equal(t, []string{"get_current_weather", "move_file", "word_count"}, r.Names())
}

func TestRegistryLookupReturnsCopy(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{Name: "a", Description: "orig", Func: noop}))
	def, _ := r.Lookup("a")
	def.Description = "changed"
	again, _ := r.Lookup("a")
	assert.Equal(t, "orig", again.Description)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = r.RegisterDynamic(Definition{Name: "tool_" + string(rune('a'+i)), Func: noop})
		}(i)
		go func() {
			defer wg.Done()
			_ = r.Definitions()
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, r.Len())
}
