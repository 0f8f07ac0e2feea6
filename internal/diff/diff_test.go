package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type leaf struct {
	Type     string
	Nullable bool
}

func TestComputeIdenticalTreesIsEmpty(t *testing.T) {
	tree := map[string]any{
		"table": map[string]any{
			"users": map[string]any{"columns": map[string]any{"id": leaf{"integer", false}}},
		},
		"enums": map[string]any{"role": []string{"admin", "user"}},
	}
	assert.Empty(t, Compute(tree, tree))
}

func TestComputeOrdering(t *testing.T) {
	old := map[string]any{
		"table": map[string]any{
			"users": map[string]any{"columns": map[string]any{
				"email": leaf{"text", true},
				"id":    leaf{"integer", false},
				"name":  leaf{"text", true},
			}},
			"legacy": map[string]any{"columns": map[string]any{}},
		},
	}
	new := map[string]any{
		"table": map[string]any{
			"users": map[string]any{"columns": map[string]any{
				"email":  leaf{"text", false},
				"id":     leaf{"integer", false},
				"handle": leaf{"text", true},
				"bio":    leaf{"text", true},
			}},
			"accounts": map[string]any{"columns": map[string]any{}},
		},
	}

	got := Compute(old, new)

	want := []Difference{
		{Type: Remove, Path: []string{"table", "legacy"}, OldValue: map[string]any{"columns": map[string]any{}}},
		{Type: Change, Path: []string{"table", "users", "columns", "email"}, Value: leaf{"text", false}, OldValue: leaf{"text", true}},
		{Type: Remove, Path: []string{"table", "users", "columns", "name"}, OldValue: leaf{"text", true}},
		{Type: Create, Path: []string{"table", "users", "columns", "bio"}, Value: leaf{"text", true}},
		{Type: Create, Path: []string{"table", "users", "columns", "handle"}, Value: leaf{"text", true}},
		{Type: Create, Path: []string{"table", "accounts"}, Value: map[string]any{"columns": map[string]any{}}},
	}
	assert.Equal(t, want, got)
}

func TestComputeIsDeterministic(t *testing.T) {
	old := map[string]any{}
	new := map[string]any{}
	for _, k := range []string{"z", "a", "m", "b", "y", "c"} {
		new[k] = true
	}
	first := Compute(old, new)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Compute(old, new))
	}
	assert.Equal(t, []string{"a"}, first[0].Path)
	assert.Equal(t, []string{"z"}, first[len(first)-1].Path)
}

func TestComputeSlicesAndLeafLists(t *testing.T) {
	old := map[string]any{
		"list":   []any{"a", "b", "c"},
		"labels": []string{"x"},
	}
	new := map[string]any{
		"list":   []any{"a", "B"},
		"labels": []string{"x", "y"},
	}
	got := Compute(old, new)
	assert.Equal(t, []Difference{
		{Type: Change, Path: []string{"labels"}, Value: []string{"x", "y"}, OldValue: []string{"x"}},
		{Type: Change, Path: []string{"list", "1"}, Value: "B", OldValue: "b"},
		{Type: Remove, Path: []string{"list", "2"}, OldValue: "c"},
	}, got)
}

func TestComputeShapeChange(t *testing.T) {
	got := Compute(map[string]any{"k": map[string]any{"a": 1}}, map[string]any{"k": "scalar"})
	assert.Equal(t, []Difference{{Type: Change, Path: []string{"k"}, Value: "scalar", OldValue: map[string]any{"a": 1}}}, got)
	assert.Equal(t, "CHANGE k", got[0].String())
}

func TestComputeLeafEquality(t *testing.T) {
	old := map[string]any{"enums": map[string]any{"role": []string(nil), "mood": []string{"sad"}}}
	new := map[string]any{"enums": map[string]any{"role": []string{}, "mood": []string{"sad", "happy"}}}

	got := Compute(old, new)
	if assert.Len(t, got, 1, "nil and empty label lists are equal") {
		assert.Equal(t, []string{"enums", "mood"}, got[0].Path)
		assert.Equal(t, Change, got[0].Type)
	}
}
