package resolver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeJSON(t *testing.T) {
	value, err := decodeJSON([]byte(`{"b": 1, "a": {"x": [true, null]}, "b": "two"}`))
	assert.Nil(t, err)

	obj, ok := value.(*object)
	assert.True(t, ok)
	assert.Equal(t, []string{"b", "a"}, obj.keys)
	assert.Equal(t, "two", obj.values["b"])

	nested, ok := obj.values["a"].(*object)
	assert.True(t, ok)
	assert.Equal(t, []any{true, nil}, nested.values["x"])

	value, err = decodeJSON([]byte(`3.5`))
	assert.Nil(t, err)
	assert.Equal(t, json.Number("3.5"), value)

	_, err = decodeJSON([]byte(`{} {}`))
	assert.Error(t, err)
}
