package leadfile

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadJSON(t *testing.T) {
	input := `[{"lead_number": 12, "status": "HIT"}, {"lead_number": 13, "notes": {"a": 1}}]`
	rows, err := ReadJSON(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, json.Number("12"), rows[0]["lead_number"])
	assert.Equal(t, "HIT", rows[0]["status"])
	assert.Equal(t, map[string]any{"a": json.Number("1")}, rows[1]["notes"])
}

func TestReadJSON_Empty(t *testing.T) {
	rows, err := ReadJSON(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = ReadJSON(context.Background(), strings.NewReader("[]"))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadJSON_NotArray(t *testing.T) {
	_, err := ReadJSON(context.Background(), strings.NewReader(`{"a": 1}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected '['")
}

func TestReadJSON_BadElement(t *testing.T) {
	_, err := ReadJSON(context.Background(), strings.NewReader(`[{"a": 1}, 5]`))
	require.Error(t, err)
}

func TestDecodeArray_Typed(t *testing.T) {
	type row struct {
		ID int `json:"id"`
	}
	ch, errCh := DecodeArray[row](context.Background(), strings.NewReader(`[{"id":1},{"id":2}]`))
	var ids []int
	for r := range ch {
		ids = append(ids, r.ID)
	}
	require.NoError(t, <-errCh)
	assert.Equal(t, []int{1, 2}, ids)
}
