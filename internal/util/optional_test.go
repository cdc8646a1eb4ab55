package util

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptional_JSON(t *testing.T) {
	type payload struct {
		Name Optional[string] `json:"name"`
	}

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Nurse"}`), &p))
	assert.True(t, p.Name.IsSet)
	assert.Equal(t, "Nurse", p.Name.Val)

	require.NoError(t, json.Unmarshal([]byte(`{"name":null}`), &p))
	assert.False(t, p.Name.IsSet)

	out, err := json.Marshal(payload{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":null}`, string(out))
}

func TestOptional_Scan(t *testing.T) {
	var ts Optional[time.Time]
	now := time.Now().UTC()
	require.NoError(t, ts.Scan(now))
	assert.True(t, ts.IsSet)
	assert.Equal(t, now, ts.Val)

	require.NoError(t, ts.Scan(nil))
	assert.False(t, ts.IsSet)

	id := uuid.New()
	var opt Optional[uuid.UUID]
	require.NoError(t, opt.Scan(id.String()))
	assert.Equal(t, id, opt.Unwrap())
}

func TestOptional_Value(t *testing.T) {
	v, err := None[int]().Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = Some(3).Value()
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	id := uuid.New()
	v, err = Some(id).Value()
	require.NoError(t, err)
	assert.Equal(t, id.String(), v)
}

func TestOptional_Helpers(t *testing.T) {
	assert.Equal(t, "fallback", None[string]().UnwrapOr("fallback"))
	assert.Nil(t, None[string]().Ptr())

	s := "x"
	assert.Equal(t, Some("x"), FromPtr(&s))
	assert.Equal(t, None[string](), FromPtr[string](nil))
	assert.Panics(t, func() { None[int]().Unwrap() })
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Registered Nurse", want: "registered nurse"},
		{in: "  Acute   Care\tWard ", want: "acute care ward"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeName(tt.in))
	}
	assert.Equal(t, "Acute Care Ward", CleanDisplayName("  Acute   Care\tWard "))
}
