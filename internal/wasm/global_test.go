package internalwasm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gowasm/interp/api"
)

func TestAsAPIGlobal(t *testing.T) {
	tests := []struct {
		name            string
		global          *GlobalInstance
		expectedString  string
		expectedMutable bool
	}{
		{
			name:           "i32 - immutable",
			global:         &GlobalInstance{Type: &GlobalType{ValType: api.ValueTypeI32}, Val: 1},
			expectedString: "global(1)",
		},
		{
			name:           "f64 - immutable",
			global:         &GlobalInstance{Type: &GlobalType{ValType: api.ValueTypeF64}, Val: api.EncodeF64(1.0)},
			expectedString: "global(1.000000)",
		},
		{
			name:            "i32 - mutable",
			global:          &GlobalInstance{Type: &GlobalType{ValType: api.ValueTypeI32, Mutable: true}, Val: 1},
			expectedString:  "global(1)",
			expectedMutable: true,
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			g := AsAPIGlobal(tc.global)
			require.Equal(t, tc.global.Type.ValType, g.Type())
			require.Equal(t, tc.global.Val, g.Get())
			require.Equal(t, tc.expectedString, g.String())

			mutable, ok := g.(api.MutableGlobal)
			require.Equal(t, tc.expectedMutable, ok)
			if ok {
				mutable.Set(2)
				require.Equal(t, uint64(2), g.Get())
				require.Equal(t, uint64(2), tc.global.Val)
			}
		})
	}
}
