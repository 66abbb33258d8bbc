package wasmdebug

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFuncName(t *testing.T) {
	tests := []struct {
		name, moduleName, funcName string
		funcIdx                    uint32
		expected                   string
	}{
		{name: "empty", expected: ".$0"},
		{name: "empty module", funcName: "y", expected: ".y"},
		{name: "empty function", moduleName: "x", funcIdx: 255, expected: "x.$255"},
		{name: "no special characters", moduleName: "x", funcName: "y", expected: "x.y"},
		{name: "dots in module", moduleName: "w.x", funcName: "y", expected: "w.x.y"},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, FuncName(tc.moduleName, tc.funcName, tc.funcIdx))
		})
	}
}

func TestRecoverOnPanic(t *testing.T) {
	t.Run("no panic", func(t *testing.T) {
		err := RecoverOnPanic(func() {})
		require.NoError(t, err)
	})
	t.Run("panic with error", func(t *testing.T) {
		boom := errors.New("boom")
		err := RecoverOnPanic(func() { panic(boom) })
		require.Equal(t, boom, err)
	})
	t.Run("panic with string", func(t *testing.T) {
		err := RecoverOnPanic(func() { panic("boom") })
		require.EqualError(t, err, "boom")
	})
	t.Run("panic with runtime error propagates", func(t *testing.T) {
		var s []int
		err := RecoverOnPanic(func() { _ = s[0] })
		require.Error(t, err)
	})
}
