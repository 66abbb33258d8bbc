// Package wasmdebug builds human-readable identifiers for functions and
// turns host-function panics into recoverable errors instead of crashing
// the embedder.
package wasmdebug

import (
	"fmt"
	"runtime"
)

// FuncName builds ".$N"-style debug names for Wasm functions: a
// dot-delimited moduleName.funcName, falling back to "$funcIdx" for the
// function name when it is empty. An empty module name is left empty.
func FuncName(moduleName, funcName string, funcIdx uint32) string {
	if funcName == "" {
		funcName = fmt.Sprintf("$%d", funcIdx)
	}
	return fmt.Sprintf("%s.%s", moduleName, funcName)
}

// RecoverOnPanic recovers a panic from fn, returning it as an error. Go
// runtime errors (nil dereference, index out of range, etc.), explicit
// panic(error) values and panic(string) values are converted; anything
// else is
// re-panicked, since the interpreter core only promises to convert
// well-behaved host function misbehavior into a trap, not to swallow a
// genuine bug in the host's Go code silently.
func RecoverOnPanic(fn func()) (err error) {
	defer func() {
		if v := recover(); v != nil {
			switch e := v.(type) {
			case runtime.Error:
				err = e
			case error:
				err = e
			case string:
				err = fmt.Errorf("%s", e)
			default:
				panic(v)
			}
		}
	}()
	fn()
	return nil
}
