//go:build !wazero_testing

// Package buildoptions holds interpreter-wide tunables that tests shrink
// to exercise overflow paths cheaply, plus the IstTest test/production
// switch constant.
package buildoptions

// IstTest is the test/production switch. This file, built when the
// wazero_testing build tag is unset (including under a plain `go test`),
// sets it to false; the package has no file that sets it to true, and no
// code in this module reads it.
const IstTest = false

// ValueStackCapacity is the default per-frame operand-stack capacity: a
// push beyond this traps StackOverflow. A var, not a const, so tests can
// shrink it to trigger overflow cheaply without allocating a stack large
// enough to hit a realistic limit.
var ValueStackCapacity = 16384

// CallStackCeiling is the default maximum number of nested call frames.
// A var, not a const, for the same reason as ValueStackCapacity.
var CallStackCeiling = 2000
