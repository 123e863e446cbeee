package testutil

import (
	"fmt"
	"path/filepath"
	"runtime"
)

// FileLineNumber tags a test script entry with the source line that
// declared it, so a failure inside a shared suite points at the command
// rather than the suite runner.
type FileLineNumber struct {
	File string
	Line int
}

func (fln FileLineNumber) String() string {
	if fln.Line == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d: ", filepath.Base(fln.File), fln.Line)
}

// MakeFileLineNumber records the location of its caller's caller; suites
// wrap it in a local fln() helper next to their script tables.
func MakeFileLineNumber() FileLineNumber {
	if _, file, line, ok := runtime.Caller(2); ok {
		return FileLineNumber{File: file, Line: line}
	}
	return FileLineNumber{}
}
