//go:build !unix

package monitor

import (
	"fmt"
	"runtime"
)

func statfs(string) (Usage, error) {
	return Usage{}, fmt.Errorf("statfs unsupported on %s", runtime.GOOS)
}
