//go:build !linux && !darwin && !windows

package parser

import (
	"os"
	"time"
)

func accessTime(fi os.FileInfo) time.Time {
	return fi.ModTime()
}
