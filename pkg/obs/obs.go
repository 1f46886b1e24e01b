package obs

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"
)

var (
	bootID  atomic.Value // string
	rootDir string
)

// Init stamps this process with a boot id and configures the std logger.
func Init(service string) {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	cwd, _ := os.Getwd()
	rootDir = cwd

	bootID.Store(service + "#" + time.Now().Format("20060102_150405.000000"))
	log.Printf("[boot] id=%s pid=%d root=%s",
		BootID(), os.Getpid(), rootDir)
}

func BootID() string {
	id, _ := bootID.Load().(string)
	return id
}

// P logs with boot id and caller location relative to the working dir.
func P(format string, args ...any) {
	ts := time.Now().Format("15:04:05.000000")
	log.Printf("[T=%s] %s %s "+format,
		append([]any{BootID(), ts, where(2)}, args...)...)
}

// Component returns a P-style logger whose lines carry a [name] tag, the
// way the vending packages tag theirs.
func Component(name string) func(format string, args ...any) {
	tag := "[" + name + "] "
	return func(format string, args ...any) {
		ts := time.Now().Format("15:04:05.000000")
		log.Printf("[T=%s] %s %s %s"+format,
			append([]any{BootID(), ts, where(2), tag}, args...)...)
	}
}

func where(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "?:0"
	}
	if rootDir != "" {
		if rel, err := filepath.Rel(rootDir, file); err == nil {
			return fmt.Sprintf("%s:%d", rel, line)
		}
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}
