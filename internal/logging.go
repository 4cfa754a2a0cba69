package internal

import (
	"io"
	"log"
	"os"
)

// InitLogging points the standard logger at out (stdout when nil) and
// tags every message with the world name.
func InitLogging(out io.Writer, world string) {
	if out == nil {
		out = os.Stdout
	}
	log.SetOutput(out)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lmsgprefix)
	log.SetPrefix("")
	if world != "" {
		log.SetPrefix("[" + world + "] ")
	}
}
