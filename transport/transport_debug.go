package transport

import (
	"fmt"
	"os"
)

var debugEnabled bool = false

func init() {
	if os.Getenv("ACTORNET_TRANSPORT_DEBUG") != "" {
		debugEnabled = true
	}
}

func debug(format string, args ...interface{}) {
	if debugEnabled {
		fmt.Fprintf(os.Stderr, "transport: %s\n", fmt.Sprintf(format, args...))
	}
}
