package broker

import (
	"fmt"
	"os"
)

var debugEnabled bool

func init() {
	if os.Getenv("ACTORNET_BROKER_DEBUG") != "" {
		debugEnabled = true
	}
}

func debug(format string, args ...interface{}) {
	if debugEnabled {
		fmt.Fprintf(os.Stderr, "broker: %s\n", fmt.Sprintf(format, args...))
	}
}
