package otaripper

import (
	"log"
	"os"
)

// Logger receives the engine's non-fatal operational messages: the state
// Extract was in when a stage failed, and a line when extraction completes.
// Library code in this package never calls log.Fatal; callers decide
// what's fatal.
var Logger = log.New(os.Stderr, "otaripper: ", log.LstdFlags)
