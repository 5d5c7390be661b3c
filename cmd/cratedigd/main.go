// Command cratedigd runs the cratedig daemon with the default configuration
// search path. Use `cratedig daemon --config` to point at another file.
package main

import (
	"context"
	"log"

	"cratedig/internal/config"
	"cratedig/internal/daemonrun"
)

func main() {
	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{}); err != nil {
		log.Fatalf("cratedigd: %v", err)
	}
}
