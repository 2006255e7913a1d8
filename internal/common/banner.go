package common

import (
	"fmt"

	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner followed by the effective settings
func PrintBanner(config *Config) {
	banner.Print("MacroLens", GetVersion())

	fmt.Printf("  environment : %s\n", config.Environment)
	fmt.Printf("  server      : http://%s:%d\n", config.Server.Host, config.Server.Port)
	fmt.Printf("  storage     : %s\n", config.Storage.Badger.Path)
	if config.Pipeline.Enabled {
		fmt.Printf("  pipeline    : %s (%s)\n", config.Pipeline.Schedule, config.Pipeline.Provider)
	} else {
		fmt.Printf("  pipeline    : disabled\n")
	}
	fmt.Println()
}
