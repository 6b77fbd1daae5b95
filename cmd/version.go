package cmd

import (
	"fmt"
	"os"
)

// Version is injected at build time via ldflags.
var Version = "development"

// runVersion prints version information and a quick credential check.
func runVersion() {
	fmt.Printf("heron %s\n", Version)

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		fmt.Printf("GEMINI_API_KEY: %s (configured)\n", maskKey(key))
	} else {
		fmt.Println("GEMINI_API_KEY: not set")
		fmt.Println("Get an API key at https://aistudio.google.com/apikey and export GEMINI_API_KEY")
	}
}

// maskKey keeps just enough of a credential to recognize it.
func maskKey(key string) string {
	if len(key) < 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
