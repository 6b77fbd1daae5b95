// Package cmd provides the heron command line interface.
//
// Commands:
//   - chat: Interactive terminal chat with Bubble Tea TUI
//   - serve: HTTP API server
//   - ingest: Index a file, directory or URL
//   - mcp: Model Context Protocol server for editor integration
//
// Signal handling and graceful shutdown are implemented for all
// commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/heronai/heron/internal/log"
)

// Execute is the main entry point for the heron CLI.
func Execute() error {
	// Bootstrap logger until a command loads config. Logs go to stderr;
	// stdout stays clean for command output and MCP JSON-RPC.
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(log.New(log.Config{Level: level}))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "chat":
		return runChat(os.Args[2:])
	case "serve":
		return runServe(os.Args[2:])
	case "ingest":
		return runIngest(os.Args[2:])
	case "mcp":
		return runMCP()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// applyLogConfig swaps the bootstrap logger for the configured one.
func applyLogConfig(levelName string, json bool) *slog.Logger {
	logger := log.New(log.Config{Level: log.ParseLevel(levelName), JSON: json})
	slog.SetDefault(logger)
	return logger
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("Heron - chat over your own documents")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  heron chat [-new]        Start interactive chat (resumes the last session)")
	fmt.Println("  heron serve [addr]       Start the HTTP API server (default: 127.0.0.1:8080)")
	fmt.Println("  heron ingest <path|url>  Add a file, directory or web page to the index")
	fmt.Println("  heron mcp                Start the MCP server on stdio")
	fmt.Println("  heron version            Show version information")
	fmt.Println("  heron help               Show this help")
	fmt.Println()
	fmt.Println("Ingest flags:")
	fmt.Println("  -session <uuid>          Scope ingested chunks to one session")
	fmt.Println("  -crawl                   Follow same-host links when the target is a URL")
	fmt.Println("  -depth <n>               Link depth for -crawl")
	fmt.Println("  -pages <n>               Page cap for -crawl")
	fmt.Println()
	fmt.Println("Chat commands (in interactive mode):")
	fmt.Println("  /help                    Show available commands")
	fmt.Println("  /clear                   Clear the screen")
	fmt.Println("  /exit, /quit             Exit heron")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY           Required: Google AI API key")
	fmt.Println("  TAVILY_API_KEY           Optional: enables the web search fallback")
	fmt.Println("  HERON_SERVE_ADDR         Optional: default listen address for serve")
	fmt.Println("  DEBUG                    Optional: enable debug logging")
}
