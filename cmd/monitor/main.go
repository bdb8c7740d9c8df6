package main

import (
	"fmt"
	"os"
)

const usageText = `monitor is a terminal UI for codex agent threads.

Usage:
  monitor [command]

Commands:
  ui          run the terminal UI (default)
  doctor      check that the codex binary is reachable
  workspace   manage workspaces (add, list, rm)
  help        show help

Examples:
  monitor
  monitor workspace add ~/src/project
  monitor workspace list
  monitor doctor
`

func printUsage() {
	fmt.Fprint(os.Stderr, usageText)
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		exitOnErr("ui", runUI())
		return
	}

	switch args[0] {
	case "-h", "--help", "help":
		printUsage()
	case "ui":
		exitOnErr("ui", runUI())
	case "doctor":
		exitOnErr("doctor", runDoctor())
	case "workspace":
		exitOnErr("workspace", runWorkspace(args[1:]))
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func exitOnErr(command string, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "monitor %s: %v\n", command, err)
	os.Exit(1)
}
