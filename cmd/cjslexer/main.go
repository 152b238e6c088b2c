package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "parse":
		err = runParse(args, os.Stdin, os.Stdout)
	case "scan":
		err = runScan(args, os.Stdout)
	case "resolve":
		err = runResolve(args, os.Stdout)
	case "watch":
		err = runWatch(args, os.Stdout)
	case "serve":
		err = runServe(args)
	case "setup":
		runSetup(args)
	case "version":
		fmt.Printf("cjslexer %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "cjslexer %s: %v\n", command, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: cjslexer <command> [flags] [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  parse      Print the exports and re-exports of one module (- reads stdin)")
	fmt.Println("  scan       Analyze every CommonJS module under a directory")
	fmt.Println("  resolve    Follow re-exports and print the flattened export list")
	fmt.Println("  watch      Scan, then reanalyze modules as they change")
	fmt.Println("  serve      Start MCP server")
	fmt.Println("  setup      Register the MCP server with installed AI agents")
	fmt.Println("  version    Print version")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Run 'cjslexer <command> -h' for the flags of a command.")
	fmt.Println("Defaults are read from .cjslexer/config.yaml when present.")
}
