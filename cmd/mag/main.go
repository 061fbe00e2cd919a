package main

import (
	"fmt"
	"os"

	"github.com/magdb/mag/cmd/mag/load"
	"github.com/magdb/mag/cmd/mag/serve"
	"github.com/magdb/mag/cmd/mag/version"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		serve.Run(os.Args[2:])
	case "load":
		load.Run(os.Args[2:])
	case "version":
		version.Run()
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`mag - Schema-Validated Document Store

Usage:
  mag <command> [options]

Commands:
  serve     Start the API server
  load      Load model definition files into the store
  version   Print version information
  help      Show this help message

Run 'mag <command> --help' for more information on a command.`)
}
