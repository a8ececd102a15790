// Command pjrmid is the PJRmi bridge server entrypoint: it loads
// configuration, brings up logging, telemetry and metrics, and accepts
// peer connections until asked to shut down.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/deshaw/pjrmi-go/internal/config"
)

// Build-time variables injected via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const usage = `pjrmid - PJRmi cross-runtime RPC bridge server

Usage:
  pjrmid <command> [flags]

Commands:
  init     Initialize a sample configuration file
  start    Start the bridge server
  version  Show version information

Flags:
  --config string    Path to config file (default: $XDG_CONFIG_HOME/pjrmi/config.yaml)
  --force            Force overwrite existing config file (init command only)

Examples:
  # Initialize config file
  pjrmid init

  # Start server with default config location
  pjrmid start

  # Start server with custom config
  pjrmid start --config /etc/pjrmi/config.yaml

  # Use environment variables to override config
  PJRMI_LOGGING_LEVEL=DEBUG pjrmid start

Environment Variables:
  All configuration options can be overridden using environment variables.
  Format: PJRMI_<SECTION>_<KEY> (use underscores for nested keys)

  Examples:
    PJRMI_LOGGING_LEVEL=DEBUG
    PJRMI_SERVER_BIND_PORT=4321
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit()
	case "start":
		runStart()
	case "help", "--help", "-h":
		fmt.Print(usage)
		os.Exit(0)
	case "version", "--version", "-v":
		fmt.Printf("pjrmid %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func runInit() {
	initFlags := flag.NewFlagSet("init", flag.ExitOnError)
	configFile := initFlags.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/pjrmi/config.yaml)")
	force := initFlags.Bool("force", false, "Force overwrite existing config file")

	if err := initFlags.Parse(os.Args[2:]); err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}

	var configPath string
	var err error

	if *configFile != "" {
		configPath = *configFile
		err = config.InitConfigToPath(*configFile, *force)
	} else {
		configPath, err = config.InitConfig(*force)
	}
	if err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the server with: pjrmid start")
	fmt.Printf("  3. Or specify custom config: pjrmid start --config %s\n", configPath)
}

func runStart() {
	startFlags := flag.NewFlagSet("start", flag.ExitOnError)
	configFile := startFlags.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/pjrmi/config.yaml)")

	if err := startFlags.Parse(os.Args[2:]); err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}

	if *configFile == "" {
		if !config.DefaultConfigExists() {
			fmt.Fprintf(os.Stderr, "Error: No configuration file found at default location: %s\n\n", config.GetDefaultConfigPath())
			fmt.Fprintln(os.Stderr, "Please initialize a configuration file first:")
			fmt.Fprintln(os.Stderr, "  pjrmid init")
			fmt.Fprintln(os.Stderr, "\nOr specify a custom config file:")
			fmt.Fprintln(os.Stderr, "  pjrmid start --config /path/to/config.yaml")
			os.Exit(1)
		}
	} else if _, err := os.Stat(*configFile); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: Configuration file not found: %s\n\n", *configFile)
		fmt.Fprintln(os.Stderr, "Please create the configuration file:")
		fmt.Fprintf(os.Stderr, "  pjrmid init --config %s\n", *configFile)
		os.Exit(1)
	}

	cfg, err := config.MustLoad(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := serve(cfg); err != nil {
		log.Fatalf("%v", err)
	}
}
