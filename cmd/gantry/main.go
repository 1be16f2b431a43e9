// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wingedpig/gantry/internal/app"
	"github.com/wingedpig/gantry/internal/config"
)

var (
	version = "0.9"
)

func main() {
	// Check for subcommands before flag parsing
	if len(os.Args) > 1 && os.Args[1] == "init" {
		if err := runInit(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Parse flags
	var (
		configPath  string
		host        string
		port        int
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to config file (default: auto-detect)")
	flag.StringVar(&configPath, "c", "", "Path to config file (short)")
	flag.StringVar(&host, "host", "", "Control API host (overrides config)")
	flag.IntVar(&port, "port", 0, "Control API port (overrides config)")
	flag.BoolVar(&showVersion, "version", false, "Show version")
	flag.BoolVar(&showVersion, "v", false, "Show version (short)")
	flag.Parse()

	if showVersion {
		fmt.Printf("gantry %s\n", version)
		os.Exit(0)
	}

	// Find config file if not specified
	if configPath == "" {
		loader := config.NewLoader()
		found, err := loader.FindConfig()
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		configPath = found
	}

	log.Printf("Using config: %s", configPath)

	// Create and run app
	application, err := app.New(app.Options{
		ConfigPath: configPath,
		Host:       host,
		Port:       port,
		Version:    version,
	})
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	ctx := context.Background()
	if err := application.Run(ctx); err != nil {
		log.Fatalf("App error: %v", err)
	}
}

// runInit handles the "gantry init" command
func runInit() error {
	// Parse init-specific flags
	initFlags := flag.NewFlagSet("init", flag.ExitOnError)
	showHelp := initFlags.Bool("help", false, "Show help for init command")
	initFlags.BoolVar(showHelp, "h", false, "Show help for init command")
	initFlags.Parse(os.Args[2:])

	if *showHelp {
		fmt.Println(`Usage: gantry init [options]

Create a new gantry.hjson configuration file in the current directory.

This command walks you through setting up a Gantry configuration with
interactive prompts. The generated file is fully commented to help you
understand and customize all available options.

Options:
  -h, -help    Show this help message

The command will ask about:
  - Project name (defaults to current directory name)
  - Control API port (defaults to 1880)
  - Bundler command (the dev server Gantry manages)
  - Deep-link scheme for your app
  - LAN host for device access

Examples:
  gantry init              Create config with interactive prompts
  cd myapp && gantry init

After running init:
  1. Review and edit gantry.hjson as needed
  2. Run: gantry
  3. Check: curl http://localhost:1880/api/v1/server`)
		return nil
	}

	configFile := "gantry.hjson"

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("%s already exists; remove it first or use a different directory", configFile)
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("Gantry Configuration Setup")
	fmt.Println("==========================")
	fmt.Println()
	fmt.Println("This will create a gantry.hjson configuration file in the current directory.")
	fmt.Println("Press Enter to accept defaults shown in [brackets].")
	fmt.Println()

	// Get current directory name as default project name
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	defaultName := filepath.Base(cwd)

	// Question 1: Project name
	projectName := prompt(reader, "Project name", defaultName)

	// Question 2: Control API port
	portStr := prompt(reader, "Control API port", "1880")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 1880
	}

	// Question 3: Bundler command
	fmt.Println()
	fmt.Println("The bundler is the dev server Gantry starts and supervises (e.g. Metro).")
	bundlerCommand := prompt(reader, "Bundler command", "npx react-native start")

	// Question 4: Deep-link scheme
	fmt.Println()
	scheme := prompt(reader, "Deep-link scheme for your app (or empty to skip)", strings.ToLower(projectName))

	// Question 5: LAN host
	fmt.Println()
	fmt.Println("Devices on your network reach the dev server via this host or IP.")
	lanHost := prompt(reader, "LAN host (or empty for localhost only)", "")

	// Generate the config file
	configContent := generateConfig(projectName, port, bundlerCommand, scheme, lanHost)

	// Write the file
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Println()
	fmt.Printf("Created %s\n", configFile)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Review and edit gantry.hjson as needed")
	fmt.Println("  2. Run: gantry")
	fmt.Println("  3. Check: curl http://localhost:" + strconv.Itoa(port) + "/api/v1/server")
	fmt.Println()

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}

// escapeHJSONValue escapes a string for safe inclusion in an HJSON double-quoted value.
func escapeHJSONValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

func generateConfig(projectName string, port int, bundlerCommand, scheme, lanHost string) string {
	var sb strings.Builder

	sb.WriteString(`{
  // =============================================================================
  // Gantry Configuration
  // =============================================================================
  //
  // This is an HJSON file (JSON with comments and relaxed syntax).

  // ---------------------------------------------------------------------------
  // Project Metadata
  // ---------------------------------------------------------------------------
  project: {
    // Display name for this project (used in session registration)
    name: "`)
	sb.WriteString(escapeHJSONValue(projectName))
	sb.WriteString(`"

    // Project root directory (default: directory of this file)
    // root: "/path/to/project"
  }

  // ---------------------------------------------------------------------------
  // Control API
  // ---------------------------------------------------------------------------
  server: {
    // Host to bind to (use "0.0.0.0" to allow remote access)
    host: "127.0.0.1"

    // Port for the control API
    port: `)
	sb.WriteString(strconv.Itoa(port))
	sb.WriteString(`

    // For HTTPS, uncomment and set paths to your certificates:
    // tls_cert: "~/.gantry/cert.pem"
    // tls_key: "~/.gantry/key.pem"

    // Or fetch certificates from the local Tailscale daemon:
    // tls_tailscale: true
  }

  // ---------------------------------------------------------------------------
  // Bundler
  // ---------------------------------------------------------------------------
  //
  // The bundler dev server Gantry starts and supervises. Gantry appends
  // --port <n> to the command and proxies bundle traffic to it.
  bundler: {
    name: "metro"
    command: [`)
	cmdParts := strings.Fields(bundlerCommand)
	escapedParts := make([]string, len(cmdParts))
	for i, p := range cmdParts {
		escapedParts[i] = `"` + escapeHJSONValue(p) + `"`
	}
	sb.WriteString(strings.Join(escapedParts, ", "))
	sb.WriteString(`]

    // Public port for the dev server (0 picks a free port)
    port: 8081

    // How long to wait for the bundler to accept connections
    // ready_timeout: "60s"

    // Extra environment for the bundler process
    // env: {
    //   NODE_ENV: "development"
    // }
  }

  // ---------------------------------------------------------------------------
  // URL Construction
  // ---------------------------------------------------------------------------
  location: {
`)
	if scheme != "" {
		sb.WriteString(`    // Custom deep-link scheme registered by your app
    scheme: "`)
		sb.WriteString(escapeHJSONValue(scheme))
		sb.WriteString(`"

`)
	} else {
		sb.WriteString(`    // Custom deep-link scheme registered by your app
    // scheme: "myapp"

`)
	}
	sb.WriteString(`    // How devices address the dev server: "localhost", "lan" or "tunnel"
    host_type: "lan"
`)
	if lanHost != "" {
		sb.WriteString(`
    // LAN-reachable host or IP of this machine
    lan_host: "`)
		sb.WriteString(escapeHJSONValue(lanHost))
		sb.WriteString(`"
`)
	} else {
		sb.WriteString(`
    // LAN-reachable host or IP of this machine
    // lan_host: "192.168.1.20"
`)
	}
	sb.WriteString(`  }

  // ---------------------------------------------------------------------------
  // Tunnel
  // ---------------------------------------------------------------------------
  //
  // A public tunnel lets physical devices outside your network reach the
  // dev server. Requires the tunnel binary on PATH. Started automatically
  // when host_type is "tunnel".
  tunnel: {
    binary: "ngrok"
    // region: "eu"
  }

  // ---------------------------------------------------------------------------
  // Session Registration
  // ---------------------------------------------------------------------------
  //
  // Advertise the running dev server to a remote registry so other clients
  // can discover it. Empty endpoint disables registration.
  session: {
    // endpoint: "https://registry.example.com"
    // interval: "30s"
  }

  // ---------------------------------------------------------------------------
  // Config Watching
  // ---------------------------------------------------------------------------
  //
  // When one of these files changes, the dev server is restarted.
  watch: {
    files: ["app.json", "app.config.js", ".env"]
    debounce: "100ms"
  }

  // ---------------------------------------------------------------------------
  // Behavior Flags
  // ---------------------------------------------------------------------------
  settings: {
    // Whether native runtimes (simulator/emulator) are the launch target
    target_native: true

    // Suppress tunnel start even when host_type is "tunnel"
    // offline: true

    // Serve the runtime-selection loading page to devices
    // interstitial_page: true
  }
}
`)

	return sb.String()
}
