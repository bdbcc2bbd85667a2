// Package cli parses the dcr-transcribe command line: a config path
// positional argument plus a small set of one-shot flags (spec §6).
package cli

import (
	"errors"
	"fmt"
	"strings"
)

// defaultConfigPath is used when no positional config path is given.
const defaultConfigPath = "config.toml"

// Parsed is the result of parsing argv.
type Parsed struct {
	ConfigPath string

	ShowHelp       bool
	ShowInterfaces bool

	GenerateConfig     bool
	GenerateConfigPath string
}

// Parse reads argv (excluding argv[0]) into a Parsed command. A bare
// invocation runs the dashboard against defaultConfigPath.
func Parse(args []string) (Parsed, error) {
	parsed := Parsed{ConfigPath: defaultConfigPath}

	havePositional := false
	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
		case "--show-interfaces":
			parsed.ShowInterfaces = true
		case "--generate-config":
			parsed.GenerateConfig = true
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				i++
				parsed.GenerateConfigPath = args[i]
			}
			if parsed.GenerateConfigPath == "" {
				parsed.GenerateConfigPath = defaultConfigPath
			}
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}
			if havePositional {
				return Parsed{}, errors.New("unexpected extra argument: " + arg)
			}
			parsed.ConfigPath = arg
			havePositional = true
		}
	}

	return parsed, nil
}

// HelpText renders usage output for -h/--help.
func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [config_path] [flags]

Arguments:
  config_path   Path to the TOML config file (default: %[2]s)

Flags:
  --show-interfaces         List input and output audio devices and exit
  --generate-config [PATH]  Write a default config file and exit (default: %[2]s)
  -h, --help                Show this help

Dashboard keys (while running):
  1-9         Route a channel's live audio to the monitor output
  q, Esc      Open the quit confirmation
  y           Confirm quit
  Ctrl-C      Force exit immediately
`, binaryName, defaultConfigPath)
}
