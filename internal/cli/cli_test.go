package cli

import "testing"

func TestParseDefaultsToConfigTomlPositional(t *testing.T) {
	parsed, err := Parse(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.ConfigPath != "config.toml" {
		t.Fatalf("ConfigPath = %q, want config.toml", parsed.ConfigPath)
	}
	if parsed.ShowHelp || parsed.ShowInterfaces || parsed.GenerateConfig {
		t.Fatalf("unexpected flags set: %+v", parsed)
	}
}

func TestParsePositionalConfigPath(t *testing.T) {
	parsed, err := Parse([]string{"custom.toml"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.ConfigPath != "custom.toml" {
		t.Fatalf("ConfigPath = %q, want custom.toml", parsed.ConfigPath)
	}
}

func TestParseShowInterfaces(t *testing.T) {
	parsed, err := Parse([]string{"--show-interfaces"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !parsed.ShowInterfaces {
		t.Fatal("ShowInterfaces = false, want true")
	}
}

func TestParseGenerateConfigDefaultPath(t *testing.T) {
	parsed, err := Parse([]string{"--generate-config"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !parsed.GenerateConfig {
		t.Fatal("GenerateConfig = false, want true")
	}
	if parsed.GenerateConfigPath != "config.toml" {
		t.Fatalf("GenerateConfigPath = %q, want config.toml", parsed.GenerateConfigPath)
	}
}

func TestParseGenerateConfigExplicitPath(t *testing.T) {
	parsed, err := Parse([]string{"--generate-config", "/tmp/out.toml"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.GenerateConfigPath != "/tmp/out.toml" {
		t.Fatalf("GenerateConfigPath = %q, want /tmp/out.toml", parsed.GenerateConfigPath)
	}
}

func TestParseHelp(t *testing.T) {
	parsed, err := Parse([]string{"--help"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !parsed.ShowHelp {
		t.Fatal("ShowHelp = false, want true")
	}
}

func TestParseUnknownFlagErrors(t *testing.T) {
	_, err := Parse([]string{"--bogus"})
	if err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

func TestParseExtraPositionalErrors(t *testing.T) {
	_, err := Parse([]string{"a.toml", "b.toml"})
	if err == nil {
		t.Fatal("expected error for extra positional argument")
	}
}

func TestHelpTextMentionsFlags(t *testing.T) {
	text := HelpText("dcr-transcribe")
	for _, want := range []string{"--show-interfaces", "--generate-config", "config_path"} {
		if !contains(text, want) {
			t.Fatalf("help text missing %q:\n%s", want, text)
		}
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}
