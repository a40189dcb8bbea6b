package cmd

import (
	"testing"
)

func TestNewServeCmd_Defaults(t *testing.T) {
	cmd := newServeCmd()

	transport, err := cmd.Flags().GetString("transport")
	if err != nil {
		t.Fatalf("transport flag: %v", err)
	}
	if transport != "streamable-http" {
		t.Errorf("default transport = %q, expected streamable-http", transport)
	}

	yolo, err := cmd.Flags().GetBool("yolo")
	if err != nil {
		t.Fatalf("yolo flag: %v", err)
	}
	if yolo {
		t.Error("write operations must be disabled by default")
	}
}

func TestNewAdminCmd_Flags(t *testing.T) {
	cmd := newAdminCmd()

	addr, err := cmd.Flags().GetString("http-addr")
	if err != nil {
		t.Fatalf("http-addr flag: %v", err)
	}
	if addr != "" {
		t.Errorf("default http-addr = %q, expected empty (config decides)", addr)
	}
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	var names []string
	for _, sub := range rootCmd.Commands() {
		names = append(names, sub.Name())
	}

	for _, want := range []string{"serve", "admin", "version"} {
		found := false
		for _, name := range names {
			if name == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing subcommand %q, have %v", want, names)
		}
	}
}
