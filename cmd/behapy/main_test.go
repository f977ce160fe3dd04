package main

import (
	"flag"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		positional []string
		iso        string
	}{
		{"root first", []string{"./bids", "--iso", "x"}, []string{"./bids"}, "x"},
		{"root last", []string{"--iso", "x", "./bids"}, []string{"./bids"}, "x"},
		{"no flags", []string{"./bids"}, []string{"./bids"}, "iso"},
		{"empty", nil, nil, "iso"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := flag.NewFlagSet("preprocess", flag.ContinueOnError)
			cmd.SetOutput(io.Discard)
			iso := cmd.String("iso", "iso", "")

			got, err := parseArgs(cmd, tt.args)
			if err != nil {
				t.Fatalf("parseArgs failed: %v", err)
			}
			if diff := cmp.Diff(tt.positional, got); diff != "" {
				t.Errorf("positional mismatch (-want +got):\n%s", diff)
			}
			if *iso != tt.iso {
				t.Errorf("Expected iso %q, got %q", tt.iso, *iso)
			}
		})
	}
}

func TestParseArgsUnknownFlag(t *testing.T) {
	cmd := flag.NewFlagSet("runs", flag.ContinueOnError)
	cmd.SetOutput(io.Discard)

	if _, err := parseArgs(cmd, []string{"./bids", "--bogus"}); err == nil {
		t.Error("Expected error for unknown flag")
	}
}
