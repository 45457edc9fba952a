package main

import "testing"

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"25", 25, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"1.5", 0, true},
		{"lots", 0, true},
	}

	for _, tt := range tests {
		got, err := parseAmount(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseAmount(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("parseAmount(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"init", "open-account", "balances", "history", "grant", "debit", "bonus", "reconcile", "packages", "token"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd == rootCmd {
			t.Errorf("Expected %s to be registered", name)
		}
	}
}
