package main

import "testing"

func TestCommandTree(t *testing.T) {
	tests := []struct {
		name string
		path []string
	}{
		{"policy lint", []string{"policy", "lint"}},
		{"audit verify", []string{"audit", "verify"}},
		{"evaluate", []string{"evaluate"}},
		{"run", []string{"run"}},
		{"version", []string{"version"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, _, err := rootCmd.Find(tt.path)
			if err != nil {
				t.Fatalf("Find(%v) error = %v", tt.path, err)
			}
			if got, want := cmd.Name(), tt.path[len(tt.path)-1]; got != want {
				t.Errorf("Find(%v) resolved %q, want %q", tt.path, got, want)
			}
		})
	}
}

func TestVerifyCommandFlags(t *testing.T) {
	for _, flag := range []string{"db", "from", "to", "format"} {
		if verifyCmd.Flags().Lookup(flag) == nil {
			t.Errorf("verify command missing --%s flag", flag)
		}
	}
}
