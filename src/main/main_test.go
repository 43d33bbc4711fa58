package main

import (
	"os"
	"testing"
)

func TestNormalizeFlagDashes(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{
			in:   []string{"select-translate", "--run-once"},
			want: []string{"select-translate", "-run-once"},
		},
		{
			in:   []string{"select-translate", "--run-once-std"},
			want: []string{"select-translate", "-run-once-std"},
		},
		{
			in:   []string{"select-translate", "-run-once", "--other"},
			want: []string{"select-translate", "-run-once", "--other"},
		},
	}

	orig := os.Args
	defer func() { os.Args = orig }()

	for _, tt := range tests {
		os.Args = append([]string(nil), tt.in...)
		normalizeFlagDashes()
		for i := range tt.want {
			if os.Args[i] != tt.want[i] {
				t.Errorf("in %v: arg[%d] = %q, want %q", tt.in, i, os.Args[i], tt.want[i])
			}
		}
	}
}
