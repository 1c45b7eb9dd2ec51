package validation

import "testing"

func TestValidateFilename(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "file.txt", false},
		{"dotfile", ".bashrc", false},
		{"double dots inside", "data..v2.csv", false},
		{"spaces", "my report.pdf", false},
		{"empty", "", true},
		{"parent", "..", true},
		{"current", ".", true},
		{"forward slash", "a/b", true},
		{"backslash", `a\b`, true},
		{"traversal", "../etc", true},
		{"null byte", "a\x00b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilename(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFilename(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestIsWithin(t *testing.T) {
	tests := []struct {
		base   string
		target string
		sep    string
		want   bool
	}{
		{"/a", "/a", "/", true},
		{"/a", "/a/b", "/", true},
		{"/a", "/a/b/c", "/", true},
		{"/a", "/ab", "/", false},
		{"/a/b", "/a", "/", false},
		{"/", "/x", "/", true},
		{"a", "a/b", "/", true},
		{".", "./x", "/", true},
		{`C:\data`, `C:\data\sub`, `\`, true},
		{`C:\data`, `C:\database`, `\`, false},
		{"", "/a", "/", false},
	}

	for _, tt := range tests {
		t.Run(tt.base+"|"+tt.target, func(t *testing.T) {
			if got := IsWithin(tt.base, tt.target, tt.sep); got != tt.want {
				t.Errorf("IsWithin(%q, %q) = %v, want %v", tt.base, tt.target, got, tt.want)
			}
		})
	}
}
