package validation

import (
	"testing"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		// Valid identifiers
		{"simple", "coder", false},
		{"single char", "a", false},
		{"uuid", "3f1c9b2e-8a4d-4f6e-9c1a-2b7d8e5f0a13", false},
		{"hostname style", "agent-01.build", false},
		{"underscore", "review_bot", false},
		{"max length", "a123456789a123456789a123456789a123456789a123456789a1234567890123", false},

		// Invalid identifiers - injection attempts
		{"empty", "", true},
		{"key separator", "agent:latest", true},
		{"newline injection", "agent\ninjected=true", true},
		{"path traversal", "../agent", true},
		{"spaces", "agent one", true},
		{"too long", "a123456789a123456789a123456789a123456789a123456789a12345678901234", true},
		{"starts with dot", ".agent", true},
		{"starts with hyphen", "-agent", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateIdentifier(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeIdentifier(t *testing.T) {
	got, err := SanitizeIdentifier("  coder-7 ")
	if err != nil {
		t.Fatalf("SanitizeIdentifier() error = %v", err)
	}
	if got != "coder-7" {
		t.Errorf("SanitizeIdentifier() = %q, want %q", got, "coder-7")
	}

	if _, err := SanitizeIdentifier("   "); err == nil {
		t.Error("SanitizeIdentifier() accepted blank input")
	}
}

func TestValidateRelPath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		// Valid paths
		{"simple", "main.go", false},
		{"nested", "internal/server/routes.go", false},
		{"dot prefix", "./cmd/app.go", false},
		{"internal dotdot resolving inside", "src/../src/lib.rs", false},

		// Invalid paths
		{"empty", "", true},
		{"absolute", "/etc/passwd", true},
		{"parent escape", "../secrets.env", true},
		{"deep escape", "a/../../b", true},
		{"bare dotdot", "..", true},
		{"windows drive", `C:\Windows\system32`, true},
		{"backslash absolute", `\\share\file`, true},
		{"nul byte", "file\x00.go", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRelPath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRelPath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}
