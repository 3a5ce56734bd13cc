package errors

import (
	"testing"
)

func TestValidateProjectPath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid relative", "world.terrain", false},
		{"valid nested", "projects/alps/world.terrain", false},
		{"valid upper ext", "WORLD.TERRAIN", false},
		{"valid windows", `C:\Users\me\world.terrain`, false},

		{"empty", "", true},
		{"wrong extension", "world.json", true},
		{"no extension", "world", true},
		{"null byte", "wor\x00ld.terrain", true},
		{"newline", "wor\nld.terrain", true},
		{"too long", string(make([]byte, 2000)) + ".terrain", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProjectPath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateProjectPath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidPath) {
				t.Errorf("code = %v, want %v", GetCode(err), ErrCodeInvalidPath)
			}
		})
	}
}

func TestValidateNodeName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "Mountain", false},
		{"spaces", "Big Mountain 2", false},
		{"unicode", "Berg über", false},

		{"empty", "", true},
		{"blank", "   ", true},
		{"control", "a\tb", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNodeName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateNodeName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePropertyKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "Seed", false},
		{"underscore", "_hidden", false},
		{"dotted", "Range.X", false},
		{"integer", "1", false},
		{"leading digit", "1abc", false},
		{"hyphen", "Scale-X", false},
		{"space", "Rock Softness", false},

		{"empty", "", true},
		{"reserved id", "$id", true},
		{"reserved type", "$type", true},
		{"dollar prefix", "$Height", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePropertyKey(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePropertyKey(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateVariableName(t *testing.T) {
	for _, ok := range []string{"Height", "seed_2", "_x"} {
		if err := ValidateVariableName(ok); err != nil {
			t.Errorf("ValidateVariableName(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "a=b", "has space", "9lives"} {
		if err := ValidateVariableName(bad); err == nil {
			t.Errorf("ValidateVariableName(%q) succeeded, want error", bad)
		}
	}
}
