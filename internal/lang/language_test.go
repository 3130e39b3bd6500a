package lang_test

import (
	"errors"
	"testing"

	"github.com/sonoscribe/sonoscribe/internal/lang"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"pt-BR", "pt-br"},
		{"pt_BR", "pt-br"},
		{"PT-BR", "pt-br"},
		{"en", "en"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := lang.Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBaseCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"pt-BR", "pt"},
		{"zh-CN", "zh"},
		{"en", "en"},
		{"fr_CA", "fr"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := lang.BaseCode(tt.in); got != tt.want {
			t.Errorf("BaseCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := []string{"", "en", "fr", "pt-BR", "PT-br", "zh_CN", "ja"}
	for _, code := range valid {
		if err := lang.Validate(code); err != nil {
			t.Errorf("Validate(%q) = %v, want nil", code, err)
		}
	}

	invalid := []string{"english", "xx", "e", "klingon"}
	for _, code := range invalid {
		err := lang.Validate(code)
		if !errors.Is(err, lang.ErrInvalid) {
			t.Errorf("Validate(%q) = %v, want ErrInvalid", code, err)
		}
	}
}
