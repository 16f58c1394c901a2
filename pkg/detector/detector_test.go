package detector

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dtnitsch/wiki-ngrams/models"
	"github.com/pemistahl/lingua-go"
)

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		want    lingua.Language
		wantErr bool
	}{
		{name: "lowercase", code: "en", want: lingua.English},
		{name: "uppercase", code: "PL", want: lingua.Polish},
		{name: "padded", code: " de ", want: lingua.German},
		{name: "empty", code: "", wantErr: true},
		{name: "unknown", code: "xx", wantErr: true},
		{name: "three letters", code: "eng", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLanguage(tt.code)
			if tt.wantErr {
				if !errors.Is(err, models.ErrInvalidConfig) {
					t.Errorf("ParseLanguage(%q) error = %v, want ErrInvalidConfig", tt.code, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseLanguage(%q) = %v, %v, want %v", tt.code, got, err, tt.want)
			}
		})
	}
}

func TestLanguageFilter(t *testing.T) {
	f, err := NewLanguageFilter("en", []string{"de"})
	if err != nil {
		t.Fatalf("NewLanguageFilter() error = %v", err)
	}
	if f.Target() != "en" {
		t.Errorf("Target() = %q, want en", f.Target())
	}

	english := "The committee published its annual report on the state of the river and the fish that live in it."
	german := "Der Ausschuss veröffentlichte seinen jährlichen Bericht über den Zustand des Flusses und der Fische, die darin leben."
	if !f.Accept(english) {
		t.Error("English text rejected")
	}
	if f.Accept(german) {
		t.Error("German text accepted")
	}
}

func TestNewLanguageFilterRejectsLoneTarget(t *testing.T) {
	if _, err := NewLanguageFilter("en", []string{"en"}); !errors.Is(err, models.ErrInvalidConfig) {
		t.Errorf("NewLanguageFilter() error = %v, want ErrInvalidConfig", err)
	}
}

func TestSample(t *testing.T) {
	long := strings.Repeat("ż", sampleBytes)
	got := sample(long)
	if len(got) > sampleBytes || !utf8.ValidString(got) {
		t.Errorf("sample() returned %d bytes, valid=%v", len(got), utf8.ValidString(got))
	}
	if sample("short") != "short" {
		t.Error("short text changed")
	}
}
