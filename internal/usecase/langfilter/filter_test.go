package langfilter

import (
	"testing"
)

const (
	english = "The quick brown fox jumps over the lazy dog while the farmer watches from the porch of his house. " +
		"Later that evening the whole family gathered in the kitchen to share stories about the long day."
	spanish = "El rápido zorro marrón salta sobre el perro perezoso mientras el granjero mira desde el porche de su casa. " +
		"Más tarde, toda la familia se reunió en la cocina para compartir historias sobre el largo día de trabajo."
	short   = "Hello there"
)

func TestDetect(t *testing.T) {
	f := New(Options{Enabled: true, Allowed: []string{"en"}})

	tests := []struct {
		name string
		text string
		want string
	}{
		{"english", english, "en"},
		{"spanish", spanish, "es"},
		{"too short", short, Unknown},
		{"empty", "", Unknown},
		{"markup only", "<div><span></span></div>", Unknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := f.Detect(tc.text); got != tc.want {
				t.Errorf("Detect() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAccept_Strict(t *testing.T) {
	f := New(Options{Enabled: true, Allowed: []string{"en"}, Mode: ModeStrict})

	if !f.Accept(english) {
		t.Error("strict must accept allowed language")
	}
	if f.Accept(spanish) {
		t.Error("strict must reject other languages")
	}
	if f.Accept(short) {
		t.Error("strict must reject unknown")
	}
}

func TestAccept_Lenient(t *testing.T) {
	f := New(Options{Enabled: true, Allowed: []string{"EN"}, Mode: ModeLenient})

	if !f.Accept(english) {
		t.Error("lenient must accept allowed language")
	}
	if f.Accept(spanish) {
		t.Error("lenient must reject other detected languages")
	}
	if !f.Accept(short) {
		t.Error("lenient must accept unknown")
	}
}

func TestAccept_Disabled(t *testing.T) {
	f := New(Options{Enabled: false, Allowed: []string{"en"}})

	for _, text := range []string{english, spanish, short, ""} {
		if !f.Accept(text) {
			t.Errorf("disabled filter must accept %q", text)
		}
	}
}

func TestDecide_ReportsLanguage(t *testing.T) {
	f := New(Options{Enabled: true, Allowed: []string{"en"}})

	d := f.Decide(spanish)
	if d.Accepted || d.Language != "es" {
		t.Errorf("unexpected decision: %+v", d)
	}
}

func TestDetect_StripsMarkup(t *testing.T) {
	f := New(Options{Enabled: true, MinLength: 20})

	// tag text alone would pass the length threshold
	if got := f.Detect("<p><span class=\"navigation-header\">Hi</span></p>"); got != Unknown {
		t.Errorf("expected unknown after stripping, got %q", got)
	}
}
