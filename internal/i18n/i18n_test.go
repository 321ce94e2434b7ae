package i18n

import "testing"

func TestDetectLanguage(t *testing.T) {
	cases := map[string]string{
		"en-US,en;q=0.9": "en",
		"EN-gb":          "en",
		"fr-FR,fr;q=0.8": "fr",
		"de-DE":          "fr",
		"":               "fr",
	}
	for in, want := range cases {
		if got := DetectLanguage(in); got != want {
			t.Errorf("DetectLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTranslations(t *testing.T) {
	if T("en", "required") != "Required" {
		t.Fatalf("expected Required")
	}
	if T("fr", "required") != "Requis" {
		t.Fatalf("expected Requis")
	}
	// unknown code -> fallback to code
	if T("en", "__nope__") != "__nope__" {
		t.Fatalf("expected fallback to code")
	}
	// unknown language -> fallback to fr translation if exists
	if T("es", "no_lines") != "Ajoutez au moins une retouche" {
		t.Fatalf("expected fr fallback for es lang")
	}
}

func TestCatalogsHaveSameKeys(t *testing.T) {
	for code := range messages["fr"] {
		if _, ok := messages["en"][code]; !ok {
			t.Errorf("missing en translation for %q", code)
		}
	}
}
