package textutil

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Hello   World ", "hello world"},
		{"EMAIL", "email"},
		{"", ""},
		{"a\tb\nc", "a b c"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeFieldName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"firstName", "first name"},
		{"first_name", "first name"},
		{"first-name", "first name"},
		{"FirstName", "first name"},
		{"billing.zipCode", "billing zip code"},
		{"email", "email"},
	}
	for _, tt := range tests {
		if got := NormalizeFieldName(tt.in); got != tt.want {
			t.Errorf("NormalizeFieldName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsCryptic(t *testing.T) {
	cryptic := []string{
		"550e8400-e29b-41d4-a716-446655440000",
		"a1b2c3d4e5f60718293a4b5c",
		"input_a1b2c3d",
		"field-deadbeef42",
	}
	for _, s := range cryptic {
		if !IsCryptic(s) {
			t.Errorf("IsCryptic(%q) = false, want true", s)
		}
	}

	plain := []string{
		"email",
		"first_name",
		"shippingAddress",
		"phone-number",
		"",
	}
	for _, s := range plain {
		if IsCryptic(s) {
			t.Errorf("IsCryptic(%q) = true, want false", s)
		}
	}
}

func TestDice(t *testing.T) {
	if got := Dice("night", "night"); got != 1 {
		t.Errorf("Dice(identical) = %v, want 1", got)
	}
	if got := Dice("night", "nacht"); got <= 0 || got >= 1 {
		t.Errorf("Dice(night,nacht) = %v, want in (0,1)", got)
	}
	if got := Dice("a", "b"); got != 0 {
		t.Errorf("Dice(single chars) = %v, want 0", got)
	}
}

func TestJaroWinkler(t *testing.T) {
	if got := JaroWinkler("email", "email"); got != 1 {
		t.Errorf("JaroWinkler(identical) = %v, want 1", got)
	}
	if got := JaroWinkler("martha", "marhta"); got < 0.95 {
		t.Errorf("JaroWinkler(martha,marhta) = %v, want >= 0.95", got)
	}
	if got := JaroWinkler("abc", "xyz"); got != 0 {
		t.Errorf("JaroWinkler(disjoint) = %v, want 0", got)
	}
}

func TestCombined_SimilarQuestions(t *testing.T) {
	got := Combined("What is your email address", "Email address")
	if got <= 0.4 {
		t.Errorf("Combined = %v, want > 0.4", got)
	}

	far := Combined("Favorite color", "Social security number")
	if far >= got {
		t.Errorf("unrelated pair scored %v, similar pair %v", far, got)
	}
}

func TestTokenOverlap(t *testing.T) {
	if got := TokenOverlap("first name", "Enter your first name"); got != 1 {
		t.Errorf("TokenOverlap = %v, want 1", got)
	}
	if got := TokenOverlap("", "x"); got != 0 {
		t.Errorf("TokenOverlap empty = %v, want 0", got)
	}
}
