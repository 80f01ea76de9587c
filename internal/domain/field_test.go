package domain

import "testing"

func TestFieldLabels_Primary(t *testing.T) {
	tests := []struct {
		name   string
		labels FieldLabels
		want   string
	}{
		{
			name:   "explicit wins",
			labels: FieldLabels{Explicit: "Email", Wrapping: "Your email", Aria: "email"},
			want:   "Email",
		},
		{
			name:   "wrapping before aria",
			labels: FieldLabels{Wrapping: "Your email", Aria: "email"},
			want:   "Your email",
		},
		{
			name:   "positional last",
			labels: FieldLabels{Positional: "Email:"},
			want:   "Email:",
		},
		{
			name:   "empty",
			labels: FieldLabels{},
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.labels.Primary(); got != tt.want {
				t.Errorf("Primary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFieldLabels_All_Dedup(t *testing.T) {
	l := FieldLabels{
		Explicit:   "Email",
		Wrapping:   "email", // case-insensitive duplicate
		Aria:       "Contact email",
		Positional: "  ", // whitespace only
	}

	got := l.All()
	if len(got) != 2 {
		t.Fatalf("All() length = %d, want 2 (%v)", len(got), got)
	}
	if got[0] != "Email" || got[1] != "Contact email" {
		t.Errorf("All() = %v, want [Email, Contact email]", got)
	}
}

func TestRect_Offset(t *testing.T) {
	r := Rect{X: 10, Y: 20, Width: 100, Height: 30, Top: 20, Right: 110, Bottom: 50, Left: 10}
	got := r.Offset(5, 7)

	if got.X != 15 || got.Y != 27 {
		t.Errorf("Offset origin = (%v,%v), want (15,27)", got.X, got.Y)
	}
	if got.Width != 100 || got.Height != 30 {
		t.Error("Offset must not change size")
	}
	if got.Top != 27 || got.Left != 15 || got.Right != 115 || got.Bottom != 57 {
		t.Errorf("Offset edges = %+v", got)
	}
}
