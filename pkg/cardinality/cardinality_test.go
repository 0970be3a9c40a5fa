package cardinality

import (
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Cardinality
		wantErr bool
	}{
		{"0..*", Cardinality{0, "*"}, false},
		{"1..1", Cardinality{1, "1"}, false},
		{" 2..12 ", Cardinality{2, "12"}, false},
		{"0..0", Cardinality{0, "0"}, false},
		{"1", Cardinality{}, true},
		{"a..1", Cardinality{}, true},
		{"1..x", Cardinality{}, true},
		{"-1..1", Cardinality{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v; wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Parse(%q) = %v; want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCombine(t *testing.T) {
	tests := []struct {
		name          string
		parent, child Cardinality
		want          string
	}{
		{"optional parent zeroes min", New(0, "1"), New(1, "1"), "0..1"},
		{"required multiplies min", New(2, "3"), New(1, "4"), "2..12"},
		{"prohibited parent forces max 0", New(0, "0"), New(1, "*"), "0..0"},
		{"unbounded child", New(1, "1"), New(0, "*"), "0..*"},
		{"unbounded parent", New(1, "*"), New(1, "2"), "1..*"},
		{"non-numeric max reads as unbounded", New(1, "n"), New(1, "2"), "1..*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Combine(tt.parent, tt.child).String(); got != tt.want {
				t.Errorf("Combine(%v, %v) = %s; want %s", tt.parent, tt.child, got, tt.want)
			}
		})
	}
}

func TestAlong(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		byPath map[string]Cardinality
		want   string
	}{
		{
			name: "optional in the middle",
			path: "A.B.C",
			byPath: map[string]Cardinality{
				"A":     New(1, "1"),
				"A.B":   New(0, "5"),
				"A.B.C": New(1, "1"),
			},
			want: "0..5",
		},
		{
			name: "products accumulate",
			path: "A.B.C",
			byPath: map[string]Cardinality{
				"A.B":   New(2, "3"),
				"A.B.C": New(1, "4"),
			},
			want: "2..12",
		},
		{
			name: "prohibited parent",
			path: "A.B.C",
			byPath: map[string]Cardinality{
				"A.B":   New(0, "0"),
				"A.B.C": New(1, "*"),
			},
			want: "0..0",
		},
		{
			name:   "unknown segments are skipped",
			path:   "A.B.C",
			byPath: map[string]Cardinality{"A.B.C": New(0, "1")},
			want:   "0..1",
		},
		{
			name:   "root only",
			path:   "A",
			byPath: map[string]Cardinality{"A": New(0, "*")},
			want:   "1..1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Along(tt.path, tt.byPath).String(); got != tt.want {
				t.Errorf("Along(%q) = %s; want %s", tt.path, got, tt.want)
			}
		})
	}
}

func TestCombineIsAssociative(t *testing.T) {
	cards := []Cardinality{New(1, "1"), New(0, "5"), New(2, "3"), New(1, "*"), New(0, "0"), New(1, "4")}
	for _, a := range cards {
		for _, b := range cards {
			for _, c := range cards {
				left := Combine(Combine(a, b), c)
				right := Combine(a, Combine(b, c))
				if a.IsProhibited() || b.IsProhibited() {
					// The 0..0 rule only looks at the immediate parent.
					continue
				}
				if !left.Equal(right) {
					t.Errorf("(%v %v) %v = %v; %v (%v %v) = %v", a, b, c, left, a, b, c, right)
				}
			}
		}
	}
}

func TestCardinalityPredicates(t *testing.T) {
	if !New(0, "0").IsRemoved() || !New(0, "0").IsProhibited() {
		t.Error("0..0 should be removed and prohibited")
	}
	if !New(1, "0").IsRemoved() {
		t.Error("1..0 should be removed")
	}
	if New(0, "*").IsRemoved() {
		t.Error("0..* should not be removed")
	}
	if got := New(0, "").String(); got != "0..*" {
		t.Errorf("New(0, \"\") = %s; want 0..*", got)
	}
}
