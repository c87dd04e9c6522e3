package value

import "testing"

func TestIsFalsey(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want bool
	}{
		{"nil", Nil, true},
		{"false", Bool(false), true},
		{"true", Bool(true), false},
		{"zero", Number(0), false},
		{"empty string", String(""), false},
		{"number", Number(42), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := IsFalsey(c.v); got != c.want {
				t.Errorf("IsFalsey(%v) = %v, want %v", c.v, got, c.want)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	cases := []struct {
		name string
		a, b Value
		want bool
	}{
		{"nil=nil", Nil, Nil, true},
		{"bool by value", Bool(true), Bool(true), true},
		{"bool mismatch", Bool(true), Bool(false), false},
		{"number equal", Number(1), Number(1), true},
		{"number NaN", Number(nan()), Number(nan()), false},
		{"string equal", String("hi"), String("hi"), true},
		{"string mismatch", String("hi"), String("yo"), false},
		{"cross-tag", Number(1), String("1"), false},
		{"cross-tag nil vs false", Nil, Bool(false), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Equal(c.a, c.b); got != c.want {
				t.Errorf("Equal(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
			}
		})
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestStringFormatting(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Nil, "nil"},
		{Bool(true), "true"},
		{Bool(false), "false"},
		{Number(1), "1"},
		{Number(1.5), "1.5"},
		{String("hi!"), "hi!"},
	}
	for _, c := range cases {
		if got := c.v.String(); got != c.want {
			t.Errorf("%#v.String() = %q, want %q", c.v, got, c.want)
		}
	}
}
