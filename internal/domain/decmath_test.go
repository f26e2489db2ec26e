package domain

import "testing"

func TestIsValidDecimal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"integer", "100", true},
		{"decimal", "3.14", true},
		{"negative", "-5.5", true},
		{"eighteen places", "0.000000000000000001", true},
		{"empty", "", false},
		{"letters", "abc", false},
		{"NaN literal", "NaN", false},
		{"whitespace", "  ", false},
		{"double dot", "1.2.3", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidDecimal(tt.input); got != tt.want {
				t.Errorf("IsValidDecimal(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestAdd(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want string
	}{
		{"integers", "10", "5", "15"},
		{"decimals", "1.5", "2.3", "3.8"},
		{"large token amounts", "1000000000000000000", "1", "1000000000000000001"},
		{"tiny fractions", "0.000000000000000001", "0.000000000000000001", "0.000000000000000002"},
		{"negative", "-3", "5", "2"},
		{"invalid a", "abc", "5", NaN},
		{"invalid b", "5", "", NaN},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Add(tt.a, tt.b); got != tt.want {
				t.Errorf("Add(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSubtract(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want string
	}{
		{"integers", "10", "4", "6"},
		{"to zero", "5.5", "5.5", "0"},
		{"below zero", "1", "2", "-1"},
		{"invalid", "x", "2", NaN},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Subtract(tt.a, tt.b); got != tt.want {
				t.Errorf("Subtract(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

// Round-trip property: subtract(add(a,b), b) == a for valid decimal strings.
func TestAddSubtractRoundTrip(t *testing.T) {
	pairs := [][2]string{
		{"0", "0"},
		{"1", "2"},
		{"49", "58.8"},
		{"0.1", "0.2"},
		{"123456789.123456789", "0.000000000000000001"},
		{"-5", "7.25"},
	}

	for _, p := range pairs {
		got := Subtract(Add(p[0], p[1]), p[1])
		if !Equal(got, p[0]) {
			t.Errorf("Subtract(Add(%q, %q), %q) = %q, want %q", p[0], p[1], p[1], got, p[0])
		}
	}
}

func TestPercentageOf(t *testing.T) {
	tests := []struct {
		name        string
		amount, pct string
		want        string
	}{
		{"two percent of fifty", "50", "2", "1"},
		{"forty percent", "10", "40", "4"},
		{"fee deduction input", "60", "98", "58.8"},
		{"zero percent", "100", "0", "0"},
		{"invalid", "100", "x", NaN},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PercentageOf(tt.amount, tt.pct); got != tt.want {
				t.Errorf("PercentageOf(%q, %q) = %q, want %q", tt.amount, tt.pct, got, tt.want)
			}
		})
	}
}

// Fee math property: feeDeducted + fee == amount.
func TestFeeMathConservation(t *testing.T) {
	cases := []struct{ amount, feePct string }{
		{"50", "2"},
		{"60", "2"},
		{"1000", "0.5"},
		{"0.000000001", "10"},
	}

	for _, c := range cases {
		fee := PercentageOf(c.amount, c.feePct)
		deducted := Subtract(c.amount, fee)
		if sum := Add(deducted, fee); !Equal(sum, c.amount) {
			t.Errorf("fee split of %s at %s%%: %s + %s = %s, want %s",
				c.amount, c.feePct, deducted, fee, sum, c.amount)
		}
	}
}

func TestDivide(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want string
	}{
		{"exact", "10", "4", "2.5"},
		{"repeating rounds", "1", "3", "0.333333333333333333"},
		{"by zero", "10", "0", NaN},
		{"invalid", "abc", "2", NaN},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Divide(tt.a, tt.b); got != tt.want {
				t.Errorf("Divide(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestComparisons(t *testing.T) {
	if !IsGreaterOrEqual("107.8", "100") {
		t.Error("IsGreaterOrEqual(107.8, 100) = false, want true")
	}
	if !IsGreaterOrEqual("100", "100") {
		t.Error("IsGreaterOrEqual(100, 100) = false, want true")
	}
	if IsGreaterOrEqual("99.999999999999999999", "100") {
		t.Error("IsGreaterOrEqual(99.99..., 100) = true, want false")
	}
	if !IsLessThan("4", "10") {
		t.Error("IsLessThan(4, 10) = false, want true")
	}
	if IsLessThan("10", "10") {
		t.Error("IsLessThan(10, 10) = true, want false")
	}
	// Malformed input never compares true.
	if IsGreaterOrEqual(NaN, "0") || IsLessThan(NaN, "1") {
		t.Error("comparisons on NaN input must be false")
	}
}

func TestNaNPropagates(t *testing.T) {
	if got := Add(Add("1", "x"), "2"); got != NaN {
		t.Errorf("NaN did not propagate through Add chain: got %q", got)
	}
	if got := Multiply(Divide("1", "0"), "5"); got != NaN {
		t.Errorf("NaN did not propagate through Divide/Multiply: got %q", got)
	}
}
