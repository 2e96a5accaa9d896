package cardgen

import (
	"strings"
	"testing"
)

func TestGeneratePANWithLength(t *testing.T) {
	pan, err := GeneratePANWithLength("421234", 16, "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(pan) != 16 || !strings.HasPrefix(pan, "421234") {
		t.Fatalf("unexpected pan %s", pan)
	}
	if err := ValidatePAN(pan); err != nil {
		t.Fatalf("generated pan invalid: %v", err)
	}

	pan, err = GeneratePANWithLength("421234", 16, "42")
	if err != nil {
		t.Fatalf("generate with sequence: %v", err)
	}
	if pan[13:15] != "42" {
		t.Fatalf("sequence not applied: %s", pan)
	}
}

func TestValidatePAN(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"4242424242424242", true},
		{"4242424242424241", false},
		{"42424242", false},
		{"4242a24242424242", false},
		{"", false},
	}
	for _, c := range cases {
		err := ValidatePAN(c.in)
		if (err == nil) != c.ok {
			t.Fatalf("ValidatePAN(%q) ok=%v got err=%v", c.in, c.ok, err)
		}
	}
}

func TestValidateBIN(t *testing.T) {
	for _, bin := range []string{"421234", "42123456", "421234567"} {
		if err := ValidateBIN(bin); err != nil {
			t.Fatalf("ValidateBIN(%s): %v", bin, err)
		}
	}
	for _, bin := range []string{"", "4212", "42123a", "4212345"} {
		if err := ValidateBIN(bin); err == nil {
			t.Fatalf("ValidateBIN(%q) expected error", bin)
		}
	}
}

func TestMaskPAN(t *testing.T) {
	cases := map[string]string{
		"4242 4242 4242 4242": "424242******4242",
		"123456789":           "*****6789",
		"1234":                "****",
		"":                    "",
	}
	for in, want := range cases {
		if got := MaskPAN(in); got != want {
			t.Fatalf("MaskPAN(%q) = %q want %q", in, got, want)
		}
	}
}

func TestGenerateUniquePAN(t *testing.T) {
	calls := 0
	pan, err := GenerateUniquePAN("421234", 16, "", 3, func(string) (bool, error) {
		calls++
		return calls < 3, nil
	})
	if err != nil {
		t.Fatalf("unique pan: %v", err)
	}
	if calls != 3 || ValidatePAN(pan) != nil {
		t.Fatalf("calls=%d pan=%s", calls, pan)
	}

	_, err = GenerateUniquePAN("421234", 16, "", 2, func(string) (bool, error) { return true, nil })
	if err == nil {
		t.Fatalf("expected error when every PAN exists")
	}
}

func TestRandomDigits(t *testing.T) {
	d, err := RandomDigits(40)
	if err != nil {
		t.Fatalf("random digits: %v", err)
	}
	if len(d) != 40 || !IsDigits(d) {
		t.Fatalf("unexpected digits %q", d)
	}
}
