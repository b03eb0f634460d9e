package price

import "testing"

func TestParseScaledBasic(t *testing.T) {
	cases := map[string]uint64{
		"":              0,
		"100":           100_000_000_000,
		"100.000000000": 100_000_000_000,
		"99.5":          99_500_000_000,
		"0.000000001":   1,
		"1.1":           1_100_000_000,
	}
	for in, want := range cases {
		if got := ParseScaled(in); got != want {
			t.Errorf("ParseScaled(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParseScaledRoundsExtraPrecision(t *testing.T) {
	got := ParseScaled("1.0000000005")
	if got != 1_000_000_001 {
		t.Errorf("ParseScaled with 10 fractional digits = %d, want rounded 1000000001", got)
	}
}

func TestRenderStripsTrailingZeros(t *testing.T) {
	cases := map[uint64]string{
		0:               "",
		100_000_000_000: "100",
		99_500_000_000:  "99.5",
		1:               "0.000000001",
	}
	for in, want := range cases {
		if got := Render(in); got != want {
			t.Errorf("Render(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, s := range []string{"100", "99.5", "0.1", "12345.6789"} {
		scaled := ParseScaled(s)
		back := Render(scaled)
		if ParseScaled(back) != scaled {
			t.Errorf("round trip mismatch for %q: scaled=%d rendered=%q", s, scaled, back)
		}
	}
}
