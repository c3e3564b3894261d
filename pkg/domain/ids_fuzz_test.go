package domain

import "testing"

// FuzzParsePredictionID feeds path parameters through the parser: it must
// never panic, never accept the nil UUID, and accepted values must survive
// String.
func FuzzParsePredictionID(f *testing.F) {
	for _, seed := range []string{
		"",
		"0c8f4a8e-2b1d-4c55-9a8e-3f3f7c1d2e10",
		"00000000-0000-0000-0000-000000000000",
		"{0c8f4a8e-2b1d-4c55-9a8e-3f3f7c1d2e10}",
		"urn:uuid:0c8f4a8e-2b1d-4c55-9a8e-3f3f7c1d2e10",
		"\x00\x01",
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, in string) {
		got, err := ParsePredictionID(in)
		if err != nil {
			return
		}
		if got.IsNil() {
			t.Fatalf("accepted nil id from %q", in)
		}
		again, err := ParsePredictionID(got.String())
		if err != nil || again != got {
			t.Fatalf("canonical form of %q does not parse back: %v", in, err)
		}
	})
}
