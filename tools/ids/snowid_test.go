package ids

import "testing"

func TestGenerateMonotonic(t *testing.T) {
	prev := Generate()
	for i := 0; i < 10000; i++ {
		id := Generate()
		if id <= prev {
			t.Fatalf("id not monotonic: prev=%d next=%d (iteration %d)", prev, id, i)
		}
		prev = id
	}
}

func TestGenerateStringParses(t *testing.T) {
	s := GenerateString()
	if s == "" || s == "0" {
		t.Fatalf("unexpected id string: %q", s)
	}
}
