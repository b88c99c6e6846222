package ids

import "testing"

func TestGenerateUniqueAndIncreasing(t *testing.T) {
	const n = 10000
	seen := make(map[int64]struct{}, n)
	prev := int64(0)
	for i := 0; i < n; i++ {
		id := Generate()
		if id <= 0 {
			t.Fatalf("non-positive id %d", id)
		}
		if id <= prev {
			t.Fatalf("id %d not greater than previous %d", id, prev)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = struct{}{}
		prev = id
	}
}

func TestGenerateString(t *testing.T) {
	if GenerateString() == "" {
		t.Fatalf("empty string id")
	}
	if GenerateString() == GenerateString() {
		t.Fatalf("string ids repeat")
	}
}
