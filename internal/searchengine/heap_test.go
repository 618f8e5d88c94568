package searchengine

import "testing"

func TestFrontier_PopsByPriorityThenFIFO(t *testing.T) {
	f := newFrontier()
	f.push("a", 5)
	f.push("b", 5)
	f.push("c", 1)
	f.push("d", 10)

	want := []string{"c", "a", "b", "d"}
	for _, expect := range want {
		got, ok := f.pop()
		if !ok {
			t.Fatalf("frontier drained early, wanted %q", expect)
		}
		if got != expect {
			t.Fatalf("pop order wrong: got %q, want %q", got, expect)
		}
	}
	if !f.empty() {
		t.Fatalf("frontier should be empty after draining")
	}
}

func TestFrontier_PopOnEmpty(t *testing.T) {
	f := newFrontier()
	if _, ok := f.pop(); ok {
		t.Fatalf("pop on empty frontier should report not ok")
	}
}
