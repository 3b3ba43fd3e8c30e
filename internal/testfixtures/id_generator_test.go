package testfixtures

import "testing"

func TestIDGeneratorProducesSequentialIDs(t *testing.T) {
	gen := NewIDGenerator("fact")
	if last := gen.Last(); last != "" {
		t.Fatalf("expected no last id before Next, got %q", last)
	}

	first := gen.Next()
	second := gen.Next()

	if first != "fact-1" || second != "fact-2" {
		t.Fatalf("unexpected identifiers: %q, %q", first, second)
	}
	if gen.Last() != "fact-2" {
		t.Fatalf("expected fact-2 as last id, got %q", gen.Last())
	}
	issued := gen.Issued()
	if len(issued) != 2 || issued[0] != "fact-1" {
		t.Fatalf("unexpected history: %v", issued)
	}

	issued[0] = "mutated"
	if gen.Issued()[0] != "fact-1" {
		t.Fatal("history must not be shared with callers")
	}
}

func TestIDGeneratorCanReset(t *testing.T) {
	gen := NewIDGenerator("person")
	_ = gen.Next()
	gen.Reset("p")

	if len(gen.Issued()) != 0 {
		t.Fatalf("expected empty history after reset, got %v", gen.Issued())
	}
	if next := gen.Next(); next != "p-1" {
		t.Fatalf("expected p-1 after reset, got %q", next)
	}
}

func TestIDGeneratorNilFunc(t *testing.T) {
	var gen *IDGenerator
	if got := gen.NextFunc()(); got != "" {
		t.Fatalf("expected empty id from nil generator, got %q", got)
	}
}
