package embedding

import (
	"context"
	"math"
	"testing"
)

func TestMockEmbedderDeterministic(t *testing.T) {
	e := NewMockEmbedder(32)
	ctx := context.Background()

	a, err := e.Embed(ctx, "net revenue for the year")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, err := e.Embed(ctx, "net revenue for the year")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(a) != 32 {
		t.Fatalf("dimensions = %d, want 32", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same text produced different vectors")
		}
	}

	other, _ := e.Embed(ctx, "a completely different sentence")
	same := true
	for i := range a {
		if a[i] != other[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts produced identical vectors")
	}
}

func TestMockEmbedderUnitNorm(t *testing.T) {
	e := NewMockEmbedder(32)
	v, err := e.Embed(context.Background(), "some text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if math.Abs(math.Sqrt(sum)-1.0) > 1e-5 {
		t.Errorf("norm = %v, want 1.0", math.Sqrt(sum))
	}
}

func TestMockEmbedderDefaultDimensions(t *testing.T) {
	e := NewMockEmbedder(0)
	if e.Dimensions() != 64 {
		t.Errorf("default dimensions = %d, want 64", e.Dimensions())
	}
}
