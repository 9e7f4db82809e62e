package span

import "testing"

func TestSpanValid(t *testing.T) {
	cases := []struct {
		s    Span
		n    int
		want bool
	}{
		{Span{0, 4}, 10, true},
		{Span{4, 4}, 10, false},
		{Span{5, 4}, 10, false},
		{Span{-1, 4}, 10, false},
		{Span{0, 11}, 10, false},
		{Span{9, 10}, 10, true},
	}
	for _, c := range cases {
		if got := c.s.Valid(c.n); got != c.want {
			t.Fatalf("Valid(%v, %d) = %v, want %v", c.s, c.n, got, c.want)
		}
	}
}

func TestOverlapsAndContains(t *testing.T) {
	a := Span{5, 10}
	if !a.Overlaps(Span{9, 12}) || !a.Overlaps(Span{0, 6}) {
		t.Fatal("expected partial overlaps")
	}
	if a.Overlaps(Span{10, 12}) || a.Overlaps(Span{0, 5}) {
		t.Fatal("half-open ranges must not overlap at the boundary")
	}
	if !a.Contains(Span{5, 10}) || !a.Contains(Span{6, 9}) {
		t.Fatal("expected containment")
	}
	if a.Contains(Span{4, 10}) || a.Contains(Span{5, 11}) {
		t.Fatal("unexpected containment")
	}
}

func TestIndexOverlapLookup(t *testing.T) {
	ix := NewIndex(4)
	ix.Add(Span{10, 20})
	ix.Add(Span{30, 40})
	ix.Add(Span{0, 5})

	if !ix.anyOverlap(Span{19, 31}) {
		t.Fatal("expected overlap across two spans")
	}
	if ix.anyOverlap(Span{20, 30}) {
		t.Fatal("gap between spans must not overlap")
	}
	if ix.anyOverlap(Span{40, 50}) {
		t.Fatal("past last span must not overlap")
	}
}

func TestIndexAnyContainment(t *testing.T) {
	ix := NewIndex(2)
	ix.Add(Span{10, 30})

	if !ix.AnyContainment(Span{12, 20}) {
		t.Fatal("inner span should be contained")
	}
	if !ix.AnyContainment(Span{5, 35}) {
		t.Fatal("outer span should contain the claimed one")
	}
	if ix.AnyContainment(Span{25, 35}) {
		t.Fatal("partial overlap is not containment")
	}
	if ix.AnyContainment(Span{30, 40}) {
		t.Fatal("adjacent span is not containment")
	}
}

func TestIndexKeepsSortedUnderUnorderedAdds(t *testing.T) {
	ix := NewIndex(0)
	for _, s := range []Span{{50, 60}, {10, 20}, {30, 40}, {0, 5}} {
		ix.Add(s)
	}
	if ix.Len() != 4 {
		t.Fatalf("got %d spans", ix.Len())
	}
	if !ix.anyOverlap(Span{15, 16}) || !ix.anyOverlap(Span{59, 61}) {
		t.Fatal("lookups after unordered adds failed")
	}
}
