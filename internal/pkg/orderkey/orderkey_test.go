package orderkey

import (
	"sort"
	"testing"
)

func TestFirst(t *testing.T) {
	k := First()
	if err := Validate(k); err != nil {
		t.Fatalf("First produced invalid key: %v", err)
	}
}

func TestBetween(t *testing.T) {
	cases := []struct{ a, b string }{
		{"", ""},
		{"i", ""},
		{"", "i"},
		{"i", "j"},
		{"a", "b"},
		{"z", ""},
		{"", "1"},
		{"4z", "5"},
		{"4", "5x"},
		{"0i", "0j"},
	}
	for _, tc := range cases {
		got, err := Between(tc.a, tc.b)
		if err != nil {
			t.Fatalf("Between(%q, %q): %v", tc.a, tc.b, err)
		}
		if err := Validate(got); err != nil {
			t.Fatalf("Between(%q, %q) = %q invalid: %v", tc.a, tc.b, got, err)
		}
		if tc.a != "" && got <= tc.a {
			t.Fatalf("Between(%q, %q) = %q not after lower bound", tc.a, tc.b, got)
		}
		if tc.b != "" && got >= tc.b {
			t.Fatalf("Between(%q, %q) = %q not before upper bound", tc.a, tc.b, got)
		}
	}
}

func TestBetweenRejectsBadBounds(t *testing.T) {
	if _, err := Between("j", "i"); err == nil {
		t.Fatal("expected error for a >= b")
	}
	if _, err := Between("i", "i"); err == nil {
		t.Fatal("expected error for a == b")
	}
}

func TestRepeatedInsertAtHead(t *testing.T) {
	k := First()
	for i := 0; i < 40; i++ {
		prev := k
		var err error
		k, err = Before(k)
		if err != nil {
			t.Fatalf("Before(%q): %v", prev, err)
		}
		if k >= prev {
			t.Fatalf("Before(%q) = %q is not smaller", prev, k)
		}
		if err := Validate(k); err != nil {
			t.Fatalf("invalid key %q: %v", k, err)
		}
	}
}

func TestRepeatedInsertInSameGap(t *testing.T) {
	lo := First()
	hi, err := After(lo)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 200; i++ {
		mid, err := Between(lo, hi)
		if err != nil {
			t.Fatalf("Between(%q, %q): %v", lo, hi, err)
		}
		if mid <= lo || mid >= hi {
			t.Fatalf("Between(%q, %q) = %q out of bounds", lo, hi, mid)
		}
		lo = mid
	}
	if !NeedsRebalance(lo) {
		t.Fatalf("expected key %q to need rebalance after 200 narrowing inserts", lo)
	}
}

func TestNeedsRebalance(t *testing.T) {
	if NeedsRebalance(First()) {
		t.Fatal("fresh key should not need rebalance")
	}
	long := ""
	for len(long) <= rebalanceLen {
		long += "i"
	}
	if !NeedsRebalance(long) {
		t.Fatalf("key of length %d should need rebalance", len(long))
	}
}

func TestSpread(t *testing.T) {
	keys := Spread(10)
	if len(keys) != 10 {
		t.Fatalf("Spread(10) returned %d keys", len(keys))
	}
	if !sort.StringsAreSorted(keys) {
		t.Fatalf("Spread keys not sorted: %v", keys)
	}
	for i, k := range keys {
		if err := Validate(k); err != nil {
			t.Fatalf("key %d invalid: %v", i, err)
		}
		if i > 0 && keys[i-1] == k {
			t.Fatalf("duplicate key at %d: %q", i, k)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(""); err == nil {
		t.Fatal("empty key should be invalid")
	}
	if err := Validate("a0"); err == nil {
		t.Fatal("trailing zero digit should be invalid")
	}
	if err := Validate("A"); err == nil {
		t.Fatal("uppercase digit should be invalid")
	}
	if err := Validate("0i"); err != nil {
		t.Fatalf("leading zero digit is legal: %v", err)
	}
}
