package market

import (
	"errors"
	"math"
	"testing"
)

func TestPlatformFee(t *testing.T) {
	cases := map[uint64]uint64{0: 0, 49: 0, 50: 1, 1_000: 20, 12_345: 246}
	for price, want := range cases {
		if got := PlatformFee(price); got != want {
			t.Fatalf("fee(%d) = %d, want %d", price, got, want)
		}
	}
	if got := PlatformFee(math.MaxUint64); got != math.MaxUint64/50 {
		t.Fatalf("fee must not overflow, got %d", got)
	}
}

func TestComputeSplit(t *testing.T) {
	split, err := ComputeSplit(1_000, 10)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if split.Royalty != 100 || split.Proceeds != 900 {
		t.Fatalf("unexpected split %+v", split)
	}
	split, err = ComputeSplit(99, 1)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if split.Royalty != 0 || split.Proceeds != 99 {
		t.Fatalf("royalty must truncate, got %+v", split)
	}
	if _, err := ComputeSplit(1, MaxRoyaltyPercent+1); !errors.Is(err, ErrRoyaltyOutOfRange) {
		t.Fatalf("expected out of range, got %v", err)
	}
	full, err := ComputeSplit(math.MaxUint64, MaxRoyaltyPercent)
	if err != nil || full.Royalty != math.MaxUint64 || full.Proceeds != 0 {
		t.Fatalf("full royalty should consume price: %+v %v", full, err)
	}
}
