package pushdata

import (
	"crypto/md5"
	"fmt"
	"strings"
)

// A Split identifies a partition of the dataset.
type Split int

const (
	Train Split = iota
	Val
	Test
)

// ParseSplit parses "train", "val", or "test".
func ParseSplit(s string) (Split, error) {
	switch strings.ToLower(s) {
	case "train":
		return Train, nil
	case "val", "validation":
		return Val, nil
	case "test":
		return Test, nil
	default:
		return 0, fmt.Errorf("unknown split: %q", s)
	}
}

// String returns the name used by ParseSplit.
func (s Split) String() string {
	switch s {
	case Train:
		return "train"
	case Val:
		return "val"
	case Test:
		return "test"
	default:
		return fmt.Sprintf("Split(%d)", int(s))
	}
}

// SplitRatios gives the expected fraction of examples in
// the validation and test splits.
// The training split receives the remainder.
type SplitRatios struct {
	Val  float64
	Test float64
}

// Validate checks that the ratios leave room for training
// data.
func (s SplitRatios) Validate() error {
	if s.Val < 0 || s.Test < 0 || s.Val+s.Test >= 1 {
		return fmt.Errorf("invalid split ratios: val=%v test=%v", s.Val, s.Test)
	}
	return nil
}

// SplitIndices deterministically assigns each of n
// dataset indices to a split and returns those in split.
//
// Assignment depends only on the index, so the same
// example lands in the same split regardless of n.
func SplitIndices(n int, ratios SplitRatios, split Split) []int {
	testCutoff := hashCutoff(ratios.Test)
	valCutoff := hashCutoff(ratios.Test + ratios.Val)
	var res []int
	for i := 0; i < n; i++ {
		hash := indexHash(i)
		var s Split
		if compareHashes(hash, testCutoff) < 0 {
			s = Test
		} else if compareHashes(hash, valCutoff) < 0 {
			s = Val
		} else {
			s = Train
		}
		if s == split {
			res = append(res, i)
		}
	}
	return res
}

func indexHash(idx int) []byte {
	sum := md5.Sum([]byte(fmt.Sprintf("%07d", idx)))
	return sum[:]
}

func hashCutoff(ratio float64) []byte {
	res := make([]byte, 8)
	if ratio >= 1 {
		for i := range res {
			res[i] = 0xff
		}
		return res
	}
	for i := range res {
		ratio *= 256
		value := int(ratio)
		ratio -= float64(value)
		if value == 256 {
			value = 255
		}
		res[i] = byte(value)
	}
	return res
}

func compareHashes(h1, h2 []byte) int {
	max := len(h1)
	if len(h2) > max {
		max = len(h2)
	}
	for i := 0; i < max; i++ {
		var h1Val, h2Val byte
		if i < len(h1) {
			h1Val = h1[i]
		}
		if i < len(h2) {
			h2Val = h2[i]
		}
		if h1Val < h2Val {
			return -1
		} else if h1Val > h2Val {
			return 1
		}
	}
	return 0
}
