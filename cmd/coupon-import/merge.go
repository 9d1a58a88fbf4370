package main

import (
	"github.com/xenking/swag-store/internal/domain/coupon"
)

// Conflict is a code defined by more than one file.
type Conflict struct {
	Code    string
	Kept    string
	Dropped string
}

type mergeResult struct {
	Coupons   []coupon.Coupon
	Conflicts []Conflict
	Rejected  int
}

// merge combines scans in argument order. A code already defined by an
// earlier file is a conflict and the earlier definition is kept. The bloom
// filters rule out most codes before the exact lookup.
func merge(scans []*fileScan) mergeResult {
	var res mergeResult
	for i, s := range scans {
		res.Rejected += s.Rejected
		for _, c := range s.Coupons {
			if owner := firstOwner(scans[:i], c.Code); owner != nil {
				res.Conflicts = append(res.Conflicts, Conflict{Code: c.Code, Kept: owner.Path, Dropped: s.Path})
				continue
			}
			res.Coupons = append(res.Coupons, c)
		}
	}
	return res
}

func firstOwner(earlier []*fileScan, code string) *fileScan {
	for _, s := range earlier {
		if !s.Filter.TestString(code) {
			continue
		}
		if _, ok := s.Codes[code]; ok {
			return s
		}
	}
	return nil
}
