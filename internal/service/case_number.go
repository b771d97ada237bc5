package service

import (
	"context"
	"fmt"
	"time"
)

// CaseNumberSequence is the counter backing case number issuance.
const CaseNumberSequence = "case_number"

type sequenceRepository interface {
	Next(ctx context.Context, name string) (int64, error)
}

// CaseNumberAllocator mints REQ{YY}{MM}{NNNN} identifiers. The ordinal is
// global and never resets; values past 9999 widen instead of wrapping.
type CaseNumberAllocator struct {
	seq sequenceRepository
	now func() time.Time
}

// NewCaseNumberAllocator constructs an allocator. A nil clock uses time.Now.
func NewCaseNumberAllocator(seq sequenceRepository, now func() time.Time) *CaseNumberAllocator {
	if now == nil {
		now = time.Now
	}
	return &CaseNumberAllocator{seq: seq, now: now}
}

// Next reserves the next ordinal and formats it against the current UTC month.
func (a *CaseNumberAllocator) Next(ctx context.Context) (string, error) {
	ordinal, err := a.seq.Next(ctx, CaseNumberSequence)
	if err != nil {
		return "", err
	}
	return FormatCaseNumber(a.now().UTC(), ordinal), nil
}

// FormatCaseNumber renders a case number for the given instant and ordinal.
func FormatCaseNumber(at time.Time, ordinal int64) string {
	return fmt.Sprintf("REQ%02d%02d%04d", at.Year()%100, int(at.Month()), ordinal)
}
