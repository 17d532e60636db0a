// Package aggregate derives chart summaries from historical estimation records.
//
// Every function here is pure and never fails: missing or malformed values are
// excluded and empty input yields a zero summary. Each mean is paired with the
// number of samples behind it so callers can tell "no data" (Count == 0) from
// a legitimate zero.
package aggregate

import (
	"math"
	"sort"
)

// Summary is the arithmetic mean of a set of samples.
type Summary struct {
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}

// Empty reports whether no sample contributed to the summary.
func (s Summary) Empty() bool { return s.Count == 0 }

// FlagSplit holds one summary per value of a boolean flag.
type FlagSplit struct {
	With    Summary `json:"with"`
	Without Summary `json:"without"`
}

// Mean averages values, skipping malformed ones. Values are summed in
// ascending order so the result does not depend on input order.
func Mean(values []float64) Summary {
	valid := make([]float64, 0, len(values))
	for _, v := range values {
		if usable(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return Summary{}
	}
	sort.Float64s(valid)

	var sum float64
	for _, v := range valid {
		sum += v
	}
	return Summary{Mean: sum / float64(len(valid)), Count: len(valid)}
}

// GroupAverageByFlag splits records by flag and averages value within each group.
func GroupAverageByFlag[T any](records []T, flag func(T) bool, value func(T) float64) FlagSplit {
	var with, without []float64
	for _, r := range records {
		if flag(r) {
			with = append(with, value(r))
		} else {
			without = append(without, value(r))
		}
	}
	return FlagSplit{With: Mean(with), Without: Mean(without)}
}

// AbsoluteErrors returns |estimate - actual| for every record where both values
// are present. pair returns nil for an absent value.
func AbsoluteErrors[T any](records []T, pair func(T) (actual, estimate *float64)) []float64 {
	errs := make([]float64, 0, len(records))
	for _, r := range records {
		if e, ok := absoluteError(pair(r)); ok {
			errs = append(errs, e)
		}
	}
	return errs
}

// MeanAbsoluteError is the mean of AbsoluteErrors.
func MeanAbsoluteError[T any](records []T, pair func(T) (actual, estimate *float64)) Summary {
	return Mean(AbsoluteErrors(records, pair))
}

func absoluteError(actual, estimate *float64) (float64, bool) {
	if actual == nil || estimate == nil {
		return 0, false
	}
	if !usable(*actual) || !usable(*estimate) {
		return 0, false
	}
	return math.Abs(*estimate - *actual), true
}

// usable rejects values that cannot come from a well-formed record.
func usable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
