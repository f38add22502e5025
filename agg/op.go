package agg

import (
	"github.com/pkg/errors"
)

// Op is one summary statistic.
type Op int

const (
	OpCount Op = iota
	OpSum
	OpMean
	OpMin
	OpMax
	OpRange
	OpMedian
	OpQ1
	OpQ3
	OpIQR
	OpStdev
	OpVariance
	OpCV
	OpMad
	OpFirst
	OpLast
	OpNUnique
	OpMode
	OpGeoMean
	OpHarmMean
	OpUnique
	OpCollapse
	OpRand
)

var opNames = []struct {
	op     Op
	name   string // flag name
	suffix string // output header suffix
	usage  string
}{
	{OpCount, "count", "count", "count of records"},
	{OpSum, "sum", "sum", "sum of the values"},
	{OpMean, "mean", "mean", "mean of the values"},
	{OpMin, "min", "min", "minimum value"},
	{OpMax, "max", "max", "maximum value"},
	{OpRange, "range", "range", "difference between the maximum and minimum values"},
	{OpMedian, "median", "median", "median value"},
	{OpQ1, "q1", "q1", "first quartile, 25th percentile"},
	{OpQ3, "q3", "q3", "third quartile, 75th percentile"},
	{OpIQR, "iqr", "iqr", "interquartile range"},
	{OpStdev, "stdev", "stdev", "sample standard deviation"},
	{OpVariance, "variance", "var", "sample variance"},
	{OpCV, "cv", "cv", "coefficient of variation"},
	{OpMad, "mad", "mad", "median absolute deviation from the median"},
	{OpFirst, "first", "first", "first value"},
	{OpLast, "last", "last", "last value"},
	{OpNUnique, "nunique", "nunique", "number of unique values"},
	{OpMode, "mode", "mode", "most frequent value"},
	{OpGeoMean, "geomean", "geomean", "geometric mean of the positive values"},
	{OpHarmMean, "harmmean", "harmmean", "harmonic mean of the non-zero values"},
	{OpUnique, "unique-values", "unique_values", "unique values joined by commas"},
	{OpCollapse, "values", "values", "all values joined by commas"},
	{OpRand, "rand", "rand", "one value picked at random"},
}

func (self Op) Name() string {
	for _, v := range opNames {
		if v.op == self {
			return v.name
		}
	}
	return "unknown"
}

func (self Op) Suffix() string {
	for _, v := range opNames {
		if v.op == self {
			return v.suffix
		}
	}
	return "unknown"
}

func (self Op) String() string { return self.Name() }

// Numeric reports whether the operator only consumes numeric values.
func (self Op) Numeric() bool {
	switch self {
	case OpCount, OpFirst, OpLast, OpNUnique, OpMode, OpUnique, OpCollapse, OpRand:
		return false
	default:
		return true
	}
}

// ParseOp maps a flag name back to its operator.
func ParseOp(name string) (Op, error) {
	for _, v := range opNames {
		if v.name == name {
			return v.op, nil
		}
	}
	return 0, errors.Errorf("unknown summary operator %q", name)
}

// OpInfo describes one operator for the command layer.
type OpInfo struct {
	Op    Op
	Name  string
	Usage string
}

func Ops() []OpInfo {
	out := make([]OpInfo, 0, len(opNames))
	for _, v := range opNames {
		out = append(out, OpInfo{Op: v.op, Name: v.name, Usage: v.usage})
	}
	return out
}
