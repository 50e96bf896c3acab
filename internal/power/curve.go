package power

import (
	"fmt"

	domain "tpower/domain/power"
	"tpower/internal/errors"
)

// maxCurvePoints keeps curve requests from the API and CLI bounded
const maxCurvePoints = 10000

// CurveOneSample returns the power of a one-sample test for every n in [from, to]
func CurveOneSample(alpha, d float64, tail domain.TailMode, from, to int) ([]domain.CurvePoint, error) {
	if err := checkRange(from, to, 1); err != nil {
		return nil, err
	}
	points := make([]domain.CurvePoint, 0, to-from+1)
	for n := from; n <= to; n++ {
		eval, err := PowerOneSample(alpha, d, n, tail)
		if err != nil {
			return nil, errors.Wrapf(err, "curve point n=%d", n)
		}
		points = append(points, domain.CurvePoint{N: n, Evaluation: eval})
	}
	return points, nil
}

// CurveTwoSample returns the power of a two-sample test for every n1 in [from, to],
// deriving n2 from ratio the same way the search does. Points with n2 < 1 are skipped.
func CurveTwoSample(alpha, d, ratio float64, tail domain.TailMode, from, to int) ([]domain.CurvePoint, error) {
	if err := checkRange(from, to, 2); err != nil {
		return nil, err
	}
	if !(ratio > 0) {
		return nil, errors.ValidationError(fmt.Sprintf("ratio n1/n2 must be positive, got %g", ratio))
	}
	points := make([]domain.CurvePoint, 0, to-from+1)
	for n1 := from; n1 <= to; n1++ {
		n2 := GroupSize(n1, ratio)
		if n2 < 1 {
			continue
		}
		eval, err := PowerTwoSample(alpha, d, n1, n2, tail)
		if err != nil {
			return nil, errors.Wrapf(err, "curve point n1=%d", n1)
		}
		points = append(points, domain.CurvePoint{N: n1, N2: n2, Evaluation: eval})
	}
	return points, nil
}

func checkRange(from, to, min int) error {
	if from < min {
		return errors.ValidationError(fmt.Sprintf("curve must start at n >= %d, got %d", min, from))
	}
	if to < from {
		return errors.ValidationError(fmt.Sprintf("curve range is empty: %d..%d", from, to))
	}
	if to-from+1 > maxCurvePoints {
		return errors.ValidationError(fmt.Sprintf("curve range %d..%d exceeds %d points", from, to, maxCurvePoints))
	}
	return nil
}
