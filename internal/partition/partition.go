// Package partition splits a repository dataset in two by a predicate on one
// record field, and writes each half to its own file.
package partition

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"reposplit/internal/dataset"
)

// Result holds the two halves of a split. Every input key is in exactly one
// of them, and each keeps the input order.
type Result struct {
	Matched *dataset.Dataset
	Other   *dataset.Dataset
}

// Split classifies every record of ds. It does not modify ds.
func Split(ds *dataset.Dataset, pred Predicate) (Result, error) {
	res := Result{Matched: dataset.New(), Other: dataset.New()}
	if ds == nil {
		return res, nil
	}
	if pred.Field == "" {
		return Result{}, errors.New("predicate field must not be empty")
	}

	for _, key := range ds.Keys() {
		rec, _ := ds.Get(key)
		ok, err := pred.Match(rec)
		if err != nil {
			return Result{}, fmt.Errorf("record %q: %w", key, err)
		}
		if ok {
			res.Matched.Set(key, rec)
		} else {
			res.Other.Set(key, rec)
		}
	}
	return res, nil
}

// Options configures Run. A nil Logger discards log output.
type Options struct {
	Input      string
	MatchedOut string
	OtherOut   string
	Predicate  Predicate
	Logger     *zap.Logger
}

// Summary reports the paths and record counts of a completed Run.
type Summary struct {
	Input       string
	MatchedPath string
	OtherPath   string
	Total       int
	Matched     int
	Other       int
}

// Run loads opts.Input, splits it, and writes the matched half then the other
// half. If the second write fails the first file is left in place.
func Run(opts Options) (Summary, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	ds, err := dataset.Load(opts.Input)
	if err != nil {
		return Summary{}, err
	}
	log.Debug("loaded dataset", zap.String("path", opts.Input), zap.Int("records", ds.Len()))

	res, err := Split(ds, opts.Predicate)
	if err != nil {
		return Summary{}, fmt.Errorf("split %s: %w", opts.Input, err)
	}
	log.Debug("split dataset",
		zap.Stringer("predicate", opts.Predicate),
		zap.Int("matched", res.Matched.Len()),
		zap.Int("other", res.Other.Len()),
	)

	if err := dataset.WriteFile(opts.MatchedOut, res.Matched); err != nil {
		return Summary{}, err
	}
	log.Debug("wrote matched records", zap.String("path", opts.MatchedOut))

	if err := dataset.WriteFile(opts.OtherOut, res.Other); err != nil {
		return Summary{}, err
	}
	log.Debug("wrote other records", zap.String("path", opts.OtherOut))

	return Summary{
		Input:       opts.Input,
		MatchedPath: opts.MatchedOut,
		OtherPath:   opts.OtherOut,
		Total:       ds.Len(),
		Matched:     res.Matched.Len(),
		Other:       res.Other.Len(),
	}, nil
}
