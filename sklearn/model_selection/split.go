// Package model_selection provides data splitting, scoring, k-fold cross
// validation and exhaustive grid search.
package model_selection

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
)

// Fold is one train/test partition produced by a Splitter.
type Fold struct {
	ID           int
	TrainIndices []int
	TestIndices  []int
}

// Splitter partitions sample indices into folds. Across the folds the test
// sets are disjoint and cover every index exactly once.
type Splitter interface {
	Split(labels []int) ([]Fold, error)
	NSplits() int
}

// KFold implements k-fold cross-validation splitting. The first n mod k
// folds receive one extra test sample.
type KFold struct {
	K       int
	Shuffle bool
	Seed    uint64
}

// NewKFold creates a KFold splitter.
func NewKFold(k int, shuffle bool, seed uint64) *KFold {
	return &KFold{K: k, Shuffle: shuffle, Seed: seed}
}

// NSplits returns k.
func (kf *KFold) NSplits() int { return kf.K }

// Split returns k folds over len(labels) samples.
func (kf *KFold) Split(labels []int) ([]Fold, error) {
	n := len(labels)
	if err := checkK("KFold", kf.K, n); err != nil {
		return nil, err
	}
	indices := identity(n)
	if kf.Shuffle {
		shuffle(kf.Seed, indices)
	}

	folds := make([]Fold, kf.K)
	foldSize := n / kf.K
	remainder := n % kf.K
	current := 0
	for i := 0; i < kf.K; i++ {
		testSize := foldSize
		if i < remainder {
			testSize++
		}
		folds[i] = makeFold(i, n, indices[current:current+testSize])
		current += testSize
	}
	return folds, nil
}

// StratifiedKFold keeps the class proportions of every test fold close to
// those of the full set.
type StratifiedKFold struct {
	K       int
	Shuffle bool
	Seed    uint64
}

// NewStratifiedKFold creates a StratifiedKFold splitter.
func NewStratifiedKFold(k int, shuffle bool, seed uint64) *StratifiedKFold {
	return &StratifiedKFold{K: k, Shuffle: shuffle, Seed: seed}
}

// NSplits returns k.
func (skf *StratifiedKFold) NSplits() int { return skf.K }

// Split deals each class's samples across the folds in turn, so fold i
// gets class c sample j whenever j mod k == i.
func (skf *StratifiedKFold) Split(labels []int) ([]Fold, error) {
	n := len(labels)
	if err := checkK("StratifiedKFold", skf.K, n); err != nil {
		return nil, err
	}
	byClass := make([][]int, 2)
	for i, l := range labels {
		if l != 0 && l != 1 {
			return nil, errors.NewValidationError("labels", "labels must be 0 or 1", l)
		}
		byClass[l] = append(byClass[l], i)
	}
	if skf.Shuffle {
		for c := range byClass {
			shuffle(skf.Seed+uint64(c), byClass[c])
		}
	}

	tests := make([][]int, skf.K)
	offset := 0
	for _, members := range byClass {
		for j, idx := range members {
			f := (offset + j) % skf.K
			tests[f] = append(tests[f], idx)
		}
		offset += len(members)
	}

	folds := make([]Fold, skf.K)
	for i := range folds {
		folds[i] = makeFold(i, n, tests[i])
	}
	return folds, nil
}

// TrainTestSplit shuffles the indices with seed and holds out
// ceil(testSize·n) of them. With stratify the holdout is drawn per class.
func TrainTestSplit(labels []int, testSize float64, seed uint64, stratify bool) (train, test []int, err error) {
	n := len(labels)
	if !(testSize > 0 && testSize < 1) {
		return nil, nil, errors.NewInvalidConfigurationError("TrainTestSplit", "test_size", "must be in (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest < 1 || nTest >= n {
		return nil, nil, errors.NewInvalidConfigurationError("TrainTestSplit", "test_size",
			fmt.Sprintf("leaves an empty train or test set for %d samples", n), testSize)
	}

	if !stratify {
		indices := identity(n)
		shuffle(seed, indices)
		test = append([]int(nil), indices[:nTest]...)
		train = append([]int(nil), indices[nTest:]...)
	} else {
		byClass := make([][]int, 2)
		for i, l := range labels {
			if l != 0 && l != 1 {
				return nil, nil, errors.NewValidationError("labels", "labels must be 0 or 1", l)
			}
			byClass[l] = append(byClass[l], i)
		}
		remaining := nTest
		for c, members := range byClass {
			shuffle(seed+uint64(c), members)
			k := int(math.Round(float64(nTest) * float64(len(members)) / float64(n)))
			if c == len(byClass)-1 {
				k = remaining
			}
			k = min(k, len(members))
			remaining -= k
			test = append(test, members[:k]...)
			train = append(train, members[k:]...)
		}
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}

func checkK(component string, k, n int) error {
	if k < 2 {
		return errors.NewInvalidConfigurationError(component, "k", "must be at least 2", k)
	}
	if k > n {
		return errors.NewInvalidConfigurationError(component, "k",
			fmt.Sprintf("exceeds the %d samples", n), k)
	}
	return nil
}

func makeFold(id, n int, testIndices []int) Fold {
	test := append([]int(nil), testIndices...)
	sort.Ints(test)
	inTest := make([]bool, n)
	for _, idx := range test {
		inTest[idx] = true
	}
	train := make([]int, 0, n-len(test))
	for i := 0; i < n; i++ {
		if !inTest[i] {
			train = append(train, i)
		}
	}
	return Fold{ID: id, TrainIndices: train, TestIndices: test}
}

func shuffle(seed uint64, indices []int) {
	r := rand.New(rand.NewPCG(seed, seed))
	r.Shuffle(len(indices), func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})
}

func identity(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
