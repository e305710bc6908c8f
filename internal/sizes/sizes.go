// Package sizes orders the heterogeneous size vocabulary of the
// catalog deterministically: labels are classified into buckets with
// a fixed priority, and each bucket is sorted internally.
package sizes

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Bucket is a size-label family. Declaration order is output order.
type Bucket int

const (
	BucketOneSize Bucket = iota
	BucketAlpha
	BucketBaby
	BucketMonth
	BucketYear
	BucketML
	BucketBra
	BucketCM
	BucketJackets
	BucketBedding
	BucketHand
	BucketWL
	BucketW
	BucketNum
)

var (
	reAlpha    = regexp.MustCompile(`^[A-Z]+(-[A-Z]+)?$`)
	reMonth    = regexp.MustCompile(`^(\d+)(\s*-\s*\d+)?\s*(M|MTH|MTHS|MONTH|MONTHS)$`)
	reYear     = regexp.MustCompile(`^(\d+)(\s*-\s*\d+)?\s*(Y|YR|YRS|YEAR|YEARS)$`)
	reML       = regexp.MustCompile(`^(\d+(\.\d+)?)\s*ML$`)
	reBra      = regexp.MustCompile(`^(\d+)[A-J]$`)
	reCM       = regexp.MustCompile(`^(\d+(\.\d+)?)\s*CM$`)
	reJacket   = regexp.MustCompile(`^(\d+)(S|R|L)$`)
	reHand     = regexp.MustCompile(`^(\d+)?\s*(RRH|LRH|RH|LH)$`)
	reWL       = regexp.MustCompile(`^(\d+)W(\d+)L$`)
	reW        = regexp.MustCompile(`^(\d+)W$`)
	reNum      = regexp.MustCompile(`^\d+(\.\d+)?$`)
	reNumRange = regexp.MustCompile(`^(\d+(\.\d+)?)\s*-\s*\d+(\.\d+)?$`)
)

var oneSizeLabels = map[string]bool{
	"ONE SIZE": true, "ONESIZE": true, "ONE_SIZE": true, "OS": true, "O/S": true,
}

var babyOrder = map[string]int{
	"PREM": 0, "PREMATURE": 0, "NEWBORN": 1, "NB": 1,
}

var beddingOrder = map[string]int{
	"SINGLE": 0, "THREE QUARTER": 1, "DOUBLE": 2, "QUEEN": 3, "KING": 4, "SUPER KING": 5,
}

// key is the total-order sort key of one label.
type key struct {
	bucket Bucket
	num    float64
	str    string
}

func (k key) less(other key) bool {
	if k.bucket != other.bucket {
		return k.bucket < other.bucket
	}
	if k.num != other.num {
		return k.num < other.num
	}
	return k.str < other.str
}

// alphaIndex maps an alpha token to its numeric position: M sits at
// 4000, each X pushes S down and L up by 10, any other single letter
// lands near the origin by code point.
func alphaIndex(token string) int {
	switch {
	case token == "M":
		return 4000
	case strings.HasSuffix(token, "S") && strings.Count(token, "X") == len(token)-1:
		return 2000 - 10*(len(token)-1)
	case strings.HasSuffix(token, "L") && strings.Count(token, "X") == len(token)-1:
		return 6000 + 10*(len(token)-1)
	case len(token) == 1:
		return int(token[0]) + 1
	default:
		return int(token[0]) + 1
	}
}

// alphaKey renders an alpha label; ranges concatenate the two ends
// with "-" so "S-M" sorts between S and M.
func alphaKey(label string) string {
	parts := strings.SplitN(label, "-", 2)
	if len(parts) == 2 {
		return fmt.Sprintf("%05d-%05d", alphaIndex(parts[0]), alphaIndex(parts[1]))
	}
	return fmt.Sprintf("%05d", alphaIndex(label))
}

func numericPrefix(label string) float64 {
	i := 0
	for i < len(label) && (label[i] >= '0' && label[i] <= '9' || label[i] == '.') {
		i++
	}
	if i == 0 {
		return math.MaxFloat64
	}
	v, err := strconv.ParseFloat(label[:i], 64)
	if err != nil {
		return math.MaxFloat64
	}
	return v
}

// classify assigns a label its bucket and sort key. Buckets are
// tested in priority order; anything unrecognised falls through to
// the numeric bucket sorted after all parsable numbers.
func classify(label string) key {
	normalized := strings.ToUpper(strings.TrimSpace(label))

	switch {
	case oneSizeLabels[normalized]:
		return key{bucket: BucketOneSize}
	case reAlpha.MatchString(normalized) && !isBaby(normalized) && !isBedding(normalized) && !reHand.MatchString(normalized):
		return key{bucket: BucketAlpha, str: alphaKey(normalized)}
	case isBaby(normalized):
		return key{bucket: BucketBaby, num: float64(babyOrder[normalized])}
	case reMonth.MatchString(normalized):
		return key{bucket: BucketMonth, num: numericPrefix(normalized), str: normalized}
	case reYear.MatchString(normalized):
		return key{bucket: BucketYear, num: numericPrefix(normalized), str: normalized}
	case reML.MatchString(normalized):
		return key{bucket: BucketML, num: numericPrefix(normalized), str: normalized}
	case reBra.MatchString(normalized):
		return key{bucket: BucketBra, num: numericPrefix(normalized), str: normalized}
	case reCM.MatchString(normalized):
		return key{bucket: BucketCM, num: numericPrefix(normalized), str: normalized}
	case reJacket.MatchString(normalized):
		return key{bucket: BucketJackets, num: numericPrefix(normalized), str: normalized}
	case isBedding(normalized):
		return key{bucket: BucketBedding, num: float64(beddingOrder[normalized])}
	case reHand.MatchString(normalized):
		return key{bucket: BucketHand, num: numericPrefix(normalized), str: normalized}
	case reWL.MatchString(normalized):
		m := reWL.FindStringSubmatch(normalized)
		w, _ := strconv.ParseFloat(m[1], 64)
		l, _ := strconv.ParseFloat(m[2], 64)
		return key{bucket: BucketWL, num: w*1000 + l, str: normalized}
	case reW.MatchString(normalized):
		return key{bucket: BucketW, num: numericPrefix(normalized), str: normalized}
	case reNum.MatchString(normalized) || reNumRange.MatchString(normalized):
		return key{bucket: BucketNum, num: numericPrefix(normalized), str: normalized}
	default:
		return key{bucket: BucketNum, num: math.MaxFloat64, str: normalized}
	}
}

func isBaby(label string) bool {
	_, ok := babyOrder[label]
	return ok
}

func isBedding(label string) bool {
	_, ok := beddingOrder[label]
	return ok
}

// Sort orders size labels by the fixed bucket order with each bucket
// internally sorted. The ordering is total and idempotent; the input
// slice is not modified.
func Sort(labels []string) []string {
	out := make([]string, len(labels))
	copy(out, labels)
	keys := make(map[string]key, len(out))
	for _, l := range out {
		keys[l] = classify(l)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return keys[out[i]].less(keys[out[j]])
	})
	return out
}
