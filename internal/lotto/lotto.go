package lotto

import (
	"fmt"
	"math"
	"math/rand/v2"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/pep299/news-chat/internal/model"
)

// Number range and set size of a 6/45 draw.
const (
	Min     = 1
	Max     = 45
	Pick    = 6
	MinSets = 1
	MaxSets = 10
)

// SortAsc orders each generated set ascending; any other value keeps draw order.
const SortAsc = "asc"

var separatorRe = regexp.MustCompile(`[\s,]+`)

// ParseNumbers reads numbers separated by whitespace or commas. Non-integers
// are dropped, values are clamped into Min..Max and duplicates removed.
func ParseNumbers(input string) []int {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return []int{}
	}

	var nums []int
	for _, part := range separatorRe.Split(raw, -1) {
		if part == "" {
			continue
		}
		f, err := strconv.ParseFloat(part, 64)
		if err != nil || math.IsInf(f, 0) || f != math.Trunc(f) {
			continue
		}
		nums = append(nums, int(math.Max(Min, math.Min(Max, f))))
	}
	return Unique(nums)
}

// Normalize clamps nums into Min..Max and removes duplicates, like ParseNumbers
// does for text input.
func Normalize(nums []int) []int {
	clamped := make([]int, len(nums))
	for i, n := range nums {
		clamped[i] = clamp(n, Min, Max)
	}
	return Unique(clamped)
}

// Unique removes duplicates keeping the first occurrence.
func Unique(nums []int) []int {
	seen := make(map[int]bool, len(nums))
	out := make([]int, 0, len(nums))
	for _, n := range nums {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// Validate checks that at least one set can satisfy include and exclude.
func Validate(include, exclude []int) error {
	for _, n := range include {
		if slices.Contains(exclude, n) {
			return model.NewError(model.ValidationFailure, fmt.Sprintf("포함/제외 목록에 같은 번호가 있어요: %d", n))
		}
	}
	if len(include) > Pick {
		return model.NewError(model.ValidationFailure, fmt.Sprintf("포함할 번호는 최대 %d개까지 가능해요.", Pick))
	}
	if Max-Min+1-len(exclude) < Pick {
		return model.NewError(model.ValidationFailure, "제외 번호가 너무 많아서 추천을 만들 수 없어요.")
	}
	return nil
}

// Options controls one generation request.
type Options struct {
	Include []int
	Exclude []int
	Sets    int
	Sort    string
}

// Picker draws number sets. It is safe for concurrent use.
type Picker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewPicker creates a Picker. A nil source seeds a fresh PCG generator.
func NewPicker(src rand.Source) *Picker {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Picker{rng: rand.New(src)}
}

// Generate validates opts and draws opts.Sets sets, clamped to MinSets..MaxSets.
func (p *Picker) Generate(opts Options) ([][]int, error) {
	include := Normalize(opts.Include)
	exclude := Normalize(opts.Exclude)
	if err := Validate(include, exclude); err != nil {
		return nil, err
	}

	count := clamp(opts.Sets, MinSets, MaxSets)
	sets := make([][]int, count)

	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range sets {
		sets[i] = p.oneSet(include, exclude, opts.Sort)
	}
	return sets, nil
}

func (p *Picker) oneSet(include, exclude []int, sortMode string) []int {
	chosen := append(make([]int, 0, Pick), include...)
	for len(chosen) < Pick {
		n := Min + p.rng.IntN(Max-Min+1)
		if slices.Contains(chosen, n) || slices.Contains(exclude, n) {
			continue
		}
		chosen = append(chosen, n)
	}
	if sortMode == SortAsc {
		slices.Sort(chosen)
	}
	return chosen
}

// FormatSets renders sets as "SET 01: 1, 2, 3, 4, 5, 6" lines.
func FormatSets(sets [][]int) string {
	lines := make([]string, len(sets))
	for i, set := range sets {
		nums := make([]string, len(set))
		for j, n := range set {
			nums[j] = strconv.Itoa(n)
		}
		lines[i] = fmt.Sprintf("SET %02d: %s", i+1, strings.Join(nums, ", "))
	}
	return strings.Join(lines, "\n")
}

func clamp(n, lo, hi int) int {
	return max(lo, min(hi, n))
}
