// Command perf-regression compares two go test -bench runs over the
// session hot paths and fails when a candidate run blows its budget.
// Token validation sits on every authenticated request, so its budgets
// are tighter than the refresh path's.
//
// Usage:
//
//	go test -bench . -count 6 ./session > baseline.txt
//	go test -bench . -count 6 ./session > candidate.txt
//	perf-regression -baseline baseline.txt -candidate candidate.txt
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
)

// budget caps how much a benchmark metric may grow between the
// baseline and the candidate, as a fraction of the baseline median.
type budget struct {
	bench     string
	metric    string
	maxGrowth float64
}

var budgets = []budget{
	{"BenchmarkValidateOpaque", "ns/op", 0.20},
	{"BenchmarkValidateOpaque", "allocs/op", 0.10},
	{"BenchmarkValidateSymmetric", "ns/op", 0.20},
	{"BenchmarkValidateSymmetric", "allocs/op", 0.10},
	{"BenchmarkRefresh", "ns/op", 0.30},
}

func main() {
	baselinePath := flag.String("baseline", "", "benchmark output of the baseline revision")
	candidatePath := flag.String("candidate", "", "benchmark output of the candidate revision")
	slack := flag.Float64("slack", 1.0, "multiplier applied to every budget, e.g. 2 to loosen on noisy runners")
	flag.Parse()

	if *baselinePath == "" || *candidatePath == "" {
		fmt.Fprintln(os.Stderr, "both -baseline and -candidate are required")
		os.Exit(2)
	}
	if *slack <= 0 {
		fmt.Fprintln(os.Stderr, "-slack must be positive")
		os.Exit(2)
	}

	baseline, err := readBench(*baselinePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading baseline: %v\n", err)
		os.Exit(1)
	}
	candidate, err := readBench(*candidatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading candidate: %v\n", err)
		os.Exit(1)
	}

	var violations []string
	fmt.Printf("%-28s %-10s %12s %12s %9s %8s\n",
		"benchmark", "metric", "baseline", "candidate", "growth", "budget")
	for _, b := range budgets {
		key := b.bench + "/" + b.metric
		base, haveBase := median(baseline[key])
		cand, haveCand := median(candidate[key])
		if !haveBase || !haveCand {
			violations = append(violations, key+": no samples in one of the runs")
			continue
		}
		if base <= 0 {
			violations = append(violations, key+": baseline median is not positive")
			continue
		}
		growth := (cand - base) / base
		limit := b.maxGrowth * *slack
		fmt.Printf("%-28s %-10s %12.2f %12.2f %+8.1f%% %7.0f%%\n",
			b.bench, b.metric, base, cand, growth*100, limit*100)
		if growth > limit {
			violations = append(violations,
				fmt.Sprintf("%s grew %+.1f%%, budget %.0f%%", key, growth*100, limit*100))
		}
	}

	if len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "budget exceeded:")
		for _, v := range violations {
			fmt.Fprintln(os.Stderr, "  "+v)
		}
		os.Exit(1)
	}
}

// readBench collects every sample from a go test -bench output file,
// keyed by "<benchmark>/<unit>". The -N GOMAXPROCS suffix is stripped
// so runs from different machines compare.
func readBench(path string) (map[string][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string][]float64)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || !strings.HasPrefix(fields[0], "Benchmark") {
			continue
		}
		name := stripProcSuffix(fields[0])
		// fields[1] is the iteration count; value/unit pairs follow.
		for i := 2; i+1 < len(fields); i += 2 {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			out[name+"/"+fields[i+1]] = append(out[name+"/"+fields[i+1]], v)
		}
	}
	return out, sc.Err()
}

func stripProcSuffix(name string) string {
	base, procs, ok := strings.Cut(name, "-")
	if !ok {
		return name
	}
	if _, err := strconv.Atoi(procs); err != nil {
		return name
	}
	return base
}

func median(samples []float64) (float64, bool) {
	if len(samples) == 0 {
		return 0, false
	}
	s := slices.Clone(samples)
	slices.Sort(s)
	if len(s)%2 == 1 {
		return s[len(s)/2], true
	}
	return (s[len(s)/2-1] + s[len(s)/2]) / 2, true
}
