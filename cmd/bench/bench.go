package bench

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/ValentinKolb/walkv/lib/store"
	"github.com/ValentinKolb/walkv/rpc/client"
	"github.com/rcrowley/go-metrics"
)

// perfKeyPrefix prefixes all keys written by the benchmark
const perfKeyPrefix = "__bench"

// Tests are the benchmarks in the order they run
var Tests = []string{"put", "put-large", "get", "delete", "mixed"}

// Config configures a benchmark run
type Config struct {
	Ops            int      // operations per test
	Threads        int      // concurrent workers
	Keys           int      // distinct keys per test
	LargeValueSize int      // value size of put-large in bytes
	Skip           []string // names of tests to skip
}

func (c Config) validate() error {
	if c.Ops < 1 || c.Threads < 1 || c.Keys < 1 {
		return fmt.Errorf("ops, threads and keys must be positive")
	}
	for _, s := range c.Skip {
		if !slices.Contains(Tests, s) {
			return fmt.Errorf("unknown test %q (one of %v)", s, Tests)
		}
	}
	return nil
}

// Target is the system under test
type Target interface {
	Put(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
	Close() error
}

// Result holds the timer of one test
type Result struct {
	Test     string
	Skipped  bool
	Errors   int64
	Duration time.Duration
	Timer    metrics.Timer
}

// OpsPerSec returns the throughput of the test
func (r Result) OpsPerSec() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Timer.Count()) / r.Duration.Seconds()
}

// Run executes all tests that are not skipped. newTarget is called once per
// worker and test.
func Run(config Config, newTarget func() (Target, error)) ([]Result, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	registry := metrics.NewRegistry()
	results := make([]Result, 0, len(Tests))
	for _, test := range Tests {
		if slices.Contains(config.Skip, test) {
			results = append(results, Result{Test: test, Skipped: true, Timer: metrics.NilTimer{}})
			continue
		}
		r, err := runTest(test, config, registry, newTarget)
		if err != nil {
			return results, fmt.Errorf("%s: %w", test, err)
		}
		results = append(results, r)
	}
	return results, nil
}

// runTest prepares the keys of one test, lets the workers share the
// operations and cleans up the keys afterwards
func runTest(test string, config Config, registry metrics.Registry, newTarget func() (Target, error)) (Result, error) {
	timer := metrics.GetOrRegisterTimer(test, registry)
	errCount := metrics.GetOrRegisterCounter(test+".errors", registry)

	keys := make([]string, config.Keys)
	for i := range keys {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, test, i)
	}
	value := "bench"
	if test == "put-large" {
		value = string(make([]byte, config.LargeValueSize))
	}

	targets := make([]Target, config.Threads)
	for i := range targets {
		t, err := newTarget()
		if err != nil {
			closeAll(targets[:i])
			return Result{}, err
		}
		targets[i] = t
	}
	defer closeAll(targets)

	// get, delete and mixed need existing keys
	if test == "get" || test == "delete" || test == "mixed" {
		for _, k := range keys {
			if err := targets[0].Put(k, value); err != nil {
				return Result{}, err
			}
		}
	}

	op := func(t Target, i int) error {
		key := keys[i%len(keys)]
		switch test {
		case "get":
			_, err := t.Get(key)
			return err
		case "delete":
			return t.Delete(key)
		case "mixed":
			// 80% reads, 20% writes
			if i%5 == 0 {
				return t.Put(key, value)
			}
			_, err := t.Get(key)
			if errors.Is(err, store.ErrKeyNotFound) {
				return nil
			}
			return err
		default:
			return t.Put(key, value)
		}
	}

	var wg sync.WaitGroup
	start := time.Now()
	for w, t := range targets {
		wg.Add(1)
		go func(w int, t Target) {
			defer wg.Done()
			for i := w; i < config.Ops; i += config.Threads {
				opStart := time.Now()
				if err := op(t, i); err != nil {
					errCount.Inc(1)
					continue
				}
				timer.UpdateSince(opStart)
			}
		}(w, t)
	}
	wg.Wait()
	duration := time.Since(start)

	// cleanup
	for _, k := range keys {
		_ = targets[0].Delete(k)
	}

	return Result{
		Test:     test,
		Errors:   errCount.Count(),
		Duration: duration,
		Timer:    timer,
	}, nil
}

func closeAll(targets []Target) {
	seen := map[Target]bool{}
	for _, t := range targets {
		if t != nil && !seen[t] {
			seen[t] = true
			_ = t.Close()
		}
	}
}

// --------------------------------------------------------------------------
// Targets
// --------------------------------------------------------------------------

// storeTarget drives a store inside this process
type storeTarget struct {
	store store.IStore
	ctx   context.Context
}

func (t *storeTarget) Put(key, value string) error    { return t.store.Put(t.ctx, key, value) }
func (t *storeTarget) Get(key string) (string, error) { return t.store.Get(key) }
func (t *storeTarget) Delete(key string) error        { return t.store.Delete(t.ctx, key) }

// Close does nothing, the store outlives the tests
func (t *storeTarget) Close() error { return nil }

// clientTarget drives a server over one connection
type clientTarget struct {
	*client.Client
}

// --------------------------------------------------------------------------
// Output
// --------------------------------------------------------------------------

// printResult prints the result of a benchmark test in a formatted way
func printResult(w io.Writer, r Result) {
	if r.Skipped {
		fmt.Fprintf(w, "%-12sskipped\n", r.Test)
		return
	}
	s := r.Timer.Snapshot()
	ps := s.Percentiles([]float64{0.5, 0.99})
	fmt.Fprintf(w, "%-12s%8.0f ops/sec  mean %-10s p50 %-10s p99 %-10s max %-10s errors %d\n",
		r.Test, r.OpsPerSec(),
		time.Duration(s.Mean()), time.Duration(ps[0]), time.Duration(ps[1]), time.Duration(s.Max()),
		r.Errors)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results []Result, config Config) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	// Write header
	header := []string{
		"Test", "Skipped", "Ops", "Errors", "OpsPerSec",
		"MeanNs", "P50Ns", "P99Ns", "MaxNs",
		"Threads", "Keys", "LargeValueSizeBytes",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, r := range results {
		s := r.Timer.Snapshot()
		ps := s.Percentiles([]float64{0.5, 0.99})
		row := []string{
			r.Test,
			strconv.FormatBool(r.Skipped),
			strconv.FormatInt(s.Count(), 10),
			strconv.FormatInt(r.Errors, 10),
			fmt.Sprintf("%.0f", r.OpsPerSec()),
			fmt.Sprintf("%.0f", s.Mean()),
			fmt.Sprintf("%.0f", ps[0]),
			fmt.Sprintf("%.0f", ps[1]),
			strconv.FormatInt(s.Max(), 10),
			strconv.Itoa(config.Threads),
			strconv.Itoa(config.Keys),
			strconv.Itoa(config.LargeValueSize),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", r.Test, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
