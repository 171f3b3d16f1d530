package bench

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ValentinKolb/walkv/lib/db"
	"github.com/ValentinKolb/walkv/lib/db/engines/ordered"
	"github.com/ValentinKolb/walkv/lib/store/lstore"
)

func localTarget() func() (Target, error) {
	s := lstore.NewLocalStore(func() db.KVDB { return ordered.NewOrderedDB(nil) })
	shared := &storeTarget{store: s, ctx: context.Background()}
	return func() (Target, error) { return shared, nil }
}

func TestRun(t *testing.T) {
	config := Config{Ops: 200, Threads: 4, Keys: 10, LargeValueSize: 1024, Skip: []string{"put-large"}}
	newTarget := localTarget()

	results, err := Run(config, newTarget)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != len(Tests) {
		t.Fatalf("got %d results, expected %d", len(results), len(Tests))
	}

	for _, r := range results {
		if r.Test == "put-large" {
			if !r.Skipped {
				t.Errorf("Expected put-large to be skipped")
			}
			continue
		}
		if r.Errors != 0 {
			t.Errorf("%s: %d errors", r.Test, r.Errors)
		}
		if got := r.Timer.Count(); got != int64(config.Ops) {
			t.Errorf("%s: timer counted %d ops, expected %d", r.Test, got, config.Ops)
		}
	}

	// the benchmark removes its keys
	target, _ := newTarget()
	if _, err := target.Get(perfKeyPrefix + "-put-0"); err == nil {
		t.Errorf("Expected the benchmark keys to be deleted")
	}

	var out bytes.Buffer
	for _, r := range results {
		printResult(&out, r)
	}
	if !strings.Contains(out.String(), "put-large   skipped") {
		t.Errorf("unexpected output:\n%s", out.String())
	}

	path := filepath.Join(t.TempDir(), "results.csv")
	if err := writeResultsToCSV(path, results, config); err != nil {
		t.Fatalf("writeResultsToCSV failed: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil || len(rows) != len(Tests)+1 {
		t.Errorf("csv has %d rows (%v), expected %d", len(rows), err, len(Tests)+1)
	}
}

func TestConfigValidate(t *testing.T) {
	invalid := []Config{
		{Ops: 0, Threads: 1, Keys: 1},
		{Ops: 1, Threads: 0, Keys: 1},
		{Ops: 1, Threads: 1, Keys: 0},
		{Ops: 1, Threads: 1, Keys: 1, Skip: []string{"nope"}},
	}
	for _, c := range invalid {
		if err := c.validate(); err == nil {
			t.Errorf("Expected %+v to be invalid", c)
		}
	}
}
