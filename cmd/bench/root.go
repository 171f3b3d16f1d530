package bench

import (
	"context"
	"fmt"
	"os"
	"strings"

	cmdUtil "github.com/ValentinKolb/walkv/cmd/util"
	"github.com/ValentinKolb/walkv/lib/db"
	"github.com/ValentinKolb/walkv/lib/db/engines/ordered"
	"github.com/ValentinKolb/walkv/lib/store/wstore"
	"github.com/ValentinKolb/walkv/rpc/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	benchConfig = Config{}

	// BenchCmd runs the benchmark
	BenchCmd = &cobra.Command{
		Use:   "bench",
		Short: "Performance testing tool for walkv",
		Long: `Performance testing tool for walkv.

Without --endpoint the benchmark runs against a durable store in a temporary directory inside this process, this measures the ingestion pipeline with WAL fsync and compaction. With --endpoint every worker opens its own connection to a running server.`,
		PreRunE: processBenchConfig,
		RunE:    run,
	}
)

func init() {
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "endpoint"
	BenchCmd.Flags().String(key, "", cmdUtil.WrapString("Address of a running server, empty runs an in-process store"))
	key = "timeout"
	BenchCmd.Flags().Int(key, 10, cmdUtil.WrapString("The timeout in seconds of the client"))
	key = "retries"
	BenchCmd.Flags().Int(key, 3, cmdUtil.WrapString("How many times to try to connect"))
	key = "ops"
	BenchCmd.Flags().Int(key, 10000, cmdUtil.WrapString("Number of operations per test"))
	key = "threads"
	BenchCmd.Flags().Int(key, 10, cmdUtil.WrapString("Number of concurrent workers"))
	key = "keys"
	BenchCmd.Flags().Int(key, 100, cmdUtil.WrapString("How many different keys to use for the tests"))
	key = "large-value-size"
	BenchCmd.Flags().Int(key, 100, cmdUtil.WrapString("How large the value for the put-large test should be (in KB)"))
	key = "skip"
	BenchCmd.Flags().String(key, "", cmdUtil.WrapString("Benchmarks to skip (comma separated - e.g. put,get)"))
	key = "csv"
	BenchCmd.Flags().String(key, "", cmdUtil.WrapString("Optional path to save benchmark results as CSV"))
	key = "no-sync"
	BenchCmd.Flags().Bool(key, false, cmdUtil.WrapString("In-process only: do not fsync the WAL"))
	key = "max-wal-size"
	BenchCmd.Flags().Int64(key, wstore.DefaultMaxWALSize, cmdUtil.WrapString("In-process only: WAL size that triggers a compaction (in bytes)"))
}

func processBenchConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	benchConfig = Config{
		Ops:            viper.GetInt("ops"),
		Threads:        viper.GetInt("threads"),
		Keys:           viper.GetInt("keys"),
		LargeValueSize: viper.GetInt("large-value-size") * 1024,
	}
	if skip := viper.GetString("skip"); skip != "" {
		benchConfig.Skip = strings.Split(skip, ",")
	}
	return benchConfig.validate()
}

func run(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Performance testing tool for walkv")

	var newTarget func() (Target, error)
	if endpoint := viper.GetString("endpoint"); endpoint != "" {
		config := cmdUtil.GetClientConfig()
		fmt.Fprintln(out, config.String())
		newTarget = func() (Target, error) {
			c, err := client.Dial(*config)
			if err != nil {
				return nil, err
			}
			return &clientTarget{c}, nil
		}
	} else {
		dir, err := os.MkdirTemp("", "walkv-bench-*")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)

		opts := wstore.DefaultOptions(dir)
		opts.NoSync = viper.GetBool("no-sync")
		opts.MaxWALSize = viper.GetInt64("max-wal-size")
		s, err := wstore.New(func() db.KVDB { return ordered.NewOrderedDB(nil) }, opts)
		if err != nil {
			return err
		}
		defer s.Close()

		fmt.Fprintf(out, "\nIn-process store in %s (fsync: %v, max wal size: %d bytes)\n", dir, !opts.NoSync, opts.MaxWALSize)
		shared := &storeTarget{store: s, ctx: context.Background()}
		newTarget = func() (Target, error) { return shared, nil }
	}

	fmt.Fprintf(out, "Threads: %d, Ops per test: %d, Keys: %d\n\n", benchConfig.Threads, benchConfig.Ops, benchConfig.Keys)

	results, err := Run(benchConfig, newTarget)
	if err != nil {
		return err
	}
	for _, r := range results {
		printResult(out, r)
	}

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Fprintf(out, "\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, benchConfig); err != nil {
			return err
		}
	}
	return nil
}
