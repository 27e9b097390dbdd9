package session

import (
	"encoding/csv"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/uniauth/cmd/util"
	"github.com/ValentinKolb/uniauth/lib/store"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Latency test of a running uniauth daemon",
		Long:    "Runs sequential requests of every operation against the daemon and reports latency percentiles. The test sessions expire shortly after the run.",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix = "__perf"
	perfRequests  = 10000
	perfSkip      = make([]string, 0)

	// perfTests is the order in which the tests are run, later tests use the sessions created before
	perfTests = []string{"create", "lookup", "lookup-miss", "commit", "transfer"}
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Tests to skip (comma separated - e.g. commit,transfer)"))
	key = "requests"
	perfTestCmd.Flags().Int(key, 10000, util.WrapString("Number of requests per test"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfRequests = viper.GetInt("requests")
	if perfRequests <= 0 {
		return fmt.Errorf("requests must be positive")
	}
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {
	fmt.Println("Latency test for uniauth daemons")

	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Requests per test: %d\n", perfRequests)
	fmt.Println()

	registry := metrics.NewRegistry()
	expire := time.Now().Add(time.Minute).Unix()
	run := fmt.Sprintf("%s-%d", perfKeyPrefix, time.Now().UnixNano())
	key := func(i int) []byte {
		return []byte(fmt.Sprintf("%s-%d", run, i))
	}

	ops := map[string]func(i int) error{
		"create": func(i int) error {
			return expectOK(rpcClient.Create(&store.SessionRecord{Key: key(i), Tag: []byte("perf"), Expire: expire}))
		},
		"lookup": func(i int) error {
			_, found, err := rpcClient.Lookup(string(key(i)))
			if err == nil && !found {
				err = fmt.Errorf("session %s not found", key(i))
			}
			return err
		},
		"lookup-miss": func(i int) error {
			_, _, err := rpcClient.Lookup(fmt.Sprintf("%s-missing-%d", run, i))
			return err
		},
		"commit": func(i int) error {
			return expectOK(rpcClient.Commit(&store.SessionRecord{Key: key(i), ID: int32(i + 1), Username: []byte("perf")}))
		},
		"transfer": func(i int) error {
			return expectOK(rpcClient.Transfer(string(key(i)), string(key(i))))
		},
	}

	fmt.Println("starting tests...")
	for _, test := range perfTests {
		if slices.Contains(perfSkip, test) {
			continue
		}

		timer := metrics.GetOrRegisterTimer(test, registry)
		failed := 0
		for i := 0; i < perfRequests; i++ {
			start := time.Now()
			err := ops[test](i)
			timer.UpdateSince(start)
			if err != nil {
				failed++
				if failed == 1 {
					fmt.Printf("(%s) - first error: %v\n", test, err)
				}
			}
		}
		printTimer(test, timer, failed)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, registry); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func expectOK(ok bool, err error) error {
	if err == nil && !ok {
		return fmt.Errorf("request rejected")
	}
	return err
}

// printTimer prints the latencies of one test in a formatted way
func printTimer(test string, t metrics.Timer, failed int) {
	if t.Count() == 0 {
		fmt.Printf("%-14sskipped\n", test)
		return
	}

	fmt.Printf("%-14smean %-12s p50 %-12s p99 %-12s max %-12s %.0f ops/sec, %d errors\n",
		test,
		time.Duration(t.Mean()),
		time.Duration(t.Percentile(0.5)),
		time.Duration(t.Percentile(0.99)),
		time.Duration(t.Max()),
		1e9/t.Mean(),
		failed,
	)
}

// writeResultsToCSV writes the timers of the registry to a CSV file
func writeResultsToCSV(csvPath string, registry metrics.Registry) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Test", "Count", "MeanNs", "P50Ns", "P99Ns", "MaxNs", "Endpoint", "TimeoutSec"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	config := util.GetClientConfig()
	for _, test := range perfTests {
		t, ok := registry.Get(test).(metrics.Timer)
		if !ok {
			continue
		}
		row := []string{
			test,
			strconv.FormatInt(t.Count(), 10),
			fmt.Sprintf("%.0f", t.Mean()),
			fmt.Sprintf("%.0f", t.Percentile(0.5)),
			fmt.Sprintf("%.0f", t.Percentile(0.99)),
			strconv.FormatInt(t.Max(), 10),
			config.Endpoint,
			strconv.Itoa(config.TimeoutSecond),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
