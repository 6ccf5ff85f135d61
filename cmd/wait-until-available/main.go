package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	url      string
	interval time.Duration
	timeout  time.Duration
)

// Blocks until the service answers, for use in CI pipelines before the integration tests run.
var rootCmd = &cobra.Command{
	Use:          "wait-until-available",
	Short:        "Polls the contact service until it responds",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		deadline := time.Now().Add(timeout)
		var totalWaitTime time.Duration
		for {
			res, err := http.Get(url)
			if err == nil {
				res.Body.Close()
				// The service answers 404 while it has no contacts, which still means it is up.
				if res.StatusCode == http.StatusOK || res.StatusCode == http.StatusNotFound {
					fmt.Println(res.Status)
					return nil
				}
				fmt.Println(res.Status)
			} else {
				fmt.Println(err)
			}
			if timeout > 0 && time.Now().After(deadline) {
				return fmt.Errorf("%s not available after %s", url, totalWaitTime)
			}
			totalWaitTime += interval
			fmt.Printf("Waiting %s\n", totalWaitTime)
			time.Sleep(interval)
		}
	},
}

func init() {
	rootCmd.Flags().StringVar(&url, "url", "http://localhost:8080/contacts", "the URL to poll")
	rootCmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "the time between two attempts")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 0, "give up after this time, 0 waits forever")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
