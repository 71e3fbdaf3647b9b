package cli

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var statusURL string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show gateway status",
	Long:  `Query the health endpoint of a running gateway and print its state.`,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusURL, "url", "", "gateway base URL (default derived from the config file)")
	rootCmd.AddCommand(statusCmd)
}

type healthReport struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	base := statusURL
	if base == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		host := cfg.Server.Host
		if host == "" || host == "0.0.0.0" || host == "::" {
			host = "127.0.0.1"
		}
		base = "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port))
	}

	out := cmd.OutOrStdout()
	report, err := fetchHealth(base)
	if err != nil {
		fmt.Fprintf(out, "Status: unreachable (%v)\n", err)
		return nil
	}

	fmt.Fprintf(out, "Status: %s\n", report.Status)
	fmt.Fprintf(out, "Sessions: %d\n", report.Sessions)
	return nil
}

func fetchHealth(base string) (*healthReport, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(base + "/healthz")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var report healthReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("invalid health response: %w", err)
	}
	return &report, nil
}
