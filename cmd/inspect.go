package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/encodeous/meshwatch/state"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:     "inspect",
	Aliases: []string{"i"},
	Short:   "Inspects the current state of a running meshwatch",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			cfg, err := state.LoadConfig(configPath)
			if err != nil {
				return err
			}
			addr = cfg.Listen
		}
		client := &http.Client{Timeout: 5 * time.Second}
		base := "http://" + addr

		var sum state.Summary
		if err := getJSON(client, base+"/api/summary", &sum); err != nil {
			return err
		}
		var nodes []state.Node
		if err := getJSON(client, base+"/api/nodes", &nodes); err != nil {
			return err
		}
		var alerts []state.Alert
		if err := getJSON(client, base+"/api/alerts", &alerts); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "nodes: %d (online %d, degraded %d, offline %d), routes: %d, active alerts: %d\n",
			sum.TotalNodes, sum.ByStatus[state.StatusOnline], sum.ByStatus[state.StatusDegraded],
			sum.ByStatus[state.StatusOffline], sum.Routes, sum.ActiveAlerts)
		fmt.Fprintf(out, "mean latency %.1f ms, mean loss %.3f\n", sum.MeanLatencyMs, sum.MeanPacketLoss)
		for _, n := range nodes {
			fmt.Fprintf(out, "  %-20s %-8s %-9s %4d dBm %7.1f ms  last seen %s\n",
				n.Id, n.Type, n.Status, n.SignalDbm, n.LatencyMs, n.LastHeartbeatAt.Format(time.RFC3339))
		}
		for _, a := range alerts {
			fmt.Fprintf(out, "  [%s] %s %s: %s\n", a.Severity, a.NodeId, a.Type, a.Message)
		}
		return nil
	},
	GroupID: "mw",
}

func getJSON(client *http.Client, url string, v any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s: %s: %s", url, resp.Status, body)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringP("addr", "a", "", "address of the meshwatch api, defaults to the configured listen address")
}
