package cmd

import (
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/encodeous/meshwatch/api"
	"github.com/encodeous/meshwatch/core"
	"github.com/encodeous/meshwatch/perf"
	"github.com/encodeous/meshwatch/state"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run meshwatch",
	Long:  `This will run the health engine and serve its http api on the configured listen address.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := state.LoadConfig(configPath)
		if err != nil {
			return err
		}
		err = state.ConfigValidator(cfg)
		if err != nil {
			return err
		}

		if logPath, _ := cmd.Flags().GetString("log-path"); logPath != "" {
			cfg.LogPath = logPath
		}

		level := slog.LevelInfo
		if ok, _ := cmd.Flags().GetBool("verbose"); ok {
			level = slog.LevelDebug
		}
		logger, err := core.NewLogger(cfg.LogPath, level)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)

		metrics, err := perf.NewCollector(nil)
		if err != nil {
			return err
		}
		engine, err := core.NewEngine(*cfg, core.WithLogger(logger), core.WithCollector(metrics))
		if err != nil {
			return err
		}
		env := engine.Env()
		core.StopOnSignal(env)

		l, err := net.Listen("tcp", cfg.Listen)
		if err != nil {
			engine.Stop()
			return err
		}
		go func() {
			err := api.NewServer(engine, logger, metrics).Serve(env.Context, l)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				env.Cancel(err)
			}
		}()

		logger.Info("meshwatch started", "listen", cfg.Listen, "heartbeat_interval", cfg.HeartbeatInterval, "offline_timeout", cfg.OfflineTimeout)
		return engine.Run()
	},
	GroupID: "mw",
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	runCmd.Flags().String("log-path", "", "also write logs to this file, overrides log_path")
	runCmd.Flags().BoolVarP(&state.DBG_log_heartbeats, "lbeat", "b", false, "Write every heartbeat to the console")
	runCmd.Flags().BoolVarP(&state.DBG_log_route_table, "ltable", "t", false, "Outputs route table to the console")
}
