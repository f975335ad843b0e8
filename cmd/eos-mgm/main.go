// Command eos-mgm runs one CORE node: the cobra shell around
// pkg/manager, grounded on cmd/warren/main.go's own rootCmd/init/
// cluster-subcommand layout but trimmed to this domain's surface —
// no embedded containerd, no ingress proxy, no join tokens, no
// metrics HTTP server (pkg/metrics deliberately exposes none; see
// DESIGN.md).
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/HaiboGNU/eos-sub000/pkg/config"
	"github.com/HaiboGNU/eos-sub000/pkg/log"
	"github.com/HaiboGNU/eos-sub000/pkg/manager"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "eos-mgm",
	Short: "eos-mgm runs one CORE metadata node",
	Long: `eos-mgm is the federated-disk-storage metadata node: it answers
Open, Commit, ProcExec, and Join over pkg/transport, keeps the
namespace and cluster view in memory, and replicates writes with raft.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"eos-mgm version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(joinCmd)

	initCmd.Flags().String("config", "", "Path to node config file (required)")
	_ = initCmd.MarkFlagRequired("config")

	joinCmd.Flags().String("config", "", "Path to node config file (required)")
	joinCmd.Flags().String("leader", "", "Transport address of an existing cluster member (required)")
	_ = joinCmd.MarkFlagRequired("config")
	_ = joinCmd.MarkFlagRequired("leader")
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap a new cluster with this node as the first voter",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}

		mgr, err := manager.New(cfg)
		if err != nil {
			return fmt.Errorf("create manager: %w", err)
		}

		if err := mgr.Bootstrap(); err != nil {
			return fmt.Errorf("bootstrap cluster: %w", err)
		}
		fmt.Printf("cluster bootstrapped, node %s is the initial voter\n", cfg.Node.ID)

		return serveAndWait(mgr, cfg)
	},
}

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join this node to an existing cluster",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Flags().GetString("config")
		leader, _ := cmd.Flags().GetString("leader")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}

		mgr, err := manager.New(cfg)
		if err != nil {
			return fmt.Errorf("create manager: %w", err)
		}

		if err := mgr.JoinCluster(leader); err != nil {
			return fmt.Errorf("join cluster via %s: %w", leader, err)
		}
		fmt.Printf("node %s joined the cluster via %s\n", cfg.Node.ID, leader)

		return serveAndWait(mgr, cfg)
	},
}

func serveAndWait(mgr *manager.Manager, cfg *config.Config) error {
	if err := mgr.Serve(); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}
	mgr.Start()
	fmt.Printf("eos-mgm listening on %s\n", cfg.Node.TransportAddr)
	fmt.Println("press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nshutting down...")
	if err := mgr.Shutdown(); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	fmt.Println("shutdown complete")
	return nil
}
