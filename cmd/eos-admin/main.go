// Command eos-admin is the CLI surface over pkg/client: everything a
// CORE exposes to an operator is one proc command or one raft-join
// call, so this shell carries exactly two subcommands, grounded on the
// same rootCmd/init layout as cmd/eos-mgm and, further back, on
// cmd/warren/main.go's own CLI commands.
package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/client"
	"github.com/HaiboGNU/eos-sub000/pkg/types"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "eos-admin",
	Short: "eos-admin drives a CORE node's proc command surface",
}

func init() {
	rootCmd.PersistentFlags().String("manager", "127.0.0.1:1094", "CORE node transport address")
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(joinCmd)

	execCmd.Flags().String("path", "/proc/user/", "Proc path (/proc/user/ or /proc/admin/)")
	execCmd.Flags().Uint32("uid", 0, "Caller uid")
	execCmd.Flags().Uint32("gid", 0, "Caller gid")
	execCmd.Flags().Bool("sudoer", false, "Assert sudo/root privilege")

	joinCmd.Flags().String("node-id", "", "Joining node's raft ID (required)")
	joinCmd.Flags().String("raft-addr", "", "Joining node's raft bind address (required)")
	_ = joinCmd.MarkFlagRequired("node-id")
	_ = joinCmd.MarkFlagRequired("raft-addr")
}

// execCmd sends one proc command. Arguments after "--" are key=value
// pairs that become the command's mgm.* URL-encoded arguments, the
// same shape pkg/proc.Dispatcher.Execute decodes (spec §6).
var execCmd = &cobra.Command{
	Use:   "exec mgm.cmd=... [key=value ...]",
	Short: "Run one proc command against a CORE node",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, _ := rootCmd.PersistentFlags().GetString("manager")
		path, _ := cmd.Flags().GetString("path")
		uid, _ := cmd.Flags().GetUint32("uid")
		gid, _ := cmd.Flags().GetUint32("gid")
		sudoer, _ := cmd.Flags().GetBool("sudoer")

		values := url.Values{}
		for _, a := range args {
			k, v, ok := strings.Cut(a, "=")
			if !ok {
				return fmt.Errorf("argument %q must be key=value", a)
			}
			values.Set(k, v)
		}

		c, err := client.Dial(manager)
		if err != nil {
			return fmt.Errorf("dial %s: %w", manager, err)
		}
		defer c.Close()

		ctx, cancel := context.WithTimeout(context.Background(), client.DefaultTimeout)
		defer cancel()

		identity := types.Identity{UID: uid, GID: gid, Sudoer: sudoer}
		res, err := c.Exec(ctx, identity, path, values)
		if res.Stdout != "" {
			fmt.Print(res.Stdout)
		}
		if res.Stderr != "" {
			fmt.Fprint(os.Stderr, res.Stderr)
		}
		if err != nil {
			return err
		}
		if res.Retc != 0 {
			os.Exit(res.Retc)
		}
		return nil
	},
}

// joinCmd asks the dialed node, which must be the current raft leader,
// to admit another node as a voter.
var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Add a node to the cluster as a raft voter",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, _ := rootCmd.PersistentFlags().GetString("manager")
		nodeID, _ := cmd.Flags().GetString("node-id")
		raftAddr, _ := cmd.Flags().GetString("raft-addr")

		c, err := client.Dial(manager)
		if err != nil {
			return fmt.Errorf("dial %s: %w", manager, err)
		}
		defer c.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := c.JoinCluster(ctx, nodeID, raftAddr); err != nil {
			return fmt.Errorf("join cluster: %w", err)
		}
		fmt.Printf("node %s admitted as a voter\n", nodeID)
		return nil
	},
}
