package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/lifelog/internal/cli"
	"github.com/Veraticus/lifelog/internal/config"
	"github.com/Veraticus/lifelog/internal/storage"
)

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage audited database snapshots",
		Long: `Copy the database to a snapshot file and record its SHA-256, so it can be
shown later that the snapshot has not been altered.`,
		Example: `  # Snapshot before a bulk import
  lifelog snapshot create --tag pre-import

  # List snapshots
  lifelog snapshot list

  # Check a snapshot still matches its recorded checksum
  lifelog snapshot verify pre-import`,
	}

	cmd.AddCommand(createSnapshotCmd())
	cmd.AddCommand(listSnapshotsCmd())
	cmd.AddCommand(verifySnapshotCmd())

	return cmd
}

func createSnapshotCmd() *cobra.Command {
	var tag string
	var description string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			dir := config.SnapshotDir(config.DatabasePath(viper.GetViper()))
			info, err := store.Snapshot(ctx, dir, tag, description, clock())
			if err != nil {
				if errors.Is(err, storage.ErrSnapshotExists) {
					return fmt.Errorf("%w; choose another --tag", err)
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Created snapshot %s", info.ID)))
			fmt.Fprintf(out, "  Events: %d, habits: %d\n", info.Events, info.Habits)
			fmt.Fprintf(out, "  SHA-256: %s\n", info.Checksum)
			fmt.Fprintf(out, "  File: %s\n", info.Path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&tag, "tag", "t", "", "snapshot tag (default: timestamp)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "snapshot description")
	return cmd
}

func listSnapshotsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			outFormat, err := cli.ParseFormat(format)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			snapshots, err := store.ListSnapshots(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outFormat.Structured() {
				return cli.WriteStructured(out, outFormat, snapshots)
			}
			fmt.Fprint(out, cli.RenderSnapshots(snapshots))
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table, json, yaml)")
	return cmd
}

func verifySnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <tag>",
		Short: "Check a snapshot against its recorded checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.VerifySnapshot(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Snapshot %s is intact", args[0])))
			return nil
		},
	}
}
