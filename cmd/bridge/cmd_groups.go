package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/domain"
	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/usecase"
	"github.com/kimlikbridge/tg-sorgu-bridge/internal/data"
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Inspect and reconcile the serviced group list",
}

var groupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the chats the account is in and whether each is serviced",
	RunE:  runGroupsList,
}

var groupsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one membership reconciliation and exit",
	RunE:  runGroupsSync,
}

func init() {
	groupsCmd.AddCommand(groupsListCmd, groupsSyncCmd)
}

func runGroupsList(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := data.NewMembershipStore(ctx, cfg.Groups, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	persisted, err := store.Read(ctx)
	if err != nil {
		return err
	}

	memberships, err := newTelegramClient(cfg, logger).ListDialogs(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tSERVICED\tTITLE")
	for _, m := range memberships {
		serviced := "no"
		if persisted.Contains(m.ID) {
			serviced = "yes"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", m.ID, m.Kind, serviced, m.Title)
	}
	return w.Flush()
}

func runGroupsSync(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := data.NewMembershipStore(ctx, cfg.Groups, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	client := newTelegramClient(cfg, logger)
	if err := client.Connect(ctx, func(context.Context, domain.Event) {}); err != nil {
		return err
	}
	defer client.Disconnect()

	active := usecase.NewActiveGroups(domain.NewGroupSet())
	membershipUC := usecase.NewMembershipUsecase(store, client, active, cfg.Groups.ToMembershipConfig(), logger)

	result, err := membershipUC.Tick(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !result.Rewritten {
		fmt.Fprintf(out, "Group list up to date (%d groups)\n", result.Persisted.Len())
		return nil
	}
	for _, id := range result.Diff.Joined.Sorted() {
		fmt.Fprintf(out, "+ %d %s\n", id, result.Titles[id])
	}
	for _, id := range result.Diff.Left.Sorted() {
		fmt.Fprintf(out, "- %d\n", id)
	}
	fmt.Fprintf(out, "Group list updated: %s\n", result.Updated)
	return nil
}
