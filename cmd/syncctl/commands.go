package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/domain"
	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/platform/version"
	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/protocol"
	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/syncclient"
	"github.com/spf13/cobra"
)

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

// awaitAck waits for the relay's sync_status reply to the frame just sent. Acks for broadcasts
// from other clients carry a different origin and are not counted.
func awaitAck(ctx context.Context, cmd *cobra.Command, client *syncclient.Client, o *options, before int) error {
	state, err := waitFor(ctx, client, o.wait, func(s syncclient.State) bool { return s.AckCount > before })
	if err != nil {
		return fmt.Errorf("relay did not acknowledge: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "synced at %s (%d clients connected)\n", state.LastSync.Format(time.RFC3339), state.ConnectedClients)
	return nil
}

func newNotifyCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "notify CHANGE_ID...",
		Short: "Announce changed content ids to connected previews",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			client, err := o.connect(ctx, domain.RoleAdmin, nil)
			if err != nil {
				return err
			}
			defer client.Close()

			before := client.State().AckCount
			for _, id := range args {
				client.NotifyChange(id)
			}
			if err := client.ForceSync(); err != nil {
				return err
			}
			return awaitAck(ctx, cmd, client, o, before)
		},
	}
}

func newRefreshCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Ask every preview to reload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			client, err := o.connect(ctx, domain.RoleAdmin, nil)
			if err != nil {
				return err
			}
			defer client.Close()

			before := client.State().AckCount
			if err := client.ForceSync(); err != nil {
				return err
			}
			return awaitAck(ctx, cmd, client, o, before)
		},
	}
}

func newWatchCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Read change ids from stdin, one per line, and announce them debounced",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			client, err := o.connect(ctx, domain.RoleAdmin, nil)
			if err != nil {
				return err
			}
			defer client.Close()

			lines := readLines(ctx, cmd.InOrStdin())
			for {
				select {
				case <-ctx.Done():
					return nil
				case id, ok := <-lines:
					if !ok {
						// Input closed: push whatever is still pending.
						state := client.State()
						if !state.HasPendingChanges {
							return nil
						}
						if err := client.ForceSync(); err != nil {
							return err
						}
						return awaitAck(ctx, cmd, client, o, state.AckCount)
					}
					client.NotifyChange(id)
				}
			}
		},
	}
}

func readLines(ctx context.Context, r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			select {
			case out <- line:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func newFollowCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "follow",
		Short: "Connect as a preview and print every change notification as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			enc := json.NewEncoder(cmd.OutOrStdout())
			printChange := func(c protocol.Change) {
				_ = enc.Encode(c)
			}

			client, err := o.connect(ctx, domain.RolePreview, printChange)
			if err != nil {
				return err
			}
			defer client.Close()

			<-ctx.Done()
			return nil
		},
	}
}

func newStatusCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the relay's connected client counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), o.wait)
			defer cancel()

			status, err := syncclient.FetchStatus(ctx, http.DefaultClient, o.url)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					return fmt.Errorf("relay did not answer within %s", o.wait)
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "status:    %s\n", status.Status)
			fmt.Fprintf(out, "clients:   %d (admin %d, preview %d)\n", status.ConnectedClients, status.Admin, status.Preview)
			fmt.Fprintf(out, "updated:   %s\n", status.LastUpdate.Format(time.RFC3339))
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
		},
	}
}
