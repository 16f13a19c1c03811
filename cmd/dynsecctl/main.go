// dynsecctl drives the dynamic security control API from the terminal. It
// talks to the upstream directly, running the same submit, poll and
// reconcile cycle the dashboard runs.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	dynsec "github.com/hilthontt/dynboard/api-sdk"
	"github.com/hilthontt/dynboard/api-sdk/option"
)

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func printJSON(v any) {
	p, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(p))
}

func main() {
	var (
		apiURL  = envOr("DYNSEC_API_URL", "http://localhost:3000")
		token   = envOr("DYNSEC_API_TOKEN", "")
		broker  = envOr("DYNSEC_BROKER", "")
		timeout = 30 * time.Second

		client *dynsec.Client
	)

	root := &cobra.Command{
		Use:          "dynsecctl",
		Short:        "Admin CLI for the MQTT dynamic security control API",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts := []option.RequestOption{
				option.WithBaseURL(apiURL),
				option.WithRequestTimeout(timeout),
			}
			if token != "" {
				opts = append(opts, option.WithBearerToken(token))
			}
			client = dynsec.NewClient(opts...)
		},
	}

	root.PersistentFlags().StringVar(&apiURL, "api-url", apiURL, "control API base URL (env DYNSEC_API_URL)")
	root.PersistentFlags().StringVar(&token, "token", token, "bearer token (env DYNSEC_API_TOKEN)")
	root.PersistentFlags().StringVar(&broker, "broker", broker, "broker name (env DYNSEC_BROKER)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", timeout, "per-request timeout")

	requireBroker := func() error {
		if broker == "" {
			return fmt.Errorf("broker is required (flag --broker or env DYNSEC_BROKER)")
		}
		return nil
	}

	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Print the broker's dynamic security state",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireBroker(); err != nil {
				return err
			}
			st, err := client.State.Get(context.Background(), broker)
			if err != nil {
				return err
			}
			printJSON(st)
			return nil
		},
	}

	var (
		applyPayload  string
		applyDryRun   bool
		applyAttempts int
		applyInterval time.Duration
	)
	applyCmd := &cobra.Command{
		Use:   "apply <operation>",
		Short: "Submit one operation and wait for its outcome",
		Long: `Submit one operation and wait for its outcome.

The payload is a JSON object, passed with --payload or piped on stdin when
--payload is "-". Operations: ` + fmt.Sprint(dynsec.Operations()),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireBroker(); err != nil {
				return err
			}

			raw := []byte(applyPayload)
			if applyPayload == "-" {
				var err error
				raw, err = io.ReadAll(os.Stdin)
				if err != nil {
					return err
				}
			}
			var payload any
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &payload); err != nil {
					return fmt.Errorf("invalid payload: %w", err)
				}
			}

			runner := client.Runner(dynsec.PollPolicy{
				MaxAttempts: applyAttempts,
				Interval:    applyInterval,
			})
			runner.OnQueued = func(queueID int64) {
				fmt.Fprintf(os.Stderr, "queued as item %d\n", queueID)
			}
			runner.OnPoll = func(attempt int, status dynsec.Status) {
				fmt.Fprintf(os.Stderr, "poll %d: %s\n", attempt, status)
			}

			res, err := runner.Run(context.Background(), dynsec.ApplyParams{
				Broker:    broker,
				Operation: dynsec.Operation(args[0]),
				Payload:   payload,
				DryRun:    applyDryRun,
			})
			if dynsec.IsTimeout(err) {
				return fmt.Errorf("still pending after %d attempts; the change may have succeeded, check the queue", applyAttempts)
			}
			if err != nil {
				return err
			}

			fmt.Printf("outcome: %s\n", res.Outcome)
			if res.QueueID > 0 {
				fmt.Printf("queue_id: %d\n", res.QueueID)
			}
			if res.Item != nil && res.Item.ErrorMessage != "" {
				fmt.Printf("error: %s\n", res.Item.ErrorMessage)
			}
			if len(res.Preview) > 0 {
				var v any
				if json.Unmarshal(res.Preview, &v) == nil {
					printJSON(v)
				} else {
					fmt.Println(string(res.Preview))
				}
			}
			if res.Outcome == dynsec.OutcomeFailed {
				os.Exit(1)
			}
			return nil
		},
	}
	applyCmd.Flags().StringVar(&applyPayload, "payload", "", `operation payload as JSON, or "-" for stdin`)
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "preview the change without applying it")
	applyCmd.Flags().IntVar(&applyAttempts, "max-attempts", 20, "poll attempts before giving up")
	applyCmd.Flags().DurationVar(&applyInterval, "interval", time.Second, "fixed delay between poll attempts")

	var queueLimit int
	queueCmd := &cobra.Command{
		Use:   "queue [id]",
		Short: "List recent queue items, or show one by id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("id must be an integer")
				}
				item, err := client.Queue.Get(context.Background(), id)
				if err != nil {
					return err
				}
				printJSON(item)
				return nil
			}

			items, err := client.Queue.List(context.Background(), dynsec.QueueListParams{
				Broker: broker,
				Limit:  queueLimit,
			})
			if err != nil {
				return err
			}
			printJSON(items)
			return nil
		},
	}
	queueCmd.Flags().IntVar(&queueLimit, "limit", 50, "max items to list")

	var (
		auditQueueID int64
		auditLimit   int
	)
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "List recent audit entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			if auditQueueID > 0 {
				entries, err := client.Audit.ListByQueueID(context.Background(), auditQueueID)
				if err != nil {
					return err
				}
				printJSON(entries)
				return nil
			}

			entries, err := client.Audit.List(context.Background(), dynsec.AuditListParams{
				Broker: broker,
				Limit:  auditLimit,
			})
			if err != nil {
				return err
			}
			printJSON(entries)
			return nil
		},
	}
	auditCmd.Flags().Int64Var(&auditQueueID, "queue-id", 0, "only entries for this queue item")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 50, "max entries to list")

	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Trigger and inspect state backups",
	}
	backupNowCmd := &cobra.Command{
		Use:   "now",
		Short: "Trigger an immediate state backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireBroker(); err != nil {
				return err
			}
			id, err := client.Backup.Now(context.Background(), broker)
			if err != nil {
				return err
			}
			fmt.Printf("backup_id: %d\n", id)
			return nil
		},
	}
	backupListCmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded backups, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireBroker(); err != nil {
				return err
			}
			backups, err := client.Backup.List(context.Background(), broker)
			if err != nil {
				return err
			}
			printJSON(backups)
			return nil
		},
	}
	backupCmd.AddCommand(backupNowCmd, backupListCmd)

	root.AddCommand(stateCmd, applyCmd, queueCmd, auditCmd, backupCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
