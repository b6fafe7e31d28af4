// Command flowmium-ctl is the CLI client of spec.md §6: list, submit,
// download, subscribe, describe, and secret management subcommands, all
// thin wrappers over internal/ctl.Client.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/flowmium-io/flowmium/internal/ctl"
	"github.com/flowmium-io/flowmium/internal/events"
	"github.com/flowmium-io/flowmium/internal/types"
)

func main() {
	app := &cli.Command{
		Name:  "flowmium-ctl",
		Usage: "Client for the flowmium workflow orchestrator",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "orchestrator base URL"},
		},
		Commands: []*cli.Command{
			listCmd(),
			submitCmd(),
			downloadCmd(),
			subscribeCmd(),
			describeCmd(),
			secretCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func clientFrom(cmd *cli.Command) *ctl.Client {
	return ctl.New(cmd.String("url"))
}

func listCmd() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List submitted flows",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			flows, err := clientFrom(cmd).List(ctx)
			if err != nil {
				return err
			}
			for _, f := range flows {
				fmt.Printf("%-8d %-10s stage=%d %s\n", f.ID, f.Status, f.CurrentStage, f.FlowName)
			}
			return nil
		},
	}
}

func submitCmd() *cli.Command {
	return &cli.Command{
		Name:      "submit",
		Usage:     "Submit a workflow file",
		ArgsUsage: "<file>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return fmt.Errorf("file argument is required")
			}
			raw, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			var wf types.Workflow
			if err := yaml.Unmarshal(raw, &wf); err != nil {
				return fmt.Errorf("parse workflow: %w", err)
			}
			id, err := clientFrom(cmd).Submit(ctx, wf)
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		},
	}
}

func downloadCmd() *cli.Command {
	return &cli.Command{
		Name:      "download",
		Usage:     "Download a produced output",
		ArgsUsage: "<flow-id> <output-name> <dir>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args()
			if args.Len() != 3 {
				return fmt.Errorf("expected <flow-id> <output-name> <dir>")
			}
			flowID, err := parseFlowID(args.Get(0))
			if err != nil {
				return err
			}
			path, err := clientFrom(cmd).Download(ctx, flowID, args.Get(1), args.Get(2))
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}
}

func subscribeCmd() *cli.Command {
	return &cli.Command{
		Name:  "subscribe",
		Usage: "Stream scheduler events until interrupted",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return clientFrom(cmd).Subscribe(ctx, func(ev events.FlowEvent) {
				enc, _ := json.Marshal(ev)
				fmt.Println(string(enc))
			})
		},
	}
}

func describeCmd() *cli.Command {
	return &cli.Command{
		Name:      "describe",
		Usage:     "Describe a flow",
		ArgsUsage: "<id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.Args().First()
			if id == "" {
				return fmt.Errorf("id argument is required")
			}
			flowID, err := parseFlowID(id)
			if err != nil {
				return err
			}
			flow, err := clientFrom(cmd).Describe(ctx, flowID)
			if err != nil {
				return err
			}
			enc, err := json.MarshalIndent(flow, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(enc))
			return nil
		},
	}
}

func secretCmd() *cli.Command {
	return &cli.Command{
		Name:      "secret",
		Usage:     "Manage secrets",
		ArgsUsage: "{create|update|delete} <key> [<value>]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args()
			if args.Len() < 2 {
				return fmt.Errorf("expected {create|update|delete} <key> [<value>]")
			}
			op, key := args.Get(0), args.Get(1)
			c := clientFrom(cmd)
			switch op {
			case "create":
				return c.CreateSecret(ctx, key, args.Get(2))
			case "update":
				return c.UpdateSecret(ctx, key, args.Get(2))
			case "delete":
				return c.DeleteSecret(ctx, key)
			default:
				return fmt.Errorf("unknown secret operation %q", op)
			}
		},
	}
}

func parseFlowID(raw string) (uint64, error) {
	var id uint64
	_, err := fmt.Sscanf(raw, "%d", &id)
	if err != nil {
		return 0, fmt.Errorf("invalid flow id %q: %w", raw, err)
	}
	return id, nil
}
