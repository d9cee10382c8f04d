package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/voyager/core/protocol"
	"github.com/tailored-agentic-units/voyager/tools"
)

func newToolCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tool",
		Short: "List and call the memory tools exposed to agents",
	}
	cmd.AddCommand(newToolListCmd(), newToolCallCmd(a))
	return cmd
}

func newToolListCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the memory tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defs := tools.MemoryTools()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), defs)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, t := range defs {
				fmt.Fprintf(tw, "%s\t%s\n", t.Name, t.Description)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the tool definitions as JSON")
	return cmd
}

func newToolCallCmd(a *app) *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "call <name> [json-args]",
		Short: "Call a memory tool",
		Long: `Call a memory tool with JSON arguments. With --stdin the whole tool call
is read from standard input, in either the flat {"name", "arguments"} form
or the nested provider form {"function": {"name", "arguments"}}.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if fromStdin {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.RangeArgs(1, 2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			call, err := readCall(cmd.InOrStdin(), args, fromStdin)
			if err != nil {
				return err
			}

			return a.withSpace(cmd, func(s *space) error {
				reg := tools.NewRegistry()
				if err := tools.RegisterMemoryTools(reg, s); err != nil {
					return err
				}

				res, err := reg.Dispatch(cmd.Context(), call)
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), res.Content)
				if res.IsError {
					return errReported
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "Read the tool call from standard input")
	return cmd
}

func readCall(r io.Reader, args []string, fromStdin bool) (protocol.ToolCall, error) {
	if fromStdin {
		var call protocol.ToolCall
		if err := json.NewDecoder(r).Decode(&call); err != nil {
			return call, fmt.Errorf("failed to decode tool call: %w", err)
		}
		return call, nil
	}

	call := protocol.ToolCall{Name: args[0], Arguments: "{}"}
	if len(args) == 2 {
		call.Arguments = args[1]
	}
	if !json.Valid([]byte(call.Arguments)) {
		return call, fmt.Errorf("%w: arguments are not valid JSON", tools.ErrInvalidArguments)
	}
	return call, nil
}
