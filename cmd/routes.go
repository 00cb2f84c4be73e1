package cmd

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/coreapi/internal/core"
	"github.com/JakeFAU/coreapi/internal/routing"
)

// errNoRoute makes `routes METHOD PATH` exit non-zero when nothing matches.
var errNoRoute = errors.New("no route matches")

func newRoutesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes [METHOD PATH]",
		Short: "Print the routing table or resolve a request against it",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("expected no arguments or METHOD PATH, got %d arguments", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := routing.NewTable(core.Rules())
			if err != nil {
				return fmt.Errorf("build routing table: %w", err)
			}
			if len(args) == 0 {
				return printRules(cmd.OutOrStdout(), table.Rules())
			}
			return printMatch(cmd.OutOrStdout(), table, args[0], args[1])
		},
	}
}

func printRules(w io.Writer, rules []routing.Rule) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRIORITY\tMETHODS\tPATTERN\tTARGET")
	for i, r := range rules {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i, strings.Join(r.Methods, ","), r.Pattern, r.Target)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write rules: %w", err)
	}
	return nil
}

func printMatch(w io.Writer, table *routing.Table, method, path string) error {
	m, ok := table.Resolve(method, path)
	if !ok {
		return fmt.Errorf("%w %s %s", errNoRoute, strings.ToUpper(method), path)
	}
	fmt.Fprintf(w, "target: %s\n", m.Target)
	names := make([]string, 0, len(m.Params))
	for k := range m.Params {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fmt.Fprintf(w, "param %s=%q\n", k, m.Params[k])
	}
	return nil
}
