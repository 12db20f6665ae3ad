package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/benchlink-core/internal/device"
	"github.com/nerrad567/benchlink-core/internal/valve"
)

func newResolveCmd() *cobra.Command {
	var (
		connect    []string
		disconnect []string
		ambiguous  bool
	)
	cmd := &cobra.Command{
		Use:   "resolve <model>",
		Short: "Resolve a connection request to a rotor position",
		Long: "Resolve a connection request against a model's geometry without moving anything.\n" +
			"Pairs use the same a,b spelling as the HTTP API.",
		Example: "  benchctl resolve injection-6port --connect 1,2\n" +
			"  benchctl resolve hamilton-t3 --connect 1,2 --disconnect 2,3",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := loadCatalog(cmd)
			if err != nil {
				return err
			}
			entry, err := catalog.Get(args[0])
			if err != nil {
				return err
			}

			req := valve.Request{AmbiguousSwitching: ambiguous}
			if req.Connect, err = parsePairFlags("connect", connect); err != nil {
				return err
			}
			if req.Disconnect, err = parsePairFlags("disconnect", disconnect); err != nil {
				return err
			}

			pos, err := entry.Geometry.Resolve(req)
			if err != nil {
				return describeResolveError(err, entry.Labels)
			}

			label, err := entry.Labels.Label(pos)
			if err != nil {
				return err
			}
			groups, err := entry.Geometry.ConnectionsAt(pos)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (position %d): %s\n", label, pos, joinGroups(groups))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&connect, "connect", nil, "port pair a,b that must be joined (repeatable)")
	cmd.Flags().StringArrayVar(&disconnect, "disconnect", nil, "port pair a,b that must not be joined (repeatable)")
	cmd.Flags().BoolVar(&ambiguous, "ambiguous-switching", false, "take the first candidate when several positions satisfy the request")
	return cmd
}

func parsePairFlags(flag string, values []string) ([]valve.Pair, error) {
	pairs := make([]valve.Pair, 0, len(values))
	for _, v := range values {
		p, err := valve.ParsePair(v)
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", flag, err)
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

// describeResolveError prefixes err with the code the HTTP API would report
// and spells ambiguous candidates as labels.
func describeResolveError(err error, labels *valve.Labeler) error {
	code := device.ErrorCode(err)

	var amb *valve.AmbiguousConnectionError
	if errors.As(err, &amb) {
		names := make([]string, len(amb.Candidates))
		for i, c := range amb.Candidates {
			names[i] = fmt.Sprint(c)
			if l, lerr := labels.Label(c); lerr == nil {
				names[i] = l
			}
		}
		return fmt.Errorf("%s: candidates %s: %w", code, strings.Join(names, ", "), err)
	}
	return fmt.Errorf("%s: %w", code, err)
}
