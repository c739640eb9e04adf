package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/alexisbeaulieu97/construct/internal/graph"
)

type planOptions struct {
	YAML bool
}

func newPlanCmd() *cobra.Command {
	opts := planOptions{}

	cmd := &cobra.Command{
		Use:   "plan [factor...]",
		Short: "Print the batches a build would emit, without running anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			roots, err := sess.roots(args)
			if err != nil {
				return err
			}

			plan, err := graph.GeneratePlan(roots, sess.project.Descend)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.YAML {
				enc := yaml.NewEncoder(out)
				if err := enc.Encode(plan.Levels); err != nil {
					return err
				}
				return enc.Close()
			}

			fmt.Fprint(out, plan.String())
			if missing := sess.unmechanized(plan); len(missing) > 0 {
				fmt.Fprintf(out, "No mechanism for domains: %v\n", missing)
			}
			fmt.Fprintf(out, "%d factors in %d batches\n", plan.Len(), len(plan.Levels))
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.YAML, "yaml", false, "Print the batches as YAML")

	return cmd
}

// unmechanized lists the domains of planned factors that the context has no
// mechanism for.
func (s *session) unmechanized(plan *graph.Plan) []string {
	seen := make(map[string]struct{})
	for _, level := range plan.Levels {
		for _, id := range level {
			node, ok := s.project.Node(id)
			if !ok {
				continue
			}
			domain := node.Pair().Domain
			if _, ok := s.context.Select(domain); !ok {
				seen[domain] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for domain := range seen {
		out = append(out, domain)
	}
	sort.Strings(out)
	return out
}
