package main

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/alexisbeaulieu97/construct/internal/buildcontext"
	"github.com/alexisbeaulieu97/construct/internal/config"
	"github.com/alexisbeaulieu97/construct/internal/mechanism"
	"github.com/alexisbeaulieu97/construct/pkg/diff"
	constructerrors "github.com/alexisbeaulieu97/construct/pkg/errors"
)

type mechanismOptions struct {
	Diff bool
}

// mechanismView is the printed form of a selected mechanism.
type mechanismView struct {
	Domain    string               `yaml:"domain"`
	Inherits  []string             `yaml:"inherits,omitempty"`
	Variants  map[string]string    `yaml:"variants"`
	Mechanism mechanism.Descriptor `yaml:"mechanism"`
}

func newMechanismCmd() *cobra.Command {
	opts := mechanismOptions{}

	cmd := &cobra.Command{
		Use:   "mechanism [domain]",
		Short: "Print the fully inherited mechanism of a domain",
		Long: `Print the mechanism selected for a domain after inheritance, with the
variants it contributes. Without a domain, list the domains of the context.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bctx, err := openContext(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, domain := range bctx.Domains() {
					fmt.Fprintln(out, domain)
				}
				return nil
			}

			domain := args[0]
			doc, path, err := renderMechanism(bctx, domain)
			if err != nil {
				return err
			}
			if !opts.Diff {
				_, err := out.Write(doc)
				return err
			}

			if len(path) < 2 {
				fmt.Fprintf(out, "%s does not inherit a mechanism\n", domain)
				return nil
			}
			base, _, err := renderMechanism(bctx, path[1])
			if err != nil {
				return err
			}
			fmt.Fprint(out, diff.Unified(base, doc, path[1], domain))
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.Diff, "diff", false, "Show the changes against the inherited mechanism")

	return cmd
}

// openContext loads the build context without resolving the project when
// --context names it.
func openContext(cmd *cobra.Command) (*buildcontext.Context, error) {
	s, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}

	fs := afero.NewOsFs()
	var (
		m    *config.Manifest
		root string
	)
	if s.Context == "" {
		m, root, err = openManifest(fs, s)
		if err != nil {
			return nil, err
		}
	}
	dir, err := contextDir(s, m, root)
	if err != nil {
		return nil, err
	}
	return loadContext(cmd.Context(), fs, s, dir)
}

// renderMechanism encodes the selection of domain as YAML. The inheritance
// path of the mechanism is returned alongside.
func renderMechanism(bctx *buildcontext.Context, domain string) ([]byte, []string, error) {
	sel, ok := bctx.Select(domain)
	if !ok {
		return nil, nil, constructerrors.NewValidationError("domain", fmt.Sprintf("no mechanism for domain %q (known: %s)", domain, strings.Join(bctx.Domains(), ", ")), nil)
	}

	view := mechanismView{
		Domain:    domain,
		Variants:  sel.Variants,
		Mechanism: sel.Mechanism.Descriptor,
	}
	if len(sel.Mechanism.Path) > 1 {
		view.Inherits = sel.Mechanism.Path[1:]
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(view); err != nil {
		return nil, nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), sel.Mechanism.Path, nil
}
