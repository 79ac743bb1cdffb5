package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newSportsCommand(root *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sports",
		Short: "List the sports in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := loadTranslator(root.catalogDir)
			if err != nil {
				return err
			}

			sports := tr.Sports()
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return errors.Wrap(enc.Encode(map[string]interface{}{
					"catalog_version": tr.Version(),
					"sports":          sports,
				}), "failed to write sports")
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tNAME\tTEAM SIZE\tSKILLS")
			for _, s := range sports {
				size := s.TeamSize
				if size == "" {
					size = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", s.Key, s.Name, size, len(s.Skills))
			}
			fmt.Fprintf(w, "\ncatalog version %s\n", tr.Version())
			return errors.Wrap(w.Flush(), "failed to write sports")
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the catalog as JSON")

	return cmd
}
