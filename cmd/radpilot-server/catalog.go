package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/radpilot/radpilot/internal/domain/questionnaire"
	"github.com/radpilot/radpilot/internal/domain/reportgen"
)

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the question catalogs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check every catalog and the questions the report generator reads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateCatalogs(cmd.OutOrStdout())
		},
	})

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print a modality's catalog as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			modality, _ := cmd.Flags().GetString("modality")
			m, err := questionnaire.ParseModality(modality)
			if err != nil {
				return err
			}
			c, err := questionnaire.Lookup(m)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(c)
		},
	}
	showCmd.Flags().String("modality", "", "us-abdomen, ct-abdomen or chest-xray")
	_ = showCmd.MarkFlagRequired("modality")
	cmd.AddCommand(showCmd)

	return cmd
}

func validateCatalogs(out io.Writer) error {
	var errs []error
	for _, m := range questionnaire.Modalities() {
		c, err := questionnaire.Lookup(m)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := questionnaire.Validate(c); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m, err))
			continue
		}
		for _, id := range reportgen.ReferencedQuestions(m) {
			if _, ok := c.Question(id); !ok {
				errs = append(errs, fmt.Errorf("%s: report generator reads unknown question %s", m, id))
			}
		}
		fmt.Fprintf(out, "%-12s %3d questions  ok\n", m, len(c.Questions))
	}
	return errors.Join(errs...)
}
