package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/choudarykvsp/ferry/internal/authors"
)

var authorsCmd = &cobra.Command{
	Use:   "authors",
	Short: "Parse and check credits (AUTHORS) files",
}

var authorsCheckCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Validate a credits file",
	Long: `Check a plain-text credits file: it must be non-empty, and within
each section a name may appear at most once.

Example:
  ferry authors check AUTHORS.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runAuthorsCheck,
}

var authorsListCmd = &cobra.Command{
	Use:   "list <file>",
	Short: "List the sections and entries of a credits file",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthorsList,
}

func init() {
	authorsCmd.AddCommand(authorsCheckCmd)
	authorsCmd.AddCommand(authorsListCmd)
	rootCmd.AddCommand(authorsCmd)
}

func runAuthorsCheck(cmd *cobra.Command, args []string) error {
	doc, err := authors.ParseFile(args[0])
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	report := authors.Check(doc)

	if humanOutput {
		if report.Valid {
			outputHuman("%s: ok (%d sections, %d entries)\n", args[0], report.Sections, report.Entries)
		} else {
			for _, p := range report.Problems {
				if p.Line > 0 {
					outputHuman("%s:%d: [%s] %s\n", args[0], p.Line, p.Section, p.Message)
				} else {
					outputHuman("%s: %s\n", args[0], p.Message)
				}
			}
		}
	} else {
		if err := outputJSON(report); err != nil {
			exitWithError(ExitError, "encoding JSON: %v", err)
		}
	}

	if !report.Valid {
		os.Exit(ExitDataError)
	}
	return nil
}

func runAuthorsList(cmd *cobra.Command, args []string) error {
	doc, err := authors.ParseFile(args[0])
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		for _, sec := range doc.Sections {
			title := sec.Title
			if title == "" {
				title = "(preamble)"
			}
			outputHuman("%s\n", title)
			for _, e := range sec.Entries {
				if e.Annotation != "" {
					outputHuman("  %s (%s)\n", e.Name, e.Annotation)
				} else {
					outputHuman("  %s\n", e.Name)
				}
			}
		}
		return nil
	}
	return outputJSON(doc)
}
