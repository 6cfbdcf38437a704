package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pricofy/translation-gateway/internal/handler"
)

func newTextCmd(c *cli) *cobra.Command {
	var (
		from     string
		to       string
		backend  string
		back     bool
		asJSON   bool
		perLines bool
	)

	cmd := &cobra.Command{
		Use:   "text [text...]",
		Short: "Translate text",
		Long: `Translate the arguments, or stdin when there are none.

Without --to the target is taken from the saved preferences and the
recently used language pairs.

Examples:
  translate text --to de "Good morning"
  echo "Bonjour" | translate text --backend yandex
  translate text --from es --to fr --back "Hola, ¿qué tal?"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := c.load(cmd)
			if err != nil {
				return err
			}

			texts, err := inputTexts(cmd.InOrStdin(), args, perLines)
			if err != nil {
				return err
			}

			resp, err := e.Handler.Handle(cmd.Context(), handler.Request{
				Texts:           texts,
				SourceLang:      from,
				TargetLang:      to,
				Backend:         backend,
				BackTranslation: back,
			})
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(resp); err != nil {
					return err
				}
			} else {
				printDetails(cmd.OutOrStdout(), resp.Details)
			}
			if resp.Error != "" {
				return errors.New(resp.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&from, "from", "f", "", "Source language (default: detect)")
	cmd.Flags().StringVarP(&to, "to", "t", "", "Target language (default: from preferences)")
	cmd.Flags().StringVarP(&backend, "backend", "b", "", "Translation service (see 'translate backends')")
	cmd.Flags().BoolVar(&back, "back", false, "Also translate the result back into the source language")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full response as JSON")
	cmd.Flags().BoolVar(&perLines, "lines", false, "Translate every input line separately")
	return cmd
}

// inputTexts returns the texts to translate: the joined arguments or stdin.
func inputTexts(stdin io.Reader, args []string, perLine bool) ([]string, error) {
	text := strings.Join(args, " ")
	if len(args) == 0 {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		text = strings.TrimRight(string(data), "\n")
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("nothing to translate")
	}
	if perLine {
		return strings.Split(text, "\n"), nil
	}
	return []string{text}, nil
}

func printDetails(w io.Writer, details []handler.Detail) {
	for _, d := range details {
		if d.Error != "" {
			fmt.Fprintf(w, "error: %s\n", d.Error)
			continue
		}
		fmt.Fprintln(w, d.Text)
		if d.BackTranslation != "" {
			fmt.Fprintf(w, "  back: %s\n", d.BackTranslation)
		}
	}
}

func newBackendsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the supported translation services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := c.load(cmd)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCHUNK\tCREDENTIAL\tDEFAULT")
			for _, id := range e.Registry.IDs() {
				desc, err := e.Registry.Lookup(id)
				if err != nil {
					return err
				}
				credential := "-"
				if desc.Credential != nil {
					credential = "yes"
				}
				def := ""
				if id == e.Settings.DefaultBackend {
					def = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", desc.ID, desc.Name, desc.MaxChunk, credential, def)
			}
			return tw.Flush()
		},
	}
}

func newCredentialsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage service credentials",
	}

	refresh := &cobra.Command{
		Use:   "refresh <backend>",
		Short: "Mint a fresh credential for a service and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := c.load(cmd)
			if err != nil {
				return err
			}

			id := args[0]
			desc, err := e.Registry.Lookup(id)
			if err != nil {
				return err
			}
			if desc.Credential == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s needs no credential\n", id)
				return nil
			}

			cred, err := e.Credentials.GetOrRefresh(cmd.Context(), id, true)
			if err != nil {
				return fmt.Errorf("refresh %s: %w", id, err)
			}
			for _, f := range desc.Credential.Fields {
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", f.Name, cred.Field(f.Name))
			}
			return nil
		},
	}

	cmd.AddCommand(refresh)
	return cmd
}
