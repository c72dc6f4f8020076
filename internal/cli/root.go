package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"boletim/internal/client"
	"boletim/internal/core"
	"boletim/internal/export/xlsx"
	applog "boletim/internal/log"
	"boletim/internal/session"
	"boletim/internal/table"
)

// API is the Data Provider as the CLI uses it.
type API interface {
	session.Provider
	Footer(ctx context.Context, date core.Date) (table.Footer, error)
	ExportXLSX(ctx context.Context, date core.Date, w io.Writer) (int64, error)
}

// APIFactory builds an API client for a server URL.
type APIFactory func(server string) (API, error)

// HTTPAPI is the APIFactory used by the real binary.
func HTTPAPI(server string) (API, error) {
	return client.New(server)
}

type rootOptions struct {
	server  string
	date    string
	timeout time.Duration
	debug   bool
	output  string

	newAPI APIFactory
	api    API
	day    core.Date
	logger *applog.Logger
}

// NewRootCmd wires every subcommand against APIs built by newAPI.
func NewRootCmd(newAPI APIFactory) *cobra.Command {
	opts := &rootOptions{newAPI: newAPI}

	root := &cobra.Command{
		Use:           "boletim-cli",
		Short:         "Edit the daily attendance table",
		Long:          `Show, edit and export the daily "Boletim Saúde" attendance table of a boletim server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&opts.server, "server", defaultServer(), "boletim server URL (env "+envServer+")")
	root.PersistentFlags().StringVar(&opts.date, "date", "", "date as dd/MM/yyyy (default today)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "timeout for each request")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", tableOutputFormat, "output format: table or json")

	root.AddCommand(newShowCmd(opts), newSetCmd(opts), newFooterCmd(opts), newExportCmd(opts))
	return root
}

// Execute runs the CLI against the HTTP provider.
func Execute() {
	LoadEnvFile()
	if err := fang.Execute(context.Background(), NewRootCmd(HTTPAPI)); err != nil {
		os.Exit(1)
	}
}

func (o *rootOptions) init(cmd *cobra.Command) error {
	o.logger = setupLogger(cmd.ErrOrStderr(), o.debug)

	if !slices.Contains([]string{tableOutputFormat, jsonOutputFormat}, o.output) {
		return fmt.Errorf("invalid output format: %s (must be table or json)", o.output)
	}

	o.day = core.Today()
	if o.date != "" {
		d, err := core.ParseDate(o.date)
		if err != nil {
			return err
		}
		o.day = d
	}

	api, err := o.newAPI(o.server)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	o.api = api
	return nil
}

// load opens a session on the selected date.
func (o *rootOptions) load(ctx context.Context) (*session.Session, error) {
	s := session.New(o.api, o.logger)
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	return s, s.Load(ctx, o.day)
}

func (o *rootOptions) print(w io.Writer, v session.View) error {
	if o.output == jsonOutputFormat {
		return outputJSON(w, v)
	}
	return renderView(w, v)
}

func newShowCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the table and footer of a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := o.load(cmd.Context())
			if err != nil && !session.IsLoadFailure(err) {
				return err
			}
			if perr := o.print(cmd.OutOrStdout(), s.View()); perr != nil {
				return perr
			}
			return err
		},
	}
}

func newSetCmd(o *rootOptions) *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "set ROW=VALUE...",
		Short: "Edit attendance of rows by index or item key",
		Long: `Set today's attendance of rows, addressed by row index (as shown by "show")
or by item key. An empty or non-numeric value clears the row.
The footer is recomputed from the edits; pass --save to submit them.`,
		Example: "  boletim-cli set --date 18/10/2026 0=4 3= cardio=12 --save",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := o.load(cmd.Context())
			if err != nil {
				if session.IsLoadFailure(err) {
					_ = o.print(cmd.OutOrStdout(), s.View())
				}
				return err
			}

			for _, arg := range args {
				if err := applyEdit(s, arg); err != nil {
					return err
				}
			}

			var saveErr error
			if save {
				ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
				defer cancel()
				saveErr = s.Save(ctx)
			}
			if err := o.print(cmd.OutOrStdout(), s.View()); err != nil {
				return err
			}
			switch {
			case saveErr != nil:
				fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render("Edits not saved: "+saveErr.Error()))
				return saveErr
			case save:
				fmt.Fprintln(cmd.ErrOrStderr(), "Saved.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "submit the edits")
	return cmd
}

// applyEdit applies "ROW=VALUE" where ROW is an index or an item key.
func applyEdit(s *session.Session, arg string) error {
	target, raw, ok := strings.Cut(arg, "=")
	if !ok {
		return fmt.Errorf("invalid edit %q: want ROW=VALUE", arg)
	}
	if idx, err := strconv.Atoi(target); err == nil {
		return s.SetRow(idx, raw)
	}
	for i, r := range s.View().Rows {
		if r.Key != "" && r.Key == target {
			return s.SetRow(i, raw)
		}
	}
	return fmt.Errorf("no row with key %q", target)
}

func newFooterCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "footer",
		Short: "Show the footer of the saved figures of a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
			defer cancel()
			footer, err := o.api.Footer(ctx, o.day)
			if err != nil {
				return fmt.Errorf("%s %s: %w", loadFailureMessage, o.day, err)
			}
			if o.output == jsonOutputFormat {
				return outputFooterJSON(cmd.OutOrStdout(), o.day, footer)
			}
			renderFooter(cmd.OutOrStdout(), o.day, footer)
			return nil
		},
	}
}

func newExportCmd(o *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download the xlsx export of a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" {
				file = xlsx.FileName(o.day)
			}
			f, err := os.Create(file)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
			defer cancel()
			n, err := o.api.ExportXLSX(ctx, o.day, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(file)
				return errors.Join(errors.New("export failed"), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", file, n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "output file (default boletim-yyyy-mm-dd.xlsx)")
	return cmd
}
