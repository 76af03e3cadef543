package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"specview/internal/app"
	"specview/internal/dataprocessing"
	"specview/internal/exporter"
	"specview/internal/services"
	api "specview/pkg/contracts/api/v1"
	"specview/pkg/contracts/domain"
)

// selectionFlags carries the column patterns and formula shared by eval,
// spectrum and export. Empty values fall back to the configuration.
type selectionFlags struct {
	signal  string
	bg1     string
	bg2     string
	energy  string
	i0      string
	formula string
}

func (f *selectionFlags) register(cmd *cobra.Command, withFormula bool) {
	cmd.Flags().StringVar(&f.signal, "signal", "", "signal column pattern")
	cmd.Flags().StringVar(&f.bg1, "bg1", "", "first background column pattern")
	cmd.Flags().StringVar(&f.bg2, "bg2", "", "second background column pattern")
	cmd.Flags().StringVar(&f.energy, "energy", "", "energy column pattern")
	cmd.Flags().StringVar(&f.i0, "i0", "", "I0 column pattern")
	if withFormula {
		cmd.Flags().StringVar(&f.formula, "formula", "", "formula over S, BG1, BG2 and I0")
	}
}

func (f *selectionFlags) set() domain.SelectionSet {
	return domain.SelectionSet{
		Signal: f.signal,
		BG1:    f.bg1,
		BG2:    f.bg2,
		Energy: f.energy,
		I0:     f.i0,
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newScansCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scans <file>",
		Short: "List the scans of a scan log",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.scanService()
			if err != nil {
				return err
			}
			path, err := absPath(args[0])
			if err != nil {
				return err
			}

			c, err := svc.Catalog(cmd.Context(), path)
			if err != nil {
				return validationAsUsage(err)
			}

			summaries := c.Scans.Summaries()
			if opts.jsonOutput {
				return writeJSON(opts.stdout, summaries)
			}

			tw := tabwriter.NewWriter(opts.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCOMMAND\tROWS\tCOLUMNS")
			for _, s := range summaries {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", s.ID, s.Command, s.RowCount, s.ColumnCount)
			}
			return tw.Flush()
		},
	}
}

func newShowCmd(opts *globalOptions) *cobra.Command {
	var maxRows int

	cmd := &cobra.Command{
		Use:   "show <file> <scan-id>",
		Short: "Print one scan: metadata, motors, columns and rows",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.scanService()
			if err != nil {
				return err
			}
			path, err := absPath(args[0])
			if err != nil {
				return err
			}

			scan, err := svc.Scan(cmd.Context(), path, args[1])
			if err != nil {
				return validationAsUsage(err)
			}

			if opts.jsonOutput {
				return writeJSON(opts.stdout, api.ScanResponse{Scan: scan, Motors: scan.Motors()})
			}

			w := opts.stdout
			fmt.Fprintf(w, "Scan:     %s\n", scan.ID)
			fmt.Fprintf(w, "Command:  %s\n", scan.Command)
			if scan.Date != nil {
				fmt.Fprintf(w, "Date:     %s\n", *scan.Date)
			}
			if scan.ExposureTime != nil {
				fmt.Fprintf(w, "Exposure: %s\n", *scan.ExposureTime)
			}

			if motors := scan.Motors(); len(motors) > 0 {
				fmt.Fprintln(w, "Motors:")
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				for _, m := range motors {
					fmt.Fprintf(tw, "  %s\t%s\n", m.Name, m.Position)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}

			fmt.Fprintf(w, "Columns:  %s\n", strings.Join(scan.ColumnNames, " "))
			fmt.Fprintf(w, "Rows:     %d\n", scan.RowCount())
			for i, row := range scan.Rows {
				if maxRows > 0 && i >= maxRows {
					fmt.Fprintf(w, "... %d more\n", len(scan.Rows)-maxRows)
					break
				}
				fmt.Fprintln(w, strings.Join(row, " "))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxRows, "max-rows", 0, "print at most this many rows (0 prints all)")
	return cmd
}

func newSelectCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "select <file> <scan-id> <pattern>",
		Short: "Resolve a column selection pattern",
		Long: `Resolve a selection pattern against the columns of one scan.

A pattern is a comma separated list of column names (I0), name ranges
(pl0-pl10) and globs (pl*). Whitespace is ignored.`,
		Args: exactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.scanService()
			if err != nil {
				return err
			}
			path, err := absPath(args[0])
			if err != nil {
				return err
			}

			res, err := svc.Select(cmd.Context(), path, args[1], args[2])
			if err != nil {
				return validationAsUsage(err)
			}
			if res.Advisory != nil {
				fmt.Fprintf(opts.stderr, "warning: %s\n", res.Advisory.Message)
			}

			if opts.jsonOutput {
				resp := api.SelectResponse{
					ScanID:  res.ScanID,
					Pattern: res.Pattern,
					Indices: res.Indices,
					Names:   res.Names,
				}
				if res.Advisory != nil {
					resp.Advisory = res.Advisory.Message
				}
				return writeJSON(opts.stdout, resp)
			}
			idx := make([]string, len(res.Indices))
			for i, v := range res.Indices {
				idx[i] = fmt.Sprint(v)
			}
			fmt.Fprintf(opts.stdout, "indices: %s\n", strings.Join(idx, " "))
			fmt.Fprintf(opts.stdout, "names:   %s\n", strings.Join(res.Names, " "))
			return nil
		},
	}
}

func newEvalCmd(opts *globalOptions) *cobra.Command {
	var (
		sel  selectionFlags
		rows []int
	)

	cmd := &cobra.Command{
		Use:   "eval <file> <scan-id>",
		Short: "Evaluate the formula table of a scan and print it as CSV",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.scanService()
			if err != nil {
				return err
			}
			path, err := absPath(args[0])
			if err != nil {
				return err
			}

			table, advisories, err := svc.Evaluate(cmd.Context(), path, args[1], dataprocessing.DeriveOptions{
				Selection: sel.set(),
				Formula:   sel.formula,
				Rows:      rows,
			})
			if err != nil {
				return validationAsUsage(err)
			}
			for _, a := range advisories {
				fmt.Fprintf(opts.stderr, "warning: %s\n", a.Message)
			}

			if opts.jsonOutput {
				return writeJSON(opts.stdout, table)
			}
			return exporter.WriteTable(opts.stdout, table.Columns, table.Rows, false)
		},
	}
	sel.register(cmd, true)
	cmd.Flags().IntSliceVar(&rows, "rows", nil, "0-based rows to evaluate (default all)")
	return cmd
}

func newSpectrumCmd(opts *globalOptions) *cobra.Command {
	var (
		sel       selectionFlags
		kind      string
		sum       bool
		base      string
		normBase  float64
		normValue float64
		outDir    string
	)

	cmd := &cobra.Command{
		Use:   "spectrum <file> <scan-id>",
		Short: "Write XES or HERFD plot data files",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			k := domain.SpectrumKind(strings.ToUpper(kind))
			switch k {
			case domain.SpectrumXES, domain.SpectrumHERFD, domain.SpectrumRXES:
			default:
				return usagef("unknown spectrum kind %q (want XES, HERFD or RXES)", kind)
			}
			if normValue == 0 {
				return usagef("--norm-value must not be zero")
			}

			if outDir != "" {
				dir, err := absPath(outDir)
				if err != nil {
					return err
				}
				opts.cfg.Paths.ExportDir = dir
			}
			svc, err := opts.scanService()
			if err != nil {
				return err
			}
			path, err := absPath(args[0])
			if err != nil {
				return err
			}

			req := dataprocessing.SpectrumRequest{
				Kind:          k,
				Selection:     sel.set(),
				Sum:           sum,
				Normalization: domain.Normalization{Base: normBase, Value: normValue},
			}

			if opts.jsonOutput {
				spectrum, err := svc.Spectrum(cmd.Context(), path, args[1], req)
				if err != nil {
					return validationAsUsage(err)
				}
				return writeJSON(opts.stdout, spectrum)
			}

			written, err := svc.ExportSpectrum(cmd.Context(), path, args[1], base, req)
			if err != nil {
				return validationAsUsage(err)
			}
			for _, f := range written {
				fmt.Fprintln(opts.stdout, f)
			}
			return nil
		},
	}
	sel.register(cmd, false)
	cmd.Flags().StringVar(&kind, "kind", string(domain.SpectrumXES), "spectrum kind: XES, HERFD or RXES (RXES needs --json)")
	cmd.Flags().BoolVar(&sum, "sum", false, "collapse the ROI lines into one")
	cmd.Flags().StringVar(&base, "base", "", "output file base name (default <file>_scan<id>)")
	cmd.Flags().Float64Var(&normBase, "norm-base", 0, "normalization base")
	cmd.Flags().Float64Var(&normValue, "norm-value", 1, "normalization value")
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (default: configured export dir)")
	return cmd
}

func newExportCmd(opts *globalOptions) *cobra.Command {
	var (
		sel     selectionFlags
		format  string
		out     string
		scanIDs []string
		derived bool
		bom     bool
	)

	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Export scans as CSV files or an XLSX workbook",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := exporter.ParseFormat(format)
			if err != nil {
				return usageError{err: err}
			}

			svc, err := opts.scanService()
			if err != nil {
				return err
			}
			path, err := absPath(args[0])
			if err != nil {
				return err
			}
			target := ""
			if out != "" {
				if target, err = absPath(out); err != nil {
					return err
				}
			}

			written, err := svc.Export(cmd.Context(), path, services.ExportOptions{
				Format:    f,
				Target:    target,
				ScanIDs:   scanIDs,
				Derived:   derived,
				Selection: sel.set(),
				Formula:   sel.formula,
				BOM:       bom,
			})
			if err != nil {
				return validationAsUsage(err)
			}
			for _, w := range written {
				fmt.Fprintln(opts.stdout, w)
			}
			return nil
		},
	}
	sel.register(cmd, true)
	cmd.Flags().StringVar(&format, "format", string(exporter.FormatCSV), "output format: csv or xlsx")
	cmd.Flags().StringVar(&out, "out", "", "output path (default: <file stem> in the export dir)")
	cmd.Flags().StringSliceVar(&scanIDs, "scan", nil, "scan ids to export (default all)")
	cmd.Flags().BoolVar(&derived, "derived", false, "export the formula table instead of raw columns")
	cmd.Flags().BoolVar(&bom, "bom", false, "prefix CSV files with a UTF-8 byte order mark")
	return cmd
}

func newFilesCmd(opts *globalOptions) *cobra.Command {
	var pattern string

	cmd := &cobra.Command{
		Use:   "files <dir>",
		Short: "List candidate scan-log files in a directory",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.scanService()
			if err != nil {
				return err
			}
			dir, err := absPath(args[0])
			if err != nil {
				return err
			}

			found, err := svc.ListFiles(cmd.Context(), dir, pattern)
			if err != nil {
				return validationAsUsage(err)
			}

			if opts.jsonOutput {
				return writeJSON(opts.stdout, found)
			}
			tw := tabwriter.NewWriter(opts.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSIZE\tMODIFIED\tSCAN LOG")
			for _, f := range found {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%t\n", f.Name, f.Size, f.ModTime.Format("2006-01-02 15:04:05"), f.ScanLog)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", "", "glob applied to file names (default from config)")
	return cmd
}

func newServeCmd(opts *globalOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve [file...]",
		Short: "Serve the HTTP API and the websocket event stream",
		Long: `Serve the HTTP API. Scan logs given as arguments are parsed before the
server starts accepting requests.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				if err := applyAddr(opts, addr); err != nil {
					return err
				}
			}

			application, err := app.NewApplicationWithConfig(opts.cfg, opts.logger)
			if err != nil {
				return err
			}

			preload := make([]string, 0, len(args))
			for _, a := range args {
				p, err := absPath(a)
				if err != nil {
					return err
				}
				preload = append(preload, p)
			}
			application.Preload(cmd.Context(), preload)

			return application.Run()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address host:port (overrides config)")
	return cmd
}

// applyAddr overrides the configured host and port from host:port
func applyAddr(opts *globalOptions, addr string) error {
	host, port, ok := strings.Cut(addr, ":")
	if !ok {
		return usagef("--addr must be host:port, got %q", addr)
	}
	var p int
	if _, err := fmt.Sscanf(port, "%d", &p); err != nil || p < 0 || p > 65535 {
		return usagef("--addr has an invalid port %q", port)
	}
	opts.cfg.Server.Host = host
	opts.cfg.Server.Port = p
	return nil
}
