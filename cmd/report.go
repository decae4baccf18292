package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/sarchlab/ftlsim/datarecording"
	"github.com/sarchlab/ftlsim/simulation"
	"github.com/sarchlab/ftlsim/tracing"
)

func newReportCmd() *cobra.Command {
	var slowest int

	reportCmd := &cobra.Command{
		Use:   "report <file.sqlite3>",
		Short: "Print the summary of a recorded run.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printReport(cmd.Context(), cmd.OutOrStdout(), args[0], slowest)
		},
	}

	reportCmd.Flags().IntVar(&slowest, "slowest", 0,
		"also list the given number of slowest requests")

	return reportCmd
}

func printReport(
	ctx context.Context,
	w io.Writer,
	path string,
	slowest int,
) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}

	reader, err := datarecording.NewReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	reader.MapTable(datarecording.ExecTableName, datarecording.ExecInfo{})
	reader.MapTable(simulation.SummaryTable, simulation.Summary{})
	reader.MapTable(tracing.TraceTableName, tracing.TraceEntry{})

	execRows, _, err := reader.Query(ctx, datarecording.ExecTableName,
		datarecording.QueryParams{})
	if err != nil {
		return fmt.Errorf("reading %s: %w", datarecording.ExecTableName, err)
	}

	execTable := newTable(w, "Property", "Value")
	for _, row := range execRows {
		info := row.(*datarecording.ExecInfo)
		execTable.Append([]string{info.Property, info.Value})
	}
	execTable.Render()

	summaries, _, err := reader.Query(ctx, simulation.SummaryTable,
		datarecording.QueryParams{})
	if err != nil {
		return fmt.Errorf("reading %s: %w", simulation.SummaryTable, err)
	}

	fmt.Fprintln(w)

	summaryTable := newTable(w, "Run", "Scheme", "Sim time (s)",
		"Avg read (us)", "Avg write (us)", "WA", "MB/s")
	for _, row := range summaries {
		s := row.(*simulation.Summary)
		summaryTable.Append([]string{
			s.ID,
			s.Scheme,
			fmt.Sprintf("%.6f", s.SimTime),
			fmt.Sprintf("%.3f", s.AvgReadLatency*1e6),
			fmt.Sprintf("%.3f", s.AvgWriteLatency*1e6),
			fmt.Sprintf("%.3f", s.WriteAmplification),
			fmt.Sprintf("%.2f", s.Bandwidth/1e6),
		})
	}
	summaryTable.Render()

	if slowest <= 0 {
		return nil
	}

	tasks, _, err := reader.Query(ctx, tracing.TraceTableName,
		datarecording.QueryParams{
			OrderBy: "(EndTime - StartTime) DESC",
			Limit:   slowest,
		})
	if err != nil {
		return fmt.Errorf("reading %s: %w", tracing.TraceTableName, err)
	}

	fmt.Fprintln(w)

	taskTable := newTable(w, "Request", "Kind", "Start (us)", "Latency (us)")
	for _, row := range tasks {
		t := row.(*tracing.TraceEntry)
		taskTable.Append([]string{
			t.ID,
			t.What,
			fmt.Sprintf("%.3f", t.StartTime*1e6),
			fmt.Sprintf("%.3f", (t.EndTime-t.StartTime)*1e6),
		})
	}
	taskTable.Render()

	return nil
}

func newTable(w io.Writer, headers ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)

	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetTablePadding("  ")

	return table
}
