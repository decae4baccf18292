package simulation

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/sarchlab/ftlsim/ftl"
	"github.com/sarchlab/ftlsim/nand"
	"github.com/sarchlab/ftlsim/sim"
	"github.com/sarchlab/ftlsim/workload"
)

// RunReport is the outcome of a run.
type RunReport struct {
	ID       string
	Scheme   ftl.Scheme
	SimTime  sim.VTimeInSec
	WallTime time.Duration

	Requests workload.Stats
	FTL      ftl.Stats
	NAND     nand.Stats

	AvgReadLatency  sim.VTimeInSec
	MaxReadLatency  sim.VTimeInSec
	AvgWriteLatency sim.VTimeInSec
	MaxWriteLatency sim.VTimeInSec

	// BusyTime adds up the latency of all the requests.
	BusyTime sim.VTimeInSec

	// GCRequests counts the FTL requests that ran garbage collection.
	GCRequests uint64

	// Bandwidth is in bytes per simulated second.
	Bandwidth float64
}

// Summary is the row a run writes into the summary table. Times are in
// seconds.
type Summary struct {
	ID                 string
	Scheme             string
	SimTime            float64
	WallTimeSeconds    float64
	AvgReadLatency     float64
	MaxReadLatency     float64
	AvgWriteLatency    float64
	MaxWriteLatency    float64
	BusyTime           float64
	GCRequests         uint64
	WriteAmplification float64
	Bandwidth          float64
}

func (r RunReport) summary() Summary {
	return Summary{
		ID:                 r.ID,
		Scheme:             r.Scheme.String(),
		SimTime:            float64(r.SimTime),
		WallTimeSeconds:    r.WallTime.Seconds(),
		AvgReadLatency:     float64(r.AvgReadLatency),
		MaxReadLatency:     float64(r.MaxReadLatency),
		AvgWriteLatency:    float64(r.AvgWriteLatency),
		MaxWriteLatency:    float64(r.MaxWriteLatency),
		BusyTime:           float64(r.BusyTime),
		GCRequests:         r.GCRequests,
		WriteAmplification: r.FTL.WriteAmplification(),
		Bandwidth:          r.Bandwidth,
	}
}

// Rows returns the report as metric and value pairs.
func (r RunReport) Rows() [][]string {
	us := func(t sim.VTimeInSec) string {
		return fmt.Sprintf("%.3f us", t.InMicro())
	}
	n := func(v uint64) string {
		return fmt.Sprintf("%d", v)
	}

	return [][]string{
		{"Scheme", r.Scheme.String()},
		{"Simulated time", fmt.Sprintf("%.6f s", float64(r.SimTime))},
		{"Wall time", r.WallTime.Round(time.Millisecond).String()},
		{"Requests", n(r.Requests.Completed)},
		{"Failed requests", n(r.Requests.Failed)},
		{"Unmapped reads", n(r.Requests.Unmapped)},
		{"Avg read latency", us(r.AvgReadLatency)},
		{"Max read latency", us(r.MaxReadLatency)},
		{"Avg write latency", us(r.AvgWriteLatency)},
		{"Max write latency", us(r.MaxWriteLatency)},
		{"Bandwidth", fmt.Sprintf("%.2f MB/s", r.Bandwidth/1e6)},
		{"Host read pages", n(r.FTL.HostReadPages)},
		{"Host write pages", n(r.FTL.HostWritePages)},
		{"Partial writes", n(r.FTL.PartialWrites)},
		{"Discarded pages", n(r.FTL.DiscardedPages)},
		{"GC rounds", n(r.FTL.GCRounds)},
		{"GC copied pages", n(r.FTL.CopiedPages)},
		{"Block erases", n(r.FTL.BlockErases)},
		{"Exchanges", n(r.FTL.Exchanges)},
		{"Switch merges", n(r.FTL.SwitchMerges)},
		{"Partial merges", n(r.FTL.PartialMerges)},
		{"Full merges", n(r.FTL.FullMerges)},
		{"Write amplification", fmt.Sprintf("%.3f", r.FTL.WriteAmplification())},
		{"Empty blocks", fmt.Sprintf("%d", r.FTL.EmptyBlocks)},
		{"NAND page reads", n(r.NAND.PageReads)},
		{"NAND page programs", n(r.NAND.PagePrograms)},
		{"NAND partial programs", n(r.NAND.PartialPrograms)},
		{"NAND block erases", n(r.NAND.BlockErases)},
	}
}

// PrintTable writes the report as a two column table.
func (r RunReport) PrintTable(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})

	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	table.AppendBulk(r.Rows())

	table.Render()
}
