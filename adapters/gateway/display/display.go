package display

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/Go-routine-4595/equipment-dash/model"
)

const maxBarWidth = 40

// Display is the console presentation shell.
type Display struct {
	out io.Writer
}

func NewDisplay() Display {
	return Display{out: os.Stdout}
}

func NewDisplayTo(w io.Writer) Display {
	return Display{out: w}
}

// PublishSync prints the sync event as one JSON line.
func (d Display) PublishSync(event model.SyncEvent) error {
	var (
		buf []byte
		err error
	)

	buf, err = json.Marshal(event)
	if err != nil {
		return errors.Join(err, errors.New("failed to marshal event display.PublishSync"))
	}
	d.display(string(buf))

	return nil
}

// Render draws the dashboard: cards, filter, chart, equipment and history.
func (d Display) Render(v model.View) {
	switch v.Status {
	case model.StatusLoading:
		d.display("Loading data...")
		return
	case model.StatusError:
		d.display(v.Error)
		return
	}

	d.display("Chemical Equipment Dashboard")
	d.display("")
	d.renderCards(v)
	d.display("")
	d.display(fmt.Sprintf("Filter: %s   (options: %s)", v.Filter, strings.Join(v.TypeOptions, ", ")))
	d.display("")
	d.renderChart(v.Chart)
	d.display("")
	d.renderEquipment(v.Rows)
	d.display("")
	d.RenderHistory(v.History)
}

// RenderUpload prints the message shown next to the upload control.
func (d Display) RenderUpload(state string, message string) {
	if message == "" {
		d.display(fmt.Sprintf("Upload: %s", state))
		return
	}
	d.display(fmt.Sprintf("Upload: %s - %s", state, message))
}

func (d Display) renderCards(v model.View) {
	tw := tabwriter.NewWriter(d.out, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "Total Equipment\tAvg Flowrate\tAvg Pressure\tAvg Temperature\n")
	fmt.Fprintf(tw, "%d\t%.2f\t%.2f\t%.2f\n", v.Stats.Total, v.Stats.AvgFlowrate, v.Stats.AvgPressure, v.Stats.AvgTemperature)
	fmt.Fprintf(tw, "(server %d)\t(%.2f)\t(%.2f)\t(%.2f)\n", v.ServerStats.Total, v.ServerStats.AvgFlowrate, v.ServerStats.AvgPressure, v.ServerStats.AvgTemperature)
	tw.Flush()
}

func (d Display) renderChart(c model.ChartSeries) {
	var (
		max   int
		width int
	)

	d.display("Equipment Type Distribution")
	for _, n := range c.Counts {
		if n > max {
			max = n
		}
	}

	tw := tabwriter.NewWriter(d.out, 0, 0, 2, ' ', 0)
	for i, label := range c.Labels {
		width = 0
		if max > 0 {
			width = c.Counts[i] * maxBarWidth / max
		}
		fmt.Fprintf(tw, "%s\t%s %d\n", label, strings.Repeat("#", width), c.Counts[i])
	}
	tw.Flush()
}

func (d Display) renderEquipment(rows []model.EquipmentRecord) {
	d.display("Equipment List")
	tw := tabwriter.NewWriter(d.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Name\tType\tFlowrate\tPressure\tTemperature\n")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Name, r.Type, r.Flowrate, r.Pressure, r.Temperature)
	}
	tw.Flush()
}

// RenderHistory prints the upload history with timestamps in local time.
func (d Display) RenderHistory(history []model.UploadHistoryEntry) {
	d.display("Upload History")
	if len(history) == 0 {
		d.display("No upload history found")
		return
	}

	tw := tabwriter.NewWriter(d.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tFile Name\tTotal Records\tUploaded At\n")
	for _, h := range history {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", h.ID, h.FileName, h.TotalRecords, h.UploadedAt.Local().Format("2006-01-02 15:04:05"))
	}
	tw.Flush()
}

func (d Display) display(text string) {
	fmt.Fprintln(d.out, text)
}
