package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/cuemby/slotsync/pkg/connectivity"
	"github.com/cuemby/slotsync/pkg/schedule"
	"github.com/cuemby/slotsync/pkg/types"
)

// displayDate formats a date the way the grid shows it, e.g. "Fri, Aug 29"
func displayDate(d types.Date) string {
	return d.Time().Format("Mon, Jan 2")
}

// slotCell renders one grid cell
func slotCell(s types.Slot) string {
	if !s.Claimed() {
		return "open"
	}
	if s.Completed {
		return s.PersonName() + " ✓"
	}
	return s.PersonName()
}

// renderSchedule writes the day-by-day grid followed by the feed status
func renderSchedule(w io.Writer, sched types.Schedule, conn connectivity.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tMORNING\tEVENING")
	for _, day := range sched.Entries() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", displayDate(day.Date), slotCell(day.Morning), slotCell(day.Evening))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	_, err := fmt.Fprintln(w, styledConnectivity(w, conn))
	return err
}

// scheduleJSON is the --json form of `slotsync schedule`
type scheduleJSON struct {
	Range        types.DateRange  `json:"range"`
	Days         []types.DayEntry `json:"days"`
	Connectivity string           `json:"connectivity"`
	LastUpdate   *time.Time       `json:"last_update,omitempty"`
}

func renderScheduleJSON(w io.Writer, sched types.Schedule, conn connectivity.Snapshot) error {
	out := scheduleJSON{
		Range:        sched.Range,
		Days:         sched.Entries(),
		Connectivity: string(conn.State),
	}
	if !conn.LastUpdate.IsZero() {
		last := conn.LastUpdate
		out.LastUpdate = &last
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func describeConnectivity(s connectivity.Snapshot) string {
	last := "never"
	if !s.LastUpdate.IsZero() {
		last = s.LastUpdate.Format("15:04:05")
	}
	line := fmt.Sprintf("Feed: %s (last update %s)", s.State, last)
	if s.Cause != nil {
		line += fmt.Sprintf(": %v", s.Cause)
	}
	return line
}

// styledConnectivity colours the status line when w is a terminal
func styledConnectivity(w io.Writer, s connectivity.Snapshot) string {
	r := lipgloss.NewRenderer(w)
	style := r.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	if s.State != connectivity.Connected {
		style = style.Foreground(lipgloss.Color("1"))
	}
	return style.Render(describeConnectivity(s))
}

func describeChange(c schedule.Change) string {
	return fmt.Sprintf("[%s] %s %s: %s -> %s",
		c.Source, displayDate(c.Key.Date), c.Key.TimeSlot, slotCell(c.Old), slotCell(c.New))
}
