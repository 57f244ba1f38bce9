package ui

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/jedib0t/go-pretty/v6/table"
	senderEvents "github.com/rescp17/filesTransfer/internal/app_events/sender"
	"github.com/rescp17/filesTransfer/internal/history"
	"github.com/rescp17/filesTransfer/internal/style"
	"github.com/rescp17/filesTransfer/internal/util"
)

// SummaryTable renders the outcome of a send.
func SummaryTable(s senderEvents.Summary) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle("Sent to " + s.Receiver)
	t.AppendHeader(table.Row{"#", "File", "Size", "State"})

	var total int64
	for i, f := range s.Files {
		state := f.State.String()
		if f.Err != nil {
			state += ": " + f.Err.Error()
		}
		t.AppendRow(table.Row{i + 1, f.FileName, util.FormatSize(f.Length), state})
		if f.State.IsTerminal() && f.Err == nil {
			total += f.Length
		}
	}

	speed := "-"
	if secs := s.Elapsed.Seconds(); secs > 0 {
		speed = util.FormatSize(int64(float64(total)/secs)) + "/s"
	}
	t.AppendFooter(table.Row{"", "Total", util.FormatSize(total), fmt.Sprintf("%s, %s", s.Elapsed.Round(time.Millisecond), speed)})
	return t.Render()
}

// HistoryTable renders stored transfer records, newest first.
func HistoryTable(records []history.Record) string {
	if len(records) == 0 {
		return style.MutedStyle.Render("No transfers recorded")
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.FinishedAt.Format("2006-01-02 15:04:05"),
			r.Direction,
			util.FitName(r.FileName, 32),
			util.FormatSize(r.Length),
			r.State,
			r.Peer,
			strconv.FormatInt(r.Transferred, 10),
		})
	}

	tbl := lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(style.BorderStyle).
		Headers("Finished", "Dir", "File", "Size", "State", "Peer", "Bytes").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == lgtable.HeaderRow:
				return style.TableHeaderStyle
			case row%2 == 0:
				return style.TableRowStyle
			default:
				return style.TableRowAltStyle
			}
		})
	return tbl.Render()
}
