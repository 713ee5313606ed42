package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/estudio-ia-videos/timeline-relay/pkg/state"
)

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func renderStats(stats state.Stats, colorize bool) string {
	var b strings.Builder

	b.WriteString(renderTable(
		[]string{"Connections", "Users", "Rooms"},
		[][]string{{
			strconv.Itoa(stats.Connections),
			strconv.Itoa(stats.Users),
			strconv.Itoa(stats.Rooms),
		}},
		colorize,
	))

	if len(stats.RoomMembers) > 0 {
		projects := make([]string, 0, len(stats.RoomMembers))
		for id := range stats.RoomMembers {
			projects = append(projects, id)
		}
		sort.Strings(projects)

		rows := make([][]string, 0, len(projects))
		for _, id := range projects {
			rows = append(rows, []string{id, strconv.Itoa(stats.RoomMembers[id])})
		}
		fmt.Fprintf(&b, "\n%s", renderTable([]string{"Project", "Members"}, rows, colorize))
	}

	return b.String()
}

func renderTable(headers []string, rows [][]string, colorize bool) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	if colorize {
		tw.SetStyle(table.StyleColoredBright)
	} else {
		tw.SetStyle(table.StyleRounded)
	}

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i > 0 {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}
