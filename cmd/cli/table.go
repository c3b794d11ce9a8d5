package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/pep299/news-chat/internal/model"
)

const (
	titleWidth  = 60
	sourceWidth = 16
)

func printArticles(w io.Writer, articles []model.Article) {
	if len(articles) == 0 {
		fmt.Fprintln(w, "No articles.")
		return
	}
	rows := make([][]string, 0, len(articles)+1)
	rows = append(rows, []string{"#", "DATE", "SOURCE", "TITLE"})
	for i, a := range articles {
		rows = append(rows, []string{
			fmt.Sprint(i + 1),
			a.PublishedAt,
			runewidth.Truncate(a.SourceName, sourceWidth, "…"),
			runewidth.Truncate(a.Title, titleWidth, "…"),
		})
	}
	writeTable(w, rows)
}

func printSessions(w io.Writer, sessions []*model.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions.")
		return
	}
	rows := make([][]string, 0, len(sessions)+1)
	rows = append(rows, []string{"ID", "KEYWORD", "STATE", "TURNS", "UPDATED"})
	for _, s := range sessions {
		rows = append(rows, []string{
			s.ID,
			runewidth.Truncate(s.Keyword, 24, "…"),
			string(s.State),
			fmt.Sprint(len(s.Chat)),
			s.UpdatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	writeTable(w, rows)
}

// writeTable aligns columns by display width so Hangul lines up.
func writeTable(w io.Writer, rows [][]string) {
	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			if i == len(row)-1 {
				cells[i] = cell
				continue
			}
			cells[i] = runewidth.FillRight(cell, widths[i])
		}
		fmt.Fprintln(w, strings.Join(cells, "  "))
	}
}
