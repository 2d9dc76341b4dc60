package cmd

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Mora-na/mimotions/auth"
	"github.com/Mora-na/mimotions/credstore"
	"github.com/Mora-na/mimotions/engine"
	"github.com/Mora-na/mimotions/history"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func status(ok bool) string {
	if ok {
		return okStyle.Render("ok")
	}
	return failStyle.Render("failed")
}

func renderReport(w io.Writer, r *engine.Report) {
	t := newTable("#", "ACCOUNT", "RESULT", "MESSAGE", "TIME")
	for i, res := range r.Results {
		t.Row(strconv.Itoa(i+1), res.Masked, status(res.Success), res.Message, res.Elapsed.Round(time.Millisecond).String())
	}
	_, _ = fmt.Fprintln(w, titleStyle.Render("Run "+r.RunID+" ("+r.Mode+")"))
	_, _ = fmt.Fprintln(w, t.Render())
	_, _ = fmt.Fprintln(w, r.Summary())
	if !r.Persisted {
		_, _ = fmt.Fprintln(w, mutedStyle.Render("tokens not persisted"))
	}
}

func renderTokens(w io.Writer, path string, records map[string]credstore.Record, keys []string) {
	if len(keys) == 0 {
		_, _ = fmt.Fprintf(w, "No cached tokens in %s.\n", path)
		return
	}
	t := newTable("ACCOUNT", "USER ID", "DEVICE", "ACCESS GRANTED", "LOGIN GRANTED", "APP GRANTED")
	for _, k := range keys {
		r := records[k]
		t.Row(auth.Desensitize(k), r.UserID, r.DeviceID,
			r.AccessTokenTime.String(), r.LoginTokenTime.String(), r.AppTokenTime.String())
	}
	_, _ = fmt.Fprintln(w, t.Render())
}

func renderHistory(w io.Writer, runs []history.Run, loc *time.Location) {
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, "No runs recorded.")
		return
	}
	t := newTable("RUN", "STARTED", "MODE", "TOTAL", "OK", "FAILED", "DURATION")
	for _, r := range runs {
		t.Row(r.ID, r.StartedAt.In(loc).Format(time.DateTime), r.Mode,
			strconv.Itoa(r.Total), okStyle.Render(strconv.Itoa(r.Succeeded)),
			failStyle.Render(strconv.Itoa(r.Failed())),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String())
	}
	_, _ = fmt.Fprintln(w, t.Render())
}
