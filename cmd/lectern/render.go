package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/jobs"
	"github.com/poiesic/lectern/progress"
	"github.com/poiesic/lectern/reingest"
	"github.com/poiesic/lectern/retrieval"
)

const previewChars = 80

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	return table
}

// renderFields prints a two-column key/value table.
func renderFields(w io.Writer, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetColumnSeparator("")
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk(rows)
	table.Render()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func renderEntry(w io.Writer, e *progress.Entry) {
	rows := [][]string{
		{"Task", e.TaskID},
		{"Owner", e.OwnerID},
		{"Status", string(e.Status)},
		{"Progress", strconv.Itoa(e.Progress) + "%"},
		{"Filename", e.Filename},
		{"Created", formatTime(e.CreatedAt)},
		{"Started", formatTime(e.StartedAt)},
		{"Completed", formatTime(e.CompletedAt)},
	}
	if e.Error != "" {
		rows = append(rows, []string{"Error", e.Error})
	}
	renderFields(w, rows)
}

func renderResult(w io.Writer, job *core.Job) {
	renderFields(w, [][]string{
		{"Task", job.ID},
		{"Filename", job.Filename},
		{"Pages", strconv.Itoa(job.PageCount)},
		{"Extractor", job.Extractor},
		{"Seconds", strconv.FormatFloat(job.ExtractionSeconds, 'f', 2, 64)},
	})
	if job.Summary != "" {
		fmt.Fprintf(w, "\nSummary:\n%s\n", job.Summary)
	}
	fmt.Fprintf(w, "\n%s\n", job.ResultText)
}

func renderPage(w io.Writer, page *jobs.Page) {
	table := newTable(w, "Task", "Owner", "Status", "Progress", "Filename", "Created")
	for _, e := range page.Entries {
		table.Append([]string{
			e.TaskID,
			e.OwnerID,
			string(e.Status),
			strconv.Itoa(e.Progress),
			e.Filename,
			formatTime(e.CreatedAt),
		})
	}
	table.SetFooter([]string{"", "", "", "", "Total", strconv.Itoa(page.Total)})
	table.Render()
}

func renderJobs(w io.Writer, list []*core.Job) {
	table := newTable(w, "Task", "Status", "Filename", "Pages", "Created", "Completed")
	for _, j := range list {
		table.Append([]string{
			j.ID,
			string(j.Status),
			j.Filename,
			strconv.Itoa(j.PageCount),
			formatTime(j.CreatedAt),
			formatTime(j.CompletedAt),
		})
	}
	table.Render()
}

func renderResults(w io.Writer, results []retrieval.Result) {
	table := newTable(w, "Score", "Task", "Filename", "Chunk", "Text")
	for _, r := range results {
		table.Append([]string{
			strconv.FormatFloat(float64(r.Score), 'f', 3, 32),
			r.JobID,
			r.Filename,
			strconv.Itoa(r.Index),
			retrieval.Preview(r.Text, previewChars),
		})
	}
	table.Render()
}

func renderAnswer(w io.Writer, answer *retrieval.Answer) {
	fmt.Fprintln(w, answer.Text)
	if len(answer.Sources) == 0 {
		return
	}
	fmt.Fprintln(w)
	table := newTable(w, "Score", "Task", "Filename", "Chunk", "Preview")
	for _, s := range answer.Sources {
		table.Append([]string{
			strconv.FormatFloat(float64(s.Score), 'f', 3, 32),
			s.JobID,
			s.Filename,
			strconv.Itoa(s.Index),
			s.Preview,
		})
	}
	table.Render()
	if answer.Usage != nil {
		fmt.Fprintf(w, "\n%s: %d prompt + %d completion tokens\n",
			answer.Model, answer.Usage.PromptTokens, answer.Usage.CompletionTokens)
	}
}

func renderStats(w io.Writer, s *reingest.Stats) {
	renderFields(w, [][]string{
		{"Scanned", strconv.Itoa(s.Scanned)},
		{"Skipped", strconv.Itoa(s.Skipped)},
		{"Reingested", strconv.Itoa(s.Reingested)},
		{"Failed", strconv.Itoa(s.Failed)},
		{"Chunks", strconv.Itoa(s.Chunks)},
		{"Duration", s.Duration.Round(time.Millisecond).String()},
	})
}

func renderUser(w io.Writer, u *core.User) {
	renderFields(w, [][]string{
		{"Owner", u.ID},
		{"Email", u.Email},
		{"API key", u.APIKey},
	})
}

func renderHealth(w io.Writer, h jobs.Health) {
	cache := "ok"
	if !h.CacheOK {
		cache = "unavailable"
	}
	depth := strconv.Itoa(h.QueueDepth)
	if h.QueueDepth < 0 {
		depth = "unavailable"
	}
	renderFields(w, [][]string{
		{"Cache", cache},
		{"Tracked jobs", strconv.Itoa(h.Tracked)},
		{"Queue depth", depth},
		{"Ceiling", strconv.Itoa(h.Ceiling)},
	})
}
