package commands

import (
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/disiqueira/gotree/v3"
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"git.home.luguber.info/inful/corpusbuild/internal/build"
	"git.home.luguber.info/inful/corpusbuild/internal/diag"
)

// pathColumn is the widest the path column of the flat listing may get.
const pathColumn = 48

var (
	okColor    = color.New(color.FgGreen, color.Bold)
	warnColor  = color.New(color.FgYellow, color.Bold)
	errColor   = color.New(color.FgRed, color.Bold)
	kindColor  = color.New(color.FgCyan)
	faintColor = color.New(color.Faint)
)

// SummaryOptions controls how a cycle result is printed.
type SummaryOptions struct {
	// Tree groups problem files by directory.
	Tree bool
	// Limit caps the number of listed messages; 0 lists all of them.
	Limit int
}

// WriteSummary prints a human-readable report of res.
func WriteSummary(w io.Writer, res *build.Result, opts SummaryOptions) {
	scope := "scoped"
	if res.Full {
		scope = "full"
	}
	status := okColor.Sprint("ok")
	switch res.Status {
	case build.StatusDiagnostics:
		status = warnColor.Sprint("diagnostics")
	case build.StatusFailed, build.StatusCanceled:
		status = errColor.Sprint(string(res.Status))
	}
	files := 0
	if res.Records != nil {
		files = res.Records.Len()
	}
	_, _ = fmt.Fprintf(w, "%s %s build: %d processed, %d files, %d problems in %s\n",
		status, scope, len(res.Touched), files, res.Problems(), res.Duration.Round(time.Millisecond))
	if len(res.Removed) > 0 {
		_, _ = fmt.Fprintf(w, "  %d removed, %d stale outputs swept\n", len(res.Removed), len(res.Swept))
	}
	for _, err := range res.CollectionErrors {
		_, _ = fmt.Fprintf(w, "  %s %v\n", errColor.Sprint("collection error:"), err)
	}
	if res.Records == nil {
		return
	}

	writeKindCounts(w, res.Records)
	problems := problemRecords(res.Records)
	if len(problems) == 0 {
		return
	}
	if opts.Tree {
		_, _ = fmt.Fprint(w, renderTree(problems, opts.Limit))
		return
	}
	writeFlat(w, problems, opts.Limit)
}

func writeKindCounts(w io.Writer, records *diag.Set) {
	counts := records.CountByKind()
	width := 0
	for _, k := range diag.Kinds() {
		if counts[k] > 0 {
			width = max(width, runewidth.StringWidth(string(k)))
		}
	}
	for _, k := range diag.Kinds() {
		if n := counts[k]; n > 0 {
			_, _ = fmt.Fprintf(w, "  %s %d\n", kindColor.Sprint(runewidth.FillRight(string(k), width)), n)
		}
	}
}

func problemRecords(records *diag.Set) []*diag.Record {
	var out []*diag.Record
	for _, rec := range records.Records() {
		if len(rec.Messages) > 0 {
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, func(a, b *diag.Record) int { return strings.Compare(a.Path, b.Path) })
	return out
}

func writeFlat(w io.Writer, problems []*diag.Record, limit int) {
	width := 0
	for _, rec := range problems {
		width = max(width, min(runewidth.StringWidth(rec.Path), pathColumn))
	}
	shown := 0
	for _, rec := range problems {
		for _, m := range rec.Messages {
			if limit > 0 && shown == limit {
				_, _ = fmt.Fprintln(w, faintColor.Sprintf("  ... %d more", countMessages(problems)-shown))
				return
			}
			p := runewidth.FillRight(runewidth.Truncate(rec.Path, width, "..."), width)
			_, _ = fmt.Fprintf(w, "  %s  %s %s\n", p, kindColor.Sprint(string(m.Kind)), firstLine(m.Text))
			shown++
		}
	}
}

// renderTree lays problem records out by directory.
func renderTree(problems []*diag.Record, limit int) string {
	root := gotree.New(".")
	dirs := map[string]gotree.Tree{".": root}
	var dirOf func(string) gotree.Tree
	dirOf = func(dir string) gotree.Tree {
		if t, ok := dirs[dir]; ok {
			return t
		}
		t := dirOf(path.Dir(dir)).Add(path.Base(dir) + "/")
		dirs[dir] = t
		return t
	}
	shown := 0
	for _, rec := range problems {
		file := dirOf(path.Dir(rec.Path)).Add(path.Base(rec.Path))
		for _, m := range rec.Messages {
			if limit > 0 && shown == limit {
				break
			}
			file.Add(string(m.Kind) + ": " + firstLine(m.Text))
			shown++
		}
	}
	return root.Print()
}

func countMessages(records []*diag.Record) int {
	n := 0
	for _, r := range records {
		n += len(r.Messages)
	}
	return n
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
