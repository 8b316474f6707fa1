package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/term"

	"github.com/baharkarakas/circulation-backend/internal/services"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (a *app) ok(format string, args ...any) {
	fmt.Fprintln(a.out, color.GreenString("✓ ")+fmt.Sprintf(format, args...))
}

func (a *app) warn(format string, args ...any) {
	fmt.Fprintln(a.err, color.YellowString("! ")+fmt.Sprintf(format, args...))
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table prints rows under a bold header, or v as JSON when --json is set.
func (a *app) table(v any, header []string, rows [][]string) error {
	if a.flagJSON {
		return a.printJSON(v)
	}
	if len(rows) == 0 {
		a.warn("nothing to show")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	bold := color.New(color.Bold).SprintFunc()
	hdr := make([]string, len(header))
	for i, h := range header {
		hdr[i] = bold(h)
	}
	fmt.Fprintln(tw, strings.Join(hdr, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}

// readPassword prompts without echo on a terminal and reads one line otherwise.
func (a *app) readPassword() (string, error) {
	if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(a.err, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.err)
		return string(b), err
	}
	var line string
	if _, err := fmt.Fscanln(a.in, &line); err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return line, nil
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

// describe appends the details of a service refusal, e.g. the failing fields of a
// validation error.
func describe(err error) string {
	var se *services.Error
	if !errors.As(err, &se) || se.Details == nil {
		return err.Error()
	}
	d, jerr := json.MarshalToString(se.Details)
	if jerr != nil {
		return err.Error()
	}
	return err.Error() + " " + d
}
