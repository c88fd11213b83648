package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/cottand/jinfer/scenario"
	"github.com/davecgh/go-spew/spew"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"
)

const (
	formatText = "text"
	formatYAML = "yaml"
)

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
)

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	MaxDepth:                4,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

type printer struct {
	w      io.Writer
	format string
	dump   bool
	colour bool
}

func newPrinter(w io.Writer, format string, dump bool) (*printer, error) {
	if format != formatText && format != formatYAML {
		return nil, fmt.Errorf("unknown output format %q, expected %s or %s", format, formatText, formatYAML)
	}
	colour := false
	if f, ok := w.(*os.File); ok {
		colour = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &printer{w: w, format: format, dump: dump, colour: colour}, nil
}

func (p *printer) paint(colour, s string) string {
	if !p.colour {
		return s
	}
	return colour + s + ansiReset
}

func (p *printer) print(results []*scenario.Result) error {
	if p.format == formatYAML {
		encoder := yaml.NewEncoder(p.w)
		encoder.SetIndent(2)
		if err := encoder.Encode(results); err != nil {
			return fmt.Errorf("could not encode results: %w", err)
		}
		return encoder.Close()
	}

	for _, result := range results {
		status := p.paint(ansiGreen, "ok  ")
		if result.Failed() {
			status = p.paint(ansiRed, "FAIL")
		}
		if _, err := fmt.Fprintf(p.w, "%s %s\n", status, result.Name); err != nil {
			return err
		}
		for _, inst := range result.Instantiations {
			_, _ = fmt.Fprintf(p.w, "     %s = %s\n", inst.Variable, inst.Type)
		}
		for _, resolved := range result.Resolved {
			_, _ = fmt.Fprintf(p.w, "     %s ~> %s\n", resolved.Type, resolved.Result)
		}
		if result.Failed() {
			_, _ = fmt.Fprintf(p.w, "     %s\n", p.paint(ansiRed, result.Error))
		}
		if p.dump {
			dumpConfig.Fdump(p.w, result)
		}
	}
	return nil
}
