// extract runs a template over an OCR text file and prints the extraction
// result as JSON. Useful for tuning template configs without the service or
// a database.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/pekarna-dev/invoice-engine/internal/entity"
	"github.com/pekarna-dev/invoice-engine/internal/extract"
	"github.com/pekarna-dev/invoice-engine/internal/layout"
	"github.com/pekarna-dev/invoice-engine/internal/template"
)

func main() {
	textPath := flag.String("text", "", "path to the OCR text file")
	configPath := flag.String("config", "", "path to the template config JSON")
	pretty := flag.Bool("pretty", true, "indent the JSON output")
	flag.Parse()

	if *textPath == "" || *configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: extract -text invoice.txt -config template.json")
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	text, err := os.ReadFile(*textPath)
	if err != nil {
		fatal(err)
	}
	rawConfig, err := os.ReadFile(*configPath)
	if err != nil {
		fatal(err)
	}
	cfg, err := template.ParseConfig(rawConfig)
	if err != nil {
		fatal(err)
	}

	tpl := &entity.Template{
		ID:           uuid.New(),
		TemplateName: "adhoc",
		Version:      "v0",
		Config:       cfg,
	}
	res, err := extract.New(logger).Extract(&entity.RawDocument{Text: string(text)}, tpl)
	if err != nil {
		fatal(err)
	}
	res.Lines = layout.Normalize(cfg.DisplayLayout, res.Lines)

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(res); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "extract:", err)
	os.Exit(1)
}
