package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
)

// Command line flags
var (
	configFlag      = flag.String("config", "", "Config file path (default ~/.config/pdf-editor/pdf-editor-config.json)")
	addrFlag        = flag.String("addr", "", "Listen address, overrides the configured one")
	exportFlag      = flag.String("export", "", "PDF file to annotate and export without starting the server")
	annotationsFlag = flag.String("annotations", "", "JSON file holding the annotation array for --export")
	outFlag         = flag.String("out", "", "Output path for --export (default <stem>-edited.pdf next to the input)")
	inspectFlag     = flag.String("inspect", "", "PDF file whose pages and text runs are printed as JSON")
)

func printHelp() {
	fmt.Println("pdf-editor - place text and signatures onto PDF pages")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pdf-editor [options]")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  pdf-editor                                   # serve the editor API")
	fmt.Println("  pdf-editor --addr :8080")
	fmt.Println("  pdf-editor --export form.pdf --annotations marks.json --out signed.pdf")
	fmt.Println("  pdf-editor --inspect signed.pdf")
}

func main() {
	flag.Usage = printHelp
	flag.Parse()

	if *exportFlag != "" && *inspectFlag != "" {
		fmt.Fprintln(os.Stderr, "error: --export and --inspect are mutually exclusive")
		os.Exit(1)
	}

	app, err := NewAppWithConfig(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	switch {
	case *inspectFlag != "":
		os.Exit(runInspectCLI(app, *inspectFlag))
	case *exportFlag != "":
		os.Exit(runExportCLI(ctx, app, *exportFlag, *annotationsFlag, *outFlag))
	}

	if err := app.RunServer(ctx, *addrFlag); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// runExportCLI exits 2 when the export succeeded but some annotations were
// skipped.
func runExportCLI(ctx context.Context, app *App, pdfPath, annotationsPath, outPath string) int {
	defer app.shutdown()

	sum, err := app.ExportFile(ctx, pdfPath, annotationsPath, outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if err := printJSON(sum); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if sum.Report.Skipped() > 0 {
		fmt.Fprintf(os.Stderr, "%d annotation(s) skipped\n", sum.Report.Skipped())
		return 2
	}
	return 0
}

func runInspectCLI(app *App, path string) int {
	sum, err := app.InspectFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "error: file not found: %s\n", path)
			return 1
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if err := printJSON(sum); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
