package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fieldscope/fieldscope/internal/detect"
	"github.com/fieldscope/fieldscope/internal/overlay"
	"github.com/fieldscope/fieldscope/internal/pdffile"
	"github.com/fieldscope/fieldscope/internal/preview"
)

var (
	outputFormat = flag.String("format", "text", "Output format: text, json")
	rasterDir    = flag.String("rasterdir", "", "Directory of pre-rendered page images (page-N.png)")
	valuesJSON   = flag.String("values", "", "JSON object mapping field keys to display values")
	previewPath  = flag.String("preview", "", "Write a PNG preview of the detected boxes to this path")
	previewPage  = flag.Int("page", 1, "Page rendered by -preview")
	save         = flag.Bool("save", false, "Persist the detected boxes to <pdf>.overlay.json")
	verbose      = flag.Bool("verbose", false, "Enable verbose output")
	help         = flag.Bool("help", false, "Show help message")
)

func main() {
	flag.Parse()

	if *help {
		printHelp()
		return
	}

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Error: PDF file path required\n\n")
		printUsage()
		os.Exit(1)
	}

	pdfPath := flag.Arg(0)
	if _, err := os.Stat(pdfPath); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: File not found: %s\n", pdfPath)
		os.Exit(1)
	}

	result, err := detectFields(pdfPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error detecting fields: %v\n", err)
		os.Exit(1)
	}

	if err := outputResults(result); err != nil {
		fmt.Fprintf(os.Stderr, "Error outputting results: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("Detect Fields - Locate fillable field positions in flat PDF documents")
	fmt.Println()
	fmt.Println("This tool finds the places where a flat (non-interactive) PDF expects")
	fmt.Println("handwritten or typed input: AcroForm widgets, labelled name/address lines,")
	fmt.Println("underscore blanks, and ruled lines in scanned pages.")
	fmt.Println()
	printUsage()
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -format        Output format: text (default), json")
	fmt.Println("  -rasterdir     Directory of pre-rendered page images for scanned PDFs")
	fmt.Println("  -values        JSON object mapping field keys to display values")
	fmt.Println("  -preview       Write a PNG preview of the detected boxes to this path")
	fmt.Println("  -page          Page rendered by -preview (default 1)")
	fmt.Println("  -save          Persist the detected boxes to <pdf>.overlay.json")
	fmt.Println("  -verbose       Enable verbose output")
	fmt.Println("  -help          Show this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  detect_fields contract.pdf")
	fmt.Println("  detect_fields -format json contract.pdf")
	fmt.Println("  detect_fields -rasterdir scans/ -preview page1.png scanned-lease.pdf")
	fmt.Println("  detect_fields -save -values '{\"SELLER_NAME\":\"Jane Roe\"}' contract.pdf")
	fmt.Println()
	fmt.Println("DETECTION STRATEGIES:")
	fmt.Println("  • AcroForm widget annotations (interactive fields left in the document)")
	fmt.Println("  • Anchor labels (Seller:, Buyer:, Property Address:)")
	fmt.Println("  • Underscore and dotted blanks in the text layer")
	fmt.Println("  • Ruled line pairs and underlines in rasterized pages")
}

func printUsage() {
	fmt.Println("USAGE:")
	fmt.Println("  detect_fields [OPTIONS] <pdf_file>")
}

// DetectionOutput represents the complete result of a detection run
type DetectionOutput struct {
	FilePath    string        `json:"file_path"`
	Success     bool          `json:"success"`
	Pages       int           `json:"pages"`
	BoxCount    int           `json:"box_count"`
	Boxes       []overlay.Box `json:"boxes"`
	Status      string        `json:"status"`
	Warnings    []string      `json:"warnings,omitempty"`
	PageErrors  []string      `json:"page_errors,omitempty"`
	OverlayPath string        `json:"overlay_path,omitempty"`
	Error       string        `json:"error,omitempty"`
}

func detectFields(pdfPath string) (*DetectionOutput, error) {
	absPath, err := filepath.Abs(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	result := &DetectionOutput{
		FilePath: absPath,
		Success:  false,
	}

	doc, err := pdffile.Open(absPath)
	if err != nil {
		result.Error = err.Error()
		return result, nil // Don't fail, return error in result
	}
	defer doc.Close()

	pages, err := doc.PageCount()
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}
	result.Pages = pages

	tuning := detect.DefaultTuning()

	saveFn := func(o overlay.Overlay) error { return nil }
	overlayPath := absPath + ".overlay.json"
	if *save {
		saveFn = func(o overlay.Overlay) error {
			data, err := overlay.Serialize(o)
			if err != nil {
				return err
			}
			return os.WriteFile(overlayPath, data, 0o600)
		}
		result.OverlayPath = overlayPath
	}
	store := overlay.NewStore(saveFn, tuning.MaxBoxes)
	if *save {
		if data, err := os.ReadFile(overlayPath); err == nil {
			store.Load(overlay.Parse(data))
		}
	}

	var raster detect.RasterSource
	if *rasterDir != "" {
		raster = pdffile.NewPageImageDir(*rasterDir, doc)
	}

	engine := detect.NewEngine(doc.Sources(raster), store, tuning)
	if *valuesJSON != "" {
		var values map[string]string
		if err := json.Unmarshal([]byte(*valuesJSON), &values); err != nil {
			return nil, fmt.Errorf("invalid -values JSON: %w", err)
		}
		engine.SetFieldValues(values, nil)
	}

	if *verbose {
		fmt.Printf("Analyzing %s (%d pages)\n\n", absPath, pages)
	}

	pass, err := engine.Detect(context.Background())
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}

	result.Success = true
	result.BoxCount = store.Len()
	result.Boxes = store.Boxes()
	result.Status = pass.Status
	result.Warnings = pass.Warnings
	for _, pe := range pass.PageErrors {
		result.PageErrors = append(result.PageErrors, pe.Error())
	}

	if *previewPath != "" {
		if err := writePreview(doc, result.Boxes, *previewPage, *previewPath); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("preview failed: %v", err))
		} else if *verbose {
			fmt.Printf("Preview written to %s\n", *previewPath)
		}
	}

	return result, nil
}

// writePreview renders the boxes of one page over a blank page image at 2px
// per point.
func writePreview(doc *pdffile.Document, boxes []overlay.Box, page int, path string) error {
	geom, err := doc.PageGeometry(page)
	if err != nil {
		return err
	}
	const scale = 2.0
	img := preview.Blank(geom.Width, geom.Height, scale)
	return preview.WritePNG(path, img, boxes, page, scale)
}

func outputResults(result *DetectionOutput) error {
	switch *outputFormat {
	case "json":
		return outputJSON(result)
	case "text":
		return outputText(result)
	default:
		return fmt.Errorf("unsupported output format: %s", *outputFormat)
	}
}

func outputJSON(result *DetectionOutput) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func outputText(result *DetectionOutput) error {
	if !result.Success {
		fmt.Printf("Detection failed: %s\n", result.Error)
		return nil
	}

	fmt.Printf("%s\n", result.Status)

	for _, w := range result.Warnings {
		fmt.Printf("Warning: %s\n", w)
	}
	for _, pe := range result.PageErrors {
		fmt.Printf("Page error: %s\n", pe)
	}

	if result.BoxCount == 0 {
		fmt.Println()
		fmt.Println("No field locations found. The document may have no fillable areas,")
		fmt.Println("or it may be a scan: supply page images with -rasterdir to scan for")
		fmt.Println("ruled lines.")
		return nil
	}

	fmt.Println()
	for i, b := range result.Boxes {
		fmt.Printf("[%d] page %d  (%.1f, %.1f)  %gx%g pt\n", i+1, b.Page, b.X, b.Y, b.W, b.H)
		if b.Key != nil {
			fmt.Printf("    Key: %s\n", *b.Key)
		}
		if b.Value != nil && *b.Value != "" {
			fmt.Printf("    Value: %s\n", *b.Value)
		}
		if b.FontSize != nil {
			fmt.Printf("    Font size: %g\n", *b.FontSize)
		}
		if b.Erase {
			fmt.Printf("    Erase: true\n")
		}
	}

	if result.OverlayPath != "" {
		fmt.Printf("\nOverlay saved to %s\n", result.OverlayPath)
	}

	return nil
}
