package descriptions

// Comprehensive tool descriptions with practical examples and use cases

const (
	PDFDetectFieldsDescription = `Detect fillable field locations in a flat PDF and persist them as overlay boxes.

**When to use:** A scanned or flattened contract has no interactive form fields but still needs to be filled in programmatically.

**Why it's useful:** Finds the places a person would write on the page (label anchors, underscore runs, ruled boxes, leftover AcroForm widgets) and records them in a versioned overlay sidecar next to the PDF, ready for text placement.

**Examples:**
• Prepare a purchase contract: "Detect fields in purchase-agreement.pdf so the buyer and seller names can be typed in"
• Scanned forms: "Detect fields in scanned-lease.pdf using the pre-rendered page images"
• Bind known data: "Detect fields in contract.pdf with values {\"SELLER_NAME\": \"Jane Roe\"}"

**Common workflows:**
1. Fill Pipeline: Detect fields → Review overlay boxes → Bind values → Render filled output
2. Re-detection: Run again after edits; existing boxes are respected and never duplicated
3. Scanned Documents: Provide page images → Raster line detection finds ruled boxes and underlines

**Best practices:** The pass is idempotent; boxes that overlap existing overlay entries are dropped, so it is safe to run repeatedly.`

	PDFWidgetFieldsDescription = `List the AcroForm widget fields of a PDF with their page positions.

**When to use:** Need to know what interactive form fields a PDF carries before deciding how to fill it.

**Why it's useful:** Shows every named widget with its page, rectangle, and current value, which tells you whether the document can be filled through its form layer or needs overlay boxes instead.

**Examples:**
• Form inventory: "List the widget fields of application.pdf to map them to CRM columns"
• Fill strategy: "Check whether contract.pdf still has live form fields or was flattened"
• Debugging: "See where the seller_signature widget actually sits on the page"

**Common workflows:**
1. Strategy Selection: List widgets → If present, fill the form layer → Otherwise run pdf_detect_fields
2. Data Mapping: List widgets → Match names to known keys → Pass values to detection
3. Verification: Fill fields → List widgets again → Confirm values landed

**Best practices:** Widget names double as overlay keys, so values supplied to pdf_detect_fields bind to them automatically.`

	PDFOverlayInfoDescription = `Summarize the overlay sidecar persisted next to a PDF.

**When to use:** Need to inspect what a previous detection pass or manual editing session produced without opening the document.

**Why it's useful:** Reports the overlay version, total box count, per-page distribution, and how many boxes are key-bound, value-bound, or erase regions.

**Examples:**
• Audit: "Check how many boxes contract.pdf.overlay.json holds before rendering"
• Troubleshooting: "See which pages of lease.pdf got boxes and which came up empty"
• Cleanup decisions: "Count erase regions in amended-contract.pdf before re-running detection"

**Common workflows:**
1. Post-detection Review: Detect fields → Inspect overlay info → Spot-check sparse pages
2. Pipeline Gating: Check overlay info → Skip detection when boxes already exist
3. Maintenance: Inspect overlay → Decide whether to edit or start over

**Best practices:** The sidecar lives at <pdf>.overlay.json; a missing sidecar simply means no detection pass has run yet.`
)

// ToolDescriptions maps tool names to their comprehensive descriptions
var ToolDescriptions = map[string]string{
	"pdf_detect_fields": PDFDetectFieldsDescription,
	"pdf_widget_fields": PDFWidgetFieldsDescription,
	"pdf_overlay_info":  PDFOverlayInfoDescription,
}

// GetToolDescription returns the comprehensive description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns a list of all available tool names
func GetAllToolNames() []string {
	var names []string
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	return names
}
