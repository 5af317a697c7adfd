// Package printing renders the DANFE, the human-readable companion of an
// emitted fiscal XML.
//
// Two renderers implement fiscal.DocumentRenderer:
//   - TextDocumentRenderer writes a plain-text summary
//   - PDFDocumentRenderer fills an HTML template and prints it through a
//     PDFPrinter, normally ChromePrinter
//
// Example usage:
//
//	pdf := NewChromePrinter(ChromeConfig{NoSandbox: true})
//	defer pdf.Close()
//
//	renderer := NewPDFDocumentRenderer(pdf)
//	data, err := renderer.Render(ctx, order, "1001")
package printing
