package printing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const defaultPrintTimeout = 30 * time.Second

// footerMarginMM keeps the page number footer clear of the DANFE body
const footerMarginMM = 12

// ChromeConfig selects the browser that prints DANFEs
type ChromeConfig struct {
	// ExecPath overrides the Chrome binary lookup
	ExecPath string
	// RemoteURL attaches to a running browser instead of launching one
	RemoteURL string
	// NoSandbox is required when Chrome runs as root inside a container
	NoSandbox bool
	Timeout   time.Duration
	Logger    *zap.Logger
}

// ChromePrinter prints HTML to A4 PDF with headless Chrome. Each call
// opens a fresh tab on a shared browser.
type ChromePrinter struct {
	timeout  time.Duration
	logger   *zap.Logger
	allocCtx context.Context
	cancel   context.CancelFunc
}

// NewChromePrinter prepares the browser allocator. Chrome itself starts
// with the first print.
func NewChromePrinter(cfg ChromeConfig) *ChromePrinter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultPrintTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	p := &ChromePrinter{timeout: cfg.Timeout, logger: cfg.Logger}
	if cfg.RemoteURL != "" {
		p.allocCtx, p.cancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
	} else {
		p.allocCtx, p.cancel = chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
	}
	return p
}

func allocatorOptions(cfg ChromeConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// PrintPDF implements PDFPrinter
func (p *ChromePrinter) PrintPDF(ctx context.Context, req PageRequest) ([]byte, error) {
	if strings.TrimSpace(req.HTML) == "" {
		return nil, NewRenderError(ErrCodeInvalidHTML, "document is empty", nil)
	}
	started := time.Now()

	tab, closeTab := chromedp.NewContext(p.allocCtx, chromedp.WithLogf(p.logger.Sugar().Debugf))
	defer closeTab()
	runCtx, cancelRun := context.WithTimeout(tab, p.timeout)
	defer cancelRun()
	stop := context.AfterFunc(ctx, cancelRun)
	defer stop()

	var pdf []byte
	err := chromedp.Run(runCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, req.HTML).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = printParams(req).Do(ctx)
			return err
		}),
	)

	switch {
	case ctx.Err() != nil:
		return nil, NewRenderError(ErrCodeRenderTimeout, "print cancelled", ctx.Err())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return nil, NewRenderError(ErrCodeRenderTimeout, "print timed out after "+p.timeout.String(), err)
	case err != nil:
		return nil, NewRenderError(ErrCodeRenderFailed, "chrome print failed", err)
	case len(pdf) == 0:
		return nil, NewRenderError(ErrCodeRenderFailed, "chrome returned an empty PDF", nil)
	}

	p.logger.Debug("DANFE printed", zap.Int("bytes", len(pdf)), zap.Duration("duration", time.Since(started)))
	return pdf, nil
}

// Close shuts the browser down
func (p *ChromePrinter) Close() error {
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

// printParams lays req out on A4. Chrome measures paper in inches.
func printParams(req PageRequest) *page.PrintToPDFParams {
	m := req.Margins
	params := page.PrintToPDF().
		WithPrintBackground(true).
		WithPaperWidth(inches(a4WidthMM)).
		WithPaperHeight(inches(a4HeightMM)).
		WithMarginTop(inches(m.Top)).
		WithMarginRight(inches(m.Right)).
		WithMarginBottom(inches(m.Bottom)).
		WithMarginLeft(inches(m.Left))

	if req.FooterHTML != "" {
		// an empty header template would print Chrome's default header
		params = params.
			WithDisplayHeaderFooter(true).
			WithHeaderTemplate("<span></span>").
			WithFooterTemplate(req.FooterHTML).
			WithMarginBottom(inches(max(m.Bottom, footerMarginMM)))
	}
	return params
}

func inches(mm int) float64 {
	return float64(mm) / 25.4
}

var _ PDFPrinter = (*ChromePrinter)(nil)
