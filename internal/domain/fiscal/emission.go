package fiscal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/erp/marketsync/internal/domain/order"
)

// Artifact names the stored files for one emitted document
type Artifact struct {
	DocumentNumber string
	XMLPath        string
	DocumentPath   string
	OrderID        uuid.UUID
}

// Result converts the artifact to the reference kept on the order
func (a Artifact) Result(emittedAt time.Time) order.FiscalResult {
	return order.FiscalResult{
		DocumentNumber: a.DocumentNumber,
		XMLPath:        a.XMLPath,
		DocumentPath:   a.DocumentPath,
		EmittedAt:      emittedAt.UTC(),
	}
}

// XMLFileName is the stored name of the fiscal XML for a document number
func XMLFileName(documentNumber string) string {
	return fmt.Sprintf("NFe_%s.xml", documentNumber)
}

// DocumentFileName is the stored name of the companion DANFE
func DocumentFileName(documentNumber string) string {
	return fmt.Sprintf("DANFE_%s.pdf", documentNumber)
}

// Emitter produces the fiscal document for an order
type Emitter interface {
	Emit(ctx context.Context, o *order.Order) (*Artifact, error)
	// Resume stores the files of a document the API already accepted. It
	// never submits.
	Resume(ctx context.Context, o *order.Order, documentNumber string) (*Artifact, error)
}

// EmissionAPI submits a rendered document and returns its official number
type EmissionAPI interface {
	Submit(ctx context.Context, xml []byte) (string, error)
}

// ArtifactStore persists emitted files
type ArtifactStore interface {
	// Put stores data under name and returns a path or URI for it
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
	// Get returns the stored bytes or ErrArtifactNotFound
	Get(ctx context.Context, name string) ([]byte, error)
}

// DocumentRenderer renders the human-readable companion document
type DocumentRenderer interface {
	Render(ctx context.Context, o *order.Order, documentNumber string) ([]byte, error)
}

// Attachment is one file handed to the deliverer
type Attachment struct {
	Name        string
	Path        string
	ContentType string
	Data        []byte
}

// DeliveryRequest asks for the documents to be sent to the buyer
type DeliveryRequest struct {
	Recipient   string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Deliverer sends emitted documents. Failures never fail an emission.
type Deliverer interface {
	Deliver(ctx context.Context, req DeliveryRequest) error
}
