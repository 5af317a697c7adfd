package fiscal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/erp/marketsync/internal/domain/fiscal"
	"github.com/erp/marketsync/internal/domain/order"
	"github.com/erp/marketsync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Delivery message sent to buyers with their documents
const (
	DeliverySubject = "Sua NF-e"
	DeliveryBody    = "Segue em anexo sua nota fiscal."
)

const (
	contentTypeXML = "application/xml"
	contentTypePDF = "application/pdf"
)

// EmissionService produces, stores and delivers the fiscal document of an order
type EmissionService struct {
	api       fiscal.EmissionAPI
	store     fiscal.ArtifactStore
	renderer  fiscal.DocumentRenderer
	deliverer fiscal.Deliverer
	logger    *zap.Logger
}

// NewEmissionService creates a new EmissionService. deliverer may be nil,
// in which case documents are stored but never sent.
func NewEmissionService(
	api fiscal.EmissionAPI,
	store fiscal.ArtifactStore,
	renderer fiscal.DocumentRenderer,
	deliverer fiscal.Deliverer,
	logger *zap.Logger,
) *EmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmissionService{
		api:       api,
		store:     store,
		renderer:  renderer,
		deliverer: deliverer,
		logger:    logger,
	}
}

// Emit implements fiscal.Emitter. Any failure before the document number
// is known is an *fiscal.EmissionRejectedError and leaves nothing behind.
// Failures after it are an *fiscal.IncompleteEmissionError carrying the
// number. Delivery problems are logged and never fail the emission.
func (s *EmissionService) Emit(ctx context.Context, o *order.Order) (*fiscal.Artifact, error) {
	ctx, span := telemetry.StartSpan(ctx, "fiscal_emission", "emit")
	artifact, err := s.emit(ctx, o)
	telemetry.EndSpan(span, err)
	return artifact, err
}

// Resume implements fiscal.Emitter. The XML is rendered again from the
// order, which yields the bytes that were submitted.
func (s *EmissionService) Resume(ctx context.Context, o *order.Order, documentNumber string) (*fiscal.Artifact, error) {
	ctx, span := telemetry.StartSpan(ctx, "fiscal_emission", "resume")
	artifact, err := s.resume(ctx, o, documentNumber)
	telemetry.EndSpan(span, err)
	return artifact, err
}

func (s *EmissionService) emit(ctx context.Context, o *order.Order) (*fiscal.Artifact, error) {
	if o == nil {
		return nil, errors.New("emit: order is nil")
	}
	log := s.logger.With(zap.String("order_id", o.ID.String()), zap.String("external_id", o.ExternalID))

	body, err := fiscal.RenderXML(o)
	if err != nil {
		return nil, &fiscal.EmissionRejectedError{OrderRef: o.ExternalID, Err: err}
	}

	number, err := s.api.Submit(ctx, body)
	if err != nil {
		return nil, &fiscal.EmissionRejectedError{OrderRef: o.ExternalID, Err: err}
	}
	log = log.With(zap.String("document_number", number))
	log.Info("Fiscal document accepted")

	return s.complete(ctx, log, o, number, body)
}

func (s *EmissionService) resume(ctx context.Context, o *order.Order, number string) (*fiscal.Artifact, error) {
	if o == nil {
		return nil, errors.New("resume: order is nil")
	}
	if number == "" {
		return nil, errors.New("resume: document number is empty")
	}
	log := s.logger.With(
		zap.String("order_id", o.ID.String()),
		zap.String("external_id", o.ExternalID),
		zap.String("document_number", number),
	)

	body, err := fiscal.RenderXML(o)
	if err != nil {
		return nil, &fiscal.IncompleteEmissionError{OrderRef: o.ExternalID, DocumentNumber: number, Err: err}
	}
	return s.complete(ctx, log, o, number, body)
}

// complete stores and delivers the files of an accepted document
func (s *EmissionService) complete(ctx context.Context, log *zap.Logger, o *order.Order, number string, body []byte) (*fiscal.Artifact, error) {
	incomplete := func(err error) error {
		return &fiscal.IncompleteEmissionError{OrderRef: o.ExternalID, DocumentNumber: number, Err: err}
	}

	xmlName := fiscal.XMLFileName(number)
	xmlPath, err := s.store.Put(ctx, xmlName, contentTypeXML, body)
	if err != nil {
		return nil, incomplete(fmt.Errorf("store %s: %w", xmlName, err))
	}

	doc, err := s.renderer.Render(ctx, o, number)
	if err != nil {
		return nil, incomplete(fmt.Errorf("render companion document: %w", err))
	}
	docName := fiscal.DocumentFileName(number)
	docPath, err := s.store.Put(ctx, docName, contentTypePDF, doc)
	if err != nil {
		return nil, incomplete(fmt.Errorf("store %s: %w", docName, err))
	}

	artifact := &fiscal.Artifact{
		DocumentNumber: number,
		XMLPath:        xmlPath,
		DocumentPath:   docPath,
		OrderID:        o.ID,
	}
	log.Info("Fiscal document stored", zap.String("xml_path", xmlPath), zap.String("document_path", docPath))

	s.deliver(ctx, log, o, artifact, body, doc)
	return artifact, nil
}

func (s *EmissionService) deliver(ctx context.Context, log *zap.Logger, o *order.Order, a *fiscal.Artifact, xmlData, docData []byte) {
	recipient := strings.TrimSpace(o.Buyer.Email)
	if s.deliverer == nil || recipient == "" {
		log.Debug("Skipping document delivery, no recipient")
		return
	}

	err := s.deliverer.Deliver(ctx, fiscal.DeliveryRequest{
		Recipient: recipient,
		Subject:   DeliverySubject,
		Body:      DeliveryBody,
		Attachments: []fiscal.Attachment{
			{Name: fiscal.XMLFileName(a.DocumentNumber), Path: a.XMLPath, ContentType: contentTypeXML, Data: xmlData},
			{Name: fiscal.DocumentFileName(a.DocumentNumber), Path: a.DocumentPath, ContentType: contentTypePDF, Data: docData},
		},
	})
	if err != nil {
		derr := &fiscal.DeliveryError{Recipient: recipient, Err: err}
		log.Warn("Fiscal document delivery failed", zap.Error(derr))
		return
	}
	log.Info("Fiscal document delivered", zap.String("recipient", recipient))
}

var _ fiscal.Emitter = (*EmissionService)(nil)
