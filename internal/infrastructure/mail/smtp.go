// Package mail delivers emitted fiscal documents to buyers.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/erp/marketsync/internal/domain/fiscal"
	"github.com/erp/marketsync/internal/infrastructure/config"
)

// SMTPDeliverer sends documents through an SMTP relay
type SMTPDeliverer struct {
	cfg    config.SMTPConfig
	logger *zap.Logger
}

// NewSMTPDeliverer validates cfg and creates a deliverer
func NewSMTPDeliverer(cfg config.SMTPConfig, logger *zap.Logger) (*SMTPDeliverer, error) {
	if cfg.Host == "" {
		return nil, errors.New("mail: smtp host is required")
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.From == "" {
		return nil, errors.New("mail: sender address is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPDeliverer{cfg: cfg, logger: logger}, nil
}

// Deliver implements fiscal.Deliverer
func (d *SMTPDeliverer) Deliver(ctx context.Context, req fiscal.DeliveryRequest) error {
	msg, err := d.buildMessage(req)
	if err != nil {
		return err
	}
	client, err := d.newClient()
	if err != nil {
		return err
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mail: send to %s: %w", req.Recipient, err)
	}
	d.logger.Info("Fiscal documents delivered",
		zap.String("recipient", req.Recipient),
		zap.Int("attachments", len(req.Attachments)))
	return nil
}

func (d *SMTPDeliverer) buildMessage(req fiscal.DeliveryRequest) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(d.cfg.From); err != nil {
		return nil, fmt.Errorf("mail: invalid sender: %w", err)
	}
	if err := msg.To(req.Recipient); err != nil {
		return nil, fmt.Errorf("mail: invalid recipient: %w", err)
	}
	msg.Subject(req.Subject)
	msg.SetBodyString(gomail.TypeTextPlain, req.Body)

	for _, a := range req.Attachments {
		opts := []gomail.FileOption{}
		if a.ContentType != "" {
			opts = append(opts, gomail.WithFileContentType(gomail.ContentType(a.ContentType)))
		}
		if a.Data == nil && a.Path != "" {
			msg.AttachFile(a.Path, append(opts, gomail.WithFileName(a.Name))...)
			continue
		}
		if err := msg.AttachReader(a.Name, bytes.NewReader(a.Data), opts...); err != nil {
			return nil, fmt.Errorf("mail: attach %s: %w", a.Name, err)
		}
	}
	return msg, nil
}

func (d *SMTPDeliverer) newClient() (*gomail.Client, error) {
	opts := []gomail.Option{gomail.WithPort(d.cfg.Port)}
	if d.cfg.TLS {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	if d.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(d.cfg.Username),
			gomail.WithPassword(d.cfg.Password),
		)
	}
	client, err := gomail.NewClient(d.cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("mail: create client: %w", err)
	}
	return client, nil
}

// NoopDeliverer drops deliveries, logging them
type NoopDeliverer struct {
	logger *zap.Logger
}

// NewNoopDeliverer is used when SMTP is disabled
func NewNoopDeliverer(logger *zap.Logger) *NoopDeliverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopDeliverer{logger: logger}
}

// Deliver implements fiscal.Deliverer
func (d *NoopDeliverer) Deliver(_ context.Context, req fiscal.DeliveryRequest) error {
	d.logger.Debug("Email delivery disabled, skipping", zap.String("recipient", req.Recipient))
	return nil
}

// NewDeliverer returns an SMTP deliverer when enabled, else a no-op one
func NewDeliverer(cfg config.SMTPConfig, logger *zap.Logger) (fiscal.Deliverer, error) {
	if !cfg.Enabled {
		return NewNoopDeliverer(logger), nil
	}
	return NewSMTPDeliverer(cfg, logger)
}

var (
	_ fiscal.Deliverer = (*SMTPDeliverer)(nil)
	_ fiscal.Deliverer = (*NoopDeliverer)(nil)
)
