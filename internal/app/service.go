package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samvad-hq/elink/internal/config"
	"github.com/samvad-hq/elink/internal/domain"
	"github.com/samvad-hq/elink/internal/logger"
	"github.com/samvad-hq/elink/internal/storage"
	"github.com/samvad-hq/elink/pkg/elink"
	"github.com/samvad-hq/elink/pkg/publishers"
	"github.com/samvad-hq/elink/pkg/record"
)

// AlreadyReservedError is returned by Reserve when the ledger holds a live
// reservation for the record's accession number on the current endpoint.
type AlreadyReservedError struct {
	Reservation domain.Reservation
}

func (e *AlreadyReservedError) Error() string {
	r := e.Reservation
	return fmt.Sprintf("accession_num %q already reserved at %s as OSTI ID %s (DOI %s) on %s",
		r.AccessionNum, r.Endpoint, r.OSTIID, r.DOI, r.ReservedAt.Format("2006-01-02"))
}

// Service wires the ELINK client to the reservation ledger and record events.
type Service struct {
	cfg    *config.Config
	client *elink.Client
	store  storage.Store
	fanout *publishers.Fanout
	log    logger.Logger
}

// NewService builds a service runtime from config.
func NewService(ctx context.Context, cfg *config.Config, log logger.Logger) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		TTL:             cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	fanout, err := buildFanout(ctx, cfg.PublishersFile, log)
	if err != nil {
		store.Close()
		return nil, err
	}

	return newService(cfg, newClient(cfg, log), store, fanout, log), nil
}

func newService(cfg *config.Config, client *elink.Client, store storage.Store, fanout *publishers.Fanout, log logger.Logger) *Service {
	if log == nil {
		log = &logger.NopLogger{}
	}
	if store == nil {
		store, _ = storage.NewStore("none", "", storage.Options{})
	}
	return &Service{
		cfg:    cfg,
		client: client,
		store:  store,
		fanout: fanout,
		log:    log,
	}
}

func newClient(cfg *config.Config, log logger.Logger) *elink.Client {
	opts := []elink.Option{
		elink.WithEndpoints(cfg.ProductionURL, cfg.TestURL),
		elink.WithTimeout(cfg.RequestTimeout),
		elink.WithLogger(log),
	}
	if cfg.TestMode() {
		opts = append(opts, elink.WithTestMode())
	}
	if cfg.SequenceWrapper {
		opts = append(opts, elink.WithSequenceWrapper())
	}
	return elink.New(opts...)
}

// buildFanout loads the publishers file. No file means no publishers.
func buildFanout(ctx context.Context, path string, log logger.Logger) (*publishers.Fanout, error) {
	if strings.TrimSpace(path) == "" {
		return publishers.NewFanout(nil), nil
	}

	reg, err := publishers.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabled := reg.Enabled()
	pubs, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	log.InfoObj("publishers registry loaded", "publishers", len(pubs))
	return publishers.NewFanout(pubs), nil
}

// Endpoint is the ELINK base URL calls currently go to.
func (s *Service) Endpoint() string {
	return s.client.BaseURL()
}

// Reserve reserves a DOI for rec. Unless force is set, a live ledger entry for
// rec's accession_num short-circuits the call with *AlreadyReservedError.
func (s *Service) Reserve(ctx context.Context, rec *record.Record, force bool) (*record.Record, error) {
	endpoint := s.client.BaseURL()
	accession := strings.TrimSpace(rec.Text("accession_num"))

	if accession != "" && !force {
		existing, found, err := s.store.Lookup(endpoint, accession)
		if err != nil {
			s.log.WarnObj("reservation ledger lookup failed", "error", err)
		} else if found {
			return nil, &AlreadyReservedError{Reservation: existing}
		}
	}

	resp, err := s.client.Reserve(ctx, rec, s.cfg.Username, s.cfg.Password)
	if err != nil {
		return nil, err
	}
	if !elink.Succeeded(resp) {
		s.logRejected(publishers.OperationReserve, resp)
		return resp, nil
	}

	evt := publishers.NewEvent(publishers.OperationReserve, endpoint, rec, resp)
	if accession != "" {
		if err := s.store.Save(domain.Reservation{
			Endpoint:     endpoint,
			AccessionNum: accession,
			OSTIID:       evt.OSTIID,
			DOI:          evt.DOI,
			DOIStatus:    evt.DOIStatus,
			Title:        rec.Text("title"),
		}); err != nil {
			s.log.WarnObj("reservation ledger save failed", "error", err)
		}
	}
	s.publish(ctx, evt)
	return resp, nil
}

// Post submits rec and publishes a post event when ELINK accepts it.
func (s *Service) Post(ctx context.Context, rec *record.Record) (*record.Record, error) {
	endpoint := s.client.BaseURL()
	resp, err := s.client.Post(ctx, rec, s.cfg.Username, s.cfg.Password)
	if err != nil {
		return nil, err
	}
	if !elink.Succeeded(resp) {
		s.logRejected(publishers.OperationPost, resp)
		return resp, nil
	}
	s.publish(ctx, publishers.NewEvent(publishers.OperationPost, endpoint, rec, resp))
	return resp, nil
}

// Get fetches a record by OSTI identifier.
func (s *Service) Get(ctx context.Context, id string) (*record.Record, error) {
	return s.client.Get(ctx, id, s.cfg.Username, s.cfg.Password)
}

// Close releases the ledger and any publisher connections.
func (s *Service) Close() error {
	if s == nil {
		return nil
	}
	return errors.Join(s.fanout.Close(), s.store.Close())
}

func (s *Service) publish(ctx context.Context, evt publishers.Event) {
	if s.fanout.Size() == 0 {
		return
	}
	delivered, err := s.fanout.Publish(ctx, evt)
	if err != nil {
		s.log.ErrorObj("record event publish failed", "publish_error", map[string]any{
			"operation": evt.Operation,
			"osti_id":   evt.OSTIID,
			"delivered": delivered,
			"error":     err.Error(),
		})
		return
	}
	s.log.InfoObj("record event published", "publish_result", map[string]any{
		"operation": evt.Operation,
		"osti_id":   evt.OSTIID,
		"delivered": delivered,
	})
}

func (s *Service) logRejected(op string, resp *record.Record) {
	item := elink.Item(resp)
	s.log.WarnObj("elink rejected record", "elink_rejection", map[string]any{
		"operation":      op,
		"status":         item.Text("status"),
		"status_message": item.Text("status_message"),
	})
}
