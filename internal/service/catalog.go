package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Guizzs26/watch-crm/internal/broker"
	"github.com/Guizzs26/watch-crm/internal/db"
	"github.com/Guizzs26/watch-crm/internal/models"
	"github.com/Guizzs26/watch-crm/pkg/infra"
	"github.com/shopspring/decimal"
)

const DefaultCurrency = "USD"

// WatchFilter narrows ListWatches. Zero fields are ignored
type WatchFilter struct {
	Brand    string
	Status   models.WatchStatus
	MaxPrice *decimal.Decimal
	Limit    int
	Offset   int
}

// WatchPatch carries a partial update; only non-nil fields are written
type WatchPatch struct {
	Brand       *string
	Model       *string
	Reference   *string
	Year        *int
	Condition   *string
	Price       *decimal.Decimal
	Currency    *string
	Status      *models.WatchStatus
	Description *string
}

type CatalogService struct {
	store  DataStore
	logger *slog.Logger
}

var _ broker.CatalogHandler = (*CatalogService)(nil)

func NewCatalogService(s DataStore, l *slog.Logger) *CatalogService {
	if l == nil {
		l = infra.NopLogger()
	}
	return &CatalogService{store: s, logger: l.With("service", "catalog")}
}

// ListWatches returns matching watches, newest first
func (s *CatalogService) ListWatches(ctx context.Context, f WatchFilter) ([]models.Watch, error) {
	q := db.Query{
		OrderBy: []db.Order{db.Desc("created_at"), db.Desc("id")},
		Limit:   f.Limit,
		Offset:  f.Offset,
	}
	if f.Brand != "" {
		q.Where = append(q.Where, db.Eq("brand", f.Brand))
	}
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown watch status %q", ErrValidation, f.Status)
		}
		q.Where = append(q.Where, db.Eq("status", string(f.Status)))
	}
	if f.MaxPrice != nil {
		q.Where = append(q.Where, db.Lte("price", f.MaxPrice.String()))
	}

	rows, err := s.store.SelectAll(ctx, models.TableWatches, q)
	if err != nil {
		return nil, fmt.Errorf("list watches: %w", err)
	}

	watches := make([]models.Watch, 0, len(rows))
	for _, r := range rows {
		watches = append(watches, watchFromRow(r))
	}
	return watches, nil
}

func (s *CatalogService) GetWatch(ctx context.Context, id int64) (models.Watch, error) {
	row, found, err := s.store.SelectOne(ctx, models.TableWatches, db.Eq("id", id))
	if err != nil {
		return models.Watch{}, fmt.Errorf("get watch %d: %w", id, err)
	}
	if !found {
		return models.Watch{}, ErrWatchNotFound
	}
	return watchFromRow(row), nil
}

// CreateWatch validates and stores a new listing. Status defaults to available, currency to USD
func (s *CatalogService) CreateWatch(ctx context.Context, w models.Watch) (models.Watch, error) {
	w.Brand = strings.TrimSpace(w.Brand)
	w.Model = strings.TrimSpace(w.Model)
	if w.Status == "" {
		w.Status = models.WatchAvailable
	}
	if w.Currency == "" {
		w.Currency = DefaultCurrency
	}
	if err := validateWatch(w); err != nil {
		return models.Watch{}, err
	}

	id, err := s.store.Insert(ctx, models.TableWatches, db.Row{
		"brand":       w.Brand,
		"model":       w.Model,
		"reference":   optional(w.Reference),
		"year":        w.Year,
		"condition":   optional(w.Condition),
		"price":       w.Price.String(),
		"currency":    strings.ToUpper(w.Currency),
		"status":      string(w.Status),
		"description": optional(w.Description),
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return models.Watch{}, ErrDuplicateReference
		}
		return models.Watch{}, fmt.Errorf("create watch: %w", err)
	}

	s.logger.Info("Watch listed", "watch_id", id, "brand", w.Brand, "model", w.Model)
	return s.GetWatch(ctx, id)
}

func (s *CatalogService) UpdateWatch(ctx context.Context, id int64, p WatchPatch) (models.Watch, error) {
	patch, err := p.row()
	if err != nil {
		return models.Watch{}, err
	}
	if len(patch) == 0 {
		return s.GetWatch(ctx, id)
	}

	changed, err := s.store.Update(ctx, models.TableWatches, patch, db.Eq("id", id))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return models.Watch{}, ErrDuplicateReference
		}
		return models.Watch{}, fmt.Errorf("update watch %d: %w", id, err)
	}
	if !changed {
		return models.Watch{}, ErrWatchNotFound
	}
	return s.GetWatch(ctx, id)
}

// MarkSold fails with ErrWatchSold when the watch was already sold
func (s *CatalogService) MarkSold(ctx context.Context, id int64) (models.Watch, error) {
	w, err := s.GetWatch(ctx, id)
	if err != nil {
		return models.Watch{}, err
	}
	if w.Status == models.WatchSold {
		return models.Watch{}, ErrWatchSold
	}

	sold := models.WatchSold
	w, err = s.UpdateWatch(ctx, id, WatchPatch{Status: &sold})
	if err != nil {
		return models.Watch{}, err
	}
	s.logger.Info("Watch sold", "watch_id", id, "price", w.Price.String(), "currency", w.Currency)
	return w, nil
}

func (s *CatalogService) DeleteWatch(ctx context.Context, id int64) error {
	deleted, err := s.store.Delete(ctx, models.TableWatches, db.Eq("id", id))
	if err != nil {
		return fmt.Errorf("delete watch %d: %w", id, err)
	}
	if !deleted {
		return ErrWatchNotFound
	}
	return nil
}

func validateWatch(w models.Watch) error {
	switch {
	case w.Brand == "":
		return fmt.Errorf("%w: brand is required", ErrValidation)
	case w.Model == "":
		return fmt.Errorf("%w: model is required", ErrValidation)
	case !w.Price.IsPositive():
		return fmt.Errorf("%w: price must be greater than zero", ErrValidation)
	case !w.Status.Valid():
		return fmt.Errorf("%w: unknown watch status %q", ErrValidation, w.Status)
	}
	return nil
}

func (p WatchPatch) row() (db.Row, error) {
	r := db.Row{}
	if p.Brand != nil {
		if strings.TrimSpace(*p.Brand) == "" {
			return nil, fmt.Errorf("%w: brand cannot be empty", ErrValidation)
		}
		r["brand"] = strings.TrimSpace(*p.Brand)
	}
	if p.Model != nil {
		if strings.TrimSpace(*p.Model) == "" {
			return nil, fmt.Errorf("%w: model cannot be empty", ErrValidation)
		}
		r["model"] = strings.TrimSpace(*p.Model)
	}
	if p.Reference != nil {
		r["reference"] = optional(*p.Reference)
	}
	if p.Year != nil {
		r["year"] = *p.Year
	}
	if p.Condition != nil {
		r["condition"] = optional(*p.Condition)
	}
	if p.Price != nil {
		if !p.Price.IsPositive() {
			return nil, fmt.Errorf("%w: price must be greater than zero", ErrValidation)
		}
		r["price"] = p.Price.String()
	}
	if p.Currency != nil {
		r["currency"] = strings.ToUpper(*p.Currency)
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown watch status %q", ErrValidation, *p.Status)
		}
		r["status"] = string(*p.Status)
	}
	if p.Description != nil {
		r["description"] = optional(*p.Description)
	}
	return r, nil
}

func watchFromRow(r db.Row) models.Watch {
	return models.Watch{
		ID:          r.Int64("id"),
		Brand:       r.String("brand"),
		Model:       r.String("model"),
		Reference:   r.String("reference"),
		Year:        int(r.Int64("year")),
		Condition:   r.String("condition"),
		Price:       rowDecimal(r, "price"),
		Currency:    r.String("currency"),
		Status:      models.WatchStatus(r.String("status")),
		Description: r.String("description"),
		CreatedAt:   r.Time("created_at"),
		UpdatedAt:   r.Time("updated_at"),
	}
}
