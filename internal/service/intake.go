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
)

// Notifier is the part of NotificationService the intake flow depends on
type Notifier interface {
	Notify(ctx context.Context, req models.NotificationRequest) (string, error)
}

// IntakeService records customer inquiries and sell requests and alerts the shop
type IntakeService struct {
	store    DataStore
	notifier Notifier
	admin    string
	logger   *slog.Logger
}

var _ broker.IntakeHandler = (*IntakeService)(nil)

// NewIntakeService builds the service. An empty adminDestination disables admin alerts
func NewIntakeService(s DataStore, n Notifier, adminDestination string, l *slog.Logger) *IntakeService {
	if l == nil {
		l = infra.NopLogger()
	}
	return &IntakeService{
		store:    s,
		notifier: n,
		admin:    strings.TrimSpace(adminDestination),
		logger:   l.With("service", "intake"),
	}
}

func (s *IntakeService) SubmitInquiry(ctx context.Context, in models.Inquiry) (models.Inquiry, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := validateContact(in.Name, in.Email, in.Phone); err != nil {
		return models.Inquiry{}, err
	}

	subject := "general question"
	if in.WatchID != 0 {
		row, found, err := s.store.SelectOne(ctx, models.TableWatches, db.Eq("id", in.WatchID))
		if err != nil {
			return models.Inquiry{}, fmt.Errorf("resolve watch %d: %w", in.WatchID, err)
		}
		if !found {
			return models.Inquiry{}, ErrWatchNotFound
		}
		subject = row.String("brand") + " " + row.String("model")
	}

	var watchID any
	if in.WatchID != 0 {
		watchID = in.WatchID
	}
	id, err := s.store.Insert(ctx, models.TableInquiries, db.Row{
		"watch_id": watchID,
		"name":     in.Name,
		"email":    optional(in.Email),
		"phone":    optional(in.Phone),
		"message":  in.Message,
		"status":   string(models.InquiryNew),
	})
	if err != nil {
		return models.Inquiry{}, fmt.Errorf("store inquiry: %w", err)
	}

	in.ID = id
	in.Status = models.InquiryNew
	s.logger.Info("Inquiry received", "inquiry_id", id, "watch_id", in.WatchID)

	s.alert(ctx, fmt.Sprintf("New inquiry #%d from %s (%s): %s", id, in.Name, contactOf(in.Email, in.Phone), subject),
		fmt.Sprintf("%s:%d", models.TableInquiries, id))
	return in, nil
}

func (s *IntakeService) SubmitSellRequest(ctx context.Context, in models.SellSubmission) (models.SellSubmission, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Brand = strings.TrimSpace(in.Brand)
	if err := validateContact(in.Name, in.Email, in.Phone); err != nil {
		return models.SellSubmission{}, err
	}
	if in.Brand == "" {
		return models.SellSubmission{}, fmt.Errorf("%w: brand is required", ErrValidation)
	}
	if in.AskingPrice.IsNegative() {
		return models.SellSubmission{}, fmt.Errorf("%w: asking price cannot be negative", ErrValidation)
	}

	var asking any
	if !in.AskingPrice.IsZero() {
		asking = in.AskingPrice.String()
	}
	id, err := s.store.Insert(ctx, models.TableSellSubmissions, db.Row{
		"name":         in.Name,
		"email":        optional(in.Email),
		"phone":        optional(in.Phone),
		"brand":        in.Brand,
		"model":        optional(in.Model),
		"year":         in.Year,
		"asking_price": asking,
		"notes":        optional(in.Notes),
		"status":       string(models.SellNew),
	})
	if err != nil {
		return models.SellSubmission{}, fmt.Errorf("store sell submission: %w", err)
	}

	in.ID = id
	in.Status = models.SellNew
	s.logger.Info("Sell request received", "submission_id", id, "brand", in.Brand)

	s.alert(ctx, fmt.Sprintf("New sell request #%d from %s (%s): %s %s", id, in.Name, contactOf(in.Email, in.Phone), in.Brand, in.Model),
		fmt.Sprintf("%s:%d", models.TableSellSubmissions, id))
	return in, nil
}

// ListInquiries returns inquiries newest first. An empty status returns all of them
func (s *IntakeService) ListInquiries(ctx context.Context, status models.InquiryStatus) ([]models.Inquiry, error) {
	q := db.Query{OrderBy: []db.Order{db.Desc("id")}}
	if status != "" {
		if !status.Valid() {
			return nil, fmt.Errorf("%w: unknown inquiry status %q", ErrValidation, status)
		}
		q.Where = []db.Filter{db.Eq("status", string(status))}
	}

	rows, err := s.store.SelectAll(ctx, models.TableInquiries, q)
	if err != nil {
		return nil, fmt.Errorf("list inquiries: %w", err)
	}

	out := make([]models.Inquiry, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Inquiry{
			ID:        r.Int64("id"),
			WatchID:   r.Int64("watch_id"),
			Name:      r.String("name"),
			Email:     r.String("email"),
			Phone:     r.String("phone"),
			Message:   r.String("message"),
			Status:    models.InquiryStatus(r.String("status")),
			CreatedAt: r.Time("created_at"),
		})
	}
	return out, nil
}

func (s *IntakeService) UpdateInquiryStatus(ctx context.Context, id int64, status models.InquiryStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown inquiry status %q", ErrValidation, status)
	}
	changed, err := s.store.Update(ctx, models.TableInquiries, db.Row{"status": string(status)}, db.Eq("id", id))
	if err != nil {
		return fmt.Errorf("update inquiry %d: %w", id, err)
	}
	if !changed {
		return ErrInquiryNotFound
	}
	return nil
}

func (s *IntakeService) ListSellSubmissions(ctx context.Context, status models.SellStatus) ([]models.SellSubmission, error) {
	q := db.Query{OrderBy: []db.Order{db.Desc("id")}}
	if status != "" {
		if !status.Valid() {
			return nil, fmt.Errorf("%w: unknown sell status %q", ErrValidation, status)
		}
		q.Where = []db.Filter{db.Eq("status", string(status))}
	}

	rows, err := s.store.SelectAll(ctx, models.TableSellSubmissions, q)
	if err != nil {
		return nil, fmt.Errorf("list sell submissions: %w", err)
	}

	out := make([]models.SellSubmission, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.SellSubmission{
			ID:          r.Int64("id"),
			Name:        r.String("name"),
			Email:       r.String("email"),
			Phone:       r.String("phone"),
			Brand:       r.String("brand"),
			Model:       r.String("model"),
			Year:        int(r.Int64("year")),
			AskingPrice: rowDecimal(r, "asking_price"),
			Notes:       r.String("notes"),
			Status:      models.SellStatus(r.String("status")),
			CreatedAt:   r.Time("created_at"),
		})
	}
	return out, nil
}

func (s *IntakeService) UpdateSellSubmissionStatus(ctx context.Context, id int64, status models.SellStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown sell status %q", ErrValidation, status)
	}
	changed, err := s.store.Update(ctx, models.TableSellSubmissions, db.Row{"status": string(status)}, db.Eq("id", id))
	if err != nil {
		return fmt.Errorf("update sell submission %d: %w", id, err)
	}
	if !changed {
		return ErrSellSubmissionNotFound
	}
	return nil
}

// alert never fails the intake; a rejected notification is only logged
func (s *IntakeService) alert(ctx context.Context, body, reference string) {
	if s.admin == "" || s.notifier == nil {
		return
	}
	jobID, err := s.notifier.Notify(ctx, models.NotificationRequest{
		Destination: s.admin,
		Body:        body,
		Reference:   reference,
	})
	if err != nil {
		s.logger.Warn("Admin alert not queued", "reference", reference, "error", err)
		return
	}
	s.logger.Debug("Admin alert queued", "reference", reference, "job_id", jobID)
}

func validateContact(name, email, phone string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if email == "" && phone == "" {
		return fmt.Errorf("%w: email or phone is required", ErrValidation)
	}
	if email != "" && !strings.Contains(email, "@") {
		return fmt.Errorf("%w: email %q is not valid", ErrValidation, email)
	}
	return nil
}

func contactOf(email, phone string) string {
	if email != "" {
		return email
	}
	return phone
}
