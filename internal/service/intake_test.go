package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Guizzs26/watch-crm/internal/db/dbtest"
	"github.com/Guizzs26/watch-crm/internal/models"
	"github.com/Guizzs26/watch-crm/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	err  error
	sent []models.NotificationRequest
}

func (n *recordingNotifier) Notify(_ context.Context, req models.NotificationRequest) (string, error) {
	n.sent = append(n.sent, req)
	if n.err != nil {
		return "", n.err
	}
	return "job-1", nil
}

func newIntake(t *testing.T, n service.Notifier, admin string) (*service.IntakeService, *service.CatalogService) {
	t.Helper()
	store := dbtest.Open(t)
	return service.NewIntakeService(store, n, admin, nil), service.NewCatalogService(store, nil)
}

func TestIntake_SubmitInquiryAlertsAdmin(t *testing.T) {
	n := &recordingNotifier{}
	intake, catalog := newIntake(t, n, "+15550000")
	ctx := context.Background()

	w := seedWatch(t, catalog, "Omega", "Speedmaster", "311.30", "5200")

	in, err := intake.SubmitInquiry(ctx, models.Inquiry{
		WatchID: w.ID,
		Name:    "Ada",
		Email:   "ada@example.com",
		Message: "Is the bracelet original?",
	})
	require.NoError(t, err)
	assert.Positive(t, in.ID)
	assert.Equal(t, models.InquiryNew, in.Status)

	require.Len(t, n.sent, 1)
	assert.Equal(t, "+15550000", n.sent[0].Destination)
	assert.Contains(t, n.sent[0].Body, "Omega Speedmaster")
	assert.Contains(t, n.sent[0].Body, "ada@example.com")
	assert.Equal(t, "inquiries:1", n.sent[0].Reference)

	list, err := intake.ListInquiries(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, w.ID, list[0].WatchID)
	assert.Equal(t, "Is the bracelet original?", list[0].Message)
}

func TestIntake_NotificationFailureNeverFailsIntake(t *testing.T) {
	n := &recordingNotifier{err: errors.New("queue unavailable")}
	intake, _ := newIntake(t, n, "+15550000")

	in, err := intake.SubmitInquiry(context.Background(), models.Inquiry{Name: "Grace", Phone: "+15550101", Message: "Any Tudor?"})
	require.NoError(t, err)
	assert.Positive(t, in.ID)
	assert.Len(t, n.sent, 1)
}

func TestIntake_NoAdminDestinationSkipsAlert(t *testing.T) {
	n := &recordingNotifier{}
	intake, _ := newIntake(t, n, "")

	_, err := intake.SubmitInquiry(context.Background(), models.Inquiry{Name: "Grace", Phone: "+15550101"})
	require.NoError(t, err)
	assert.Empty(t, n.sent)
}

func TestIntake_SubmitInquiryValidation(t *testing.T) {
	intake, _ := newIntake(t, &recordingNotifier{}, "admin")
	ctx := context.Background()

	tests := []struct {
		name    string
		inquiry models.Inquiry
		wantErr error
	}{
		{name: "missing name", inquiry: models.Inquiry{Email: "a@b.c"}, wantErr: service.ErrValidation},
		{name: "missing contact", inquiry: models.Inquiry{Name: "Ada"}, wantErr: service.ErrValidation},
		{name: "bad email", inquiry: models.Inquiry{Name: "Ada", Email: "nope"}, wantErr: service.ErrValidation},
		{name: "unknown watch", inquiry: models.Inquiry{Name: "Ada", Email: "a@b.c", WatchID: 42}, wantErr: service.ErrWatchNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := intake.SubmitInquiry(ctx, tt.inquiry)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	list, err := intake.ListInquiries(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestIntake_InquiryStatusLifecycle(t *testing.T) {
	intake, _ := newIntake(t, nil, "")
	ctx := context.Background()

	first, err := intake.SubmitInquiry(ctx, models.Inquiry{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	second, err := intake.SubmitInquiry(ctx, models.Inquiry{Name: "Grace", Email: "grace@example.com"})
	require.NoError(t, err)

	require.NoError(t, intake.UpdateInquiryStatus(ctx, first.ID, models.InquiryContacted))

	open, err := intake.ListInquiries(ctx, models.InquiryNew)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, second.ID, open[0].ID)

	all, err := intake.ListInquiries(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest first")

	assert.ErrorIs(t, intake.UpdateInquiryStatus(ctx, first.ID, "archived"), service.ErrValidation)
	assert.ErrorIs(t, intake.UpdateInquiryStatus(ctx, 999, models.InquiryClosed), service.ErrInquiryNotFound)

	_, err = intake.ListInquiries(ctx, "archived")
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestIntake_SellRequestLifecycle(t *testing.T) {
	n := &recordingNotifier{}
	intake, _ := newIntake(t, n, "owner@shop.example")
	ctx := context.Background()

	sub, err := intake.SubmitSellRequest(ctx, models.SellSubmission{
		Name:        "Linus",
		Email:       "linus@example.com",
		Brand:       "Rolex",
		Model:       "GMT-Master II",
		Year:        2019,
		AskingPrice: decimal.RequireFromString("14500"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.SellNew, sub.Status)

	require.Len(t, n.sent, 1)
	assert.Contains(t, n.sent[0].Body, "Rolex GMT-Master II")
	assert.Equal(t, "sell_submissions:1", n.sent[0].Reference)

	_, err = intake.SubmitSellRequest(ctx, models.SellSubmission{Name: "Linus", Email: "linus@example.com"})
	assert.ErrorIs(t, err, service.ErrValidation, "brand is required")

	_, err = intake.SubmitSellRequest(ctx, models.SellSubmission{Name: "Linus", Phone: "1", Brand: "Rolex", AskingPrice: decimal.NewFromInt(-5)})
	assert.ErrorIs(t, err, service.ErrValidation)

	require.NoError(t, intake.UpdateSellSubmissionStatus(ctx, sub.ID, models.SellOffered))
	assert.ErrorIs(t, intake.UpdateSellSubmissionStatus(ctx, sub.ID, "sold"), service.ErrValidation)
	assert.ErrorIs(t, intake.UpdateSellSubmissionStatus(ctx, 999, models.SellRejected), service.ErrSellSubmissionNotFound)

	offered, err := intake.ListSellSubmissions(ctx, models.SellOffered)
	require.NoError(t, err)
	require.Len(t, offered, 1)
	assert.Equal(t, "GMT-Master II", offered[0].Model)
	assert.Equal(t, 2019, offered[0].Year)
	assert.True(t, offered[0].AskingPrice.Equal(decimal.NewFromInt(14500)))

	none, err := intake.ListSellSubmissions(ctx, models.SellReviewing)
	require.NoError(t, err)
	assert.Empty(t, none)
}
