package service

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
	"github.com/spec-kit/ticket-lifecycle/internal/repository"
	apperrors "github.com/spec-kit/ticket-lifecycle/pkg/util/errorutil"
)

func TestTicketLifecycleScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ticket := h.create(t, printerInput())
	assert.Equal(t, domain.TicketStatusNew, ticket.Status)
	assert.NotEmpty(t, ticket.ID)

	ticket, err := h.assign.AssignTicket(ctx, ticket.ID, "agent-1", "mgr-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusAssigned, ticket.Status)
	assert.Equal(t, "agent-1", ticket.AgentID())

	ticket, err = h.tickSvc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusInProgress, "agent-1", "")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, ticket.Status)

	ticket, err = h.tickSvc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusResolved, "agent-1", "")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, ticket.Status)
	require.NotNil(t, ticket.ResolvedAt)

	ticket, err = h.tickSvc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusClosed, "agent-1", "")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, ticket.Status)
	require.NotNil(t, ticket.ClosedAt)

	stored, err := h.tickSvc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.UpdatedAt, stored.UpdatedAt)
	assert.Equal(t, int64(5), stored.Version)

	history, err := h.tickSvc.ListHistory(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, history, 5)

	assert.Equal(t, domain.ActionStatusChanged, history[0].Action)
	assert.Equal(t, "closed", *history[0].NewValue)
	assert.Equal(t, "resolved", *history[1].NewValue)
	assert.Equal(t, "in_progress", *history[2].NewValue)
	assert.Equal(t, "assigned", *history[2].PreviousValue)

	assert.Equal(t, domain.ActionAssigned, history[3].Action)
	assert.Equal(t, "mgr-1", history[3].UserID)
	assert.Nil(t, history[3].PreviousValue)
	assert.Equal(t, "agent-1", *history[3].NewValue)
	assert.Equal(t, "agent-1", history[3].Metadata["agentId"])

	created := history[4]
	assert.Equal(t, domain.ActionCreated, created.Action)
	assert.Equal(t, "cust-1", created.UserID)
	assert.Equal(t, "new", *created.NewValue)
	assert.Equal(t, "Printer broken", created.Metadata["title"])
	assert.Equal(t, "high", created.Metadata["priority"])

	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].Timestamp.After(history[i-1].Timestamp))
	}

	activity := h.metrics.Snapshot().TicketActivity
	assert.Equal(t, int64(1), activity["ticket_created"])
	assert.Equal(t, int64(1), activity["ticket_assigned"])
	assert.Equal(t, int64(3), activity["ticket_status_changed"])
}

func TestResolveFromNewIsRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.create(t, printerInput())

	_, err := h.tickSvc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusResolved, "agent-1", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidTransition(err))
	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, "new", domainErr.Details["from"])
	assert.Equal(t, "resolved", domainErr.Details["to"])
	assert.Equal(t, "Invalid status transition from new to resolved", domainErr.Message)

	stored, err := h.tickSvc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusNew, stored.Status)
	assert.Nil(t, stored.ResolvedAt)

	history, err := h.tickSvc.ListHistory(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSameStateTransitionIsRejected(t *testing.T) {
	h := newHarness(t)
	ticket := h.create(t, printerInput())

	_, err := h.tickSvc.UpdateStatus(context.Background(), ticket.ID, domain.TicketStatusNew, "agent-1", "")
	assert.True(t, apperrors.IsInvalidTransition(err))

	_, err = h.tickSvc.UpdateStatus(context.Background(), ticket.ID, domain.TicketStatus("archived"), "agent-1", "")
	assert.True(t, apperrors.IsInvalidTransition(err))
}

func TestCreateTicketValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.tickSvc.CreateTicket(ctx, domain.TicketInput{Title: "  ", Priority: "critical"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	messages := apperrors.ToDomainError(err).Details["errors"].([]string)
	assert.ElementsMatch(t, []string{
		"Ticket title is required",
		"Ticket description is required",
		"Customer ID is required",
		"Invalid ticket priority",
	}, messages)

	page, err := h.tickSvc.ListTickets(ctx, repository.TicketFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
}

func TestCreateTicketNormalizesInput(t *testing.T) {
	h := newHarness(t)
	ticket := h.create(t, domain.TicketInput{
		Title:       "  VPN down ",
		Description: " cannot connect\n",
		CustomerID:  " cust-9 ",
	})

	assert.Equal(t, "VPN down", ticket.Title)
	assert.Equal(t, "cannot connect", ticket.Description)
	assert.Equal(t, "cust-9", ticket.CustomerID)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	assert.Equal(t, DefaultCategory, ticket.Category)
	assert.Nil(t, ticket.AssignedAgentID)
	assert.Equal(t, ticket.CreatedAt, ticket.UpdatedAt)
	assert.Equal(t, int64(1), ticket.Version)
}

func TestUpdateStatusUnknownTicket(t *testing.T) {
	h := newHarness(t)
	_, err := h.tickSvc.UpdateStatus(context.Background(), "missing", domain.TicketStatusClosed, "agent-1", "")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = h.tickSvc.ListHistory(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = h.tickSvc.GetTicket(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))

	ticket, found, err := h.tickSvc.FindTicket(context.Background(), "missing")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, ticket)
}

func TestUpdateStatusRecordsComment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.create(t, printerInput())

	_, err := h.tickSvc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusClosed, "agent-1", "  duplicate of #12 ")
	require.NoError(t, err)

	history, err := h.tickSvc.ListHistory(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, history[0].Comment)
	assert.Equal(t, "duplicate of #12", *history[0].Comment)
	assert.Equal(t, "new", *history[0].PreviousValue)
}

func TestUpdateStatusRejectsOversizedComment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.create(t, printerInput())

	_, err := h.tickSvc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusClosed, "agent-1", strings.Repeat("x", domain.MaxCommentLength+1))
	assert.True(t, apperrors.IsValidation(err))

	stored, err := h.tickSvc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusNew, stored.Status)
}

func TestResolvedAtSurvivesReopen(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.create(t, printerInput())

	_, err := h.assign.AssignTicket(ctx, ticket.ID, "agent-1", "mgr-1")
	require.NoError(t, err)
	_, err = h.tickSvc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusInProgress, "agent-1", "")
	require.NoError(t, err)
	resolved, err := h.tickSvc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusResolved, "agent-1", "")
	require.NoError(t, err)
	resolvedAt := *resolved.ResolvedAt

	reopened, err := h.tickSvc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusInProgress, "cust-1", "still broken")
	require.NoError(t, err)
	require.NotNil(t, reopened.ResolvedAt)
	assert.Equal(t, resolvedAt, *reopened.ResolvedAt)

	again, err := h.tickSvc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusResolved, "agent-1", "")
	require.NoError(t, err)
	assert.True(t, again.ResolvedAt.After(resolvedAt))
	assert.Equal(t, again.UpdatedAt, *again.ResolvedAt)
}

func TestUpdatedAtStrictlyIncreasesWithFrozenClock(t *testing.T) {
	frozen := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	h := newHarness(t, withClock(func() time.Time { return frozen }))
	ctx := context.Background()
	ticket := h.create(t, printerInput())

	last := ticket.UpdatedAt
	ticket, err := h.assign.AssignTicket(ctx, ticket.ID, "agent-1", "mgr-1")
	require.NoError(t, err)
	assert.True(t, ticket.UpdatedAt.After(last))
	assert.False(t, ticket.CreatedAt.After(ticket.UpdatedAt))

	last = ticket.UpdatedAt
	ticket, err = h.tickSvc.UpdatePriority(ctx, ticket.ID, domain.TicketPriorityUrgent, "agent-1")
	require.NoError(t, err)
	assert.True(t, ticket.UpdatedAt.After(last))

	last = ticket.UpdatedAt
	ticket, err = h.tickSvc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusClosed, "agent-1", "")
	require.NoError(t, err)
	assert.True(t, ticket.UpdatedAt.After(last))
}

func TestUpdatePriority(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.create(t, printerInput())

	updated, err := h.tickSvc.UpdatePriority(ctx, ticket.ID, domain.TicketPriorityUrgent, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityUrgent, updated.Priority)
	assert.Equal(t, domain.TicketStatusNew, updated.Status)

	history, err := h.tickSvc.ListHistory(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionPriorityChanged, history[0].Action)
	assert.Equal(t, "high", *history[0].PreviousValue)
	assert.Equal(t, "urgent", *history[0].NewValue)

	_, err = h.tickSvc.UpdatePriority(ctx, ticket.ID, domain.TicketPriorityUrgent, "agent-1")
	assert.True(t, apperrors.IsValidation(err))

	_, err = h.tickSvc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusClosed, "agent-1", "")
	require.NoError(t, err)
	_, err = h.tickSvc.UpdatePriority(ctx, ticket.ID, "bogus", "agent-1")
	require.Error(t, err)
	assert.ElementsMatch(t,
		[]string{"Invalid ticket priority", "Cannot change priority of closed tickets"},
		apperrors.ToDomainError(err).Details["errors"])
}

func TestAddCommentLeavesTicketUntouched(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.create(t, printerInput())

	entry, err := h.tickSvc.AddComment(ctx, ticket.ID, "agent-1", " Ordered a new cartridge ")
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, domain.ActionCommentAdded, entry.Action)
	assert.Equal(t, "Ordered a new cartridge", *entry.Comment)
	assert.False(t, entry.Timestamp.IsZero())

	stored, err := h.tickSvc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.Version, stored.Version)
	assert.Equal(t, ticket.UpdatedAt, stored.UpdatedAt)

	_, err = h.tickSvc.AddComment(ctx, ticket.ID, "agent-1", "   ")
	assert.True(t, apperrors.IsValidation(err))

	_, err = h.tickSvc.AddComment(ctx, "missing", "agent-1", "hello")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestListTicketsFiltersAndPaginates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		h.create(t, printerInput())
	}
	other := printerInput()
	other.CustomerID = "cust-2"
	other.Priority = domain.TicketPriorityLow
	h.create(t, other)
	latest := h.create(t, other)

	page, err := h.tickSvc.ListTickets(ctx, repository.TicketFilter{CustomerID: ptr("cust-1")})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Items, 3)
	for _, item := range page.Items {
		assert.Equal(t, "cust-1", item.CustomerID)
	}

	page, err = h.tickSvc.ListTickets(ctx, repository.TicketFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, latest.ID, page.Items[0].ID)

	page, err = h.tickSvc.ListTickets(ctx, repository.TicketFilter{
		Priority:   ptr(domain.TicketPriorityLow),
		CustomerID: ptr("cust-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.NotNil(t, page.Items)
}

func TestListByCustomerAndAgent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.create(t, printerInput())
	h.create(t, printerInput())

	_, err := h.assign.AssignTicket(ctx, first.ID, "agent-7", "mgr-1")
	require.NoError(t, err)

	mine, err := h.tickSvc.ListByCustomer(ctx, "cust-1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	assigned, err := h.tickSvc.ListByAgent(ctx, "agent-7")
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, first.ID, assigned[0].ID)

	none, err := h.tickSvc.ListByAgent(ctx, "agent-8")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAuditFailureKeepsCommittedMutation(t *testing.T) {
	h := newHarness(t, withHistoryRepo(func(inner repository.TicketHistoryRepository) repository.TicketHistoryRepository {
		return &flakyHistory{TicketHistoryRepository: inner, allowed: 1}
	}))
	ctx := context.Background()
	ticket := h.create(t, printerInput())

	_, err := h.tickSvc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusClosed, "agent-1", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, errHistoryDown)
	assert.False(t, apperrors.IsValidation(err))

	stored, err := h.tickSvc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, stored.Status)

	history, err := h.tickSvc.ListHistory(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Zero(t, h.metrics.Snapshot().TicketActivity["ticket_status_changed"])
}

func TestAuditFailureOnCreateKeepsTicket(t *testing.T) {
	h := newHarness(t, withHistoryRepo(func(inner repository.TicketHistoryRepository) repository.TicketHistoryRepository {
		return &flakyHistory{TicketHistoryRepository: inner}
	}))
	ctx := context.Background()

	_, err := h.tickSvc.CreateTicket(ctx, printerInput())
	assert.ErrorIs(t, err, errHistoryDown)

	page, err := h.tickSvc.ListTickets(ctx, repository.TicketFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestConcurrentWriteSurfacesConflict(t *testing.T) {
	var racing *racingTickets
	h := newHarness(t, withTicketRepo(func(inner repository.TicketRepository) repository.TicketRepository {
		racing = &racingTickets{TicketRepository: inner}
		return racing
	}))
	ctx := context.Background()
	ticket := h.create(t, printerInput())

	racing.race = func(ctx context.Context, id string) {
		other, err := racing.TicketRepository.GetByID(ctx, id)
		require.NoError(t, err)
		other.Priority = domain.TicketPriorityLow
		other.Touch(time.Now().UTC())
		require.NoError(t, racing.TicketRepository.Update(ctx, other))
	}

	_, err := h.tickSvc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusClosed, "agent-1", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	stored, err := h.tickSvc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusNew, stored.Status)
	assert.Equal(t, domain.TicketPriorityLow, stored.Priority)

	history, err := h.tickSvc.ListHistory(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestGetTicketIsRepeatable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ticket := h.create(t, printerInput())
	_, err := h.assign.AssignTicket(ctx, ticket.ID, "agent-1", "mgr-1")
	require.NoError(t, err)
	_, err = h.tickSvc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusResolved, "agent-1", "")
	require.NoError(t, err)

	first, err := h.tickSvc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	second, err := h.tickSvc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.NotSame(t, first, second)
}

func TestStringPreviewKeepsRunesWhole(t *testing.T) {
	preview := stringPreview(strings.Repeat("é", 200), 120)
	assert.True(t, utf8.ValidString(preview))
	assert.Equal(t, 120, utf8.RuneCountInString(preview))
	assert.True(t, strings.HasSuffix(preview, "..."))

	assert.Equal(t, "日本語", stringPreview("  日本語  ", 120))
	assert.Equal(t, "日本", stringPreview("日本語", 2))
}
