package apiv1

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/snapboxhq/snapbox/internal/pkg/payments"
)

// PostTransaction opens a new payment session for a kiosk. A reservation
// that loses a row-lock race is retried once before giving up.
func (s *APIServer) PostTransaction(c *fiber.Ctx) error {
	var req CreateTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := s.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	in := payments.CreateTransactionInput{
		LocationID:  req.LocationID,
		PricePlanID: req.PricePlanID,
	}

	txn, err := s.payments.CreateTransaction(c.Context(), in)
	if errors.Is(err, payments.ErrContention) {
		txn, err = s.payments.CreateTransaction(c.Context(), in)
	}
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(transactionToResponse(txn, s.payments.ExpiryWindow()))
}

// GetTransactionStatus is the kiosk polling endpoint; reading a stale
// PENDING session past its window settles it as EXPIRED first.
func (s *APIServer) GetTransactionStatus(c *fiber.Ctx) error {
	externalID := c.Params("external_id")
	if externalID == "" {
		return badRequest(c, "external_id missing")
	}

	txn, err := s.payments.GetByExternalID(c.Context(), externalID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(transactionToResponse(txn, s.payments.ExpiryWindow()))
}

// GetTransaction returns one session by internal ID
func (s *APIServer) GetTransaction(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return badRequest(c, "Invalid transaction id")
	}

	txn, err := s.payments.GetDetail(c.Context(), uint(id))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(transactionToResponse(txn, s.payments.ExpiryWindow()))
}

// GetTransactions is the admin listing with filtering and pagination
func (s *APIServer) GetTransactions(c *fiber.Ctx) error {
	filter, err := parseListFilter(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	result, err := s.payments.List(c.Context(), *filter)
	if err != nil {
		return errorResponse(c, err)
	}

	items := make([]TransactionResponse, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, transactionToResponse(&result.Items[i], s.payments.ExpiryWindow()))
	}

	return c.JSON(TransactionListResponse{
		Items:      items,
		Total:      result.Total,
		Page:       result.Page,
		Limit:      result.Limit,
		TotalPages: result.TotalPages,
	})
}

func parseListFilter(c *fiber.Ctx) (*payments.ListFilter, error) {
	filter := payments.ListFilter{
		Page:      c.QueryInt("page", 1),
		Limit:     c.QueryInt("limit", 20),
		Search:    strings.TrimSpace(c.Query("search")),
		SortBy:    c.Query("sort_by", "created_at"),
		SortOrder: c.Query("sort_order", "desc"),
	}

	dateFrom, err := time.Parse("2006-01-02", c.Query("date_from"))
	if err != nil {
		return nil, errors.New("date_from is required in YYYY-MM-DD format")
	}
	dateTo, err := time.Parse("2006-01-02", c.Query("date_to"))
	if err != nil {
		return nil, errors.New("date_to is required in YYYY-MM-DD format")
	}
	filter.DateFrom = dateFrom
	filter.DateTo = dateTo

	if raw := c.Query("location_ids"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return nil, errors.New("location_ids must be a comma-separated list of numbers")
			}
			filter.LocationIDs = append(filter.LocationIDs, uint(id))
		}
	}

	if raw := c.Query("statuses"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := strings.ToUpper(strings.TrimSpace(part))
			switch status {
			case "PENDING", "COMPLETED", "FAILED", "EXPIRED":
				filter.Statuses = append(filter.Statuses, status)
			default:
				return nil, errors.New("statuses contains an unknown value: " + part)
			}
		}
	}

	return &filter, nil
}
