package apiv1

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/snapboxhq/snapbox/app/models"
)

// PostPricePlan creates a new price plan
func (s *APIServer) PostPricePlan(c *fiber.Ctx) error {
	var req PricePlanRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := s.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		return badRequest(c, "amount must be a positive decimal")
	}

	plan := &models.PricePlan{
		Amount:      amount,
		Description: req.Description,
		Quota:       req.Quota,
		IsActive:    true,
	}
	if err := s.repos.PricePlan.Create(plan); err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(pricePlanToResponse(plan, nil))
}

// GetPricePlans lists all price plans with their remaining quota
func (s *APIServer) GetPricePlans(c *fiber.Ctx) error {
	plans, err := s.repos.PricePlan.GetAll()
	if err != nil {
		return errorResponse(c, err)
	}

	items := make([]PricePlanResponse, 0, len(plans))
	for i := range plans {
		remaining, err := s.payments.RemainingQuota(c.Context(), &plans[i])
		if err != nil {
			return errorResponse(c, err)
		}
		items = append(items, pricePlanToResponse(&plans[i], remaining))
	}

	return c.JSON(items)
}

// GetPricePlan returns one price plan with its remaining quota
func (s *APIServer) GetPricePlan(c *fiber.Ctx) error {
	plan, err := s.repos.PricePlan.GetByID(c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}

	remaining, err := s.payments.RemainingQuota(c.Context(), plan)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(pricePlanToResponse(plan, remaining))
}

// PutPricePlan updates a price plan's amount, description and quota
func (s *APIServer) PutPricePlan(c *fiber.Ctx) error {
	var req PricePlanRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := s.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		return badRequest(c, "amount must be a positive decimal")
	}

	plan, err := s.repos.PricePlan.GetByID(c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}

	plan.Amount = amount
	plan.Description = req.Description
	plan.Quota = req.Quota
	if err := s.repos.PricePlan.Update(plan); err != nil {
		return errorResponse(c, err)
	}

	remaining, err := s.payments.RemainingQuota(c.Context(), plan)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(pricePlanToResponse(plan, remaining))
}

// PostPricePlanActivate makes a plan available for new sessions
func (s *APIServer) PostPricePlanActivate(c *fiber.Ctx) error {
	return s.setPricePlanActive(c, true)
}

// PostPricePlanDeactivate withdraws a plan; existing sessions are untouched
func (s *APIServer) PostPricePlanDeactivate(c *fiber.Ctx) error {
	return s.setPricePlanActive(c, false)
}

func (s *APIServer) setPricePlanActive(c *fiber.Ctx, active bool) error {
	plan, err := s.repos.PricePlan.GetByID(c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}

	if plan.IsActive == active {
		if active {
			return badRequest(c, "Price plan is already active")
		}
		return badRequest(c, "Price plan is already inactive")
	}

	plan.IsActive = active
	if err := s.repos.PricePlan.Update(plan); err != nil {
		return errorResponse(c, err)
	}

	remaining, err := s.payments.RemainingQuota(c.Context(), plan)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(pricePlanToResponse(plan, remaining))
}
