package apiv1

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/snapboxhq/snapbox/app/models"
)

// PostLocation registers a new photobox location
func (s *APIServer) PostLocation(c *fiber.Ctx) error {
	var req LocationRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := s.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if _, err := s.repos.Location.GetByMachineCode(req.MachineCode); err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   "conflict",
			"message": "A location with this machine code already exists",
		})
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return errorResponse(c, err)
	}

	location := &models.Location{
		MachineCode: req.MachineCode,
		Name:        req.Name,
		Address:     req.Address,
		IsActive:    true,
	}
	if req.IsActive != nil {
		location.IsActive = *req.IsActive
	}

	if err := s.repos.Location.Create(location); err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(locationToResponse(location))
}

// GetLocations lists locations with optional active and search filters
func (s *APIServer) GetLocations(c *fiber.Ctx) error {
	var isActive *bool
	if raw := c.Query("is_active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "is_active must be true or false")
		}
		isActive = &v
	}

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 50)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	locations, total, err := s.repos.Location.List(isActive, c.Query("search"), (page-1)*limit, limit)
	if err != nil {
		return errorResponse(c, err)
	}

	items := make([]LocationResponse, 0, len(locations))
	for i := range locations {
		items = append(items, locationToResponse(&locations[i]))
	}

	return c.JSON(LocationListResponse{Items: items, Total: total})
}

// GetLocation returns one location by ID
func (s *APIServer) GetLocation(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return badRequest(c, "Invalid location id")
	}

	location, err := s.repos.Location.GetByID(uint(id))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(locationToResponse(location))
}

// PutLocation updates a location's details and active flag
func (s *APIServer) PutLocation(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return badRequest(c, "Invalid location id")
	}

	var req LocationRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := s.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	location, err := s.repos.Location.GetByID(uint(id))
	if err != nil {
		return errorResponse(c, err)
	}

	if req.MachineCode != location.MachineCode {
		if _, err := s.repos.Location.GetByMachineCode(req.MachineCode); err == nil {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":   "conflict",
				"message": "A location with this machine code already exists",
			})
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return errorResponse(c, err)
		}
	}

	location.MachineCode = req.MachineCode
	location.Name = req.Name
	location.Address = req.Address
	if req.IsActive != nil {
		location.IsActive = *req.IsActive
	}

	if err := s.repos.Location.Update(location); err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(locationToResponse(location))
}

// PostLocationActivate opens a location for new sessions
func (s *APIServer) PostLocationActivate(c *fiber.Ctx) error {
	return s.setLocationActive(c, true)
}

// PostLocationDeactivate takes a location out of service; sessions already
// created there are untouched
func (s *APIServer) PostLocationDeactivate(c *fiber.Ctx) error {
	return s.setLocationActive(c, false)
}

func (s *APIServer) setLocationActive(c *fiber.Ctx, active bool) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return badRequest(c, "Invalid location id")
	}

	location, err := s.repos.Location.GetByID(uint(id))
	if err != nil {
		return errorResponse(c, err)
	}

	if location.IsActive == active {
		if active {
			return badRequest(c, "Location is already active")
		}
		return badRequest(c, "Location is already inactive")
	}

	location.IsActive = active
	if err := s.repos.Location.Update(location); err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(locationToResponse(location))
}
