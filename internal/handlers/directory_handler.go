package handlers

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Windi-Fikriyansyah/platform_be_care/internal/models"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/services/caregiver"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/services/directory"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/services/rating"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/utils"
)

type DirectoryHandler struct {
	Store   *caregiver.Store
	Ratings *rating.RatingService
	IDKey   string
	Log     *zap.Logger
}

// parseFilter turns query parameters into a directory filter. A single price
// bound leaves the other end open.
func parseFilter(c *fiber.Ctx) (directory.Filter, utils.FieldErrors) {
	var f directory.Filter
	errs := utils.FieldErrors{}

	if v := strings.ToLower(strings.TrimSpace(c.Query("service_type"))); v != "" {
		f.ServiceType = &v
	}
	if v := c.Query("min_experience"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs.Add("min_experience", "must be an integer")
		} else {
			f.MinExperienceYears = &n
		}
	}
	if v := c.Query("min_rating"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		switch {
		case err != nil || math.IsNaN(r):
			errs.Add("min_rating", "must be a number")
		case r < 0 || r > 5:
			errs.Add("min_rating", "must be between 0 and 5")
		default:
			f.MinRating = &r
		}
	}

	minRaw, maxRaw := c.Query("min_price"), c.Query("max_price")
	if minRaw != "" || maxRaw != "" {
		pr := directory.PriceRange{Min: 0, Max: math.MaxInt64}
		if minRaw != "" {
			n, err := strconv.ParseInt(minRaw, 10, 64)
			if err != nil {
				errs.Add("min_price", "must be an integer")
			}
			pr.Min = n
		}
		if maxRaw != "" {
			n, err := strconv.ParseInt(maxRaw, 10, 64)
			if err != nil {
				errs.Add("max_price", "must be an integer")
			}
			pr.Max = n
		}
		f.PriceRange = &pr
	}

	if len(errs) > 0 {
		return f, errs
	}
	return f, nil
}

func (h *DirectoryHandler) publicJSON(p *models.CaregiverProfile) (fiber.Map, error) {
	encID, err := utils.EncryptID(p.ID, h.IDKey)
	if err != nil {
		return nil, err
	}
	return fiber.Map{
		"id":               encID,
		"name":             p.Name,
		"gender":           p.Gender,
		"age":              p.Age,
		"introduction":     p.Introduction,
		"experience_years": p.ExperienceYears,
		"hourly_rate":      p.HourlyRate,
		"photo_url":        p.PhotoURL,
		"is_available":     p.IsAvailable,
		"service_types":    p.ServiceTypeNames(),
		"rating":           p.AverageRating,
		"review_count":     p.ReviewCount,
		"approved_at":      p.ApprovedAt,
	}, nil
}

// Search serves GET /api/caregivers. The result is recomputed from a fresh
// snapshot on every request; page and limit only slice it.
func (h *DirectoryHandler) Search(c *fiber.Ctx) error {
	f, errs := parseFilter(c)
	if errs != nil {
		return badRequest(c, errs)
	}

	snapshot, err := h.Store.Snapshot(c.UserContext())
	if err != nil {
		return fail500(c, h.Log, "failed to load caregivers", err)
	}

	results, err := directory.Search(snapshot, f)
	if err != nil {
		var ife *directory.InvalidFilterError
		if errors.As(err, &ife) {
			return badRequest(c, utils.FieldErrors{ife.Field: {ife.Reason}})
		}
		return fail500(c, h.Log, "failed to search caregivers", err)
	}

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	total := len(results)
	from, to := pageRange(page, limit, total)

	out := make([]fiber.Map, 0, to-from)
	for i := from; i < to; i++ {
		m, err := h.publicJSON(&results[i])
		if err != nil {
			return fail500(c, h.Log, "failed to encode caregiver id", err)
		}
		out = append(out, m)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    out,
		"meta": fiber.Map{
			"page":        page,
			"limit":       limit,
			"total_items": total,
			"total_pages": int(math.Ceil(float64(total) / float64(limit))),
		},
	})
}

// searchableByParam resolves an encrypted :id to a caregiver that may be shown
// publicly.
func (h *DirectoryHandler) searchableByParam(c *fiber.Ctx) (*models.CaregiverProfile, error) {
	rawID, err := utils.DecryptID(c.Params("id"), h.IDKey)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid caregiver id")
	}

	p, err := h.Store.FindByID(c.UserContext(), rawID)
	if errors.Is(err, caregiver.ErrNotFound) || (err == nil && !p.Searchable()) {
		return nil, fiber.NewError(fiber.StatusNotFound, "caregiver not found")
	}
	return p, err
}

func reviewsJSON(reviews []models.Review) []fiber.Map {
	out := make([]fiber.Map, 0, len(reviews))
	for _, r := range reviews {
		name := "User"
		if r.Client != nil {
			name = r.Client.Name
		}
		out = append(out, fiber.Map{
			"id":         r.ID,
			"rating":     r.Rating,
			"comment":    r.Comment,
			"created_at": r.CreatedAt,
			"reviewer":   fiber.Map{"name": name},
		})
	}
	return out
}

func (h *DirectoryHandler) Detail(c *fiber.Ctx) error {
	p, err := h.searchableByParam(c)
	if err != nil {
		return err
	}

	data, err := h.publicJSON(p)
	if err != nil {
		return fail500(c, h.Log, "failed to encode caregiver id", err)
	}

	reviews, err := h.Ratings.ListForCaregiver(c.UserContext(), p.ID, 5)
	if err != nil {
		return fail500(c, h.Log, "failed to load reviews", err)
	}
	data["recent_reviews"] = reviewsJSON(reviews)

	return c.JSON(fiber.Map{"success": true, "data": data})
}

func (h *DirectoryHandler) Reviews(c *fiber.Ctx) error {
	p, err := h.searchableByParam(c)
	if err != nil {
		return err
	}

	reviews, err := h.Ratings.ListForCaregiver(c.UserContext(), p.ID, c.QueryInt("limit", 20))
	if err != nil {
		return fail500(c, h.Log, "failed to load reviews", err)
	}
	return c.JSON(fiber.Map{"success": true, "data": reviewsJSON(reviews)})
}

// ServiceTypes lists the tags carried by searchable caregivers.
func (h *DirectoryHandler) ServiceTypes(c *fiber.Ctx) error {
	names, err := h.Store.ServiceTypesInUse(c.UserContext())
	if err != nil {
		return fail500(c, h.Log, "failed to load service types", err)
	}
	if names == nil {
		names = []string{}
	}
	return c.JSON(fiber.Map{"success": true, "data": names})
}
