package handlers

import (
	"errors"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_be_care/internal/models"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/services/caregiver"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/services/directory"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/utils"
)

type CaregiverHandler struct {
	DB     *gorm.DB
	Store  *caregiver.Store
	Upload *Uploader
	Auth   *AuthHandler
	Log    *zap.Logger
}

type caregiverRegisterReq struct {
	Name            string `form:"name" validate:"required,max=120"`
	Email           string `form:"email" validate:"required,email"`
	Password        string `form:"password" validate:"required,min=6"`
	Phone           string `form:"phone" validate:"required,min=8,max=20,numeric"`
	Gender          string `form:"gender" validate:"required,oneof=male female other"`
	Age             int    `form:"age" validate:"required,gte=18,lte=80"`
	Introduction    string `form:"introduction" validate:"max=2000"`
	ExperienceYears int    `form:"experience_years" validate:"gte=0,lte=60"`
	HourlyRate      int64  `form:"hourly_rate" validate:"required,gt=0"`
}

// formTags accepts repeated service_types fields and comma separated lists.
func formTags(form *multipart.Form) []string {
	var out []string
	for _, v := range form.Value["service_types"] {
		out = append(out, strings.Split(v, ",")...)
	}
	return caregiver.NormalizeTags(out)
}

func formFile(form *multipart.Form, field string) *multipart.FileHeader {
	if fhs := form.File[field]; len(fhs) > 0 {
		return fhs[0]
	}
	return nil
}

// Register creates a caregiver account and its pending profile in one step.
// Multipart fields: the profile attributes, service_types, identity_document,
// certification_document and an optional photo.
func (h *CaregiverHandler) Register(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "multipart form expected")
	}

	var req caregiverRegisterReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Password = strings.TrimSpace(req.Password)
	req.Phone = normalizePhone(req.Phone)

	errs := utils.ValidateStruct(req)
	if errs == nil {
		errs = utils.FieldErrors{}
	}

	tags := formTags(form)
	if len(tags) == 0 {
		errs.Add("service_types", "is required")
	}

	docRule := uploadRule{exts: documentExts, maxSize: maxDocumentSize}
	identity := formFile(form, "identity_document")
	certification := formFile(form, "certification_document")
	photo := formFile(form, "photo")

	for field, fh := range map[string]*multipart.FileHeader{
		"identity_document":      identity,
		"certification_document": certification,
	} {
		if fh == nil {
			errs.Add(field, "is required")
		} else if msg := docRule.check(field, fh); msg != "" {
			errs.Add(field, msg)
		}
	}
	if photo != nil {
		if msg := (uploadRule{exts: photoExts, maxSize: maxPhotoSize}).check("photo", photo); msg != "" {
			errs.Add("photo", msg)
		}
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	var count int64
	if err := h.DB.Model(&models.User{}).Where("email = ? OR phone = ?", req.Email, req.Phone).Count(&count).Error; err != nil {
		return fail500(c, h.Log, "failed to register", err)
	}
	if count > 0 {
		return validationFail(c, utils.FieldErrors{"email": {"Email atau No. HP sudah terdaftar"}})
	}

	userID := uuid.New()
	sub := []string{"caregivers", userID.String()}

	identityURL, err := h.Upload.Save(c, identity, sub...)
	if err != nil {
		return fail500(c, h.Log, "failed to save file", err)
	}
	certURL, err := h.Upload.Save(c, certification, sub...)
	if err != nil {
		h.Upload.RemoveAll(sub...)
		return fail500(c, h.Log, "failed to save file", err)
	}
	var photoURL string
	if photo != nil {
		if photoURL, err = h.Upload.Save(c, photo, sub...); err != nil {
			h.Upload.RemoveAll(sub...)
			return fail500(c, h.Log, "failed to save file", err)
		}
	}

	pw, err := utils.HashPassword(req.Password)
	if err != nil {
		h.Upload.RemoveAll(sub...)
		return fail500(c, h.Log, "failed to process password", err)
	}

	phone := req.Phone
	u := models.User{
		ID:       userID,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    &phone,
		Password: pw,
		Role:     models.RoleCaregiver,
		IsActive: true,
	}
	p := models.CaregiverProfile{
		UserID:                   userID,
		Phone:                    phone,
		Name:                     req.Name,
		Gender:                   models.Gender(req.Gender),
		Age:                      req.Age,
		Introduction:             strings.TrimSpace(req.Introduction),
		ExperienceYears:          req.ExperienceYears,
		HourlyRate:               req.HourlyRate,
		PhotoURL:                 photoURL,
		IsAvailable:              true,
		IdentityDocumentURL:      identityURL,
		CertificationDocumentURL: certURL,
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&u).Error; err != nil {
			return err
		}
		return h.Store.Create(c.UserContext(), tx, &p, tags)
	})
	if err != nil {
		h.Upload.RemoveAll(sub...)
		if errors.Is(err, caregiver.ErrPhoneTaken) || isUniqueViolation(err) {
			return validationFail(c, utils.FieldErrors{"phone": {"No. HP sudah terdaftar"}})
		}
		return fail500(c, h.Log, "failed to register", err)
	}

	h.Log.Info("caregiver registered", zap.Uint("caregiver_id", p.ID), zap.Stringer("user", userID))

	if err := h.Auth.setSession(c, &u); err != nil {
		return fail500(c, h.Log, "failed to sign token", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Registration received, waiting for admin approval",
		"data":    ownProfileJSON(&p),
	})
}

// ownProfileJSON is the caregiver's own view, documents included.
func ownProfileJSON(p *models.CaregiverProfile) fiber.Map {
	return fiber.Map{
		"id":                         p.ID,
		"name":                       p.Name,
		"phone":                      p.Phone,
		"gender":                     p.Gender,
		"age":                        p.Age,
		"introduction":               p.Introduction,
		"experience_years":           p.ExperienceYears,
		"hourly_rate":                p.HourlyRate,
		"photo_url":                  p.PhotoURL,
		"is_available":               p.IsAvailable,
		"service_types":              p.ServiceTypeNames(),
		"approval_status":            p.ApprovalStatus,
		"approved_at":                p.ApprovedAt,
		"average_rating":             p.AverageRating,
		"review_count":               p.ReviewCount,
		"identity_document_url":      p.IdentityDocumentURL,
		"certification_document_url": p.CertificationDocumentURL,
		"created_at":                 p.CreatedAt,
		"updated_at":                 p.UpdatedAt,
	}
}

func (h *CaregiverHandler) profileOf(c *fiber.Ctx) (*models.CaregiverProfile, error) {
	userID, err := getAuth(c)
	if err != nil {
		return nil, err
	}
	p, err := h.Store.FindByUserID(c.UserContext(), userID)
	if errors.Is(err, caregiver.ErrNotFound) {
		return nil, fiber.NewError(fiber.StatusNotFound, "caregiver profile not found")
	}
	return p, err
}

func (h *CaregiverHandler) GetProfile(c *fiber.Ctx) error {
	p, err := h.profileOf(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": ownProfileJSON(p)})
}

type updateCaregiverReq struct {
	Name            *string  `json:"name" validate:"omitempty,min=1,max=120"`
	Gender          *string  `json:"gender" validate:"omitempty,oneof=male female other"`
	Age             *int     `json:"age" validate:"omitempty,gte=18,lte=80"`
	Introduction    *string  `json:"introduction" validate:"omitempty,max=2000"`
	ExperienceYears *int     `json:"experience_years" validate:"omitempty,gte=0,lte=60"`
	HourlyRate      *int64   `json:"hourly_rate" validate:"omitempty,gt=0"`
	IsAvailable     *bool    `json:"is_available"`
	ServiceTypes    []string `json:"service_types"`

	// read only, rejected when present
	Phone          *string `json:"phone"`
	ApprovalStatus *string `json:"approval_status"`
}

func (h *CaregiverHandler) UpdateProfile(c *fiber.Ctx) error {
	p, err := h.profileOf(c)
	if err != nil {
		return err
	}

	var req updateCaregiverReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}

	errs := utils.ValidateStruct(req)
	if errs == nil {
		errs = utils.FieldErrors{}
	}
	if req.Phone != nil {
		errs.Add("phone", "cannot be changed")
	}
	if req.ApprovalStatus != nil {
		errs.Add("approval_status", "cannot be changed")
	}
	if req.ServiceTypes != nil && len(caregiver.NormalizeTags(req.ServiceTypes)) == 0 {
		errs.Add("service_types", "is required")
	}
	if len(errs) > 0 {
		return badRequest(c, errs)
	}

	upd := caregiver.ProfileUpdate{
		Name:            req.Name,
		Age:             req.Age,
		Introduction:    req.Introduction,
		ExperienceYears: req.ExperienceYears,
		HourlyRate:      req.HourlyRate,
		IsAvailable:     req.IsAvailable,
		ServiceTypes:    req.ServiceTypes,
	}
	if req.Gender != nil {
		g := models.Gender(*req.Gender)
		upd.Gender = &g
	}

	out, err := h.Store.UpdateProfile(c.UserContext(), p.ID, upd)
	if err != nil {
		return fail500(c, h.Log, "failed to update profile", err)
	}
	return c.JSON(fiber.Map{"success": true, "data": ownProfileJSON(out)})
}

// UploadPhoto replaces the profile photo (multipart field: photo).
func (h *CaregiverHandler) UploadPhoto(c *fiber.Ctx) error {
	p, err := h.profileOf(c)
	if err != nil {
		return err
	}

	file, err := c.FormFile("photo")
	if err != nil {
		return fail200(c, "photo is required (multipart field: photo)")
	}
	if msg := (uploadRule{exts: photoExts, maxSize: maxPhotoSize}).check("photo", file); msg != "" {
		return fail200(c, msg)
	}

	url, err := h.Upload.Save(c, file, "caregivers", p.UserID.String())
	if err != nil {
		return fail500(c, h.Log, "failed to save file", err)
	}

	out, err := h.Store.UpdateProfile(c.UserContext(), p.ID, caregiver.ProfileUpdate{PhotoURL: &url})
	if err != nil {
		return fail500(c, h.Log, "failed to update profile", err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "photo uploaded",
		"data":    ownProfileJSON(out),
	})
}

// ReplaceDocuments swaps evidentiary documents while the profile is pending.
func (h *CaregiverHandler) ReplaceDocuments(c *fiber.Ctx) error {
	p, err := h.profileOf(c)
	if err != nil {
		return err
	}
	if p.ApprovalStatus != models.ApprovalPending {
		return fail(c, fiber.StatusConflict, "documents are locked once the profile is decided")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "multipart form expected")
	}

	rule := uploadRule{exts: documentExts, maxSize: maxDocumentSize}
	identity := formFile(form, "identity_document")
	certification := formFile(form, "certification_document")
	if identity == nil && certification == nil {
		return fail200(c, "identity_document or certification_document is required")
	}

	var upd caregiver.ProfileUpdate
	for field, fh := range map[string]*multipart.FileHeader{
		"identity_document":      identity,
		"certification_document": certification,
	} {
		if fh == nil {
			continue
		}
		if msg := rule.check(field, fh); msg != "" {
			return fail200(c, msg)
		}
		url, err := h.Upload.Save(c, fh, "caregivers", p.UserID.String())
		if err != nil {
			return fail500(c, h.Log, "failed to save file", err)
		}
		if field == "identity_document" {
			upd.IdentityDocumentURL = &url
		} else {
			upd.CertificationDocumentURL = &url
		}
	}

	out, err := h.Store.UpdateProfile(c.UserContext(), p.ID, upd)
	if err != nil {
		var decided *directory.AlreadyDecidedError
		if errors.As(err, &decided) {
			return fail(c, fiber.StatusConflict, decided.Error())
		}
		return fail500(c, h.Log, "failed to update documents", err)
	}
	return c.JSON(fiber.Map{"success": true, "data": ownProfileJSON(out)})
}
