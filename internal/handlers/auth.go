package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_be_care/internal/middleware"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/models"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/utils"
)

type AuthHandler struct {
	DB           *gorm.DB
	JWTSecret    string
	Expires      int
	SecureCookie bool
	Log          *zap.Logger
}

func (h *AuthHandler) setSession(c *fiber.Ctx, u *models.User) error {
	token, err := utils.SignJWT(h.JWTSecret, u.ID.String(), string(u.Role), h.Expires)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.SecureCookie,
		SameSite: "Lax",
		MaxAge:   h.Expires * 60,
	})
	return nil
}

func userJSON(u *models.User) fiber.Map {
	return fiber.Map{
		"id":    u.ID,
		"name":  u.Name,
		"email": u.Email,
		"phone": u.Phone,
		"role":  u.Role,
	}
}

type RegisterReq struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Phone    string `json:"phone" validate:"omitempty,min=8,max=20"`
}

// Register creates a client account. Caregivers sign up through the
// caregiver registration form, admins are seeded.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = normalizePhone(req.Phone)
	req.Password = strings.TrimSpace(req.Password)

	if errs := utils.ValidateStruct(req); errs != nil {
		return validationFail(c, errs)
	}

	var count int64
	if err := h.DB.Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		return fail500(c, h.Log, "Terjadi kesalahan server", err)
	}
	if count > 0 {
		errs := utils.FieldErrors{}
		errs.Add("email", "Email sudah terdaftar")
		return validationFail(c, errs)
	}

	var phone *string
	if req.Phone != "" {
		if err := h.DB.Model(&models.User{}).Where("phone = ?", req.Phone).Count(&count).Error; err != nil {
			return fail500(c, h.Log, "Terjadi kesalahan server", err)
		}
		if count > 0 {
			errs := utils.FieldErrors{}
			errs.Add("phone", "No. HP sudah terdaftar")
			return validationFail(c, errs)
		}
		phone = &req.Phone
	}

	pw, err := utils.HashPassword(req.Password)
	if err != nil {
		return fail500(c, h.Log, "Gagal memproses password", err)
	}

	u := models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: pw,
		Role:     models.RoleClient,
		IsActive: true,
		Phone:    phone,
	}
	if err := h.DB.Create(&u).Error; err != nil {
		if isUniqueViolation(err) {
			return fail200(c, "Email atau No. HP sudah terdaftar")
		}
		return fail500(c, h.Log, "Gagal register", err)
	}

	if err := h.setSession(c, &u); err != nil {
		return fail500(c, h.Log, "Gagal membuat token", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Register berhasil",
		"data":    fiber.Map{"user": userJSON(&u)},
	})
}

type LoginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginReq
	if err := c.BodyParser(&req); err != nil {
		return fail200(c, "Invalid body")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Password = strings.TrimSpace(req.Password)
	if errs := utils.ValidateStruct(req); errs != nil {
		return validationFail(c, errs)
	}

	var u models.User
	if err := h.DB.Where("email = ?", req.Email).First(&u).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fail500(c, h.Log, "Terjadi kesalahan server", err)
		}
		// unknown email stays 200 so the form can show the message
		return fail200(c, "Email atau password salah")
	}

	if !u.IsActive {
		return fail200(c, "Akun tidak aktif")
	}
	if !utils.CheckPassword(u.Password, req.Password) {
		return fail200(c, "Email atau password salah")
	}

	if err := h.setSession(c, &u); err != nil {
		return fail500(c, h.Log, "Gagal membuat token", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Login berhasil",
		"data":    fiber.Map{"user": userJSON(&u)},
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   h.SecureCookie,
		SameSite: "Lax",
	})

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logout berhasil",
	})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	uid, err := getAuth(c)
	if err != nil {
		return err
	}

	var u models.User
	if err := h.DB.Preload("CaregiverProfile").First(&u, "id = ?", uid).Error; err != nil {
		return fail(c, fiber.StatusUnauthorized, "User tidak ditemukan")
	}

	data := userJSON(&u)
	if u.CaregiverProfile != nil {
		data["approval_status"] = u.CaregiverProfile.ApprovalStatus
	}
	return c.JSON(fiber.Map{"success": true, "data": data})
}

func normalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	phone = strings.ReplaceAll(phone, " ", "")
	phone = strings.ReplaceAll(phone, "-", "")
	return phone
}
