package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_be_care/internal/models"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/utils"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleOAuthHandler signs clients in with Google. Accounts created here are
// always clients.
type GoogleOAuthHandler struct {
	Auth            *AuthHandler
	GoogleClientID  string
	GoogleSecret    string
	GoogleRedirect  string
	FrontendBaseURL string
}

func (h *GoogleOAuthHandler) oauthCfg() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.GoogleClientID,
		ClientSecret: h.GoogleSecret,
		RedirectURL:  h.GoogleRedirect,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"openid", "email", "profile"},
	}
}

func randomState(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func (h *GoogleOAuthHandler) tempCookie(c *fiber.Ctx, name, value string, maxAge int) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.Auth.SecureCookie,
		SameSite: "Lax",
		MaxAge:   maxAge,
	})
}

func (h *GoogleOAuthHandler) GoogleStart(c *fiber.Ctx) error {
	if h.GoogleClientID == "" {
		return fail(c, fiber.StatusNotFound, "Google sign-in is not configured")
	}

	next := c.Query("next", "/")
	st := randomState(32)

	h.tempCookie(c, "oauth_state", st, 10*60)
	h.tempCookie(c, "oauth_next", next, 10*60)

	return c.Redirect(h.oauthCfg().AuthCodeURL(st, oauth2.AccessTypeOffline), http.StatusTemporaryRedirect)
}

type googleUserInfo struct {
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (h *GoogleOAuthHandler) GoogleCallback(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		return fail(c, fiber.StatusBadRequest, "Missing code/state")
	}

	stCookie := c.Cookies("oauth_state")
	next := c.Cookies("oauth_next")
	if stCookie == "" || stCookie != state {
		return fail(c, fiber.StatusBadRequest, "Invalid state")
	}

	tok, err := h.oauthCfg().Exchange(c.Context(), code)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Failed to exchange code")
	}

	resp, err := h.oauthCfg().Client(c.Context(), tok).Get(googleUserInfoURL)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Failed to fetch userinfo")
	}
	defer resp.Body.Close()

	var gu googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return fail(c, fiber.StatusBadRequest, "Failed to decode userinfo")
	}

	u, err := h.upsertClient(gu)
	if err != nil {
		return fail500(c, h.Auth.Log, "Gagal membuat akun", err)
	}

	if !u.IsActive {
		return c.Redirect(h.FrontendBaseURL+"/auth/login?err="+url.QueryEscape("Akun tidak aktif"), http.StatusTemporaryRedirect)
	}

	if err := h.Auth.setSession(c, u); err != nil {
		return fail500(c, h.Auth.Log, "Failed to sign jwt", err)
	}

	h.tempCookie(c, "oauth_state", "", -1)
	h.tempCookie(c, "oauth_next", "", -1)

	return c.Redirect(h.FrontendBaseURL+safeNext(next), http.StatusTemporaryRedirect)
}

// safeNext only allows same-site relative paths.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/"
	}
	return next
}

// upsertClient finds the account by email or creates a client for it. The
// random password is never used for password login.
func (h *GoogleOAuthHandler) upsertClient(gu googleUserInfo) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(gu.Email))
	name := strings.TrimSpace(gu.Name)
	if email == "" {
		return nil, errors.New("google account has no email")
	}

	var u models.User
	err := h.Auth.DB.Where("email = ?", email).First(&u).Error
	if err == nil {
		if name != "" && u.Name != name {
			if err := h.Auth.DB.Model(&u).Update("name", name).Error; err != nil {
				h.Auth.Log.Warn("update google name", zap.Error(err))
			}
		}
		return &u, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashed, err := utils.HashPassword(randomState(24))
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = email
	}
	u = models.User{
		Name:     name,
		Email:    email,
		Password: hashed,
		Role:     models.RoleClient,
		IsActive: true,
	}
	if err := h.Auth.DB.Create(&u).Error; err != nil {
		return nil, err
	}
	h.Auth.Log.Info("client created via google", zap.String("email", email))
	return &u, nil
}
