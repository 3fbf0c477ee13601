package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_be_care/internal/config"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/db/dbtest"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/handlers"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/models"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/realtime"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/services/booking"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/services/caregiver"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/services/rating"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/utils"
)

const (
	testSecret = "handler-test-secret"
	testIDKey  = "0123456789abcdef"
)

type env struct {
	t   *testing.T
	app *fiber.App
	db  *gorm.DB
	hub *realtime.Hub
	cfg config.Config
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gdb := dbtest.New(t)
	log := zap.NewNop()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := realtime.NewHub(log)
	go hub.Run(ctx)

	cfg := config.Config{
		AppEnv:          "test",
		JWTSecret:       testSecret,
		JWTExpiresMin:   60,
		IDEncryptKey:    testIDKey,
		UploadDir:       t.TempDir(),
		CORSOrigins:     "http://localhost:3000",
		FrontendBaseURL: "http://localhost:3000",
	}

	app := handlers.NewApp(log)
	handlers.Register(app, handlers.Deps{
		Cfg:      cfg,
		DB:       gdb,
		Log:      log,
		Hub:      hub,
		Notifier: realtime.NewNotifier(nil, hub, log),
		Store:    caregiver.NewStore(gdb, log),
		Ratings:  rating.NewRatingService(gdb),
		Bookings: booking.NewBookingService(gdb, log),
	})

	return &env{t: t, app: app, db: gdb, hub: hub, cfg: cfg}
}

type resp struct {
	Status  int
	Header  http.Header
	Success bool
	Message string
	Data    json.RawMessage
	Errors  map[string][]string
	Meta    map[string]any
}

func (e *env) do(req *http.Request, token string) resp {
	e.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := e.app.Test(req, -1)
	require.NoError(e.t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(e.t, err)

	out := resp{Status: res.StatusCode, Header: res.Header}
	if len(body) > 0 && body[0] == '{' {
		var raw struct {
			Success bool                `json:"success"`
			Message string              `json:"message"`
			Data    json.RawMessage     `json:"data"`
			Errors  map[string][]string `json:"errors"`
			Meta    map[string]any      `json:"meta"`
		}
		require.NoError(e.t, json.Unmarshal(body, &raw), string(body))
		out.Success, out.Message, out.Data, out.Errors, out.Meta = raw.Success, raw.Message, raw.Data, raw.Errors, raw.Meta
	}
	return out
}

func (e *env) json(method, path string, body any, token string) resp {
	e.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.do(req, token)
}

func (r resp) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Data, v), string(r.Data))
}

func (e *env) user(email string, role models.Role) (models.User, string) {
	e.t.Helper()
	hash, err := utils.HashPassword("secret123")
	require.NoError(e.t, err)
	u := models.User{Name: email, Email: email, Password: hash, Role: role, IsActive: true}
	require.NoError(e.t, e.db.Create(&u).Error)
	tok, err := utils.SignJWT(testSecret, u.ID.String(), string(u.Role), 60)
	require.NoError(e.t, err)
	return u, tok
}

type caregiverForm struct {
	fields map[string]string
	tags   []string
	files  map[string]string // field -> filename
}

func defaultCaregiverForm(phone string) caregiverForm {
	return caregiverForm{
		fields: map[string]string{
			"name":             "Sari Wulandari",
			"email":            phone + "@care.test",
			"password":         "secret123",
			"phone":            phone,
			"gender":           "female",
			"age":              "31",
			"introduction":     "Registered nurse",
			"experience_years": "6",
			"hourly_rate":      "50000",
		},
		tags: []string{"Elderly_Care", "patient_care"},
		files: map[string]string{
			"identity_document":      "ktp.pdf",
			"certification_document": "cert.png",
		},
	}
}

func (e *env) registerCaregiver(f caregiverForm) resp {
	e.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range f.fields {
		require.NoError(e.t, w.WriteField(k, v))
	}
	for _, tag := range f.tags {
		require.NoError(e.t, w.WriteField("service_types", tag))
	}
	for field, name := range f.files {
		fw, err := w.CreateFormFile(field, name)
		require.NoError(e.t, err)
		_, err = fw.Write([]byte("%PDF-1.4 test"))
		require.NoError(e.t, err)
	}
	require.NoError(e.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/caregivers/register", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return e.do(req, "")
}

// approvedCaregiver registers a caregiver through the API and approves it.
// It returns the caregiver's token and numeric profile id.
func (e *env) approvedCaregiver(phone, adminToken string) (string, uint) {
	e.t.Helper()
	r := e.registerCaregiver(defaultCaregiverForm(phone))
	require.Equal(e.t, http.StatusCreated, r.Status, r.Message)

	var p struct {
		ID uint `json:"id"`
	}
	r.decode(e.t, &p)

	ok := e.json(http.MethodPost, "/api/admin/caregivers/"+uintStr(p.ID)+"/approve", nil, adminToken)
	require.Equal(e.t, http.StatusOK, ok.Status, ok.Message)

	var prof models.CaregiverProfile
	require.NoError(e.t, e.db.First(&prof, p.ID).Error)
	tok, err := utils.SignJWT(testSecret, prof.UserID.String(), string(models.RoleCaregiver), 60)
	require.NoError(e.t, err)
	return tok, p.ID
}

func uintStr(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
