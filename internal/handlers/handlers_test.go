package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Windi-Fikriyansyah/platform_be_care/internal/middleware"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/models"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/realtime"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/utils"
)

func TestHealth(t *testing.T) {
	e := newEnv(t)
	res, err := e.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestAuth_RegisterLoginMe(t *testing.T) {
	e := newEnv(t)

	r := e.json(http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Budi", "email": "Budi@Mail.test", "password": "secret123",
	}, "")
	require.Equal(t, http.StatusCreated, r.Status, r.Message)
	assert.True(t, r.Success)
	assert.Contains(t, r.Header.Get("Set-Cookie"), middleware.TokenCookie+"=")

	var reg struct {
		User struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	}
	r.decode(t, &reg)
	assert.Equal(t, "budi@mail.test", reg.User.Email)
	assert.Equal(t, "client", reg.User.Role)

	dup := e.json(http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Budi", "email": "budi@mail.test", "password": "secret123",
	}, "")
	assert.Equal(t, http.StatusOK, dup.Status)
	assert.False(t, dup.Success)

	bad := e.json(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "budi@mail.test", "password": "wrong-password",
	}, "")
	assert.False(t, bad.Success)

	ok := e.json(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "budi@mail.test", "password": "secret123",
	}, "")
	require.True(t, ok.Success, ok.Message)

	cookie := ok.Header.Get("Set-Cookie")
	require.NotEmpty(t, cookie)
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	session, _, _ := strings.Cut(cookie, ";")
	req.Header.Set("Cookie", session)
	me := e.do(req, "")
	require.Equal(t, http.StatusOK, me.Status)
	assert.Contains(t, string(me.Data), "budi@mail.test")
}

func TestAuth_RoleGuards(t *testing.T) {
	e := newEnv(t)
	_, clientTok := e.user("client@mail.test", models.RoleClient)

	assert.Equal(t, http.StatusUnauthorized, e.json(http.MethodGet, "/api/admin/caregivers/pending", nil, "").Status)
	assert.Equal(t, http.StatusForbidden, e.json(http.MethodGet, "/api/admin/caregivers/pending", nil, clientTok).Status)
	assert.Equal(t, http.StatusForbidden, e.json(http.MethodGet, "/api/caregiver/profile", nil, clientTok).Status)
}

func TestCaregiverRegister_Validation(t *testing.T) {
	e := newEnv(t)

	f := defaultCaregiverForm("081200000001")
	delete(f.files, "certification_document")
	f.tags = nil
	r := e.registerCaregiver(f)
	assert.False(t, r.Success)
	assert.Contains(t, r.Errors, "certification_document")
	assert.Contains(t, r.Errors, "service_types")

	f = defaultCaregiverForm("081200000002")
	f.files["identity_document"] = "ktp.exe"
	r = e.registerCaregiver(f)
	assert.False(t, r.Success)
	assert.Contains(t, r.Errors, "identity_document")

	var n int64
	require.NoError(t, e.db.Model(&models.CaregiverProfile{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCaregiverRegister_PendingAndHidden(t *testing.T) {
	e := newEnv(t)

	r := e.registerCaregiver(defaultCaregiverForm("081200000003"))
	require.Equal(t, http.StatusCreated, r.Status, r.Message)

	var p struct {
		ApprovalStatus string   `json:"approval_status"`
		ServiceTypes   []string `json:"service_types"`
		IdentityURL    string   `json:"identity_document_url"`
	}
	r.decode(t, &p)
	assert.Equal(t, "pending", p.ApprovalStatus)
	assert.ElementsMatch(t, []string{"elderly_care", "patient_care"}, p.ServiceTypes)
	assert.Contains(t, p.IdentityURL, "/uploads/caregivers/")

	again := e.registerCaregiver(defaultCaregiverForm("081200000003"))
	assert.False(t, again.Success)

	list := e.json(http.MethodGet, "/api/caregivers", nil, "")
	require.Equal(t, http.StatusOK, list.Status)
	assert.JSONEq(t, `[]`, string(list.Data))
}

func TestCaregiverProfile_ImmutableFields(t *testing.T) {
	e := newEnv(t)
	_, adminTok := e.user("admin@mail.test", models.RoleAdmin)
	cgTok, _ := e.approvedCaregiver("081200000004", adminTok)

	r := e.json(http.MethodPatch, "/api/caregiver/profile", map[string]any{"phone": "0899"}, cgTok)
	assert.Equal(t, http.StatusBadRequest, r.Status)

	r = e.json(http.MethodPatch, "/api/caregiver/profile", map[string]any{"approval_status": "pending"}, cgTok)
	assert.Equal(t, http.StatusBadRequest, r.Status)

	r = e.json(http.MethodPatch, "/api/caregiver/profile", map[string]any{"hourly_rate": 75000, "is_available": false}, cgTok)
	require.Equal(t, http.StatusOK, r.Status, r.Message)

	var p struct {
		HourlyRate     int64  `json:"hourly_rate"`
		IsAvailable    bool   `json:"is_available"`
		Phone          string `json:"phone"`
		ApprovalStatus string `json:"approval_status"`
	}
	r.decode(t, &p)
	assert.EqualValues(t, 75000, p.HourlyRate)
	assert.False(t, p.IsAvailable)
	assert.Equal(t, "081200000004", p.Phone)
	assert.Equal(t, "approved", p.ApprovalStatus)
}

func TestAdmin_ApproveOnceAndNotify(t *testing.T) {
	e := newEnv(t)
	_, adminTok := e.user("admin@mail.test", models.RoleAdmin)

	r := e.registerCaregiver(defaultCaregiverForm("081200000005"))
	require.Equal(t, http.StatusCreated, r.Status, r.Message)
	var p struct {
		ID uint `json:"id"`
	}
	r.decode(t, &p)

	var prof models.CaregiverProfile
	require.NoError(t, e.db.First(&prof, p.ID).Error)
	inbox := &realtime.Client{ID: uuid.NewString(), UserID: prof.UserID, Send: make(chan []byte, 4)}
	e.hub.RegisterClient(inbox)
	require.Eventually(t, func() bool { return e.hub.Online(prof.UserID) }, time.Second, 5*time.Millisecond)

	pending := e.json(http.MethodGet, "/api/admin/caregivers/pending", nil, adminTok)
	require.Equal(t, http.StatusOK, pending.Status)
	assert.Contains(t, string(pending.Data), "081200000005")

	path := "/api/admin/caregivers/" + uintStr(p.ID) + "/approve"
	first := e.json(http.MethodPost, path, nil, adminTok)
	require.Equal(t, http.StatusOK, first.Status, first.Message)

	second := e.json(http.MethodPost, path, nil, adminTok)
	assert.Equal(t, http.StatusConflict, second.Status)
	assert.Contains(t, string(second.Data), "approved")

	select {
	case raw := <-inbox.Send:
		var ev realtime.Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		assert.Equal(t, realtime.EventCaregiverApproved, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("no approval notification")
	}

	decisions := e.json(http.MethodGet, "/api/admin/caregivers/"+uintStr(p.ID)+"/decisions", nil, adminTok)
	require.Equal(t, http.StatusOK, decisions.Status)
	var ds []struct {
		Decision string `json:"decision"`
	}
	decisions.decode(t, &ds)
	require.Len(t, ds, 1)
	assert.Equal(t, "approved", ds[0].Decision)

	assert.Equal(t, http.StatusNotFound, e.json(http.MethodPost, "/api/admin/caregivers/9999/approve", nil, adminTok).Status)
	assert.Equal(t, http.StatusBadRequest, e.json(http.MethodPost, "/api/admin/caregivers/abc/approve", nil, adminTok).Status)
}

func TestAdmin_RejectAndRemove(t *testing.T) {
	e := newEnv(t)
	_, adminTok := e.user("admin@mail.test", models.RoleAdmin)

	r := e.registerCaregiver(defaultCaregiverForm("081200000006"))
	require.Equal(t, http.StatusCreated, r.Status, r.Message)
	var p struct {
		ID uint `json:"id"`
	}
	r.decode(t, &p)

	rej := e.json(http.MethodPost, "/api/admin/caregivers/"+uintStr(p.ID)+"/reject", map[string]string{"reason": "blurry document"}, adminTok)
	require.Equal(t, http.StatusOK, rej.Status, rej.Message)
	assert.Equal(t, http.StatusNotFound, e.json(http.MethodPost, "/api/admin/caregivers/"+uintStr(p.ID)+"/reject", nil, adminTok).Status)

	_, approvedID := e.approvedCaregiver("081200000007", adminTok)
	assert.Equal(t, http.StatusConflict,
		e.json(http.MethodPost, "/api/admin/caregivers/"+uintStr(approvedID)+"/reject", nil, adminTok).Status)

	rm := e.json(http.MethodDelete, "/api/admin/caregivers/"+uintStr(approvedID), map[string]string{"reason": "complaints"}, adminTok)
	require.Equal(t, http.StatusOK, rm.Status, rm.Message)

	list := e.json(http.MethodGet, "/api/caregivers", nil, "")
	assert.JSONEq(t, `[]`, string(list.Data))

	var audit []models.ApprovalDecision
	require.NoError(t, e.db.Order("created_at").Find(&audit).Error)
	var kinds []string
	for _, d := range audit {
		kinds = append(kinds, string(d.Decision))
	}
	assert.ElementsMatch(t, []string{"rejected", "approved", "removed"}, kinds)
}

func TestAdmin_ListUsersAndSetActive(t *testing.T) {
	e := newEnv(t)
	_, adminTok := e.user("admin@mail.test", models.RoleAdmin)
	client, _ := e.user("client@mail.test", models.RoleClient)

	r := e.json(http.MethodGet, "/api/admin/users?role=client", nil, adminTok)
	require.Equal(t, http.StatusOK, r.Status)
	assert.Contains(t, string(r.Data), "client@mail.test")
	assert.NotContains(t, string(r.Data), "admin@mail.test")

	far := e.json(http.MethodGet, "/api/admin/users?page=9223372036854775807", nil, adminTok)
	require.Equal(t, http.StatusOK, far.Status, far.Message)
	assert.JSONEq(t, `[]`, string(far.Data))

	r = e.json(http.MethodPatch, "/api/admin/users/"+client.ID.String()+"/active", map[string]bool{"is_active": false}, adminTok)
	require.Equal(t, http.StatusOK, r.Status, r.Message)

	login := e.json(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "client@mail.test", "password": "secret123",
	}, "")
	assert.False(t, login.Success)
}

func TestDirectory_SearchFiltersAndDetail(t *testing.T) {
	e := newEnv(t)
	_, adminTok := e.user("admin@mail.test", models.RoleAdmin)
	e.approvedCaregiver("081200000008", adminTok)

	f := defaultCaregiverForm("081200000009")
	f.fields["hourly_rate"] = "120000"
	f.fields["experience_years"] = "1"
	f.tags = []string{"child_care"}
	r := e.registerCaregiver(f)
	require.Equal(t, http.StatusCreated, r.Status, r.Message)
	var p struct {
		ID uint `json:"id"`
	}
	r.decode(t, &p)
	require.Equal(t, http.StatusOK, e.json(http.MethodPost, "/api/admin/caregivers/"+uintStr(p.ID)+"/approve", nil, adminTok).Status)

	all := e.json(http.MethodGet, "/api/caregivers?limit=1", nil, "")
	require.Equal(t, http.StatusOK, all.Status)
	assert.EqualValues(t, 2, all.Meta["total_items"])
	assert.EqualValues(t, 2, all.Meta["total_pages"])
	var page []map[string]any
	all.decode(t, &page)
	require.Len(t, page, 1)
	// most recently approved first
	assert.EqualValues(t, 120000, page[0]["hourly_rate"])

	beyond := e.json(http.MethodGet, "/api/caregivers?page=9223372036854775807&limit=20", nil, "")
	require.Equal(t, http.StatusOK, beyond.Status, beyond.Message)
	assert.JSONEq(t, `[]`, string(beyond.Data))
	assert.EqualValues(t, 2, beyond.Meta["total_items"])

	byTag := e.json(http.MethodGet, "/api/caregivers?service_type=Elderly_Care", nil, "")
	var tagged []map[string]any
	byTag.decode(t, &tagged)
	require.Len(t, tagged, 1)
	assert.EqualValues(t, 50000, tagged[0]["hourly_rate"])

	cheap := e.json(http.MethodGet, "/api/caregivers?max_price=60000", nil, "")
	var cheapOnes []map[string]any
	cheap.decode(t, &cheapOnes)
	assert.Len(t, cheapOnes, 1)

	senior := e.json(http.MethodGet, "/api/caregivers?min_experience=5&min_price=100000", nil, "")
	assert.JSONEq(t, `[]`, string(senior.Data))

	assert.Equal(t, http.StatusBadRequest, e.json(http.MethodGet, "/api/caregivers?min_price=900&max_price=100", nil, "").Status)
	assert.Equal(t, http.StatusBadRequest, e.json(http.MethodGet, "/api/caregivers?min_price=-1", nil, "").Status)
	assert.Equal(t, http.StatusBadRequest, e.json(http.MethodGet, "/api/caregivers?min_rating=abc", nil, "").Status)
	assert.Equal(t, http.StatusBadRequest, e.json(http.MethodGet, "/api/caregivers?min_rating=7", nil, "").Status)

	encID, _ := tagged[0]["id"].(string)
	require.NotEmpty(t, encID)
	detail := e.json(http.MethodGet, "/api/caregivers/"+encID, nil, "")
	require.Equal(t, http.StatusOK, detail.Status, detail.Message)
	assert.NotContains(t, string(detail.Data), "identity_document")

	assert.Equal(t, http.StatusBadRequest, e.json(http.MethodGet, "/api/caregivers/not-an-id", nil, "").Status)

	types := e.json(http.MethodGet, "/api/service-types", nil, "")
	require.Equal(t, http.StatusOK, types.Status)
	assert.Contains(t, string(types.Data), "child_care")
}

func TestBooking_LifecycleReviewAndChat(t *testing.T) {
	e := newEnv(t)
	_, adminTok := e.user("admin@mail.test", models.RoleAdmin)
	client, clientTok := e.user("client@mail.test", models.RoleClient)
	cgTok, cgID := e.approvedCaregiver("081200000010", adminTok)

	encID, err := utils.EncryptID(cgID, testIDKey)
	require.NoError(t, err)

	start := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Minute)
	end := start.Add(2 * time.Hour)

	// caregivers cannot book
	assert.Equal(t, http.StatusForbidden, e.json(http.MethodPost, "/api/bookings", map[string]any{}, cgTok).Status)

	invalid := e.json(http.MethodPost, "/api/bookings", map[string]any{
		"caregiver_id": encID, "kind": "appointment", "start_at": start, "address": "Jl. Melati 1",
	}, clientTok)
	assert.Equal(t, http.StatusBadRequest, invalid.Status)

	created := e.json(http.MethodPost, "/api/bookings", map[string]any{
		"caregiver_id": encID,
		"kind":         "appointment",
		"start_at":     start,
		"end_at":       end,
		"address":      "Jl. Melati 1",
	}, clientTok)
	require.Equal(t, http.StatusCreated, created.Status, created.Message)
	var b struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		TotalPrice int64  `json:"total_price"`
	}
	created.decode(t, &b)
	assert.Equal(t, "pending", b.Status)
	assert.EqualValues(t, 100000, b.TotalPrice)

	status := func(tok, next string) resp {
		return e.json(http.MethodPatch, "/api/bookings/"+b.ID+"/status", map[string]string{"status": next}, tok)
	}

	assert.Equal(t, http.StatusConflict, status(clientTok, "accepted").Status)
	require.Equal(t, http.StatusOK, status(cgTok, "accepted").Status)

	early := e.json(http.MethodPost, "/api/bookings/"+b.ID+"/review", map[string]any{"rating": 5}, clientTok)
	assert.Equal(t, http.StatusConflict, early.Status)

	require.Equal(t, http.StatusOK, status(cgTok, "completed").Status)
	assert.Equal(t, http.StatusConflict, status(clientTok, "cancelled").Status)

	far := e.json(http.MethodGet, "/api/bookings?page=9223372036854775807", nil, clientTok)
	require.Equal(t, http.StatusOK, far.Status, far.Message)
	assert.JSONEq(t, `[]`, string(far.Data))

	mine := e.json(http.MethodGet, "/api/bookings?status=completed", nil, clientTok)
	require.Equal(t, http.StatusOK, mine.Status)
	assert.Contains(t, string(mine.Data), b.ID)

	rev := e.json(http.MethodPost, "/api/bookings/"+b.ID+"/review", map[string]any{"rating": 4, "comment": "kind and punctual"}, clientTok)
	require.Equal(t, http.StatusCreated, rev.Status, rev.Message)
	assert.Equal(t, http.StatusConflict,
		e.json(http.MethodPost, "/api/bookings/"+b.ID+"/review", map[string]any{"rating": 1}, clientTok).Status)

	detail := e.json(http.MethodGet, "/api/caregivers/"+encID, nil, "")
	require.Equal(t, http.StatusOK, detail.Status)
	var d struct {
		Rating      float64 `json:"rating"`
		ReviewCount int     `json:"review_count"`
	}
	detail.decode(t, &d)
	assert.InDelta(t, 4.0, d.Rating, 0.001)
	assert.Equal(t, 1, d.ReviewCount)

	reviews := e.json(http.MethodGet, "/api/caregivers/"+encID+"/reviews", nil, "")
	assert.Contains(t, string(reviews.Data), "kind and punctual")

	stats := e.json(http.MethodGet, "/api/caregiver/dashboard/stats", nil, cgTok)
	require.Equal(t, http.StatusOK, stats.Status)
	assert.Contains(t, string(stats.Data), "100000")

	// chat: client opens, caregiver reads
	conv := e.json(http.MethodPost, "/api/chat/conversations", map[string]string{"caregiver_id": encID}, clientTok)
	require.Equal(t, http.StatusOK, conv.Status, conv.Message)
	var c struct {
		ID string `json:"id"`
	}
	conv.decode(t, &c)

	again := e.json(http.MethodPost, "/api/chat/conversations", map[string]string{"client_id": client.ID.String()}, cgTok)
	require.Equal(t, http.StatusOK, again.Status, again.Message)
	var c2 struct {
		ID string `json:"id"`
	}
	again.decode(t, &c2)
	assert.Equal(t, c.ID, c2.ID)

	sent := e.json(http.MethodPost, "/api/chat/conversations/"+c.ID+"/messages", map[string]string{"text": "Halo, terima kasih"}, clientTok)
	require.Equal(t, http.StatusOK, sent.Status, sent.Message)
	assert.Equal(t, http.StatusBadRequest,
		e.json(http.MethodPost, "/api/chat/conversations/"+c.ID+"/messages", map[string]string{"text": "  "}, clientTok).Status)

	inbox := e.json(http.MethodGet, "/api/chat/conversations", nil, cgTok)
	require.Equal(t, http.StatusOK, inbox.Status, inbox.Message)
	var convs []struct {
		ID          string `json:"id"`
		UnreadCount int64  `json:"unread_count"`
		LastMessage *struct {
			Text string `json:"text"`
		} `json:"last_message"`
	}
	inbox.decode(t, &convs)
	require.Len(t, convs, 1)
	assert.Equal(t, c.ID, convs[0].ID)
	assert.EqualValues(t, 1, convs[0].UnreadCount)
	require.NotNil(t, convs[0].LastMessage)
	assert.Equal(t, "Halo, terima kasih", convs[0].LastMessage.Text)

	own := e.json(http.MethodGet, "/api/chat/conversations", nil, clientTok)
	assert.Contains(t, string(own.Data), `"unread_count":0`)

	unread := e.json(http.MethodGet, "/api/chat/unread", nil, cgTok)
	assert.JSONEq(t, `1`, string(unread.Data))

	msgs := e.json(http.MethodGet, "/api/chat/conversations/"+c.ID+"/messages", nil, cgTok)
	require.Equal(t, http.StatusOK, msgs.Status)
	assert.Contains(t, string(msgs.Data), "Halo, terima kasih")

	unread = e.json(http.MethodGet, "/api/chat/unread", nil, cgTok)
	assert.JSONEq(t, `0`, string(unread.Data))

	// an unrelated user is not a member
	_, strangerTok := e.user("stranger@mail.test", models.RoleClient)
	assert.Equal(t, http.StatusForbidden,
		e.json(http.MethodGet, "/api/chat/conversations/"+c.ID+"/messages", nil, strangerTok).Status)
}

func TestBooking_UnavailableCaregiver(t *testing.T) {
	e := newEnv(t)
	_, adminTok := e.user("admin@mail.test", models.RoleAdmin)
	_, clientTok := e.user("client@mail.test", models.RoleClient)
	_, cgID := e.approvedCaregiver("081200000011", adminTok)
	require.NoError(t, e.db.Model(&models.CaregiverProfile{}).Where("id = ?", cgID).Update("is_available", false).Error)

	encID, err := utils.EncryptID(cgID, testIDKey)
	require.NoError(t, err)
	start := time.Now().Add(24 * time.Hour).UTC()

	r := e.json(http.MethodPost, "/api/bookings", map[string]any{
		"caregiver_id": encID,
		"kind":         "employment",
		"start_at":     start,
		"hours":        80,
		"schedule":     []map[string]string{{"day": "monday", "from": "08:00", "to": "16:00"}},
		"address":      "Jl. Kenanga 2",
	}, clientTok)
	assert.Equal(t, http.StatusUnprocessableEntity, r.Status)
}
