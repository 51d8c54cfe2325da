package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BearBump/zapshift/internal/identity/jwtverifier"
	"github.com/BearBump/zapshift/internal/integrations/payments/fake"
	"github.com/BearBump/zapshift/internal/models"
	"github.com/BearBump/zapshift/internal/services/parcels"
	"github.com/BearBump/zapshift/internal/services/payments"
	"github.com/BearBump/zapshift/internal/services/riders"
	"github.com/BearBump/zapshift/internal/services/users"
	"github.com/BearBump/zapshift/internal/storage/memstore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	adminEmail = "admin@zap.io"
	userEmail  = "user@zap.io"
	otherEmail = "other@zap.io"
)

type APISuite struct {
	suite.Suite

	store   *memstore.Storage
	gateway *fake.FakeClient
	jwt     *jwtverifier.Verifier
	h       http.Handler

	adminToken string
	userToken  string
	otherToken string
}

func (s *APISuite) SetupTest() {
	ctx := context.Background()
	s.store = memstore.New()
	s.gateway = fake.New()
	s.jwt = jwtverifier.New("test-secret")

	for _, u := range []models.User{
		{Email: adminEmail, Role: models.RoleAdmin, CreatedAt: time.Now().UTC()},
		{Email: userEmail, Role: models.RoleUser, CreatedAt: time.Now().UTC()},
		{Email: otherEmail, Role: models.RoleUser, CreatedAt: time.Now().UTC()},
	} {
		u := u
		s.Require().NoError(s.store.InsertUser(ctx, &u))
	}

	usersSvc := users.New(s.store, nil, 0)
	api := New(Deps{
		Parcels:  parcels.New(s.store),
		Payments: payments.New(s.store, s.gateway, payments.Config{PublicBaseURL: "http://localhost:5173"}),
		Users:    usersSvc,
		Riders:   riders.New(s.store, usersSvc),
		Verifier: s.jwt,
		Log:      zerolog.Nop(),
	})
	s.h = api.Handler(nil)

	s.adminToken = s.token(adminEmail)
	s.userToken = s.token(userEmail)
	s.otherToken = s.token(otherEmail)
}

func (s *APISuite) token(email string) string {
	tok, err := s.jwt.Issue("sub-"+email, email, time.Hour)
	s.Require().NoError(err)
	return tok
}

func (s *APISuite) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		s.Require().NoError(err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *APISuite) createParcel(token string, cost float64) models.Parcel {
	rec := s.do(http.MethodPost, "/parcels", token, map[string]any{
		"parcelName":  "box",
		"parcelType":  "document",
		"senderEmail": userEmail,
		"cost":        cost,
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Parcel](s.T(), rec)
}

func (s *APISuite) TestRootAndHealth() {
	rec := s.do(http.MethodGet, "/", "", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("zap is shifting!!", rec.Body.String())
	s.NotEmpty(rec.Header().Get(requestIDHeader))

	rec = s.do(http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"status":"ok"}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/readyz", "", nil)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *APISuite) TestRequestIDIsEchoed() {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	s.Equal("abc-123", rec.Header().Get(requestIDHeader))
}

func (s *APISuite) TestAdminRouteGating() {
	rec := s.do(http.MethodGet, "/users", "", nil)
	s.Equal(http.StatusUnauthorized, rec.Code)
	body := decode[errorResponse](s.T(), rec)
	s.Equal("UNAUTHORIZED", body.Code)
	s.Equal(http.StatusUnauthorized, body.Status)

	rec = s.do(http.MethodGet, "/users", "not-a-jwt", nil)
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/users", s.userToken, nil)
	s.Equal(http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/users", s.adminToken, nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Len(decode[[]models.User](s.T(), rec), 3)
}

func (s *APISuite) TestUnknownUserIsForbiddenOnAdminRoutes() {
	rec := s.do(http.MethodGet, "/riders", s.token("ghost@zap.io"), nil)
	s.Equal(http.StatusForbidden, rec.Code)
}

func (s *APISuite) TestCheckoutScenario() {
	p := s.createParcel(s.userToken, 12.5)
	s.NotEmpty(p.ID)
	s.True(strings.HasPrefix(p.TrackingID, "ZAP-"))
	s.Empty(p.PaymentStatus)
	s.Empty(p.DeliveryStatus)

	rec := s.do(http.MethodPost, "/payment-checkout-session", s.userToken, map[string]any{
		"parcelId": p.ID, "cost": 12.5, "name": "box",
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	checkout := decode[payments.CheckoutResult](s.T(), rec)
	s.Require().NotEmpty(checkout.URL)
	sessionID := checkout.URL[strings.LastIndex(checkout.URL, "/")+1:]

	// not paid yet
	rec = s.do(http.MethodPatch, "/payment-success?session_id="+sessionID, s.userToken, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.False(decode[payments.ConfirmResult](s.T(), rec).Success)

	s.Require().NoError(s.gateway.Pay(sessionID))

	rec = s.do(http.MethodPatch, "/payment-success?session_id="+sessionID, s.userToken, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	first := decode[map[string]any](s.T(), rec)
	s.Equal("payment recorded", first["message"])
	s.Equal(p.TrackingID, first["trakingId"])
	s.NotEmpty(first["transactionId"])
	s.NotNil(first["modifyResult"])

	rec = s.do(http.MethodPatch, "/payment-success?session_id="+sessionID, s.userToken, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	second := decode[map[string]any](s.T(), rec)
	s.Equal("payment already recorded", second["message"])
	s.Equal(first["transactionId"], second["transactionId"])

	rec = s.do(http.MethodGet, "/my-parcels?email="+userEmail, s.userToken, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	list := decode[[]models.Parcel](s.T(), rec)
	s.Require().Len(list, 1)
	s.Equal(models.DeliveryStatusPendingPickup, list[0].DeliveryStatus)
	s.Equal("paid", list[0].PaymentStatus)

	rec = s.do(http.MethodGet, "/payments", s.userToken, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Len(decode[[]models.Payment](s.T(), rec), 1)
}

func (s *APISuite) TestCheckoutFromMinimalParcel() {
	rec := s.do(http.MethodPost, "/parcels", s.userToken, map[string]any{"senderEmail": userEmail, "cost": 500})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	p := decode[models.Parcel](s.T(), rec)
	s.True(strings.HasPrefix(p.TrackingID, "ZAP-"))
	s.Empty(p.PaymentStatus)

	rec = s.do(http.MethodPost, "/payment-checkout-session", s.userToken, map[string]any{"parcelId": p.ID})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	url := decode[payments.CheckoutResult](s.T(), rec).URL
	sessionID := url[strings.LastIndex(url, "/")+1:]

	sess, err := s.gateway.GetCheckoutSession(context.Background(), sessionID)
	s.Require().NoError(err)
	s.Equal(int64(50000), sess.AmountTotal)
	s.Require().NoError(s.gateway.Pay(sessionID))

	rec = s.do(http.MethodPatch, "/payment-success?session_id="+sessionID, s.userToken, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.True(decode[payments.ConfirmResult](s.T(), rec).Success)

	got, err := s.store.GetParcel(context.Background(), p.ID)
	s.Require().NoError(err)
	s.Equal(models.DeliveryStatusPendingPickup, got.DeliveryStatus)
	s.Equal("paid", got.PaymentStatus)

	rec = s.do(http.MethodGet, "/payments", s.userToken, nil)
	s.Require().Len(decode[[]models.Payment](s.T(), rec), 1)
}

func (s *APISuite) TestCheckoutRejectsCostMismatch() {
	p := s.createParcel(s.userToken, 10)
	rec := s.do(http.MethodPost, "/payment-checkout-session", s.userToken, map[string]any{
		"parcelId": p.ID, "cost": 1,
	})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/payment-checkout-session", s.userToken, map[string]any{
		"parcelId": "missing",
	})
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *APISuite) TestListScopedToOwnEmail() {
	s.createParcel(s.userToken, 5)

	rec := s.do(http.MethodGet, "/my-parcels?email="+userEmail, s.otherToken, nil)
	s.Equal(http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/my-parcels", s.otherToken, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Empty(decode[[]models.Parcel](s.T(), rec))

	rec = s.do(http.MethodGet, "/my-parcels", s.adminToken, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Len(decode[[]models.Parcel](s.T(), rec), 1)

	rec = s.do(http.MethodGet, "/payments?email="+userEmail, s.otherToken, nil)
	s.Equal(http.StatusForbidden, rec.Code)
}

func (s *APISuite) TestDeleteParcel() {
	p := s.createParcel(s.userToken, 5)

	rec := s.do(http.MethodDelete, "/parcel/"+p.ID, s.userToken, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(models.DeleteResult{Acknowledged: true, DeletedCount: 1}, decode[models.DeleteResult](s.T(), rec))

	rec = s.do(http.MethodDelete, "/parcel/"+p.ID, s.userToken, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(int64(0), decode[models.DeleteResult](s.T(), rec).DeletedCount)
}

func (s *APISuite) TestDeleteParcelOfAnotherSender() {
	p := s.createParcel(s.userToken, 5)

	rec := s.do(http.MethodDelete, "/parcel/"+p.ID, s.otherToken, nil)
	s.Require().Equal(http.StatusForbidden, rec.Code)
	_, err := s.store.GetParcel(context.Background(), p.ID)
	s.Require().NoError(err)

	rec = s.do(http.MethodDelete, "/parcel/"+p.ID, s.adminToken, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(int64(1), decode[models.DeleteResult](s.T(), rec).DeletedCount)

	rec = s.do(http.MethodDelete, "/parcel/missing", s.otherToken, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(int64(0), decode[models.DeleteResult](s.T(), rec).DeletedCount)
}

func (s *APISuite) TestCreateParcelValidation() {
	rec := s.do(http.MethodPost, "/parcels", s.userToken, map[string]any{"senderEmail": "nope"})
	s.Require().Equal(http.StatusBadRequest, rec.Code)
	body := decode[errorResponse](s.T(), rec)
	s.Equal("BAD_REQUEST", body.Code)
	s.NotEmpty(body.Errors)

	req := httptest.NewRequest(http.MethodPost, "/parcels", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+s.userToken)
	rec = httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *APISuite) TestUsersAndRoles() {
	rec := s.do(http.MethodPost, "/user", "", map[string]any{"email": "new@zap.io", "displayName": "New"})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.True(decode[users.RegisterResult](s.T(), rec).Inserted)

	rec = s.do(http.MethodPost, "/user", "", map[string]any{"email": "new@zap.io"})
	s.Require().Equal(http.StatusOK, rec.Code)
	res := decode[users.RegisterResult](s.T(), rec)
	s.False(res.Inserted)
	s.Equal("user exists", res.Message)

	rec = s.do(http.MethodGet, "/user/nobody@zap.io/role", s.userToken, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"role":"user"}`, rec.Body.String())

	u, err := s.store.GetUserByEmail(context.Background(), otherEmail)
	s.Require().NoError(err)

	rec = s.do(http.MethodPatch, "/user/"+u.ID+"/role", s.userToken, map[string]any{"role": "admin"})
	s.Equal(http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPatch, "/user/"+u.ID+"/role", s.adminToken, map[string]any{"role": "admin"})
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/users", s.otherToken, nil)
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPatch, "/user/missing/role", s.adminToken, map[string]any{"role": "rider"})
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *APISuite) TestRiderWorkflow() {
	rec := s.do(http.MethodPost, "/rider", s.userToken, map[string]any{"name": "Rider", "region": "Dhaka"})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	app := decode[models.RiderApplication](s.T(), rec)
	s.Equal(userEmail, app.Email)
	s.Equal(models.RiderStatusPending, app.Status)

	rec = s.do(http.MethodPost, "/rider", s.userToken, map[string]any{"name": "Again"})
	s.Equal(http.StatusConflict, rec.Code)

	rec = s.do(http.MethodGet, "/riders?status=pending", s.adminToken, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Len(decode[[]models.RiderApplication](s.T(), rec), 1)

	rec = s.do(http.MethodPatch, "/rider/"+app.ID, s.adminToken, map[string]any{"status": "rejected"})
	s.Require().Equal(http.StatusOK, rec.Code)
	rec = s.do(http.MethodGet, "/user/"+userEmail+"/role", s.userToken, nil)
	s.JSONEq(`{"role":"user"}`, rec.Body.String())

	rec = s.do(http.MethodPatch, "/rider/"+app.ID, s.adminToken, map[string]any{"status": "accepted"})
	s.Require().Equal(http.StatusOK, rec.Code)
	rec = s.do(http.MethodGet, "/user/"+userEmail+"/role", s.userToken, nil)
	s.JSONEq(`{"role":"rider"}`, rec.Body.String())

	rec = s.do(http.MethodPatch, "/rider/missing", s.adminToken, map[string]any{"status": "accepted"})
	s.Equal(http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodDelete, "/rider/"+app.ID, s.adminToken, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(int64(1), decode[models.DeleteResult](s.T(), rec).DeletedCount)
}

func (s *APISuite) TestWebhookWithoutProviderSupport() {
	rec := s.do(http.MethodPost, "/webhooks/stripe", "", map[string]any{"type": "checkout.session.completed"})
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *APISuite) TestMetricsAndUnknownRoute() {
	s.do(http.MethodGet, "/healthz", "", nil)
	rec := s.do(http.MethodGet, "/nope", "", nil)
	s.Equal(http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/metrics", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `http_requests_total{method="GET",path="/healthz",status="200"} 1`)
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func TestRoutes_AdminRoutesAreDeclared(t *testing.T) {
	a := New(Deps{Log: zerolog.Nop()})
	admin := map[string]bool{}
	for _, rt := range a.Routes() {
		require.NotNil(t, rt.Handler, rt.Pattern)
		if rt.Access == Admin {
			admin[rt.Method+" "+rt.Pattern] = true
		}
	}
	require.Equal(t, map[string]bool{
		"GET /users":            true,
		"PATCH /user/{id}/role": true,
		"GET /riders":           true,
		"DELETE /rider/{id}":    true,
		"PATCH /rider/{id}":     true,
	}, admin)
}

func TestReadyz_Failing(t *testing.T) {
	a := New(Deps{Log: zerolog.Nop(), Ready: func(context.Context) error { return errors.New("db down") }})
	rec := httptest.NewRecorder()
	a.Handler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusOf(t *testing.T) {
	require.Equal(t, http.StatusInternalServerError, statusOf(errors.New("boom")))
}
