package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"careplan/internal/apperror"
	"careplan/internal/audit"
	"careplan/internal/cache"
	"careplan/internal/careactivity"
	"careplan/internal/database"
	"careplan/internal/kpi"
	"careplan/internal/logger"
	"careplan/internal/middleware"
	"careplan/internal/monitoring"
	"careplan/internal/occupation"
	"careplan/internal/planning"
	"careplan/internal/storage"
	"careplan/internal/testutil"
	"careplan/internal/upload"
	"careplan/internal/user"
	"careplan/internal/validator"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

// identities resolves the token subject to one of the fixture users.
type identities map[string]database.User

func (ids identities) ResolveIdentity(ctx context.Context, claims user.Claims) (database.User, error) {
	u, ok := ids[claims.Subject]
	if !ok {
		return u, apperror.Forbidden("Your account has not been invited")
	}
	return u, nil
}

var (
	adminUser   = database.User{ID: uuid.New(), Email: "admin@example.com", Roles: []database.UserRole{database.UserRoleAdmin}, Status: database.UserStatusActive}
	contentUser = database.User{ID: uuid.New(), Email: "content@example.com", Roles: []database.UserRole{database.UserRoleContentAdmin}, Status: database.UserStatusActive}
	plannerUser = database.User{ID: uuid.New(), Email: "planner@example.com", Roles: []database.UserRole{database.UserRoleUser}, Status: database.UserStatusActive}
)

type testServer struct {
	app  *fiber.App
	mock sqlmock.Sqlmock
}

func newTestServer(t *testing.T, dbErr error) testServer {
	t.Helper()
	cfg := testutil.TestConfig()
	log := logger.Discard()
	db, mock := testutil.NewMockDatabase(t)

	auth, err := middleware.NewAuthenticator(log, cfg.Auth, identities{
		"admin":   adminUser,
		"content": contentUser,
		"planner": plannerUser,
	})
	require.NoError(t, err)

	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)

	auditor := audit.NewAuditor(log, db)
	users := user.NewManager(log, db, &auditor)
	occupations := occupation.NewManager(log, db, &auditor, cache.Disabled())
	careActivities := careactivity.NewManager(log, db, &auditor, store)
	uploads := upload.NewManager(log, db, &auditor, cache.Disabled(), store, monitoring.Noop())
	planner := planning.NewManager(log, db, &users, monitoring.Noop())
	kpis := kpi.NewManager(log, db, cache.Disabled(), cfg.KPI)

	app := New(Options{
		Config:         cfg,
		Logger:         log,
		Database:       stubPinger{err: dbErr},
		Cache:          cache.Disabled(),
		Validator:      validator.New(),
		Authenticator:  auth,
		Users:          &users,
		Occupations:    &occupations,
		CareActivities: &careActivities,
		Uploads:        &uploads,
		Planning:       &planner,
		KPI:            &kpis,
	})
	return testServer{app: app, mock: mock}
}

func token(t *testing.T, subject string) string {
	t.Helper()
	// Signatures are not checked in the test configuration.
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test"))
	require.NoError(t, err)
	return raw
}

func (s testServer) do(t *testing.T, method, path, subject string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, Prefix+path, body)
	if subject != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, subject))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeError(t *testing.T, resp *http.Response) apperror.Error {
	t.Helper()
	var out apperror.Error
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	resp := newTestServer(t, nil).do(t, http.MethodGet, EndpointHealth, "", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))

	resp = newTestServer(t, errors.New("connection refused")).do(t, http.MethodGet, EndpointHealth, "", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.do(t, http.MethodGet, EndpointMe, "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, apperror.TypeUnauthorized, decodeError(t, resp).Type)

	resp = s.do(t, http.MethodGet, EndpointMe, "stranger", nil, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = s.do(t, http.MethodGet, EndpointMe, "planner", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me struct {
		Email string   `json:"email"`
		Roles []string `json:"roles"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	assert.Equal(t, "planner@example.com", me.Email)
	assert.Equal(t, []string{"USER"}, me.Roles)
}

func TestRoleGuards(t *testing.T) {
	s := newTestServer(t, nil)

	for _, tc := range []struct {
		method, path, subject string
	}{
		{http.MethodGet, EndpointUsers, "planner"},
		{http.MethodGet, EndpointKPI, "content"},
		{http.MethodGet, EndpointCareActivityCMS, "admin"},
		{http.MethodPost, EndpointPlanningSessions, "content"},
	} {
		resp := s.do(t, tc.method, tc.path, tc.subject, nil, "")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, "%s %s as %s", tc.method, tc.path, tc.subject)
		assert.Equal(t, apperror.TypeForbidden, decodeError(t, resp).Type)
	}
}

func TestInvite_Validation(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.do(t, http.MethodPost, EndpointUserInvite, "admin",
		strings.NewReader(`{"email":"not-an-email","roles":["ROOT"]}`), fiber.MIMEApplicationJSON)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Type    apperror.Type          `json:"errorType"`
		Status  int                    `json:"httpStatus"`
		Details []validator.FieldError `json:"errorDetails"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, apperror.TypeFailedFieldValidation, body.Type)
	assert.Equal(t, http.StatusBadRequest, body.Status)
	fields := make([]string, len(body.Details))
	for i, d := range body.Details {
		fields[i] = d.Field
	}
	assert.ElementsMatch(t, []string{"email", "roles[0]"}, fields)
}

func TestMalformedID(t *testing.T) {
	resp := newTestServer(t, nil).do(t, http.MethodGet, "/occupations/not-a-uuid", "planner", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, apperror.TypeFailedFieldValidation, decodeError(t, resp).Type)
}

func TestNotAcceptable(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, Prefix+EndpointHealth, nil)
	req.Header.Set("Accept", "text/html")
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotAcceptable, resp.StatusCode)
}

func TestPlanningSession_NotFound(t *testing.T) {
	s := newTestServer(t, nil)
	id := uuid.New()
	s.mock.ExpectQuery(`FROM tbl_planning_session WHERE 1=1 AND id = \$1 AND user_id = \$2`).
		WithArgs(id, plannerUser.ID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	resp := s.do(t, http.MethodGet, "/planning-sessions/"+id.String()+"/profile", "planner", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, apperror.TypePlanningSessionNotFound, decodeError(t, resp).Type)
}

func TestCareActivityTemplate(t *testing.T) {
	s := newTestServer(t, nil)
	s.mock.ExpectQuery(`FROM tbl_occupation WHERE 1=1 AND deleted_at IS NULL ORDER BY display_order`).
		WillReturnRows(testutil.OccupationRows(1, database.Occupation{ID: uuid.New(), DisplayName: "Registered Nurse"}))

	resp := s.do(t, http.MethodGet, EndpointCareActivityTemplate, "content", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, middleware.MIMEApplicationXLSX, resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "care-activities-template.xlsx")

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	sheet, err := upload.ParseXLSX(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Contains(t, sheet.Headers, "Registered Nurse")
}

func TestValidateUpload_UnsupportedFile(t *testing.T) {
	s := newTestServer(t, nil)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "activities.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("ID,Care Setting\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	resp := s.do(t, http.MethodPost, EndpointCareActivityValidate, "content", &body, w.FormDataContentType())
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	assert.Equal(t, apperror.TypeUnsupportedFile, decodeError(t, resp).Type)
}

func TestValidateUpload_EmptyJSON(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.do(t, http.MethodPost, EndpointCareActivityValidate, "content",
		strings.NewReader(`{"headers":["ID"],"data":[]}`), fiber.MIMEApplicationJSON)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger.Discard())})
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("pq: connection reset") })
	app.Get("/slow", func(c *fiber.Ctx) error { return context.DeadlineExceeded })

	for path, want := range map[string]apperror.Type{
		"/boom":    apperror.TypeInternal,
		"/slow":    apperror.TypeGatewayTimeout,
		"/missing": apperror.TypeNotFound,
	} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		body := decodeError(t, resp)
		assert.Equal(t, want, body.Type, path)
		assert.Equal(t, body.Status, resp.StatusCode, path)
		assert.NotContains(t, body.Message, "pq:")
	}
}
