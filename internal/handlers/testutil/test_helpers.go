package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/clubhouse/internal/api"
	"github.com/charlesng35/clubhouse/internal/app"
	iauth "github.com/charlesng35/clubhouse/internal/auth"
	sharedtestutil "github.com/charlesng35/clubhouse/internal/database/testutil"
	"github.com/charlesng35/clubhouse/internal/membership"
	"github.com/charlesng35/clubhouse/internal/models"
	"github.com/charlesng35/clubhouse/internal/monitoring"
	"github.com/charlesng35/clubhouse/pkg/response"
)

// Now is the fixed clock every Env router runs on.
var Now = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Router *gin.Engine
	JWT    *iauth.JWTService
	Config *app.Config
}

// Config returns the configuration used by NewEnv.
func Config() *app.Config {
	return &app.Config{
		Club:       app.ClubConfig{Name: "Test Club", Timezone: "UTC"},
		Membership: app.MembershipConfig{GuestMaxRuns: 3},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
		Automation: app.AutomationConfig{Concurrency: 1},
	}
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...api.RouterOption) *Env {
	t.Helper()
	return NewEnvWithConfig(t, Config(), opts...)
}

// NewEnvWithConfig is NewEnv with a caller-supplied configuration.
func NewEnvWithConfig(t *testing.T, cfg *app.Config, opts ...api.RouterOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "test-suite-super-secret-key-32-bytes!!",
		Issuer:         "test-suite",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	base := []api.RouterOption{
		api.WithClock(func() time.Time { return Now }),
		api.WithHealth(monitoring.NewHealthManager()),
	}
	router, err := api.NewRouter(db, jwtSvc, cfg, append(base, opts...)...)
	require.NoError(t, err)

	return &Env{
		T:      t,
		DB:     db,
		Router: router,
		JWT:    jwtSvc,
		Config: cfg,
	}
}

// CreateMember inserts a member with a random username.
func (e *Env) CreateMember(status membership.AccountStatus, accountType membership.AccountType, role membership.Role) models.Member {
	e.T.Helper()

	username := "member-" + uuid.NewString()[:8]
	member := models.Member{
		Username:      username,
		Email:         username + "@example.com",
		FirstName:     "Test",
		LastName:      username,
		Role:          role,
		AccountStatus: status,
		AccountType:   accountType,
	}
	require.NoError(e.T, e.DB.Create(&member).Error)
	return member
}

// CreateVehicle inserts a vehicle owned by owner.
func (e *Env) CreateVehicle(owner models.Member) models.Vehicle {
	e.T.Helper()

	vehicle := models.Vehicle{OwnerID: owner.ID, Year: 2004, Make: "Jeep", Model: "Wrangler"}
	require.NoError(e.T, e.DB.Create(&vehicle).Error)
	return vehicle
}

// CreateEvent inserts an event of eventType starting at start and lasting four hours.
func (e *Env) CreateEvent(title, eventType string, start time.Time) models.Event {
	e.T.Helper()

	event := models.Event{
		Title:     title,
		Type:      eventType,
		StartTime: start.UTC(),
		EndTime:   start.Add(4 * time.Hour).UTC(),
	}
	require.NoError(e.T, e.DB.Create(&event).Error)
	return event
}

// Token issues an access token for member.
func (e *Env) Token(member models.Member) string {
	e.T.Helper()

	token, err := e.JWT.GenerateAccessToken(iauth.AccessTokenInput{MemberID: member.ID, Role: member.Role})
	require.NoError(e.T, err)
	return token
}

// Reload fetches the stored copy of member.
func (e *Env) Reload(member models.Member) models.Member {
	e.T.Helper()

	var stored models.Member
	require.NoError(e.T, e.DB.First(&stored, "id = ?", member.ID).Error)
	return stored
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
