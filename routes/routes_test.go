package routes

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheduling-server/middleware"
	"scheduling-server/models"
	"scheduling-server/realtime"
	"scheduling-server/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func asUser(user *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.SetUser(c, user)
		c.Next()
	}
}

func director() *models.User {
	firma := "firma-1"
	return &models.User{UserID: "d1", FirmaID: &firma}
}

func worker() *models.User {
	firma := "firma-1"
	status := int(models.StatusWorker)
	return &models.User{UserID: "u1", FirmaID: &firma, Status: &status}
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRespondErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&services.ValidationError{FieldErrors: map[string]string{"id": "is required"}}, http.StatusBadRequest},
		{&services.FieldPermissionError{Fields: []string{"clientID"}}, http.StatusForbidden},
		{services.ErrForbidden, http.StatusForbidden},
		{services.ErrNotFound, http.StatusNotFound},
		{errors.Join(errors.New("client has 2 appointments"), services.ErrConflict), http.StatusConflict},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	h := &Handlers{}
	for _, tt := range tests {
		r := gin.New()
		r.GET("/x", func(c *gin.Context) { h.respondError(c, tt.err, "Failed") })
		assert.Equal(t, tt.want, do(r, http.MethodGet, "/x", "").Code, tt.err.Error())
	}
}

func TestInternalErrorsDoNotLeakDetails(t *testing.T) {
	h := &Handlers{}
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		h.respondError(c, errors.New(`pq: relation "appointments" does not exist`), "Failed to load appointments")
	})
	w := do(r, http.MethodGet, "/x", "")
	assert.JSONEq(t, `{"error":"Failed to load appointments"}`, w.Body.String())
}

func TestCrudHandlers(t *testing.T) {
	h := &Handlers{}
	var gotID string
	var gotPatch services.Patch

	r := gin.New()
	r.Use(asUser(director()))
	r.POST("/things", createHandler(h, "thing", func(_ context.Context, _ *models.User, in services.TeamInput) (*models.Team, error) {
		if in.TeamName == "taken" {
			return nil, services.ErrConflict
		}
		return &models.Team{TeamID: "t1", TeamName: in.TeamName}, nil
	}))
	r.PUT("/things", updateHandler(h, "thing", func(_ context.Context, _ *models.User, id string, p services.Patch) (*models.Team, error) {
		gotID, gotPatch = id, p
		if id == "missing" {
			return nil, services.ErrNotFound
		}
		return &models.Team{TeamID: id}, nil
	}))
	r.DELETE("/things", deleteHandler(h, "thing", func(_ context.Context, _ *models.User, id string) error {
		gotID = id
		return nil
	}))

	w := do(r, http.MethodPost, "/things", `{"teamName":"North"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"teamID":"t1","firmaID":"","teamName":"North"}`, w.Body.String())

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/things", `{"teamName":`).Code)
	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/things", `{"teamName":"taken"}`).Code)

	w = do(r, http.MethodPut, "/things", `{"id":"t1","teamName":"South"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t1", gotID)
	assert.True(t, gotPatch.Has("teamName"))

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPut, "/things", `{"teamName":"South"}`).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPut, "/things", `{"id":"missing"}`).Code)

	w = do(r, http.MethodDelete, "/things", `{"id":"t9"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	assert.Equal(t, "t9", gotID)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodDelete, "/things", ``).Code)
}

func newEventServer(t *testing.T, user *models.User) (*httptest.Server, *realtime.Router) {
	t.Helper()
	router := realtime.NewRouter(realtime.NewMemoryTransport(64))
	t.Cleanup(func() { _ = router.Close() })

	h := &Handlers{
		Router:   router,
		Stream:   realtime.StreamOptions{KeepaliveInterval: time.Hour},
		Upgrader: realtime.NewUpgrader(nil),
	}
	engine := gin.New()
	RegisterEventRoutes(engine.Group("/scheduling", asUser(user)), h)

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return srv, router
}

func TestEventStreamEndpoint(t *testing.T) {
	srv, router := newEventServer(t, director())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/scheduling/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no", resp.Header.Get("X-Accel-Buffering"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "data: {\"type\":\"connected\"}\n", line)

	require.Eventually(t, func() bool { return router.SubscriberCount("firma-1") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, router.Publish(ctx, realtime.ChangeEvent{Type: realtime.TeamCreated, FirmaID: "firma-2"}))
	require.NoError(t, router.Publish(ctx, realtime.ChangeEvent{Type: realtime.TeamCreated, FirmaID: "firma-1"}))

	_, err = reader.ReadString('\n') // blank line closing the connected frame
	require.NoError(t, err)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "data: {\"type\":\"team_created\",\"firmaID\":\"firma-1\"}\n", line)

	cancel()
	assert.Eventually(t, func() bool { return router.SubscriberCount("firma-1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestEventStatsRequiresDirector(t *testing.T) {
	srv, _ := newEventServer(t, worker())
	resp, err := http.Get(srv.URL + "/scheduling/events/stats")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	srv, _ = newEventServer(t, director())
	resp, err = http.Get(srv.URL + "/scheduling/events/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestVerifyPushValidation(t *testing.T) {
	h := &Handlers{}
	engine := gin.New()
	RegisterStaffRoutes(engine.Group("/staff", asUser(director())), h)
	w := do(engine, http.MethodPost, "/staff/verify-push", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Missing targetUserID"}`, w.Body.String())

	engine = gin.New()
	RegisterStaffRoutes(engine.Group("/staff", asUser(worker())), h)
	assert.Equal(t, http.StatusForbidden, do(engine, http.MethodPost, "/staff/verify-push", `{"targetUserID":"u2"}`).Code)
}
