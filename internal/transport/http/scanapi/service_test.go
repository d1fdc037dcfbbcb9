package scanapi

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carscan-server/internal/domain/auth"
	"carscan-server/internal/domain/detection"
	"carscan-server/internal/domain/intake"
	"carscan-server/internal/domain/progress"
	"carscan-server/internal/domain/scan"
	platformerrors "carscan-server/internal/platform/errors"
	platformtesting "carscan-server/internal/platform/testing"
	httptransport "carscan-server/internal/transport/http"
)

type stubDetector struct{}

func (stubDetector) Detect(_ context.Context, _ intake.File, imageURL string) (detection.ScanResult, error) {
	return detection.ScanResult{
		Detections: []detection.Detection{{Type: "scratch", Confidence: 77.7, Box: detection.Box{2, 30, 20, 40}, Area: 180}},
		ImageURL:   imageURL,
	}, nil
}

type fixture struct {
	engine  *gin.Engine
	manager *scan.Manager
	tokens  *auth.SessionToken
}

func newFixture(t *testing.T, phase time.Duration, maxUpload int64) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := platformtesting.SetupTestConfig(t)
	cfg.Log.Level = "info"
	cfg.Upload.MaxFileSize = maxUpload
	logger := platformtesting.SetupTestLogger(t)

	manager, err := scan.NewManager(scan.ManagerOptions{
		Detector: stubDetector{},
		Simulator: progress.New(progress.Options{
			Phases: []progress.Phase{progress.NewPhase("analyze", phase, nil)},
			Tick:   time.Millisecond,
			Step:   50,
			Tail:   time.Millisecond,
		}),
		Locale: detection.LocaleEN,
		Logger: logger,
	})
	require.NoError(t, err)
	t.Cleanup(manager.Close)

	tokens := auth.NewSessionToken(cfg.Server.Token)
	svc, err := NewService(cfg, logger, manager, tokens)
	require.NoError(t, err)

	router, err := httptransport.Build(httptransport.Options{Config: cfg, Logger: logger})
	require.NoError(t, err)
	require.NoError(t, svc.Register(context.Background(), router.API))

	return &fixture{engine: router.Engine, manager: manager, tokens: tokens}
}

func (f *fixture) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, httptransport.APIResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	var resp httptransport.APIResponse
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func (f *fixture) create(t *testing.T) (string, string) {
	t.Helper()
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	require.Equal(t, http.StatusCreated, w.Code)

	var body struct {
		Data CreateSessionData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.Data.Token)
	return body.Data.Session.ID, body.Data.Token
}

type part struct {
	name        string
	contentType string
	data        []byte
}

func uploadRequest(t *testing.T, id, token string, parts ...part) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+p.name+`"`)
		h.Set("Content-Type", p.contentType)
		pw, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = pw.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func authed(method, path, token string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestCreateAndGetSession(t *testing.T) {
	f := newFixture(t, 5*time.Millisecond, 1<<20)
	id, token := f.create(t)

	w, _ := f.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, resp := f.do(t, authed(http.MethodGet, "/api/sessions/"+id, token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "idle", resp.Data.(map[string]any)["state"])

	w, _ = f.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"?token="+token, nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTokenBoundToSession(t *testing.T) {
	f := newFixture(t, 5*time.Millisecond, 1<<20)
	_, tokenA := f.create(t)
	idB, _ := f.create(t)

	w, _ := f.do(t, authed(http.MethodGet, "/api/sessions/"+idB, tokenA))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUnknownSession(t *testing.T) {
	f := newFixture(t, 5*time.Millisecond, 1<<20)
	token, err := f.tokens.Issue("missing")
	require.NoError(t, err)

	w, resp := f.do(t, authed(http.MethodPost, "/api/sessions/missing/cancel", token))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, resp.Success)
}

func TestUploadIgnoresNonImage(t *testing.T) {
	f := newFixture(t, 5*time.Millisecond, 1<<20)
	id, token := f.create(t)

	w, resp := f.do(t, uploadRequest(t, id, token, part{"a.txt", "text/plain", []byte("hello")}))
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]any)
	assert.Equal(t, false, data["accepted"])
	assert.Equal(t, "idle", data["session"].(map[string]any)["state"])
}

func TestUploadScanAndRender(t *testing.T) {
	f := newFixture(t, 5*time.Millisecond, 1<<20)
	id, token := f.create(t)
	img := pngBytes(t, 64, 48)

	w, resp := f.do(t, uploadRequest(t, id, token,
		part{"notes.txt", "text/plain", []byte("x")},
		part{"car.png", "image/png", img},
	))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp.Data.(map[string]any)["accepted"])

	sess, err := f.manager.Get(id)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := sess.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, scan.StateResult, snap.State)

	w, _ = f.do(t, authed(http.MethodGet, "/api/sessions/"+id+"/image", token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, img, w.Body.Bytes())

	w, _ = f.do(t, authed(http.MethodGet, "/api/sessions/"+id+"/overlay.png?mode=overlay", token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-Detections"))
	out, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), out.Bounds())

	w, resp = f.do(t, authed(http.MethodPost, "/api/sessions/"+id+"/reset", token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "idle", resp.Data.(map[string]any)["state"])

	w, _ = f.do(t, authed(http.MethodGet, "/api/sessions/"+id+"/overlay.png", token))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUploadPickerOnlyConsidersFirstFile(t *testing.T) {
	f := newFixture(t, 200*time.Millisecond, 1<<20)
	id, token := f.create(t)
	parts := []part{
		{"notes.txt", "text/plain", []byte("x")},
		{"car.png", "image/png", pngBytes(t, 8, 8)},
	}

	req := uploadRequest(t, id, token, parts...)
	req.URL.RawQuery = "source=picker"
	w, resp := f.do(t, req)
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]any)
	assert.Equal(t, false, data["accepted"])
	assert.Equal(t, "idle", data["session"].(map[string]any)["state"])

	w, resp = f.do(t, uploadRequest(t, id, token, parts...))
	require.Equal(t, http.StatusOK, w.Code)
	data = resp.Data.(map[string]any)
	assert.Equal(t, true, data["accepted"])
	assert.Equal(t, true, data["session"].(map[string]any)["intakeDisabled"])
}

func TestUploadWhileScanningConflicts(t *testing.T) {
	f := newFixture(t, time.Second, 1<<20)
	id, token := f.create(t)
	img := pngBytes(t, 8, 8)

	w, _ := f.do(t, uploadRequest(t, id, token, part{"car.png", "image/png", img}))
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(t, uploadRequest(t, id, token, part{"car.png", "image/png", img}))
	assert.Equal(t, http.StatusConflict, w.Code)

	w, resp := f.do(t, authed(http.MethodPost, "/api/sessions/"+id+"/cancel", token))
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]any)
	assert.Equal(t, true, data["canceled"])
	assert.Equal(t, float64(0), data["session"].(map[string]any)["progress"])
}

func TestUploadTooLarge(t *testing.T) {
	f := newFixture(t, 5*time.Millisecond, 512)
	id, token := f.create(t)

	w, resp := f.do(t, uploadRequest(t, id, token, part{"big.png", "image/png", make([]byte, 4096)}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.False(t, resp.Success)
}

func TestUploadRequiresFileField(t *testing.T) {
	f := newFixture(t, 5*time.Millisecond, 1<<20)
	id, token := f.create(t)

	w, _ := f.do(t, uploadRequest(t, id, token))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{scan.ErrSessionNotFound, http.StatusNotFound},
		{scan.ErrScanInProgress, http.StatusConflict},
		{scan.ErrNoResult, http.StatusConflict},
		{auth.ErrInvalidToken, http.StatusUnauthorized},
		{platformerrors.New(platformerrors.KindIntake, "op", "bad"), http.StatusBadRequest},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}
