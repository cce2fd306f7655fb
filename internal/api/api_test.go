package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/friendsincode/skald_radio/internal/auth"
	"github.com/friendsincode/skald_radio/internal/cache"
	"github.com/friendsincode/skald_radio/internal/config"
	"github.com/friendsincode/skald_radio/internal/events"
	"github.com/friendsincode/skald_radio/internal/history"
	"github.com/friendsincode/skald_radio/internal/ledger"
	"github.com/friendsincode/skald_radio/internal/media"
	"github.com/friendsincode/skald_radio/internal/models"
	"github.com/friendsincode/skald_radio/internal/schedule"
)

const testSecret = "test-signing-key"

type apiRig struct {
	server *httptest.Server
	db     *gorm.DB
	ledger *ledger.Service
	admin  string // bearer token
}

func newAPIRig(t *testing.T) *apiRig {
	t.Helper()

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&models.User{}, &models.Profile{}, &models.ScheduleEntry{}, &models.HistoryEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logger := zerolog.Nop()
	bus := events.NewBus()
	recorder := history.NewRecorder(database, logger)
	mediaSvc := media.NewServiceWithStorage(media.NewFilesystemStorage(t.TempDir(), logger), logger)
	ledgerSvc := ledger.NewService(database, recorder, mediaSvc, bus, logger)
	scheduleStore := schedule.NewStore(database, recorder, bus, logger)

	cfg := &config.Config{JWTSigningKey: testSecret}
	a := New(database, cfg, ledgerSvc, scheduleStore, mediaSvc, recorder, cache.NewDisabled(logger), bus, logger)

	router := chi.NewRouter()
	a.Routes(router)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	adminToken, err := auth.Issue([]byte(testSecret), auth.Claims{UserID: "admin", Role: auth.RoleAdmin}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	return &apiRig{server: server, db: database, ledger: ledgerSvc, admin: adminToken}
}

func (rig *apiRig) request(t *testing.T, method, path, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, rig.server.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

func (rig *apiRig) createProfile(t *testing.T, name, username string) profileResponse {
	t.Helper()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	fields := map[string]string{
		"name": name, "url": "https://stream.example/" + username,
		"plan": "1 Month", "username": username, "password": "secret",
	}
	for k, v := range fields {
		if err := form.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	form.Close()

	resp := rig.request(t, http.MethodPost, "/api/radiostreams", rig.admin, &buf, form.FormDataContentType())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	return decodeBody[profileResponse](t, resp)
}

func TestProfileLifecycle(t *testing.T) {
	rig := newAPIRig(t)
	profile := rig.createProfile(t, "Morning FM", "morningfm")

	if profile.Blocked || !profile.AlarmBlocked {
		t.Fatalf("fresh profile gates = blocked %v alarmBlocked %v", profile.Blocked, profile.AlarmBlocked)
	}
	if profile.DaysLeft != 30 {
		t.Fatalf("daysLeft = %d, want 30", profile.DaysLeft)
	}

	resp := rig.request(t, http.MethodPost, "/api/radiostreams/"+profile.ID+"/block", rig.admin, nil, "")
	blocked := decodeBody[profileResponse](t, resp)
	if !blocked.Blocked {
		t.Fatal("block did not set the hard gate")
	}

	resp = rig.request(t, http.MethodPost, "/api/radiostreams/"+profile.ID+"/unblock-alarm", rig.admin, nil, "")
	activated := decodeBody[profileResponse](t, resp)
	if activated.AlarmBlocked {
		t.Fatal("unblock-alarm did not clear the soft gate")
	}

	resp = rig.request(t, http.MethodGet, "/api/radiostreams/"+profile.ID+"/days-left", rig.admin, nil, "")
	days := decodeBody[map[string]int](t, resp)
	if _, ok := days["daysLeft"]; !ok {
		t.Fatal("days-left response missing daysLeft")
	}

	resp = rig.request(t, http.MethodDelete, "/api/radiostreams/"+profile.ID, rig.admin, nil, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = rig.request(t, http.MethodGet, "/api/radiostreams/"+profile.ID, rig.admin, nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestScheduleRoundTrip(t *testing.T) {
	rig := newAPIRig(t)
	profile := rig.createProfile(t, "Noon FM", "noonfm")

	body := strings.NewReader(fmt.Sprintf(
		`[{"time":"12:00:00","trackRef":"%s-noon.mp3"},{"time":"18:30:00","trackRef":"%s-evening.mp3"}]`,
		profile.ID, profile.ID))
	resp := rig.request(t, http.MethodPut, "/api/radiostreams/"+profile.ID+"/schedule", rig.admin, body, "application/json")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("replace status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = rig.request(t, http.MethodGet, "/api/radiostreams/"+profile.ID+"/schedule", rig.admin, nil, "")
	entries := decodeBody[[]scheduleEntryResponse](t, resp)
	if len(entries) != 2 || entries[0].Time != "12:00:00" || entries[1].Position != 1 {
		t.Fatalf("unexpected schedule %+v", entries)
	}

	// Invalid time strings reject the whole request.
	resp = rig.request(t, http.MethodPut, "/api/radiostreams/"+profile.ID+"/schedule", rig.admin,
		strings.NewReader(`[{"time":"not-a-time","trackRef":"x"}]`), "application/json")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid time status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestProfileTokenScoping(t *testing.T) {
	rig := newAPIRig(t)
	mine := rig.createProfile(t, "Mine FM", "minefm")
	other := rig.createProfile(t, "Other FM", "otherfm")

	token, err := auth.Issue([]byte(testSecret), auth.Claims{
		UserID: mine.ID, Role: auth.RoleProfile, ProfileID: mine.ID,
	}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	resp := rig.request(t, http.MethodGet, "/api/radiostreams/"+mine.ID, token, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("own profile status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = rig.request(t, http.MethodGet, "/api/radiostreams/"+other.ID, token, nil, "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign profile status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Gate mutations stay admin-only even on the own profile.
	resp = rig.request(t, http.MethodPost, "/api/radiostreams/"+mine.ID+"/block", token, nil, "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("profile-token block status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestPlayerSnapshotRunsGraceMonitor(t *testing.T) {
	rig := newAPIRig(t)
	profile := rig.createProfile(t, "Stale FM", "stalefm")

	resp := rig.request(t, http.MethodPost, "/api/radiostreams/"+profile.ID+"/unblock-alarm", rig.admin, nil, "")
	resp.Body.Close()

	// Age the profile far past expiry plus grace.
	past := time.Now().Add(-40 * 24 * time.Hour)
	if err := rig.db.Model(&models.Profile{}).Where("id = ?", profile.ID).
		Updates(map[string]any{"created_at": past, "expires_at": past.AddDate(0, 0, 30)}).Error; err != nil {
		t.Fatalf("age profile: %v", err)
	}

	resp = rig.request(t, http.MethodGet, "/api/radio/"+profile.ID+"/player", rig.admin, nil, "")
	snapshot := decodeBody[playerSnapshotResponse](t, resp)
	if !snapshot.AlarmBlocked {
		t.Fatal("poll past the grace allowance must force alarmBlocked")
	}
	if snapshot.DaysLeft >= 0 {
		t.Fatalf("daysLeft = %d, want negative", snapshot.DaysLeft)
	}
}

func TestTrackUploadAndStream(t *testing.T) {
	rig := newAPIRig(t)
	profile := rig.createProfile(t, "Track FM", "trackfm")

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "jingle.mp3")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte("mp3-bytes"))
	form.Close()

	resp := rig.request(t, http.MethodPost, "/api/radiostreams/"+profile.ID+"/tracks", rig.admin, &buf, form.FormDataContentType())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}
	track := decodeBody[trackResponse](t, resp)
	if track.Ref != profile.ID+"-jingle.mp3" {
		t.Fatalf("ref = %q", track.Ref)
	}

	// Streaming needs no token.
	resp = rig.request(t, http.MethodGet, track.URL, "", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stream status = %d", resp.StatusCode)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(data) != "mp3-bytes" {
		t.Fatalf("streamed content = %q", data)
	}
}
