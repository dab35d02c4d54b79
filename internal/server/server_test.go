package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"rumble-backup/internal/ratelimit"
	"rumble-backup/pkg/models"
)

type fakeCatalog struct {
	videos    map[string][]*models.VideoRecord
	lastLimit int
}

func (f *fakeCatalog) SaveVideo(rec *models.VideoRecord) error { return nil }

func (f *fakeCatalog) VideosByChannel(channel string, limit int) ([]*models.VideoRecord, error) {
	f.lastLimit = limit
	return f.videos[channel], nil
}

func (f *fakeCatalog) AllVideos() ([]*models.VideoRecord, error)         { return nil, nil }
func (f *fakeCatalog) SaveRun(rec *models.RunRecord) error               { return nil }
func (f *fakeCatalog) RecentRuns(limit int) ([]*models.RunRecord, error) { return nil, nil }
func (f *fakeCatalog) Stats() (*models.CatalogStats, error)              { return &models.CatalogStats{}, nil }
func (f *fakeCatalog) Close() error                                      { return nil }

func newTestRouter(cat models.Catalog) *gin.Engine {
	gin.SetMode(gin.TestMode)
	s := &Server{
		catalog:      cat,
		rateLimitMgr: ratelimit.NewManager(&ratelimit.Config{}),
		logger:       zerolog.Nop(),
	}
	router := gin.New()
	s.setupRoutes(router)
	return router
}

func TestChannelVideoListEndpoint(t *testing.T) {
	cat := &fakeCatalog{videos: map[string][]*models.VideoRecord{
		"newschannel": {
			{Channel: "newschannel", VideoID: "v6abc12", Title: "First Video", DownloadedAt: time.Now()},
			{Channel: "newschannel", VideoID: "v6def34", Title: "Second Video", DownloadedAt: time.Now()},
		},
	}}
	router := newTestRouter(cat)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/channels/newschannel/videos", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var body struct {
		Channel string                `json:"channel"`
		Total   int                   `json:"total"`
		Videos  []*models.VideoRecord `json:"videos"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("parsing response failed: %v", err)
	}

	if body.Channel != "newschannel" || body.Total != 2 || len(body.Videos) != 2 {
		t.Errorf("Unexpected response: channel=%s total=%d videos=%d", body.Channel, body.Total, len(body.Videos))
	}
	if body.Videos[0].VideoID != "v6abc12" {
		t.Errorf("Expected v6abc12 first, got %s", body.Videos[0].VideoID)
	}
	if cat.lastLimit != 0 {
		t.Errorf("Expected no limit by default, got %d", cat.lastLimit)
	}
}

func TestChannelVideoListLimit(t *testing.T) {
	cat := &fakeCatalog{}
	router := newTestRouter(cat)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/channels/newschannel/videos?limit=5", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if cat.lastLimit != 5 {
		t.Errorf("Expected limit 5 passed through, got %d", cat.lastLimit)
	}
}

func TestChannelVideoListUnknownChannel(t *testing.T) {
	cat := &fakeCatalog{}
	router := newTestRouter(cat)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/channels/nosuch/videos", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var body struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("parsing response failed: %v", err)
	}
	if body.Total != 0 {
		t.Errorf("Expected empty list for unknown channel, got %d", body.Total)
	}
}
