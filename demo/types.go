// Package demo is a small page-rendering application wired through the
// container. Its registration table has the shape a build-time generator
// emits: one flat factory array and an index of ranges into it.
package demo

import (
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/km-arc/go-magnet/framework/container"
)

// Contract types.
const (
	PageType        container.Type = "demo.Page"
	RepositoryType  container.Type = "demo.Repository"
	RequestInfoType container.Type = "demo.RequestInfo"
	ClockType       container.Type = "demo.Clock"
	UptimeType      container.Type = "demo.Uptime"
)

// TabClassifier is the classifier of the second tab page.
const TabClassifier container.Classifier = "tab2"

// Page is one tab of the UI. The home page is unclassified; other tabs are
// classified by their tab name.
type Page interface {
	Tab() string
	Render() PageView
}

// PageView is what a Page renders to.
type PageView struct {
	Tab       string   `json:"tab"`
	Title     string   `json:"title"`
	Items     []string `json:"items"`
	RequestID string   `json:"request_id,omitempty"`
	Uptime    string   `json:"uptime"`
}

// Repository is the application-wide data source, one per root.
type Repository interface {
	Items(tab string) []string
	Loads() int64
}

// Clock and Uptime are two contracts served by one instance.
type Clock interface{ Now() time.Time }

type Uptime interface{ Since() time.Duration }

// RequestInfo is created once per request scope.
type RequestInfo struct {
	ID     string
	Path   string
	logger *slog.Logger
}

func newRequestInfo(req *http.Request, logger *slog.Logger) *RequestInfo {
	return &RequestInfo{
		ID:     middleware.GetReqID(req.Context()),
		Path:   req.URL.Path,
		logger: logger,
	}
}

// Dispose runs when the request scope is released.
func (ri *RequestInfo) Dispose() {
	ri.logger.Debug("request scope closed", slog.String("request_id", ri.ID), slog.String("path", ri.Path))
}

type memoryRepository struct {
	tabs  map[string][]string
	loads atomic.Int64
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{tabs: map[string][]string{
		"":                    {"welcome", "latest news"},
		string(TabClassifier): {"settings", "profile", "billing"},
	}}
}

func (r *memoryRepository) Items(tab string) []string {
	r.loads.Add(1)
	return append([]string(nil), r.tabs[tab]...)
}

func (r *memoryRepository) Loads() int64 { return r.loads.Load() }

type systemClock struct{ started time.Time }

func (c *systemClock) Now() time.Time       { return time.Now() }
func (c *systemClock) Since() time.Duration { return time.Since(c.started) }

type page struct {
	tab   string
	title string
	repo  Repository
	info  *RequestInfo
	up    Uptime
}

func (p *page) Tab() string { return p.tab }

func (p *page) Render() PageView {
	return PageView{
		Tab:       p.tab,
		Title:     p.title,
		Items:     p.repo.Items(p.tab),
		RequestID: p.info.ID,
		Uptime:    p.up.Since().Truncate(time.Millisecond).String(),
	}
}
