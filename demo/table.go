package demo

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/km-arc/go-magnet/framework/container"
	"github.com/km-arc/go-magnet/framework/providers"
	"github.com/km-arc/go-magnet/framework/routing"
)

// Factory IDs.
const (
	homePageID    = "demo.page.home"
	tabPageID     = "demo.page.tab2"
	repositoryID  = "demo.repository"
	requestInfoID = "demo.request_info"
	clockID       = "demo.clock"
	uptimeID      = "demo.clock.uptime"
)

// Factories is the flat factory array Index points into.
var Factories = []container.Factory{
	/* 0 */ container.NewFactory(homePageID, container.Direct, pageFactory("", "Home")),
	/* 1 */ container.NewFactory(tabPageID, container.Direct, pageFactory(TabClassifier, "Account")),
	/* 2 */ container.NewFactory(repositoryID, container.Topmost, createRepository),
	/* 3 */ container.NewFactory(requestInfoID, container.Direct, createRequestInfo),
	/* 4 */ container.NewFactory(clockID, container.Topmost, createClock,
		container.Sibling{Type: UptimeType, Factory: uptimeID}),
	/* 5 */ container.NewFactory(uptimeID, container.Topmost, createClock,
		container.Sibling{Type: ClockType, Factory: clockID}),
}

// Index maps every demo contract to its factories.
var Index = container.Index{
	PageType: container.MultiBinding(
		container.Range{From: 0, Count: 1},
		container.Range{From: 1, Count: 1, Classifier: TabClassifier},
	),
	RepositoryType:  container.RangedBinding(2, 1),
	RequestInfoType: container.RangedBinding(3, 1),
	ClockType:       container.RangedBinding(4, 1),
	UptimeType:      container.RangedBinding(5, 1),
}

func pageFactory(tab container.Classifier, title string) container.CreateFunc {
	return func(r *container.Resolver) (any, error) {
		repo, err := container.Single[Repository](r, RepositoryType, container.None)
		if err != nil {
			return nil, err
		}
		info, err := container.Single[*RequestInfo](r, RequestInfoType, container.None)
		if err != nil {
			return nil, err
		}
		up, err := container.Single[Uptime](r, UptimeType, container.None)
		if err != nil {
			return nil, err
		}
		return &page{tab: string(tab), title: title, repo: repo, info: info, up: up}, nil
	}
}

func createRepository(*container.Resolver) (any, error) {
	return newMemoryRepository(), nil
}

func createRequestInfo(r *container.Resolver) (any, error) {
	req, err := container.Single[*http.Request](r, routing.RequestType, container.None)
	if err != nil {
		return nil, err
	}
	logger, ok, err := container.Optional[*slog.Logger](r, providers.LoggerType, container.None)
	if err != nil {
		return nil, err
	}
	if !ok {
		logger = slog.New(slog.DiscardHandler)
	}
	return newRequestInfo(req, logger), nil
}

func createClock(*container.Resolver) (any, error) {
	return &systemClock{started: time.Now()}, nil
}
