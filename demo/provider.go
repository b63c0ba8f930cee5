package demo

import (
	"net/http"
	"time"

	"github.com/km-arc/go-magnet/framework/container"
	gohttp "github.com/km-arc/go-magnet/framework/http"
	"github.com/km-arc/go-magnet/framework/providers"
	"github.com/km-arc/go-magnet/framework/routing"
)

// Provider registers the demo table and mounts its routes:
//
//	GET /pages         every tab, in index order
//	GET /pages/{tab}   one tab; "home" is the unclassified page
func Provider() container.ServiceProvider {
	return &provider{Table: container.Table{Factories: Factories, Index: Index}}
}

type provider struct {
	container.Table
}

func (p *provider) Boot(root *container.Scope) error {
	router, err := container.Single[*routing.Router](root, providers.RouterType, container.None)
	if err != nil {
		return err
	}
	router.Prefix("/pages", func(pages *routing.Router) {
		pages.Middleware(routing.Scoped(root))
		pages.Get("/", ListPages)
		pages.Get("/{tab}", ShowPage)
	})
	return nil
}

// ListPages renders every page from the request scope.
func ListPages(w http.ResponseWriter, req *http.Request) {
	res := gohttp.NewResponse(w)
	scope := routing.ScopeFrom(req)

	pages, err := container.Many[Page](scope, PageType)
	if err != nil {
		res.ResolveError(err)
		return
	}
	clock, err := container.Single[Clock](scope, ClockType, container.None)
	if err != nil {
		res.ResolveError(err)
		return
	}
	views := make([]PageView, len(pages))
	for i, p := range pages {
		views[i] = p.Render()
	}
	res.Success(map[string]any{
		"pages":       views,
		"rendered_at": clock.Now().UTC().Format(time.RFC3339),
	})
}

// ShowPage renders the page classified by the {tab} URL parameter.
func ShowPage(w http.ResponseWriter, req *http.Request) {
	res := gohttp.NewResponse(w)
	tab := container.Classifier(routing.Param(req, "tab"))
	if tab == "home" {
		tab = container.None
	}

	p, err := container.Single[Page](routing.ScopeFrom(req), PageType, tab)
	if err != nil {
		res.ResolveError(err)
		return
	}
	res.Success(p.Render())
}
