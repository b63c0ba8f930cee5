// Package http provides JSON response helpers for handlers that resolve from
// a request scope.
//
// # Response
//
//	res := gohttp.NewResponse(w)
//
//	res.Success(v)            // 200 {"data": v}
//	res.Error(418, "msg")     // {"message": "msg"}
//	res.NotFound()            // 404
//	res.ServerError()         // 500
//
//	// Resolution failures: 404 for an unbound slot, 503 after shutdown,
//	// 500 for everything else (cycles, factory errors, panics).
//	page, err := container.Single[Page](routing.ScopeFrom(r), PageType, tab)
//	if err != nil {
//	    res.ResolveError(err)
//	    return
//	}
package http
