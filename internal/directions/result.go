package directions

import (
	"fmt"

	"github.com/roadmate-app/navigator/internal/route"
)

// Result is a set of candidate routes for one query. Routes are immutable;
// choosing an alternate swaps which instance is active, it never edits one.
type Result struct {
	Routes []*route.Route `json:"routes"` // Routes[0] is the primary
}

// Primary returns the backend's preferred route.
func (r *Result) Primary() *route.Route {
	if len(r.Routes) == 0 {
		return nil
	}
	return r.Routes[0]
}

// Alternates returns the non-primary candidates.
func (r *Result) Alternates() []*route.Route {
	if len(r.Routes) < 2 {
		return nil
	}
	return r.Routes[1:]
}

// Choose returns the candidate with the given ID.
func (r *Result) Choose(routeID string) (*route.Route, error) {
	for _, rt := range r.Routes {
		if rt.ID == routeID {
			return rt, nil
		}
	}
	return nil, fmt.Errorf("directions: unknown route %q", routeID)
}
