package topic

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Route binds an input topic to its transformation and output topic.
type Route struct {
	Role      Role
	Input     string
	Output    string
	Transform Transform
}

// Router maps input topics to routes. It is built once and never mutated.
type Router struct {
	routes map[string]Route
	inputs []string
}

// NewRouter builds the router from the topic table (keyed by role input and
// output keys, e.g. "daily" and "processed-daily") and one transform per
// role. Every problem is reported, not just the first.
func NewRouter(topics map[string]string, transforms map[Role]Transform) (*Router, error) {
	var errs []error
	r := &Router{routes: make(map[string]Route, len(roleNames))}
	outputs := make(map[string]Role, len(roleNames))

	for _, role := range Roles() {
		in := strings.TrimSpace(topics[role.InputKey()])
		out := strings.TrimSpace(topics[role.OutputKey()])
		fn := transforms[role]

		if in == "" {
			errs = append(errs, fmt.Errorf("topic %q is not configured", role.InputKey()))
		}
		if out == "" {
			errs = append(errs, fmt.Errorf("topic %q is not configured", role.OutputKey()))
		}
		if fn == nil {
			errs = append(errs, fmt.Errorf("no transform registered for role %s", role))
		}
		if in == "" || out == "" {
			continue
		}
		if prev, dup := r.routes[in]; dup {
			errs = append(errs, fmt.Errorf("input topic %q is shared by roles %s and %s", in, prev.Role, role))
			continue
		}
		if in == out {
			errs = append(errs, fmt.Errorf("role %s reads and writes the same topic %q", role, in))
		}
		r.routes[in] = Route{Role: role, Input: in, Output: out, Transform: fn}
		r.inputs = append(r.inputs, in)
		outputs[out] = role
	}

	for in, route := range r.routes {
		if role, ok := outputs[in]; ok && role != route.Role {
			errs = append(errs, fmt.Errorf("input topic %q of role %s is the output topic of role %s", in, route.Role, role))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	sort.SliceStable(r.inputs, func(i, j int) bool {
		return r.routes[r.inputs[i]].Role < r.routes[r.inputs[j]].Role
	})
	return r, nil
}

func (r *Router) Route(input string) (Route, bool) {
	route, ok := r.routes[input]
	return route, ok
}

// MustRoute panics for a topic the router was not built with. Workers resolve
// their route with it: they only ever consume input topics taken from the
// router, so a miss is a wiring bug.
func (r *Router) MustRoute(input string) Route {
	route, ok := r.routes[input]
	if !ok {
		panic(fmt.Sprintf("topic: no route for input topic %q", input))
	}
	return route
}

// InputTopics returns the input topics in role order.
func (r *Router) InputTopics() []string {
	out := make([]string, len(r.inputs))
	copy(out, r.inputs)
	return out
}

// OutputTopics returns the output topics in role order.
func (r *Router) OutputTopics() []string {
	out := make([]string, 0, len(r.inputs))
	for _, in := range r.inputs {
		out = append(out, r.routes[in].Output)
	}
	return out
}
