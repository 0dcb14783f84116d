// Package restclient implements a table-driven REST client. Each remote
// service declares its API as a Table of named Operations (method, path
// template, expected status, allowed query parameters), and a single Client
// dispatches any of them by name through Invoke. Responses from every
// operation are interpreted the same way by Interpret.
package restclient

import (
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"sort"
)

// Operation describes one callable API action.
type Operation struct {
	Name   string   // unique key within a Table
	Method string   // http.MethodGet, MethodPost, MethodPut or MethodDelete
	Path   string   // path template with {{placeholder}} tokens
	Status int      // expected success status
	Params []string // query parameters accepted besides path placeholders
}

// Allows reports whether param may be passed as a query parameter.
func (o Operation) Allows(param string) bool {
	return slices.Contains(o.Params, param)
}

// Placeholders returns the placeholder names of the path template in order
// of appearance.
func (o Operation) Placeholders() []string {
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(o.Path, -1) {
		names = append(names, m[1])
	}
	return names
}

var placeholderRe = regexp.MustCompile(`\{\{([a-zA-Z_]+)\}\}`)

var validMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}

// Table is an immutable set of operations for one remote service.
type Table struct {
	service string
	ops     map[string]Operation
}

// NewTable builds a table for service. It panics on duplicate names,
// unsupported methods or a missing status; tables are package-level data and
// such mistakes are programming errors.
func NewTable(service string, ops ...Operation) Table {
	t := Table{service: service, ops: make(map[string]Operation, len(ops))}
	for _, op := range ops {
		if _, dup := t.ops[op.Name]; dup {
			panic(fmt.Sprintf("restclient: duplicate operation %q in %s table", op.Name, service))
		}
		if !slices.Contains(validMethods, op.Method) {
			panic(fmt.Sprintf("restclient: operation %q has unsupported method %q", op.Name, op.Method))
		}
		if op.Status == 0 {
			panic(fmt.Sprintf("restclient: operation %q has no expected status", op.Name))
		}
		op.Params = slices.Clone(op.Params)
		t.ops[op.Name] = op
	}
	return t
}

// Service returns the name of the service the table describes.
func (t Table) Service() string {
	return t.service
}

// Lookup returns the operation registered under name.
func (t Table) Lookup(name string) (Operation, bool) {
	op, ok := t.ops[name]
	return op, ok
}

// Names returns all operation names, sorted.
func (t Table) Names() []string {
	names := make([]string, 0, len(t.ops))
	for name := range t.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of operations in the table.
func (t Table) Len() int {
	return len(t.ops)
}
