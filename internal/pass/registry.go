package pass

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// DuplicatePassError is returned when a qualified pass name is registered
// twice.
type DuplicatePassError struct {
	Name string
}

func (e *DuplicatePassError) Error() string {
	return fmt.Sprintf("pass %q is already registered", e.Name)
}

// IsDuplicatePassError reports whether err is a DuplicatePassError.
func IsDuplicatePassError(err error) bool {
	var de *DuplicatePassError
	return errors.As(err, &de)
}

// Registry maps qualified pass names to passes. It is populated once at
// backend construction and read-only afterwards.
type Registry struct {
	passes map[string]Pass
	order  []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{passes: make(map[string]Pass)}
}

// Register adds p under its qualified name and returns that name.
func (r *Registry) Register(backend string, p Pass) (string, error) {
	if p.Name() == "" {
		return "", errors.New("pass name must not be empty")
	}
	switch p.(type) {
	case NodePass, ModelPass:
	default:
		return "", errors.Newf("pass %q is neither a node pass nor a model pass", p.Name())
	}
	name := Qualify(backend, p.Name())
	if _, ok := r.passes[name]; ok {
		return "", &DuplicatePassError{Name: name}
	}
	r.passes[name] = p
	r.order = append(r.order, name)
	return name, nil
}

// MustRegister is like Register but panics on error. Use only while
// wiring a backend from static tables.
func (r *Registry) MustRegister(backend string, p Pass) string {
	name, err := r.Register(backend, p)
	if err != nil {
		panic(err)
	}
	return name
}

// Get returns the pass registered under name.
func (r *Registry) Get(name string) (Pass, bool) {
	p, ok := r.passes[name]
	return p, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.passes[name]
	return ok
}

// Names returns every registered name in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Catalogue returns the sorted names of passes registered for backend.
func (r *Registry) Catalogue(backend string) []string {
	prefix := strings.ToLower(backend) + ":"
	var out []string
	for _, name := range r.order {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
