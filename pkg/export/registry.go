package export

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ArionMiles/ledgerview/pkg/api"
)

// Encoder serializes a Document into one file format.
type Encoder interface {
	// Format returns the format this encoder produces.
	Format() api.Format
	// Extension returns the file extension without the dot.
	Extension() string
	// ContentType returns the MIME type of the encoded file.
	ContentType() string
	// Encode renders the document.
	Encode(doc Document) ([]byte, error)
}

// Registry maps formats to encoders.
type Registry struct {
	encoders map[api.Format]Encoder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{encoders: make(map[api.Format]Encoder)}
}

// DefaultRegistry returns a registry with every built-in encoder.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, e := range []Encoder{NewPDF(), NewXLSX(), NewCSV(), NewJSON()} {
		if err := r.Register(e); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds an encoder.
func (r *Registry) Register(e Encoder) error {
	f := e.Format()
	if _, exists := r.encoders[f]; exists {
		return fmt.Errorf("encoder for %q already registered", f)
	}
	r.encoders[f] = e
	return nil
}

// Get returns the encoder for a format.
func (r *Registry) Get(f api.Format) (Encoder, error) {
	e, ok := r.encoders[f]
	if !ok {
		return nil, fmt.Errorf("%w: %q", api.ErrUnknownFormat, f)
	}
	return e, nil
}

// Formats lists the registered formats in name order.
func (r *Registry) Formats() []api.Format {
	out := make([]api.Format, 0, len(r.encoders))
	for f := range r.encoders {
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b api.Format) int { return strings.Compare(string(a), string(b)) })
	return out
}
