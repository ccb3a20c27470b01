// Package codec holds the body encodings a frame payload can use.
package codec

// Codec defines a simple interface for marshaling typed messages.
// Implementations should be deterministic and safe for cross-node exchange.
type Codec interface {
    ContentType() string
    Marshal(v any) ([]byte, error)
    Unmarshal(data []byte, v any) error
}

// Registry maps content types to codecs. Register everything before sharing
// a Registry between goroutines; lookups are not synchronized.
type Registry struct { byType map[string]Codec }

// NewRegistry constructs a registry preloaded with JSON, Protobuf and,
// when its modes build, canonical CBOR.
func NewRegistry() *Registry {
    r := &Registry{byType: make(map[string]Codec)}
    r.Register(JSON())
    r.Register(Proto())
    if c, err := CBOR(); err == nil { r.Register(c) }
    return r
}

// Register adds or replaces a codec.
func (r *Registry) Register(c Codec) { r.byType[c.ContentType()] = c }

// Get returns a codec by content type, or nil.
func (r *Registry) Get(contentType string) Codec { return r.byType[contentType] }
