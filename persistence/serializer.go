// Package persistence defines the optional persistence and serializer
// collaborators and gives them a small reference home. The scheduler
// and executor only depend on the structural interface
// (tollywood.PersistenceAdapter); nothing in the core package imports
// this one.
package persistence

import "encoding/json"

// Serializer turns an opaque actor state into bytes and back. The
// pack's only serialization libraries are code-generated protobuf
// (wrong shape for a generic, user-defined state/message/reply triple
// with no .proto definitions) and goldmark (a Markdown renderer, not a
// serializer) — see DESIGN.md. encoding/json is the documented stdlib
// exception.
type Serializer interface {
	Serialize(v interface{}) ([]byte, error)
	Deserialize(data []byte, out interface{}) error
}

// JSONSerializer is the default Serializer.
type JSONSerializer struct{}

func (JSONSerializer) Serialize(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONSerializer) Deserialize(data []byte, out interface{}) error {
	return json.Unmarshal(data, out)
}
