package flow

import "encoding/json"

// Serializer round-trips a value to bytes and back. It is consumed only by
// durable store constructors (store.NewSQLiteStore, store.NewMySQLStore),
// not by Executor, which passes Checkpoint[S] to the store as a typed value
// and never serializes it itself. Pass nil to a store constructor to get
// JSONSerializer.
type Serializer interface {
	Serialize(v any) ([]byte, error)
	Deserialize(data []byte, v any) error
}

// JSONSerializer is the default Serializer, backed by encoding/json.
type JSONSerializer struct{}

func (JSONSerializer) Serialize(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONSerializer) Deserialize(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
