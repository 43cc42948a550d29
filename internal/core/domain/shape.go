package domain

import "encoding/json"

const DefaultIDField = "id"

// Shape describes how records of one logical type look, independent of any
// ORM: the collection (table) they live in on both stores, the field that
// carries their identifier and a JSON Schema for their field set.
type Shape struct {
	Name       string
	Collection string
	IDField    string
	Schema     json.RawMessage
}

// Normalize fills defaults: the collection defaults to the type name and the
// id field to "id".
func (s Shape) Normalize() Shape {
	if s.Collection == "" {
		s.Collection = s.Name
	}
	if s.IDField == "" {
		s.IDField = DefaultIDField
	}
	return s
}
