package stix

import (
	"encoding/json"
	"fmt"
)

type Bundle struct {
	Type    string   `json:"type"`
	ID      string   `json:"id"`
	Objects []Object `json:"objects"`
}

func NewBundle(objects ...Object) *Bundle {
	return &Bundle{
		Type:    TypeBundle,
		ID:      NewID(TypeBundle),
		Objects: objects,
	}
}

func (b *Bundle) Add(objects ...Object) {
	b.Objects = append(b.Objects, objects...)
}

func (b *Bundle) Len() int {
	return len(b.Objects)
}

// OfType returns the bundle objects of the given STIX type in bundle order.
func (b *Bundle) OfType(objectType string) []Object {
	var out []Object
	for _, obj := range b.Objects {
		if obj.GetType() == objectType {
			out = append(out, obj)
		}
	}
	return out
}

// Contains reports whether an object with the given id is in the bundle.
func (b *Bundle) Contains(id string) bool {
	for _, obj := range b.Objects {
		if obj.GetID() == id {
			return true
		}
	}
	return false
}

func (b *Bundle) Serialize() (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("failed to serialize bundle: %w", err)
	}
	return string(data), nil
}
