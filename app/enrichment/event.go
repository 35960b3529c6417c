package enrichment

import (
	"encoding/json"
	"strings"

	"github.com/byronlabs/vysion-cti/app/opencti"
)

type Marking struct {
	DefinitionType string `json:"definition_type"`
	Definition     string `json:"definition"`
}

type Entity struct {
	ID              string    `json:"id"`
	StandardID      string    `json:"standard_id"`
	EntityType      string    `json:"entity_type"`
	ObservableValue string    `json:"observable_value"`
	ObjectMarking   []Marking `json:"objectMarking"`
}

// Event is the enrichment request the platform sends for one observable.
type Event struct {
	EntityID    string          `json:"entity_id"`
	Entity      Entity          `json:"enrichment_entity"`
	StixObjects json.RawMessage `json:"stix_objects"`
}

// TLP returns the last TLP marking on the entity, TLP:GREEN when unmarked.
func (e Event) TLP() string {
	tlp := opencti.DefaultTLP
	for _, m := range e.Entity.ObjectMarking {
		if strings.EqualFold(m.DefinitionType, "TLP") {
			tlp = m.Definition
		}
	}
	return tlp
}

func (e Event) TargetID() string {
	if e.EntityID != "" {
		return e.EntityID
	}
	return e.Entity.ID
}
