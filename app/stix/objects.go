// Package stix builds the STIX 2.1 objects and bundles submitted to the
// platform.
package stix

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const SpecVersion = "2.1"

const (
	TypeThreatActor  = "threat-actor"
	TypeIdentity     = "identity"
	TypeIncident     = "incident"
	TypeIndicator    = "indicator"
	TypeRelationship = "relationship"
	TypeBundle       = "bundle"
)

const (
	RelAttributedTo = "attributed-to"
	RelTargets      = "targets"
	RelRelatedTo    = "related-to"
)

const timestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp serializes as a STIX timestamp in UTC with millisecond precision.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + ts.UTC().Format(timestampLayout) + `"`), nil
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("invalid STIX timestamp %q: %w", s, err)
	}
	ts.Time = t.UTC()
	return nil
}

type ExternalReference struct {
	SourceName  string `json:"source_name"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Object is any STIX object that can be placed in a bundle.
type Object interface {
	GetID() string
	GetType() string
}

type Common struct {
	Type               string              `json:"type"`
	SpecVersion        string              `json:"spec_version"`
	ID                 string              `json:"id"`
	Created            Timestamp           `json:"created"`
	Modified           Timestamp           `json:"modified"`
	Labels             []string            `json:"labels,omitempty"`
	ExternalReferences []ExternalReference `json:"external_references,omitempty"`
}

func (c Common) GetID() string   { return c.ID }
func (c Common) GetType() string { return c.Type }

func newCommon(objectType string, now time.Time) Common {
	ts := NewTimestamp(now)
	return Common{
		Type:        objectType,
		SpecVersion: SpecVersion,
		ID:          NewID(objectType),
		Created:     ts,
		Modified:    ts,
	}
}

func NewID(objectType string) string {
	return objectType + "--" + uuid.NewString()
}

var ErrMissingProperty = errors.New("missing required property")

func required(objectType, property, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s.%s", ErrMissingProperty, objectType, property)
	}
	return nil
}

type ThreatActor struct {
	Common
	Name string `json:"name"`
}

func NewThreatActor(name string, labels []string, now time.Time) (*ThreatActor, error) {
	if err := required(TypeThreatActor, "name", name); err != nil {
		return nil, err
	}
	ta := &ThreatActor{Common: newCommon(TypeThreatActor, now), Name: name}
	ta.Labels = labels
	return ta, nil
}

type Identity struct {
	Common
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	IdentityClass string `json:"identity_class,omitempty"`
}

func NewIdentity(name, identityClass string, now time.Time) (*Identity, error) {
	if err := required(TypeIdentity, "name", name); err != nil {
		return nil, err
	}
	return &Identity{Common: newCommon(TypeIdentity, now), Name: name, IdentityClass: identityClass}, nil
}

type Incident struct {
	Common
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	FirstSeen   *Timestamp `json:"first_seen,omitempty"`
}

func NewIncident(name, description string, now time.Time) (*Incident, error) {
	if err := required(TypeIncident, "name", name); err != nil {
		return nil, err
	}
	return &Incident{Common: newCommon(TypeIncident, now), Name: name, Description: description}, nil
}

type Indicator struct {
	Common
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Pattern     string    `json:"pattern"`
	PatternType string    `json:"pattern_type"`
	ValidFrom   Timestamp `json:"valid_from"`
}

func NewIndicator(name, pattern string, validFrom, now time.Time) (*Indicator, error) {
	if err := required(TypeIndicator, "name", name); err != nil {
		return nil, err
	}
	if err := required(TypeIndicator, "pattern", pattern); err != nil {
		return nil, err
	}
	if validFrom.IsZero() {
		return nil, fmt.Errorf("%w: %s.valid_from", ErrMissingProperty, TypeIndicator)
	}
	return &Indicator{
		Common:      newCommon(TypeIndicator, now),
		Name:        name,
		Pattern:     pattern,
		PatternType: "stix",
		ValidFrom:   NewTimestamp(validFrom),
	}, nil
}

type Relationship struct {
	Common
	RelationshipType string `json:"relationship_type"`
	Description      string `json:"description,omitempty"`
	SourceRef        string `json:"source_ref"`
	TargetRef        string `json:"target_ref"`
}

func NewRelationship(relationshipType, sourceRef, targetRef string, now time.Time) (*Relationship, error) {
	if err := required(TypeRelationship, "source_ref", sourceRef); err != nil {
		return nil, err
	}
	if err := required(TypeRelationship, "target_ref", targetRef); err != nil {
		return nil, err
	}
	return &Relationship{
		Common:           newCommon(TypeRelationship, now),
		RelationshipType: relationshipType,
		SourceRef:        sourceRef,
		TargetRef:        targetRef,
	}, nil
}

// URLPattern builds a STIX pattern matching a URL observable. Backslashes and
// single quotes are escaped as the pattern grammar requires.
func URLPattern(url string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(url)
	return "[url:value = '" + escaped + "']"
}
