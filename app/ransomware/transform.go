// Package ransomware turns the Vysion ransomware feed into STIX bundles and
// submits them to the platform.
package ransomware

import (
	"fmt"
	"strings"
	"time"

	"github.com/byronlabs/vysion-cti/app/failure"
	"github.com/byronlabs/vysion-cti/app/stix"
	"github.com/byronlabs/vysion-cti/app/vysion"
)

const label = "ransomware"

var recordDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Transform maps one feed record to a bundle holding the threat actor, the
// victim identity, the incident and the two relationships linking them.
func Transform(record vysion.FeedRecord, now time.Time) (*stix.Bundle, error) {
	group := strings.TrimSpace(record.RansomwareGroup)
	company := strings.TrimSpace(record.Company)

	if group == "" {
		return nil, failure.Malformed("transform feed record", company, fmt.Errorf("%w: group", stix.ErrMissingProperty))
	}
	if company == "" {
		return nil, failure.Malformed("transform feed record", group, fmt.Errorf("%w: company", stix.ErrMissingProperty))
	}

	actor, err := stix.NewThreatActor(group, []string{label}, now)
	if err != nil {
		return nil, failure.Malformed("build threat actor", group, err)
	}

	victim, err := stix.NewIdentity(company, "organization", now)
	if err != nil {
		return nil, failure.Malformed("build victim identity", company, err)
	}
	victim.Description = victimDescription(record)

	incident, err := stix.NewIncident("Vysion Feed: "+group+" Attack - "+company, record.Info, now)
	if err != nil {
		return nil, failure.Malformed("build incident", company, err)
	}
	incident.Labels = []string{label}
	incident.ExternalReferences = []stix.ExternalReference{{
		SourceName: "Vysion - Ransomware Feed: " + group + " Attack",
		URL:        record.LinkPost,
	}}
	if seen, ok := parseRecordDate(record.Date); ok {
		ts := stix.NewTimestamp(seen)
		incident.FirstSeen = &ts
	}

	attribution, err := stix.NewRelationship(stix.RelAttributedTo, incident.ID, actor.ID, now)
	if err != nil {
		return nil, failure.Malformed("build attribution", company, err)
	}
	attribution.Description = "Attribution of the incident to the threat actor"

	target, err := stix.NewRelationship(stix.RelTargets, incident.ID, victim.ID, now)
	if err != nil {
		return nil, failure.Malformed("build target relationship", company, err)
	}
	target.Description = "Victim of the incident"

	return stix.NewBundle(actor, victim, incident, attribution, target), nil
}

func victimDescription(record vysion.FeedRecord) string {
	var parts []string
	if record.VictimCountry != "" {
		parts = append(parts, "Country: "+record.VictimCountry)
	}
	if record.CompanyLink != "" {
		parts = append(parts, "Website: "+record.CompanyLink)
	}
	return strings.Join(parts, "\n")
}

func parseRecordDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range recordDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
