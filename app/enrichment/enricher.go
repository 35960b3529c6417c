// Package enrichment enriches a single platform observable with Vysion
// lookup results and writes the derived indicators back.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/byronlabs/vysion-cti/app/failure"
	"github.com/byronlabs/vysion-cti/app/jsontree"
	"github.com/byronlabs/vysion-cti/app/metrics"
	"github.com/byronlabs/vysion-cti/app/observable"
	"github.com/byronlabs/vysion-cti/app/opencti"
	"github.com/byronlabs/vysion-cti/app/stix"
	"github.com/byronlabs/vysion-cti/app/vysion"
)

type Lookuper interface {
	Lookup(ctx context.Context, kind observable.Kind, value string) ([]vysion.RawHit, error)
}

// Platform is the part of the platform API the enricher writes to.
type Platform interface {
	SendBundle(ctx context.Context, bundle *stix.Bundle) error
	UpdateScore(ctx context.Context, entityID string, score int) error
	AddLabel(ctx context.Context, entityID, value string) error
	AddExternalReference(ctx context.Context, entityID string, ref stix.ExternalReference) error
}

const DefaultScore = 80

var (
	observableLabels = []string{"vysion", "darknet"}

	connectorReference = stix.ExternalReference{
		SourceName:  "Byron Labs",
		URL:         "https://github.com/ByronLabs/vysion-cti",
		Description: "Vysion darknet intelligence connector.",
	}

	vysionReference = stix.ExternalReference{
		SourceName:  "Vysion",
		Description: "Vysion Enrichment",
		URL:         "app.vysion.ai",
	}
)

type Enricher struct {
	lookup   Lookuper
	platform Platform
	maxTLP   string
	score    int
	now      func() time.Time
}

// NewEnricher builds an enricher writing score to every enriched observable.
// An empty maxTLP means TLP:GREEN.
func NewEnricher(lookup Lookuper, platform Platform, maxTLP string, score int) *Enricher {
	if maxTLP == "" {
		maxTLP = opencti.DefaultTLP
	}
	return &Enricher{
		lookup:   lookup,
		platform: platform,
		maxTLP:   maxTLP,
		score:    score,
		now:      time.Now,
	}
}

// Report describes how far one enrichment request got.
type Report struct {
	State         State
	FailedAt      State
	Kind          observable.Kind
	Value         string
	Hits          int
	Indicators    int
	Relationships int
	HitFailures   []error
	Err           error
}

func (r *Report) fail(err error) error {
	r.FailedAt = r.State
	r.State = Failed
	r.Err = err
	return err
}

// Enrich drives one request through received, classified, queried,
// transformed and emitted. The first failure stops the request; a failing hit
// only drops that hit.
func (e *Enricher) Enrich(ctx context.Context, event Event) (Report, error) {
	report := Report{State: Received}
	defer func() {
		metrics.Enrichments.WithLabelValues(report.State.String()).Inc()
	}()

	if err := e.receive(event, &report); err != nil {
		return report, report.fail(err)
	}

	slog.Debug("Enrichment starting", "entity", event.TargetID(), "type", event.Entity.EntityType, "value", report.Value)

	kind, err := observable.Resolve(event.Entity.EntityType, report.Value)
	if err != nil {
		if errors.Is(err, observable.ErrUnclassifiable) {
			slog.Error("Invalid cryptocurrency wallet address", "value", report.Value)
			return report, report.fail(failure.Classification("classify wallet", report.Value, err))
		}
		return report, report.fail(failure.Invalid("resolve observable", event.Entity.EntityType, err))
	}
	report.Kind = kind
	report.State = Classified

	hits, err := e.lookup.Lookup(ctx, kind, report.Value)
	if err != nil {
		slog.Error("Error while calling Vysion API", "kind", kind.String(), "value", report.Value, "error", err)
		return report, report.fail(fmt.Errorf("lookup failure: %w", err))
	}
	report.Hits = len(hits)
	report.State = Queried

	bundle := stix.NewBundle()
	now := e.now()
	for i, raw := range hits {
		indicator, relation, err := e.transformHit(raw, kind, report.Value, event.Entity.StandardID, now)
		if err != nil {
			hitErr := failure.Malformed("transform hit", fmt.Sprintf("hit %d", i+1), err)
			slog.Warn("Skipping hit", "index", i, "value", report.Value, "error", err)
			metrics.EnrichmentHits.WithLabelValues("failed").Inc()
			report.HitFailures = append(report.HitFailures, hitErr)
			continue
		}
		bundle.Add(indicator, relation)
		report.Indicators++
		report.Relationships++
		metrics.EnrichmentHits.WithLabelValues("ok").Inc()
	}
	report.State = Transformed

	if bundle.Len() > 0 {
		if err := e.platform.SendBundle(ctx, bundle); err != nil {
			metrics.BundlesSubmitted.WithLabelValues("enrichment", "failed").Inc()
			slog.Error("Bundle submission failed", "entity", event.TargetID(), "error", err)
			return report, report.fail(err)
		}
		metrics.BundlesSubmitted.WithLabelValues("enrichment", "ok").Inc()
	}
	report.State = Emitted

	if err := e.annotate(ctx, event.TargetID()); err != nil {
		slog.Error("Updating observable failed", "entity", event.TargetID(), "error", err)
		return report, report.fail(err)
	}

	return report, nil
}

func (e *Enricher) receive(event Event, report *Report) error {
	if event.TargetID() == "" {
		return failure.Invalid("receive event", "", errors.New("event has no entity id"))
	}
	if event.Entity.StandardID == "" {
		return failure.Invalid("receive event", event.TargetID(), errors.New("entity has no standard id"))
	}

	tlp := event.TLP()
	if !opencti.CheckMaxTLP(tlp, e.maxTLP) {
		return failure.Policy("check TLP", tlp, fmt.Errorf("TLP of the observable is greater than MAX TLP %s", e.maxTLP))
	}

	report.Value = observableValue(event)
	if report.Value == "" {
		return failure.Invalid("receive event", event.TargetID(), errors.New("observable has no value"))
	}
	return nil
}

// observableValue prefers the first "value" anywhere in the attached STIX
// objects and falls back to the entity's observable value.
func observableValue(event Event) string {
	if len(event.StixObjects) > 0 {
		tree, err := jsontree.Parse(event.StixObjects)
		if err != nil {
			slog.Debug("Ignoring unparseable stix_objects", "entity", event.TargetID(), "error", err)
		} else if v, ok := jsontree.FindField(tree, "value"); ok && v.String() != "" {
			return v.String()
		}
	}
	return event.Entity.ObservableValue
}

func (e *Enricher) transformHit(raw vysion.RawHit, kind observable.Kind, value, sourceRef string, now time.Time) (*stix.Indicator, *stix.Relationship, error) {
	hit, err := raw.Decode()
	if err != nil {
		return nil, nil, err
	}

	url := hit.URL()
	indicator, err := stix.NewIndicator(url+" - Vysion "+kind.Tag()+" Enriched Data", stix.URLPattern(url), hit.Date, now)
	if err != nil {
		return nil, nil, err
	}
	indicator.Description = fmt.Sprintf("Enriched data from Vysion for URL Indicator (%s). URL: %s, Title: %s", value, url, hit.Title)
	indicator.Labels = hitLabels(hit)
	indicator.ExternalReferences = []stix.ExternalReference{vysionReference}

	relation, err := stix.NewRelationship(stix.RelRelatedTo, sourceRef, indicator.ID, now)
	if err != nil {
		return nil, nil, err
	}

	return indicator, relation, nil
}

func hitLabels(hit vysion.Hit) []string {
	if hit.Tag == "" {
		return []string{"Vysion"}
	}
	return []string{hit.Tag, "Vysion"}
}

func (e *Enricher) annotate(ctx context.Context, entityID string) error {
	slog.Debug("Updating OpenCTI score", "entity", entityID, "score", e.score)
	if err := e.platform.UpdateScore(ctx, entityID, e.score); err != nil {
		return err
	}

	slog.Debug("Adding labels to the cyberobservable", "entity", entityID)
	for _, label := range observableLabels {
		if err := e.platform.AddLabel(ctx, entityID, label); err != nil {
			return err
		}
	}

	slog.Debug("Adding external reference", "entity", entityID)
	return e.platform.AddExternalReference(ctx, entityID, connectorReference)
}
