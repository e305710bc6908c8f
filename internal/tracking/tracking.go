// Package tracking ingests browsing telemetry into the scored index
// counters. Scores on the rows are never recomputed here; that is the
// scoring engine's job.
package tracking

import (
	"context"
	"log"
	"time"

	"storefront-api/internal/apperr"
	"storefront-api/internal/catalog"
	"storefront-api/internal/customer"
	"storefront-api/internal/models"
	"storefront-api/internal/storage"
)

// ActionType is the kind of browsing event.
type ActionType string

const (
	ActionView  ActionType = "view"
	ActionClick ActionType = "click"
	ActionVisit ActionType = "visit"
)

// counterField maps an action type to its scored-row counter.
var counterField = map[ActionType]string{
	ActionView:  "views",
	ActionClick: "clicks",
	ActionVisit: "visits",
}

// Action is one browsing event. CustomerID is empty for anonymous
// traffic. Position is the product's slot in the listing the event
// came from; it applies to views and clicks only.
//
// The fields below OccurredAt freeze the serve-time context of the
// event. They ride to the archive untouched; the counter upsert never
// reads them.
type Action struct {
	Type       ActionType `json:"type"`
	ConfigSKU  string     `json:"config_sku"`
	CustomerID string     `json:"customer_id,omitempty"`
	SessionID  string     `json:"session_id,omitempty"`
	Position   int        `json:"position,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`

	Product         *models.Product `json:"product_data,omitempty"`
	Tier            *models.Tier    `json:"tier,omitempty"`
	WeightVersion   int             `json:"weight_version,omitempty"`
	QuestionScore   float64         `json:"question_score,omitempty"`
	OrderScore      float64         `json:"order_score,omitempty"`
	TrackingScore   float64         `json:"tracking_score,omitempty"`
	QuestionWeight  float64         `json:"question_weight,omitempty"`
	OrderWeight     float64         `json:"order_weight,omitempty"`
	TrackWeight     float64         `json:"track_weight,omitempty"`
	PercentageScore float64         `json:"percentage_score,omitempty"`
}

// Validate enforces the action invariants.
func (a *Action) Validate() error {
	if _, ok := counterField[a.Type]; !ok {
		return apperr.Incorrect("unsupported tracking action %q", a.Type)
	}
	if a.ConfigSKU == "" {
		return apperr.Incorrect("tracking action config_sku is required")
	}
	if (a.Type == ActionView || a.Type == ActionClick) && a.Position < 1 {
		return apperr.Incorrect("%s action position must be at least 1", a.Type)
	}
	return nil
}

func (a *Action) ref() models.CustomerRef {
	if a.CustomerID == "" {
		return models.Anonymous()
	}
	return models.Identified(a.CustomerID)
}

// Archiver mirrors ingested actions to the archival stream.
type Archiver interface {
	ArchiveActions(ctx context.Context, actions []Action) error
}

// Ingestor applies telemetry to scored-index rows.
type Ingestor struct {
	idx         *storage.DocumentIndex
	scoredIndex string
	catalog     *catalog.Service
	customers   *customer.Store
	archiver    Archiver
}

// NewIngestor wires the ingestor. archiver may be nil when the
// archival stream is disabled.
func NewIngestor(idx *storage.DocumentIndex, scoredIndex string, cat *catalog.Service, customers *customer.Store, archiver Archiver) *Ingestor {
	return &Ingestor{idx: idx, scoredIndex: scoredIndex, catalog: cat, customers: customers, archiver: archiver}
}

type bucketKey struct {
	action ActionType
	bucket string
}

// Ingest validates and applies a batch of actions. Repeats of the
// same action collapse into one counter bump of the repeat count, so
// one update per (action, customer, count) reaches the index no matter
// how the batch is ordered.
func (in *Ingestor) Ingest(ctx context.Context, actions []Action) error {
	for i := range actions {
		if err := actions[i].Validate(); err != nil {
			return err
		}
	}

	// Occurrence counts per (action, bucket, config sku).
	groups := make(map[bucketKey]map[string]int)
	latest := make(map[bucketKey]time.Time)
	active := make(map[string]bool)
	for _, a := range actions {
		key := bucketKey{action: a.Type, bucket: a.ref().Bucket()}
		if groups[key] == nil {
			groups[key] = make(map[string]int)
		}
		groups[key][a.ConfigSKU]++
		if a.OccurredAt.After(latest[key]) {
			latest[key] = a.OccurredAt
		}
		if a.CustomerID != "" && (a.Type == ActionClick || a.Type == ActionVisit) {
			active[a.CustomerID] = true
		}
	}

	for key, skuCounts := range groups {
		if err := in.applyGroup(ctx, key, skuCounts, latest[key]); err != nil {
			return err
		}
	}

	for id := range active {
		if err := in.customers.MarkClickedNow(ctx, id); err != nil {
			return err
		}
	}

	if in.archiver != nil {
		if err := in.archiver.ArchiveActions(ctx, actions); err != nil {
			// The archive is a mirror; losing an entry must not fail
			// the ingest.
			log.Printf("tracking: archive mirror failed: %v", err)
		}
	}
	return nil
}

// applyGroup bumps one counter for all SKUs of a (action, bucket)
// group, one update-by-query per distinct repeat count.
func (in *Ingestor) applyGroup(ctx context.Context, key bucketKey, skuCounts map[string]int, occurredAt time.Time) error {
	existing, err := in.existingSKUs(ctx, key.bucket, skuCounts)
	if err != nil {
		return err
	}

	byCount := make(map[int][]any)
	for sku, count := range skuCounts {
		if !existing[sku] {
			if err := in.createRow(ctx, key, sku, count, occurredAt); err != nil {
				return err
			}
			continue
		}
		byCount[count] = append(byCount[count], sku)
	}

	field := counterField[key.action]
	for count, skus := range byCount {
		_, err := in.idx.UpdateByQuery(ctx, in.scoredIndex, storage.Query{
			Must: []storage.Clause{
				storage.Term("customer_id", key.bucket),
				storage.Terms("config_sku", skus...),
			},
		}, storage.Script{
			Incr: map[string]float64{field: float64(count)},
			Set:  map[string]any{"viewed_at": occurredAt.UTC()},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (in *Ingestor) existingSKUs(ctx context.Context, bucket string, skuCounts map[string]int) (map[string]bool, error) {
	values := make([]any, 0, len(skuCounts))
	for sku := range skuCounts {
		values = append(values, sku)
	}
	hits, err := in.idx.Search(ctx, in.scoredIndex, storage.Query{
		Must: []storage.Clause{
			storage.Term("customer_id", bucket),
			storage.Terms("config_sku", values...),
		},
		Size: len(values),
	})
	if err != nil {
		return nil, err
	}
	existing := make(map[string]bool, len(hits.Hits))
	for _, hit := range hits.Hits {
		var row models.ScoredProduct
		if err := hit.Decode(&row); err != nil {
			return nil, err
		}
		existing[row.ConfigSKU] = true
	}
	return existing, nil
}

// createRow seeds a scored row for a product the bucket has never
// scored: master snapshot, zero scores, counters from this batch.
func (in *Ingestor) createRow(ctx context.Context, key bucketKey, configSKU string, count int, occurredAt time.Time) error {
	p, err := in.catalog.Get(ctx, configSKU)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			log.Printf("tracking: %s action for unknown product %s skipped", key.action, configSKU)
			return nil
		}
		return err
	}
	viewedAt := occurredAt.UTC()
	row := models.ScoredProduct{
		Product:       p,
		CustomerID:    key.bucket,
		TrackCounters: models.TrackCounters{ViewedAt: &viewedAt},
	}
	switch key.action {
	case ActionView:
		row.Views = count
	case ActionClick:
		row.Clicks = count
	case ActionVisit:
		row.Visits = count
	}
	err = in.idx.Create(ctx, in.scoredIndex, row.ID(), &row)
	if apperr.IsKind(err, apperr.KindBackendRejected) {
		// Lost a create race; fold the count into the winner's row.
		_, err = in.idx.UpdateByQuery(ctx, in.scoredIndex, storage.Query{
			Must: []storage.Clause{
				storage.Term("customer_id", key.bucket),
				storage.Term("config_sku", configSKU),
			},
		}, storage.Script{
			Incr: map[string]float64{counterField[key.action]: float64(count)},
			Set:  map[string]any{"viewed_at": viewedAt},
		})
	}
	return err
}
