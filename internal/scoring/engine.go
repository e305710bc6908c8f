// Package scoring runs the per-customer personalization pass: it
// combines question, order and tracking signals into scored catalog
// snapshots.
package scoring

import (
	"context"
	"log"

	"storefront-api/internal/catalog"
	"storefront-api/internal/customer"
	"storefront-api/internal/events"
	"storefront-api/internal/models"
	"storefront-api/internal/signals"
	"storefront-api/internal/storage"
	"storefront-api/internal/weights"
)

// ScoredIndex is the scored catalog index name.
const ScoredIndex = "scored_catalog"

const bulkBatch = 500

// Engine computes and persists a customer's scored catalog.
type Engine struct {
	idx       *storage.DocumentIndex
	catalog   *catalog.Service
	customers *customer.Store
	weights   *weights.Registry
	orders    *signals.OrderAggregator
	tracking  *signals.TrackingAggregator
	events    *events.Manager
}

// NewEngine wires the engine over its signal sources and stores.
func NewEngine(
	idx *storage.DocumentIndex,
	cat *catalog.Service,
	customers *customer.Store,
	registry *weights.Registry,
	orders *signals.OrderAggregator,
	evts *events.Manager,
) *Engine {
	return &Engine{
		idx:       idx,
		catalog:   cat,
		customers: customers,
		weights:   registry,
		orders:    orders,
		tracking:  signals.NewTrackingAggregator(idx, ScoredIndex),
		events:    evts,
	}
}

// Init creates the scored index.
func (e *Engine) Init(ctx context.Context) error {
	return e.idx.CreateIndex(ctx, ScoredIndex)
}

// Run rescores the whole catalog for one customer. The anonymous
// reference scores the BLANK bucket from tracking alone. The
// personalize-in-progress flag is raised for identified customers and
// dropped again on every exit path.
func (e *Engine) Run(ctx context.Context, ref models.CustomerRef) (err error) {
	if !ref.IsAnonymous() {
		if err := e.customers.SetPersonalizeInProgress(ctx, ref.ID(), true); err != nil {
			return err
		}
		defer func() {
			if clearErr := e.customers.SetPersonalizeInProgress(ctx, ref.ID(), false); clearErr != nil {
				log.Printf("scoring: clearing in-progress flag for %s: %v", ref.ID(), clearErr)
				if err == nil {
					err = clearErr
				}
			}
		}()
	}

	weight, err := e.weights.Current(ctx)
	if err != nil {
		return err
	}
	productCount, err := e.catalog.ProductCount(ctx)
	if err != nil {
		return err
	}

	var questionSignals []signals.QuestionSignal
	var orderSets *signals.AttributeSets
	if !ref.IsAnonymous() {
		answers, err := e.customers.Answers(ctx, ref.ID())
		if err != nil {
			return err
		}
		questionSignals, err = signals.BuildQuestionSignals(answers, productCount)
		if err != nil {
			return err
		}
		orderSets, err = e.orders.Aggregate(ctx, ref.ID(), productCount)
		if err != nil {
			return err
		}
	}

	trackSets, _, err := e.tracking.Aggregate(ctx, ref.Bucket(), productCount)
	if err != nil {
		return err
	}
	// Counters of rows without activity must survive the rescore too.
	counters, err := e.tracking.AllCounters(ctx, ref.Bucket())
	if err != nil {
		return err
	}

	rows, err := e.scoreCatalog(ctx, ref, weight, questionSignals, orderSets, trackSets, counters)
	if err != nil {
		return err
	}
	applyPercentages(rows)

	if err := e.writeRows(ctx, rows); err != nil {
		return err
	}
	if !ref.IsAnonymous() {
		if err := e.customers.ClearClickedNow(ctx, ref.ID()); err != nil {
			return err
		}
	}
	e.events.PublishScoringCompleted(ctx, ref.Bucket(), len(rows))
	return nil
}

func (e *Engine) scoreCatalog(
	ctx context.Context,
	ref models.CustomerRef,
	weight models.ScoringWeight,
	questionSignals []signals.QuestionSignal,
	orderSets, trackSets *signals.AttributeSets,
	counters map[string]models.TrackCounters,
) ([]models.ScoredProduct, error) {
	scroll, err := e.catalog.ScrollAll()
	if err != nil {
		return nil, err
	}
	var rows []models.ScoredProduct
	err = scroll.Each(ctx, func(hit storage.Hit) error {
		var p models.Product
		if err := hit.Decode(&p); err != nil {
			return err
		}
		row := models.ScoredProduct{
			Product:       p,
			CustomerID:    ref.Bucket(),
			TrackCounters: counters[p.ConfigSKU],
		}
		for _, sig := range questionSignals {
			if sig.Matches(&p) {
				row.QuestionScore += sig.Score
			} else {
				row.QuestionScore -= sig.Score
			}
		}
		row.OrderScore = orderSets.Apply(&p)
		row.TrackingScore = trackSets.Apply(&p)
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].PercentageScore = total(&rows[i], weight)
	}
	return rows, nil
}

// total is the weighted sum of the three sub-scores. It is staged in
// PercentageScore until applyPercentages normalizes the column.
func total(row *models.ScoredProduct, w models.ScoringWeight) float64 {
	return row.QuestionScore*w.Question + row.OrderScore*w.Order + row.TrackingScore*w.Track
}

// applyPercentages rescales the staged totals onto [0, 100]. A flat
// distribution maps to zero.
func applyPercentages(rows []models.ScoredProduct) {
	if len(rows) == 0 {
		return
	}
	min, max := rows[0].PercentageScore, rows[0].PercentageScore
	for _, row := range rows[1:] {
		if row.PercentageScore < min {
			min = row.PercentageScore
		}
		if row.PercentageScore > max {
			max = row.PercentageScore
		}
	}
	for i := range rows {
		if max > min {
			rows[i].PercentageScore = 100 * (rows[i].PercentageScore - min) / (max - min)
		} else {
			rows[i].PercentageScore = 0
		}
	}
}

func (e *Engine) writeRows(ctx context.Context, rows []models.ScoredProduct) error {
	for start := 0; start < len(rows); start += bulkBatch {
		end := start + bulkBatch
		if end > len(rows) {
			end = len(rows)
		}
		actions := make([]storage.BulkAction, 0, end-start)
		for i := start; i < end; i++ {
			actions = append(actions, storage.BulkAction{
				Op:  storage.BulkIndex,
				ID:  rows[i].ID(),
				Doc: &rows[i],
			})
		}
		result, err := e.idx.Bulk(ctx, ScoredIndex, actions)
		if err != nil {
			return err
		}
		for _, bulkErr := range result.Errors {
			log.Printf("scoring: scored row %s rejected: %v", bulkErr.ID, bulkErr.Err)
		}
	}
	return nil
}
