// Package otel provides OpenTelemetry setup and instruments for billingd.
package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "billingd"

// Metrics holds all billing metric instruments.
type Metrics struct {
	EventsProcessed    metric.Int64Counter
	EventsDuplicate    metric.Int64Counter
	EventsIgnored      metric.Int64Counter
	EventsFailed       metric.Int64Counter
	TenantsProvisioned metric.Int64Counter
	FeesRecorded       metric.Int64Counter
	FeeAmount          metric.Int64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.EventsProcessed, err = meter.Int64Counter("billing.events.processed",
		metric.WithDescription("Number of webhook events fully applied"))
	if err != nil {
		return nil, err
	}

	m.EventsDuplicate, err = meter.Int64Counter("billing.events.duplicate",
		metric.WithDescription("Number of webhook events dropped as duplicates"))
	if err != nil {
		return nil, err
	}

	m.EventsIgnored, err = meter.Int64Counter("billing.events.ignored",
		metric.WithDescription("Number of unrecognized webhook events acknowledged"))
	if err != nil {
		return nil, err
	}

	m.EventsFailed, err = meter.Int64Counter("billing.events.failed",
		metric.WithDescription("Number of webhook events that failed processing"))
	if err != nil {
		return nil, err
	}

	m.TenantsProvisioned, err = meter.Int64Counter("billing.tenants.provisioned",
		metric.WithDescription("Number of tenants created from paying events"))
	if err != nil {
		return nil, err
	}

	m.FeesRecorded, err = meter.Int64Counter("billing.fees.recorded",
		metric.WithDescription("Number of payment fee ledger entries written"))
	if err != nil {
		return nil, err
	}

	m.FeeAmount, err = meter.Int64Histogram("billing.fees.amount_cents",
		metric.WithDescription("Computed provider fee per confirmed transaction in cents"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
