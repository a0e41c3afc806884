package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/trace"
)

func TestLogger_AddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "test", "api")

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	log.InfoContext(ctx, "hello")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal log line: %v (%s)", err, buf.String())
	}

	if rec["trace_id"] != traceID.String() || rec["span_id"] != spanID.String() {
		t.Fatalf("missing trace attrs: %v", rec)
	}
	if rec["service"] != "api" {
		t.Fatalf("missing service attr: %v", rec)
	}
}

func TestLogger_DebugOnlyInDev(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "prod", "api").Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug logged outside dev: %s", buf.String())
	}

	newLogger(&buf, "dev", "api").Debug("shown")
	if buf.Len() == 0 {
		t.Fatalf("debug not logged in dev")
	}
}

func TestObserveDB_ClassifiesErrors(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	uniq := &pgconn.PgError{Code: "23505"}
	if err := p.ObserveDB("registrations.insert", func() error { return uniq }); !errors.Is(err, uniq) {
		t.Fatalf("error not passed through: %v", err)
	}
	_ = p.ObserveDB("registrations.get_by_id", func() error { return pgx.ErrNoRows })

	if got := testutil.ToFloat64(p.DbErrorsTotal.WithLabelValues("registrations.insert", "unique_violation")); got != 1 {
		t.Fatalf("unique_violation count = %v", got)
	}
	if got := testutil.CollectAndCount(p.DbErrorsTotal); got != 1 {
		t.Fatalf("no-rows must not count as an error, got %d series", got)
	}
}

func TestNilProm_IsSafe(t *testing.T) {
	var p *Prom
	called := false
	_ = p.ObserveDB("op", func() error { called = true; return nil })
	p.ObserveOutbox("sent", 0)
	p.ConsumerStarted()
	p.ConsumerFinished("processed", 0)
	p.ObserveNotificationWait(0)

	if !called {
		t.Fatalf("fn not called")
	}
}

func TestClassifyDBErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "email", err: &pgconn.PgError{Code: "23505", ConstraintName: "registrations_email_key"}, want: "email_taken"},
		{name: "other unique", err: &pgconn.PgError{Code: "23505", ConstraintName: "outbox_messages_pkey"}, want: "unique_violation"},
		{name: "age check", err: &pgconn.PgError{Code: "23514"}, want: "check_violation"},
		{name: "deadlock", err: &pgconn.PgError{Code: "40P01"}, want: "serialization_failure"},
		{name: "admin shutdown", err: &pgconn.PgError{Code: "08006"}, want: "connection"},
		{name: "other sqlstate", err: &pgconn.PgError{Code: "42P01"}, want: "pg_42P01"},
		{name: "deadline", err: fmt.Errorf("query: %w", context.DeadlineExceeded), want: "timeout"},
		{name: "canceled", err: context.Canceled, want: "canceled"},
		{name: "opaque", err: errors.New("boom"), want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyDBErr(tt.err); got != tt.want {
				t.Fatalf("classifyDBErr(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
