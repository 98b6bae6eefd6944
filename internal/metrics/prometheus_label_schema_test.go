package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func describeLabels(t *testing.T, c prometheus.Collector) []string {
	t.Helper()

	descCh := make(chan *prometheus.Desc, 8)
	c.Describe(descCh)
	close(descCh)

	var desc *prometheus.Desc
	for d := range descCh {
		desc = d
		break
	}
	if desc == nil {
		t.Fatalf("no descriptor returned")
	}

	s := desc.String()
	start := strings.Index(s, "variableLabels: {")
	if start < 0 {
		return nil
	}
	start += len("variableLabels: {")
	end := strings.Index(s[start:], "}")
	if end < 0 {
		t.Fatalf("failed to parse descriptor: %s", s)
	}
	raw := strings.TrimSpace(s[start : start+end])
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func assertLabelsEqual(t *testing.T, got, want []string) {
	t.Helper()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("labels mismatch\ngot:  %v\nwant: %v", got, want)
	}
}

func TestPrometheusLabelSchema_LowCardinality(t *testing.T) {
	assertLabelsEqual(t, describeLabels(t, VectorWrites), []string{"source"})
	assertLabelsEqual(t, describeLabels(t, VectorDeletes), []string{"result"})
	assertLabelsEqual(t, describeLabels(t, Deliveries), []string{"result"})
	assertLabelsEqual(t, describeLabels(t, IngestErrors), []string{"source", "error_type"})
	assertLabelsEqual(t, describeLabels(t, RateLimited), []string{"surface"})
	assertLabelsEqual(t, describeLabels(t, HTTPRequests), []string{"method", "route", "status"})
	assertLabelsEqual(t, describeLabels(t, HTTPLatency), []string{"method", "route"})
}

func TestPrometheusLabelSchema_NoSessionLabels(t *testing.T) {
	for _, c := range []prometheus.Collector{
		VectorsStored, SessionsStored, VectorsEvicted, Subscribers, Broadcasts,
	} {
		if labels := describeLabels(t, c); len(labels) != 0 {
			t.Fatalf("unexpected labels %v", labels)
		}
	}
}
