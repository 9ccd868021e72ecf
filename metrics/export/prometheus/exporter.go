package prometheus

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MrEthical07/tokengate"
	"github.com/MrEthical07/tokengate/metrics/export/internaldefs"
)

// ContentType is the text exposition format version written by the exporter.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

// MetricsSource supplies snapshots. *tokengate.Engine satisfies it.
type MetricsSource interface {
	MetricsSnapshot() tokengate.MetricsSnapshot
}

// PrometheusExporter renders tokengate metrics in Prometheus text exposition format.
type PrometheusExporter struct {
	source MetricsSource
}

// NewPrometheusExporter creates a Prometheus exporter that reads from the given [tokengate.Engine].
func NewPrometheusExporter(engine *tokengate.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource creates a Prometheus exporter from a
// custom [MetricsSource].
func NewPrometheusExporterFromSource(source MetricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves the exposition. Disabled metrics produce an empty 200.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", ContentType)
		_, _ = p.WriteTo(w)
	})
}

// Render returns the exposition as a string, or "" when metrics are disabled.
func (p *PrometheusExporter) Render() string {
	var b strings.Builder
	_, _ = p.WriteTo(&b)
	return b.String()
}

// WriteTo streams one snapshot to w.
func (p *PrometheusExporter) WriteTo(w io.Writer) (int64, error) {
	if p == nil || p.source == nil {
		return 0, nil
	}
	snap := p.source.MetricsSnapshot()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 {
		return 0, nil
	}

	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)
	for _, def := range internaldefs.CounterDefs {
		family(bw, def.Name, def.Help, "counter")
		fmt.Fprintf(bw, "%s %d\n", def.Name, snap.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		buckets := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[def.ID]))
		family(bw, def.Name, def.Help, "histogram")
		for i, le := range internaldefs.HistogramBounds {
			fmt.Fprintf(bw, "%s_bucket{le=%q} %d\n", def.Name, le, buckets[i])
		}
		// Only bucket counts are tracked, so the sum is always zero.
		fmt.Fprintf(bw, "%s_sum 0\n%s_count %d\n", def.Name, def.Name, buckets[len(buckets)-1])
	}
	err := bw.Flush()
	return cw.n, err
}

func family(w io.Writer, name, help, kind string) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", name, helpEscaper.Replace(help), name, kind)
}

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
