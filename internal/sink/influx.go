package sink

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/alanyoungcy/tradeloader/internal/domain"
)

// InfluxConfig configures the InfluxDB writer.
type InfluxConfig struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
	UseGzip     bool
}

// Influx writes one point per trade. Points are keyed by the trade id tag
// and the trade time, so a redelivered trade overwrites its own point.
type Influx struct {
	client      influxdb2.Client
	write       api.WriteAPIBlocking
	measurement string
	source      string
}

// NewInflux connects a blocking write API. Errors surface on Write.
func NewInflux(cfg InfluxConfig, source string) *Influx {
	opt := influxdb2.DefaultOptions().SetUseGZip(cfg.UseGzip)
	c := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opt)

	m := cfg.Measurement
	if m == "" {
		m = "trade"
	}
	return &Influx{
		client:      c,
		write:       c.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		measurement: m,
		source:      source,
	}
}

func (s *Influx) Write(ctx context.Context, trades []domain.Trade) (int64, error) {
	if len(trades) == 0 {
		return 0, nil
	}
	points := make([]*write.Point, len(trades))
	for i, t := range trades {
		points[i] = tradePoint(s.measurement, s.source, t)
	}
	if err := s.write.WritePoint(ctx, points...); err != nil {
		return 0, fmt.Errorf("sink: influx: %w", err)
	}
	return int64(len(trades)), nil
}

// Close releases the client.
func (s *Influx) Close() {
	s.client.Close()
}

func tradePoint(measurement, source string, t domain.Trade) *write.Point {
	tags := map[string]string{
		"source": source,
		"id":     t.ID,
		"side":   t.Side(),
	}
	fields := map[string]interface{}{
		"quantity": t.Quantity,
		"price":    t.Price,
	}
	return write.NewPoint(measurement, tags, fields, t.TradedAt.UTC())
}

var _ domain.TradeWriter = (*Influx)(nil)
