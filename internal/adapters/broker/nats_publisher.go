package broker

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"van-dispatch-service/internal/domain"
	"van-dispatch-service/internal/platform/metrics"

	"github.com/nats-io/nats.go"
)

// NATSPublisher forwards fleet events to NATS on
// "{prefix}.{event type}.{van id}", e.g. fleet.plan.updated.van-7.
// Publishing is fire-and-forget; failures are logged and counted.
type NATSPublisher struct {
	nc      *nats.Conn
	prefix  string
	metrics *metrics.Collector
}

func NewNATSPublisher(url, prefix string, m *metrics.Collector) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("van-dispatch-service"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			m.SetBrokerConnected(false)
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			m.SetBrokerConnected(true)
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			m.SetBrokerConnected(false)
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats: connect %s: %w", url, err)
	}
	m.SetBrokerConnected(true)

	return &NATSPublisher{nc: nc, prefix: prefix, metrics: m}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

func (p *NATSPublisher) Publish(ev domain.FleetEvent) {
	subject := Subject(p.prefix, ev)

	b, err := json.Marshal(ev)
	if err == nil {
		err = p.nc.Publish(subject, b)
	}
	p.metrics.BrokerPublished(err)
	if err != nil {
		log.Printf("nats publish failed: subject=%s err=%v", subject, err)
	}
}

// Subject builds the NATS subject for an event. The event type keeps its dots
// so consumers can subscribe to e.g. "fleet.plan.>".
func Subject(prefix string, ev domain.FleetEvent) string {
	parts := make([]string, 0, 4)
	if p := strings.Trim(strings.TrimSpace(prefix), "."); p != "" {
		parts = append(parts, p)
	}
	for _, seg := range strings.Split(string(ev.Type), ".") {
		parts = append(parts, subjectToken(seg))
	}
	parts = append(parts, subjectToken(ev.VanID))
	return strings.Join(parts, ".")
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS tokens cannot contain spaces, '>', '*' or '.'.
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
