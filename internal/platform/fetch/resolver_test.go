package fetch

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
)

func startDNSServer(t *testing.T, handler dns.HandlerFunc) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("udp listen unavailable: %v", err)
	}
	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	t.Cleanup(func() { _ = srv.Shutdown() })
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatalf("dns server did not start")
	}
	return pc.LocalAddr().String()
}

func TestDNSResolverLookup(t *testing.T) {
	addr := startDNSServer(t, func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		if req.Question[0].Name == "images.example.com." {
			rr, _ := dns.NewRR("images.example.com. 60 IN A 203.0.113.7")
			m.Answer = append(m.Answer, rr)
		} else {
			m.Rcode = dns.RcodeNameError
		}
		_ = w.WriteMsg(m)
	})

	r := NewDNSResolver([]string{addr}, time.Second)
	ips, err := r.LookupIPv4(context.Background(), "images.example.com")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(ips) != 1 || ips[0].String() != "203.0.113.7" {
		t.Fatalf("unexpected ips %v", ips)
	}

	if _, err := r.LookupIPv4(context.Background(), "missing.example.com"); err == nil {
		t.Fatalf("expected NXDOMAIN error")
	}
}

func TestNewDNSResolverDefaults(t *testing.T) {
	r := NewDNSResolver([]string{" ", "1.1.1.1"}, 0)
	if len(r.nameservers) != 1 || r.nameservers[0] != "1.1.1.1:53" {
		t.Fatalf("unexpected nameservers %v", r.nameservers)
	}
	r = NewDNSResolver(nil, 0)
	if len(r.nameservers) != 2 || r.nameservers[0] != "8.8.8.8:53" {
		t.Fatalf("expected default nameservers, got %v", r.nameservers)
	}
}
