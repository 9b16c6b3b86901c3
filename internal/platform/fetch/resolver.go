package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Resolver looks up IPv4 addresses for a host without using the system resolver.
type Resolver interface {
	LookupIPv4(ctx context.Context, host string) ([]net.IP, error)
}

var DefaultNameservers = []string{"8.8.8.8:53", "8.8.4.4:53"}

// DNSResolver queries fixed nameservers directly over UDP, retrying over TCP on truncation.
type DNSResolver struct {
	nameservers []string
	client      *dns.Client
}

func NewDNSResolver(nameservers []string, timeout time.Duration) *DNSResolver {
	ns := make([]string, 0, len(nameservers))
	for _, s := range nameservers {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(s, "53")
		}
		ns = append(ns, s)
	}
	if len(ns) == 0 {
		ns = append(ns, DefaultNameservers...)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DNSResolver{nameservers: ns, client: &dns.Client{Timeout: timeout}}
}

func (r *DNSResolver) LookupIPv4(ctx context.Context, host string) ([]net.IP, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)
	msg.RecursionDesired = true

	var errs []error
	for _, ns := range r.nameservers {
		resp, _, err := r.client.ExchangeContext(ctx, msg, ns)
		if err == nil && resp != nil && resp.Truncated {
			tcp := &dns.Client{Net: "tcp", Timeout: r.client.Timeout}
			resp, _, err = tcp.ExchangeContext(ctx, msg, ns)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ns, err))
			continue
		}
		if resp.Rcode != dns.RcodeSuccess {
			errs = append(errs, fmt.Errorf("%s: rcode %s", ns, dns.RcodeToString[resp.Rcode]))
			continue
		}
		ips := aRecords(resp)
		if len(ips) > 0 {
			return ips, nil
		}
		errs = append(errs, fmt.Errorf("%s: no A records for %s", ns, host))
	}
	return nil, fmt.Errorf("resolve %s: %w", host, errors.Join(errs...))
}

func aRecords(m *dns.Msg) []net.IP {
	var out []net.IP
	for _, rr := range m.Answer {
		if a, ok := rr.(*dns.A); ok {
			out = append(out, a.A)
		}
	}
	return out
}
