package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-ping/ping"

	"github.com/jonwraymond/uptimeops/observe"
)

// maxBodyScan caps how much of an HTTP response body is read when matching
// ExpectedBodySubstring. Anything past it is ignored.
const maxBodyScan = 1 << 20 // 1 MiB

// Result is the outcome of one probe execution.
type Result struct {
	Probe      string    `json:"probe"`
	Up         bool      `json:"up"`
	StatusCode int       `json:"status_code,omitempty"` // 0 when no HTTP response arrived
	LatencyMS  int64     `json:"latency_ms"`
	Message    string    `json:"message,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Err        error     `json:"-"`
}

// Executor runs individual probes. It is safe for concurrent use.
type Executor struct {
	client   *http.Client
	resolver *net.Resolver
	logger   observe.Logger
	metrics  observe.Metrics
	tracer   observe.Tracer
}

// NewExecutor creates an Executor. A nil logger, metrics, or tracer falls
// back to a no-op implementation. Timeouts come from each probe, not the
// client.
func NewExecutor(logger observe.Logger, metrics observe.Metrics, tracer observe.Tracer) *Executor {
	if logger == nil {
		logger = observe.NopLogger()
	}
	if metrics == nil {
		metrics = observe.NopMetrics()
	}
	if tracer == nil {
		tracer = observe.NopTracer()
	}
	return &Executor{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		resolver: net.DefaultResolver,
		logger:   logger,
		metrics:  metrics,
		tracer:   tracer,
	}
}

// Execute runs a single probe and classifies the outcome. It never panics
// and never blocks past the probe's timeout.
func (e *Executor) Execute(ctx context.Context, p Probe) Result {
	p = p.withDefaults()

	meta := observe.CheckMeta{Name: p.Name, Kind: string(p.Kind), Target: p.URL}
	ctx, span := e.tracer.StartSpan(ctx, meta)

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	start := time.Now()
	var res Result
	switch p.Kind {
	case KindTCP:
		res = e.checkTCP(ctx, p)
	case KindPing:
		res = e.checkPing(ctx, p)
	case KindDNS:
		res = e.checkDNS(ctx, p)
	case KindSSL:
		res = e.checkSSL(ctx, p)
	default:
		res = e.checkHTTP(ctx, p)
	}

	elapsed := time.Since(start)
	res.Probe = p.Name
	res.LatencyMS = elapsed.Milliseconds()
	res.Timestamp = start

	e.tracer.EndSpan(span, res.Err)
	e.metrics.RecordProbe(ctx, meta, elapsed, res.Up)
	e.logger.WithCheck(meta).Debug(ctx, "probe executed",
		observe.Field{Key: "up", Value: res.Up},
		observe.Field{Key: "latency_ms", Value: res.LatencyMS},
	)
	return res
}

func (e *Executor) checkHTTP(ctx context.Context, p Probe) Result {
	target := normalizeURL(p.URL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Result{Message: fmt.Sprintf("invalid url %q: %v", p.URL, err), Err: fmt.Errorf("%w: %v", ErrUnreachable, err)}
	}
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return Result{Message: fmt.Sprintf("request failed: %v", err), Err: fmt.Errorf("%w: %v", ErrUnreachable, err)}
	}
	defer resp.Body.Close()

	res := Result{StatusCode: resp.StatusCode}

	if !statusExpected(resp.StatusCode, p.ExpectedStatusCodes) {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyScan))
		res.Message = fmt.Sprintf("unexpected status %s", resp.Status)
		res.Err = fmt.Errorf("%w: got %d", ErrUnexpectedStatus, resp.StatusCode)
		return res
	}

	if p.ExpectedBodySubstring != "" {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyScan))
		if readErr != nil {
			res.Message = fmt.Sprintf("reading body: %v", readErr)
			res.Err = fmt.Errorf("%w: %v", ErrUnreachable, readErr)
			return res
		}
		if !strings.Contains(string(body), p.ExpectedBodySubstring) {
			res.Message = fmt.Sprintf("body does not contain %q", p.ExpectedBodySubstring)
			res.Err = ErrBodyMismatch
			return res
		}
	} else {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyScan))
	}

	res.Up = true
	res.Message = resp.Status
	return res
}

func (e *Executor) checkTCP(ctx context.Context, p Probe) Result {
	addr, err := hostPort(p.URL, "80")
	if err != nil {
		return Result{Message: err.Error(), Err: fmt.Errorf("%w: %v", ErrUnreachable, err)}
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Result{Message: fmt.Sprintf("dial %s: %v", addr, err), Err: fmt.Errorf("%w: %v", ErrUnreachable, err)}
	}
	conn.Close()
	return Result{Up: true, Message: fmt.Sprintf("connected to %s", addr)}
}

func (e *Executor) checkDNS(ctx context.Context, p Probe) Result {
	host := hostOnly(p.URL)
	addrs, err := e.resolver.LookupHost(ctx, host)
	if err != nil || len(addrs) == 0 {
		return Result{Message: fmt.Sprintf("lookup %s: %v", host, err), Err: fmt.Errorf("%w: %v", ErrUnreachable, err)}
	}
	return Result{Up: true, Message: fmt.Sprintf("resolved %s to %d address(es)", host, len(addrs))}
}

func (e *Executor) checkPing(ctx context.Context, p Probe) Result {
	host := hostOnly(p.URL)

	pinger, err := ping.NewPinger(host)
	if err != nil {
		return Result{Message: fmt.Sprintf("ping %s: %v", host, err), Err: fmt.Errorf("%w: %v", ErrUnreachable, err)}
	}
	pinger.Count = 1
	pinger.Timeout = p.Timeout
	// Unprivileged UDP ping; a restricted socket is a failed probe, not a crash.
	pinger.SetPrivileged(false)

	if err := pinger.Run(); err != nil {
		return Result{Message: fmt.Sprintf("ping %s: %v", host, err), Err: fmt.Errorf("%w: %v", ErrUnreachable, err)}
	}
	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return Result{Message: fmt.Sprintf("ping %s: no reply", host), Err: ErrUnreachable}
	}
	return Result{Up: true, Message: fmt.Sprintf("ping %s: rtt %s", host, stats.AvgRtt)}
}

func (e *Executor) checkSSL(ctx context.Context, p Probe) Result {
	addr, err := hostPort(p.URL, "443")
	if err != nil {
		return Result{Message: err.Error(), Err: fmt.Errorf("%w: %v", ErrUnreachable, err)}
	}
	host := hostOnly(p.URL)

	dialer := &tls.Dialer{Config: &tls.Config{ServerName: host}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Result{Message: fmt.Sprintf("tls dial %s: %v", addr, err), Err: fmt.Errorf("%w: %v", ErrUnreachable, err)}
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return Result{Message: "no peer certificate presented", Err: ErrCertExpiring}
	}
	cert := state.PeerCertificates[0]
	daysLeft := int(time.Until(cert.NotAfter).Hours() / 24)

	policy := p.SSL
	if policy == nil {
		policy = &SSLPolicy{CheckCert: true, WarnDaysBeforeExpiry: DefaultWarnDaysExpiry}
	}
	if policy.CheckCert {
		if daysLeft < 0 {
			return Result{
				Message: fmt.Sprintf("certificate expired %d day(s) ago", -daysLeft),
				Err:     ErrCertExpiring,
			}
		}
		if daysLeft < policy.WarnDaysBeforeExpiry {
			return Result{
				Message: fmt.Sprintf("certificate expires in %d day(s)", daysLeft),
				Err:     ErrCertExpiring,
			}
		}
	}
	return Result{Up: true, Message: fmt.Sprintf("certificate valid for %d day(s)", daysLeft)}
}

// statusExpected reports whether an HTTP status counts as success for the
// given expectation set. An empty set accepts anything below 400.
func statusExpected(status int, expected []int) bool {
	if len(expected) == 0 {
		return status < http.StatusBadRequest
	}
	for _, c := range expected {
		if status == c {
			return true
		}
	}
	return false
}

// normalizeURL prepends https:// when the target has no scheme.
func normalizeURL(target string) string {
	if strings.Contains(target, "://") {
		return target
	}
	return "https://" + target
}

// hostPort extracts "host:port" from a probe target, filling in the default
// port when the target carries none.
func hostPort(target, defaultPort string) (string, error) {
	u, err := url.Parse(normalizeURL(target))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("cannot parse target %q", target)
	}
	if u.Port() != "" {
		return u.Host, nil
	}
	switch u.Scheme {
	case "http":
		defaultPort = "80"
	case "https":
		defaultPort = "443"
	}
	return net.JoinHostPort(u.Hostname(), defaultPort), nil
}

// hostOnly extracts the bare hostname from a probe target.
func hostOnly(target string) string {
	u, err := url.Parse(normalizeURL(target))
	if err != nil || u.Hostname() == "" {
		return target
	}
	return u.Hostname()
}
