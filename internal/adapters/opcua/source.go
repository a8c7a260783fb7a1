package opcua

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"
	"go.uber.org/zap"

	"github.com/oscar1457/Industrial-Sentinel/internal/domain"
	"github.com/oscar1457/Industrial-Sentinel/internal/ports"
)

const (
	StatusConnecting = "OPC-UA: Connecting"
	StatusConnected  = "OPC-UA: Connected"
)

// errReconnectPending is returned internally while the backoff window is open.
var errReconnectPending = errors.New("opcua: reconnect pending")

// Config captures the runtime details required to open an OPC UA session and
// the three nodes that carry the machine readings.
type Config struct {
	Enabled           bool          `yaml:"enabled"`
	Endpoint          string        `yaml:"endpoint"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	SecurityMode      string        `yaml:"security_mode"`
	SecurityPolicy    string        `yaml:"security_policy"`
	ApplicationName   string        `yaml:"application_name"`
	RPMNodeID         string        `yaml:"rpm_node_id"`
	TemperatureNodeID string        `yaml:"temperature_node_id"`
	VibrationNodeID   string        `yaml:"vibration_node_id"`
	OperationTimeout  time.Duration `yaml:"operation_timeout"`
	SessionTimeout    time.Duration `yaml:"session_timeout"`
	ReconnectBase     time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMax      time.Duration `yaml:"reconnect_max_delay"`
	ReconnectJitter   time.Duration `yaml:"reconnect_jitter"`
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "Industrial Sentinel"
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = 2 * time.Second
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = time.Minute
	}
	if c.ReconnectBase <= 0 {
		c.ReconnectBase = time.Second
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = 30 * time.Second
	}
	if c.ReconnectJitter < 0 {
		c.ReconnectJitter = 0
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Endpoint == "" {
		errs = append(errs, errors.New("endpoint is required"))
	}
	if c.RPMNodeID == "" && c.TemperatureNodeID == "" && c.VibrationNodeID == "" {
		errs = append(errs, errors.New("at least one node id must be configured"))
	}
	if c.ReconnectMax < c.ReconnectBase {
		errs = append(errs, fmt.Errorf("reconnect_max_delay %s is below reconnect_base_delay %s", c.ReconnectMax, c.ReconnectBase))
	}
	return errors.Join(errs...)
}

// session is the subset of *opcua.Client the source needs.
type session interface {
	Read(ctx context.Context, req *ua.ReadRequest) (*ua.ReadResponse, error)
	Close(ctx context.Context) error
}

type dialFunc func(ctx context.Context, cfg Config) (session, error)

// Option customizes a Source.
type Option func(*Source)

// WithLogger sets the logger used for connection events.
func WithLogger(log *zap.Logger) Option {
	return func(s *Source) {
		if log != nil {
			s.log = log
		}
	}
}

func withDialer(d dialFunc) Option          { return func(s *Source) { s.dial = d } }
func withClock(now func() time.Time) Option { return func(s *Source) { s.now = now } }
func withJitter(fn func(max time.Duration) time.Duration) Option {
	return func(s *Source) { s.jitter = fn }
}

// Source polls rpm, temperature and vibration nodes once per ReadSample. When
// the server is unreachable it keeps returning the last good values and
// reconnects with exponential backoff, so acquisition never stalls.
type Source struct {
	cfg    Config
	log    *zap.Logger
	dial   dialFunc
	now    func() time.Time
	jitter func(max time.Duration) time.Duration

	mu            sync.Mutex
	sess          session
	nodes         [3]*ua.NodeID
	last          [3]float64
	attempt       int
	nextReconnect time.Time

	status    atomic.Value
	listenMu  sync.Mutex
	listeners []func(string)
}

func NewSource(cfg Config, opts ...Option) (*Source, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Source{
		cfg:    cfg,
		log:    zap.NewNop(),
		dial:   dialClient,
		now:    time.Now,
		jitter: randomJitter,
	}
	for i, id := range []string{cfg.RPMNodeID, cfg.TemperatureNodeID, cfg.VibrationNodeID} {
		if id == "" {
			continue
		}
		n, err := ua.ParseNodeID(id)
		if err != nil {
			return nil, fmt.Errorf("parse node id %q: %w", id, err)
		}
		s.nodes[i] = n
	}
	for _, opt := range opts {
		opt(s)
	}
	s.status.Store(StatusConnecting)
	return s, nil
}

// ReadSample returns fresh values, or the last known ones while the
// connection is down. Only context cancellation is reported as an error.
func (s *Source) ReadSample(ctx context.Context) (domain.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vals, err := s.readLocked(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Sample{}, ctxErr
		}
		if !errors.Is(err, errReconnectPending) {
			s.dropSessionLocked()
			s.scheduleReconnectLocked(err)
		}
		vals = s.last
	}
	s.last = vals

	return domain.Sample{
		Timestamp:    s.now().UTC(),
		RPM:          vals[0],
		TemperatureC: vals[1],
		VibrationMmS: vals[2],
	}, nil
}

func (s *Source) readLocked(ctx context.Context) ([3]float64, error) {
	sess, err := s.ensureSessionLocked(ctx)
	if err != nil {
		return s.last, err
	}

	req := &ua.ReadRequest{TimestampsToReturn: ua.TimestampsToReturnBoth}
	idx := make([]int, 0, len(s.nodes))
	for i, n := range s.nodes {
		if n == nil {
			continue
		}
		req.NodesToRead = append(req.NodesToRead, &ua.ReadValueID{NodeID: n, AttributeID: ua.AttributeIDValue})
		idx = append(idx, i)
	}

	rctx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()
	resp, err := sess.Read(rctx, req)
	if err != nil {
		return s.last, fmt.Errorf("read error: %w", err)
	}
	if resp == nil || len(resp.Results) != len(idx) {
		return s.last, errors.New("read error: unexpected result count")
	}

	vals := s.last
	for k, dv := range resp.Results {
		if dv == nil || dv.Status != ua.StatusOK {
			continue
		}
		if v, ok := variantToFloat(dv.Value); ok {
			vals[idx[k]] = v
		}
	}
	return vals, nil
}

func (s *Source) ensureSessionLocked(ctx context.Context) (session, error) {
	if s.sess != nil {
		return s.sess, nil
	}
	if s.now().Before(s.nextReconnect) {
		return nil, errReconnectPending
	}

	dctx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()
	sess, err := s.dial(dctx, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("connect error: %w", err)
	}

	s.sess = sess
	s.attempt = 0
	s.nextReconnect = time.Time{}
	s.log.Info("opcua_connected", zap.String("endpoint", s.cfg.Endpoint))
	s.setStatus(StatusConnected)
	return sess, nil
}

func (s *Source) scheduleReconnectLocked(reason error) {
	s.attempt++
	delay := s.cfg.ReconnectBase
	for i := 1; i < s.attempt && delay < s.cfg.ReconnectMax; i++ {
		delay *= 2
	}
	if delay > s.cfg.ReconnectMax {
		delay = s.cfg.ReconnectMax
	}
	var jitter time.Duration
	if s.cfg.ReconnectJitter > 0 {
		jitter = s.jitter(s.cfg.ReconnectJitter)
	}
	s.nextReconnect = s.now().Add(delay + jitter)

	s.log.Warn("opcua_reconnect_scheduled",
		zap.Error(reason),
		zap.Int("attempt", s.attempt),
		zap.Duration("delay", delay+jitter))
	s.setStatus(fmt.Sprintf("OPC-UA: Reconnect in %ds (%s)", int(delay/time.Second), reason))
}

func (s *Source) dropSessionLocked() {
	if s.sess == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.OperationTimeout)
	defer cancel()
	if err := s.sess.Close(ctx); err != nil {
		s.log.Debug("opcua_close_failed", zap.Error(err))
	}
	s.sess = nil
}

func (s *Source) Status() string {
	return s.status.Load().(string)
}

// OnStatusChange registers fn for status transitions. fn runs on the reading
// goroutine and must not call ReadSample.
func (s *Source) OnStatusChange(fn func(string)) {
	if fn == nil {
		return
	}
	s.listenMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenMu.Unlock()
}

func (s *Source) setStatus(status string) {
	if s.status.Swap(status) == status {
		return
	}
	s.listenMu.Lock()
	listeners := append([]func(string){}, s.listeners...)
	s.listenMu.Unlock()
	for _, fn := range listeners {
		fn(status)
	}
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.OperationTimeout)
	defer cancel()
	err := s.sess.Close(ctx)
	s.sess = nil
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func dialClient(ctx context.Context, cfg Config) (session, error) {
	client, err := opcua.NewClient(cfg.Endpoint, clientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("opcua new client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("opcua connect: %w", err)
	}
	return client, nil
}

func clientOptions(cfg Config) []opcua.Option {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(cfg.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(cfg.SecurityPolicy)),
		opcua.ApplicationName(cfg.ApplicationName),
		opcua.RequestTimeout(cfg.OperationTimeout),
		opcua.SessionTimeout(cfg.SessionTimeout),
		opcua.AutoReconnect(false),
	}

	if cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(cfg.Username, cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}
	return opts
}

func randomJitter(max time.Duration) time.Duration {
	return time.Duration(rand.Int64N(int64(max)))
}

func variantToFloat(v *ua.Variant) (float64, bool) {
	if v == nil {
		return 0, false
	}

	switch val := v.Value().(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int8:
		return float64(val), true
	case uint8:
		return float64(val), true
	case int16:
		return float64(val), true
	case uint16:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func normalizeSecurityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}

var (
	_ ports.SampleSource   = (*Source)(nil)
	_ ports.StatusReporter = (*Source)(nil)
)
