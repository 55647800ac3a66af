// Package node implements bootstrap (spec sec 6.4): the Option builders
// for Play and API nodes, defaults table, and the wiring that assembles
// mesh transport, discovery, senders, and dispatchers into a running
// node. Config overrides load through github.com/spf13/viper and are
// validated with github.com/go-playground/validator/v10, the way the
// teacher's config package does (config/config.go in byte4fun-pitaya).
package node

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/ulala-x/playhouse/client"
	"github.com/ulala-x/playhouse/constants"
)

// Options is the full set of spec sec 6.4 bootstrap knobs for one node.
type Options struct {
	ServiceId uint16 `validate:"required"`
	ServerId  uint32

	BindEndpoint      string `validate:"required"`
	ClientTcpEndpoint string
	ClientWsEndpoint  string

	IdleTimeout         time.Duration
	HeartBeatInterval   time.Duration
	RequestTimeout      time.Duration
	SendHighWatermark   int
	ServerStale         time.Duration
	DiscoveryPeriod     time.Duration
	IOPoolSize          int
	StageQueueSize      int
	ClientOutboxSize    int

	// AuthenticateMsgId is the one msgId a session in the Connected
	// state accepts besides the heartbeat (spec sec 4.9.4); its first
	// frame is translated into a JoinStageReq. See DESIGN.md Open
	// Question decision.
	AuthenticateMsgId string

	RateLimiter client.RateLimiter
}

// defaults returns an Options populated with spec sec 6.4's default
// column; callers overlay required/explicit fields on top.
func defaults() Options {
	return Options{
		IdleTimeout:       constants.DefaultIdleTimeout,
		HeartBeatInterval: constants.DefaultHeartBeatInterval,
		RequestTimeout:    constants.DefaultRequestTimeout,
		SendHighWatermark: constants.DefaultSendHighWatermark,
		ServerStale:       constants.DefaultServerStale,
		DiscoveryPeriod:   constants.DefaultDiscoveryPeriod,
		IOPoolSize:        constants.DefaultIOPoolSize,
		StageQueueSize:    1024,
		ClientOutboxSize:  256,
		AuthenticateMsgId: constants.DefaultAuthenticateMsgId,
	}
}

// Builder accumulates Option overrides the way the teacher's
// config.NewDefaultBuilderConfig/viper.SetDefault pattern does, then
// produces a validated Options via Build.
type Builder struct {
	opts Options
	v    *viper.Viper
}

func newBuilder() *Builder {
	return &Builder{opts: defaults(), v: viper.New()}
}

// NewPlayNodeBuilder starts a Builder for a Play node identity.
func NewPlayNodeBuilder(serviceId uint16, serverId uint32, bindEndpoint string) *Builder {
	b := newBuilder()
	b.opts.ServiceId = serviceId
	b.opts.ServerId = serverId
	b.opts.BindEndpoint = bindEndpoint
	return b
}

// NewAPINodeBuilder starts a Builder for an API node identity.
func NewAPINodeBuilder(serviceId uint16, serverId uint32, bindEndpoint string) *Builder {
	return NewPlayNodeBuilder(serviceId, serverId, bindEndpoint)
}

// WithClientTCP sets the Play node's client TCP listen endpoint.
func (b *Builder) WithClientTCP(endpoint string) *Builder {
	b.opts.ClientTcpEndpoint = endpoint
	return b
}

// WithClientWS sets the Play node's client WebSocket listen endpoint.
func (b *Builder) WithClientWS(endpoint string) *Builder {
	b.opts.ClientWsEndpoint = endpoint
	return b
}

// WithIdleTimeout overrides idleTimeoutMs.
func (b *Builder) WithIdleTimeout(d time.Duration) *Builder {
	b.opts.IdleTimeout = d
	return b
}

// WithHeartBeatInterval overrides heartBeatIntervalMs.
func (b *Builder) WithHeartBeatInterval(d time.Duration) *Builder {
	b.opts.HeartBeatInterval = d
	return b
}

// WithRequestTimeout overrides requestTimeoutMs.
func (b *Builder) WithRequestTimeout(d time.Duration) *Builder {
	b.opts.RequestTimeout = d
	return b
}

// WithServerStale overrides serverStaleMs.
func (b *Builder) WithServerStale(d time.Duration) *Builder {
	b.opts.ServerStale = d
	return b
}

// WithDiscoveryPeriod overrides discoveryPeriodMs.
func (b *Builder) WithDiscoveryPeriod(d time.Duration) *Builder {
	b.opts.DiscoveryPeriod = d
	return b
}

// WithIOPoolSize overrides the Offload Service's IO pool size.
func (b *Builder) WithIOPoolSize(n int) *Builder {
	b.opts.IOPoolSize = n
	return b
}

// WithAuthenticateMsgId overrides the one msgId a Connected-state
// session accepts besides the heartbeat (spec sec 4.9.4).
func (b *Builder) WithAuthenticateMsgId(msgId string) *Builder {
	b.opts.AuthenticateMsgId = msgId
	return b
}

// WithRateLimiter installs the optional predicate consulted before every
// client frame is dispatched (spec sec 6.3 "Rate-limit hook"); returning
// false from it closes the offending session.
func (b *Builder) WithRateLimiter(limiter client.RateLimiter) *Builder {
	b.opts.RateLimiter = limiter
	return b
}

// LoadConfigFile layers a viper-readable config file (YAML/JSON/TOML)
// on top of the current defaults, mirroring the teacher's
// config.NewViperConfig file-loading step.
func (b *Builder) LoadConfigFile(path string) error {
	b.v.SetConfigFile(path)
	if err := b.v.ReadInConfig(); err != nil {
		return err
	}
	return b.v.Unmarshal(&b.opts)
}

var validate = validator.New()

// Build validates the accumulated Options (spec sec 6.4: serviceId/
// serverId/bindEndpoint required) and returns the final value.
func (b *Builder) Build() (Options, error) {
	if err := validate.Struct(&b.opts); err != nil {
		return Options{}, err
	}
	return b.opts, nil
}
