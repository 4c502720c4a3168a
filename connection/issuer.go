package connection

import (
	"context"
	"math/rand/v2"
	"strconv"

	"github.com/kbukum/medscribe/livekit"
	"github.com/kbukum/medscribe/logger"
	"github.com/kbukum/medscribe/observability"
)

const participantSpace = 10000

// Issuer builds connection details from the configured credentials.
type Issuer struct {
	cfg       livekit.Config
	tokenOpts []livekit.IssuerOption
	intn      func(int) int
	metrics   *observability.Metrics
	log       *logger.Logger
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithRandom replaces the source of participant name suffixes. intn must
// return a value in [0, n).
func WithRandom(intn func(n int) int) Option {
	return func(i *Issuer) { i.intn = intn }
}

// WithMetrics records issued tokens on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(i *Issuer) { i.metrics = m }
}

// WithTokenOptions passes options through to the token issuer.
func WithTokenOptions(opts ...livekit.IssuerOption) Option {
	return func(i *Issuer) { i.tokenOpts = append(i.tokenOpts, opts...) }
}

// WithLogger sets the issuer's logger.
func WithLogger(l *logger.Logger) Option {
	return func(i *Issuer) { i.log = l }
}

// NewIssuer creates an Issuer. Missing credentials are reported by Issue,
// not here, so the endpoint can answer with the configuration error.
func NewIssuer(cfg livekit.Config, opts ...Option) *Issuer {
	cfg.ApplyDefaults()
	i := &Issuer{
		cfg:     cfg,
		intn:    rand.IntN,
		metrics: observability.DefaultMetrics(),
		log:     logger.WithComponent("connection"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue mints details for participant in room. Empty arguments fall back to
// the configured room and a random participant name.
func (i *Issuer) Issue(ctx context.Context, room, participant string) (*Details, error) {
	if err := i.cfg.CheckCredentials(); err != nil {
		return nil, err
	}
	if room == "" {
		room = i.cfg.DefaultRoom
	}
	if participant == "" {
		participant = i.cfg.ParticipantPrefix + strconv.Itoa(i.intn(participantSpace))
	}

	tokens, err := livekit.NewTokenIssuer(i.cfg, i.tokenOpts...)
	if err != nil {
		return nil, err
	}
	token, err := tokens.Issue(participant, room)
	if err != nil {
		return nil, err
	}

	i.metrics.TokenIssued(ctx, room)
	i.log.WithContext(ctx).Debug("issued participant token", logger.Fields(
		logger.FieldRoom, room,
		logger.FieldParticipant, participant,
	))

	return &Details{
		ServerURL:        i.cfg.URL,
		RoomName:         room,
		ParticipantName:  participant,
		ParticipantToken: token,
	}, nil
}

// Fetch issues details with default room and participant.
func (i *Issuer) Fetch(ctx context.Context) (*Details, error) {
	return i.Issue(ctx, "", "")
}
