package selector

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/mirage-client/internal/chat"
	"github.com/vovakirdan/mirage-client/internal/transport/httpapi"
)

// Load score weights. CPU dominates, memory and user-capacity utilisation
// split the rest.
const (
	cpuWeight      = 0.4
	memoryWeight   = 0.3
	capacityWeight = 0.3
)

// Selector ranks candidate servers by probing their stats endpoints.
// Selection is idempotent and may be re-run later to re-balance.
type Selector struct {
	probeTimeout time.Duration
	log          *zerolog.Logger
}

// New creates a selector. probeTimeout bounds each stats probe; it is the only
// hard timeout in the client.
func New(probeTimeout time.Duration, logger *zerolog.Logger) *Selector {
	return &Selector{
		probeTimeout: probeTimeout,
		log:          logger,
	}
}

// SelectBest probes every candidate and returns the one with the strictly
// lowest load score. Candidates that error or time out are skipped for this
// round. Ties keep the first-seen candidate. If nothing responded, the first
// configured candidate is returned so authentication always has a server to
// try; an empty candidate list is the only terminal failure.
func (s *Selector) SelectBest(ctx context.Context, candidates []chat.Server) (chat.Server, error) {
	if len(candidates) == 0 {
		return chat.Server{}, chat.ErrNoServers
	}

	best := -1
	var bestLoad float64

	for i, srv := range candidates {
		stats, err := s.probe(ctx, srv)
		if err != nil {
			s.log.Debug().Err(err).Str("server", srv.ID).Msg("stats probe failed, skipping candidate")
			continue
		}

		load := loadScore(stats, srv.MaxUsers)
		s.log.Debug().Str("server", srv.ID).Float64("load", load).Msg("candidate scored")

		if best == -1 || load < bestLoad {
			best = i
			bestLoad = load
		}
	}

	if best == -1 {
		s.log.Warn().Msg("no candidate responded, falling back to first configured server")
		return candidates[0], nil
	}

	s.log.Info().Str("server", candidates[best].ID).Float64("load", bestLoad).Msg("selected server")
	return candidates[best], nil
}

func (s *Selector) probe(ctx context.Context, srv chat.Server) (httpapi.Stats, error) {
	probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()
	return httpapi.New(srv).Stats(probeCtx)
}

func loadScore(stats httpapi.Stats, maxUsers int) float64 {
	capacity := 0.0
	if maxUsers > 0 {
		capacity = float64(stats.ActiveUsers) / float64(maxUsers)
	}
	return cpuWeight*stats.CPUUsage + memoryWeight*stats.MemoryUsage + capacityWeight*capacity
}
