package risk

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/axiomquant/tradecore/pkg/fixedpoint"
	"github.com/axiomquant/tradecore/pkg/types"
)

// AnomalyKind enumerates the surveillance alerts the manager can raise.
type AnomalyKind int8

const (
	AbnormalSpread AnomalyKind = iota
	LiquidityDrain
)

func (k AnomalyKind) String() string {
	if k == AbnormalSpread {
		return "abnormal_spread"
	}
	return "liquidity_drain"
}

// Anomaly is a single surveillance alert.
type Anomaly struct {
	Kind      AnomalyKind
	Market    types.QualifiedSymbol
	Detail    string
	Timestamp time.Time
}

// marketHistory is the rolling surveillance window kept per instrument.
type marketHistory struct {
	spreadsBps []fixedpoint.Rate
	tobSizes   []fixedpoint.Quantity
}

const historyWindow = 50

func (h *marketHistory) push(spreadBps fixedpoint.Rate, tobSize fixedpoint.Quantity) {
	h.spreadsBps = append(h.spreadsBps, spreadBps)
	if len(h.spreadsBps) > historyWindow {
		h.spreadsBps = h.spreadsBps[len(h.spreadsBps)-historyWindow:]
	}
	h.tobSizes = append(h.tobSizes, tobSize)
	if len(h.tobSizes) > historyWindow {
		h.tobSizes = h.tobSizes[len(h.tobSizes)-historyWindow:]
	}
}

func (h *marketHistory) avgSpreadBps() fixedpoint.Rate {
	if len(h.spreadsBps) == 0 {
		return 0
	}
	var sum int64
	for _, s := range h.spreadsBps {
		sum += int64(s)
	}
	return fixedpoint.Rate(sum / int64(len(h.spreadsBps)))
}

func (h *marketHistory) avgTOBSize() fixedpoint.Quantity {
	if len(h.tobSizes) == 0 {
		return 0
	}
	var sum int64
	for _, q := range h.tobSizes {
		sum += int64(q)
	}
	return fixedpoint.Quantity(sum / int64(len(h.tobSizes)))
}

// Manager tracks realized/unrealized PnL for drawdown detection, runs
// market-quality surveillance, and publishes the Parameters snapshot that
// Gate.Validate reads. Every mutation happens under mu; Snapshot is the
// only read path and takes the read lock.
type Manager struct {
	mu sync.RWMutex

	params Parameters

	dayStartEquity fixedpoint.Value
	peakEquity     fixedpoint.Value
	currentEquity  fixedpoint.Value

	maxDailyLoss     fixedpoint.Value
	maxDrawdownRatio fixedpoint.Ratio
	warningRatio     fixedpoint.Ratio // drawdown ratio at which SizeMult starts shrinking

	history map[types.QualifiedSymbol]*marketHistory

	log *zap.Logger
}

// NewManager returns a manager seeded with the given starting equity and
// limits. base is copied as the initial published snapshot.
func NewManager(base Parameters, startEquity fixedpoint.Value, maxDailyLoss fixedpoint.Value, maxDrawdownRatio, warningRatio fixedpoint.Ratio, log *zap.Logger) *Manager {
	base.TradingEnabled = true
	return &Manager{
		params:           base,
		dayStartEquity:   startEquity,
		peakEquity:       startEquity,
		currentEquity:    startEquity,
		maxDailyLoss:     maxDailyLoss,
		maxDrawdownRatio: maxDrawdownRatio,
		warningRatio:     warningRatio,
		history:          make(map[types.QualifiedSymbol]*marketHistory),
		log:              log.With(zap.String("component", "risk")),
	}
}

// Snapshot returns the currently published Parameters.
func (m *Manager) Snapshot() Parameters {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.params
}

// UpdateEquity records a new total-equity mark, recomputes the drawdown
// ratio and daily PnL against the tracked peak/day-start, and halts
// trading (or shrinks SizeMult in the warning zone) as needed.
func (m *Manager) UpdateEquity(equity fixedpoint.Value) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.currentEquity = equity
	if equity > m.peakEquity {
		m.peakEquity = equity
	}

	dailyPnL := equity - m.dayStartEquity
	var drawdownRatio fixedpoint.Ratio
	if m.peakEquity > 0 {
		drawdownRatio = fixedpoint.Ratio(int64(m.peakEquity-equity) * fixedpoint.RatioScale / int64(m.peakEquity))
	}

	switch {
	case m.maxDailyLoss > 0 && dailyPnL < -m.maxDailyLoss:
		m.halt("max daily loss breached")
	case m.maxDrawdownRatio > 0 && drawdownRatio > m.maxDrawdownRatio:
		m.halt("max drawdown breached")
	case m.warningRatio > 0 && drawdownRatio > m.warningRatio:
		// Linearly shrink size between the warning ratio and the hard max:
		// fully sized at the warning threshold, zero at the hard limit.
		span := int64(m.maxDrawdownRatio - m.warningRatio)
		if span <= 0 {
			span = 1
		}
		remaining := int64(m.maxDrawdownRatio) - int64(drawdownRatio)
		mult := remaining * fixedpoint.RatioScale / span
		if mult < 0 {
			mult = 0
		}
		m.params.SizeMult = fixedpoint.Ratio(mult)
		m.params.DrawdownHalted = false
		m.version()
	default:
		m.params.SizeMult = fixedpoint.Ratio(fixedpoint.RatioScale)
		m.params.DrawdownHalted = false
		m.version()
	}
}

func (m *Manager) halt(reason string) {
	m.params.DrawdownHalted = true
	m.params.HaltReason = reason
	m.params.SizeMult = 0
	m.log.Warn("trading halted", zap.String("reason", reason))
	m.version()
}

// ResetDay clears the daily-loss anchor to the current equity, used by a
// scheduled daily rollover.
func (m *Manager) ResetDay() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dayStartEquity = m.currentEquity
	m.version()
}

// SetTradingEnabled toggles the global kill switch, e.g. from an operator
// command.
func (m *Manager) SetTradingEnabled(enabled bool, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.params.TradingEnabled = enabled
	m.params.HaltReason = reason
	m.version()
}

// SetPositionLimit updates one instrument's position and notional caps
// without touching the rest of the snapshot.
func (m *Manager) SetPositionLimit(instrument types.QualifiedSymbol, maxPosition fixedpoint.Quantity, maxNotional fixedpoint.Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.params.MaxPosition == nil {
		m.params.MaxPosition = make(map[types.QualifiedSymbol]fixedpoint.Quantity)
	}
	if m.params.MaxNotional == nil {
		m.params.MaxNotional = make(map[types.QualifiedSymbol]fixedpoint.Value)
	}
	m.params.MaxPosition[instrument] = maxPosition
	m.params.MaxNotional[instrument] = maxNotional
	m.version()
}

// version bumps the published snapshot's version. Callers must hold mu.
func (m *Manager) version() {
	m.params.Version++
}

// Surveil feeds one instrument's current spread/top-of-book size into its
// rolling history and reports any anomaly relative to that rolling
// average: a spread more than 3x the average, or a top-of-book size under
// a quarter of the average (liquidity drain).
func (m *Manager) Surveil(instrument types.QualifiedSymbol, spreadBps fixedpoint.Rate, tobSize fixedpoint.Quantity) []Anomaly {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.history[instrument]
	if !ok {
		h = &marketHistory{}
		m.history[instrument] = h
	}

	var anomalies []Anomaly
	now := time.Now()
	if avg := h.avgSpreadBps(); avg > 0 && spreadBps > avg*3 {
		anomalies = append(anomalies, Anomaly{Kind: AbnormalSpread, Market: instrument, Detail: "spread exceeds 3x rolling average", Timestamp: now})
	}
	if avg := h.avgTOBSize(); avg > 0 && int64(tobSize)*4 < int64(avg) {
		anomalies = append(anomalies, Anomaly{Kind: LiquidityDrain, Market: instrument, Detail: "top-of-book size below 1/4 rolling average", Timestamp: now})
	}

	h.push(spreadBps, tobSize)
	for _, a := range anomalies {
		m.log.Warn("surveillance anomaly", zap.String("kind", a.Kind.String()), zap.String("market", instrument.String()), zap.String("detail", a.Detail))
	}
	return anomalies
}
