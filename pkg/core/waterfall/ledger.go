package waterfall

// PartnerLedger is the running state of one partner during a single
// evaluation. Ledgers are allocated per call and discarded afterwards.
type PartnerLedger struct {
	PartnerID       string
	Contributed     float64   // capital called, positive
	ReturnedCapital float64   // paid by return_of_capital tiers
	Profit          float64   // everything except return of capital
	Promote         float64   // paid by promote tiers, catch-up included
	CashFlows       []float64 // signed, indexed by year 0..N
}

func newLedgers(cfg Config, periods int) []*PartnerLedger {
	out := make([]*PartnerLedger, len(cfg.EquityClasses))
	for i, ec := range cfg.EquityClasses {
		out[i] = &PartnerLedger{PartnerID: ec.ID, CashFlows: make([]float64, periods)}
	}
	return out
}

// Unreturned is the contributed capital not yet given back.
func (l *PartnerLedger) Unreturned() float64 {
	if u := l.Contributed - l.ReturnedCapital; u > 0 {
		return u
	}
	return 0
}

// Distributed sums positive cash received to date.
func (l *PartnerLedger) Distributed() float64 {
	var total float64
	for _, cf := range l.CashFlows {
		if cf > 0 {
			total += cf
		}
	}
	return total
}

func (l *PartnerLedger) contribute(year int, amount float64) {
	l.Contributed += amount
	l.CashFlows[year] -= amount
}

func (l *PartnerLedger) returnCapital(year int, amount float64) {
	l.ReturnedCapital += amount
	l.CashFlows[year] += amount
}

func (l *PartnerLedger) payProfit(year int, amount float64, promote bool) {
	l.Profit += amount
	if promote {
		l.Promote += amount
	}
	l.CashFlows[year] += amount
}
