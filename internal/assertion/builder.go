package assertion

// Scope selects the samples an assertion looks at.
type Scope struct {
	request string
}

func Global() Scope { return Scope{} }

// Details scopes an assertion to one request name.
func Details(request string) Scope { return Scope{request: request} }

func (s Scope) ResponseTime() ResponseTime { return ResponseTime{scope: s} }

func (s Scope) FailedRequests() Requests { return Requests{scope: s, kind: FailedPercent} }

func (s Scope) SuccessfulRequests() Requests { return Requests{scope: s, kind: SuccessPercent} }

type ResponseTime struct {
	scope Scope
}

func (r ResponseTime) Percentile(p float64) Bound {
	return Bound{scope: r.scope, metric: Metric{Kind: PercentileOf, P: p}}
}

func (r ResponseTime) Max() Bound { return Bound{scope: r.scope, metric: Metric{Kind: MaxOf}} }

func (r ResponseTime) Mean() Bound { return Bound{scope: r.scope, metric: Metric{Kind: MeanOf}} }

type Requests struct {
	scope Scope
	kind  MetricKind
}

func (r Requests) Percent() Bound { return Bound{scope: r.scope, metric: Metric{Kind: r.kind}} }

// Bound is a metric waiting for its comparator and threshold.
type Bound struct {
	scope  Scope
	metric Metric
}

func (b Bound) assert(c Comparator, threshold float64) Assertion {
	return Assertion{Request: b.scope.request, Metric: b.metric, Comparator: c, Threshold: threshold}
}

func (b Bound) Lt(threshold float64) Assertion { return b.assert(Lt, threshold) }

func (b Bound) Lte(threshold float64) Assertion { return b.assert(Lte, threshold) }

func (b Bound) Gt(threshold float64) Assertion { return b.assert(Gt, threshold) }

func (b Bound) Gte(threshold float64) Assertion { return b.assert(Gte, threshold) }
