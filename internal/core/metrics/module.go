package metrics

import (
	"go.uber.org/fx"
)

// Module 是 metrics 的 Fx 模块
//
// 提供:
//   - *TrafficCounter
//   - Reporter: 同一个 *TrafficCounter
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(
			NewTrafficCounter,
			func(t *TrafficCounter) Reporter { return t },
		),
		fx.Invoke(RegisterMetrics),
	)
}
