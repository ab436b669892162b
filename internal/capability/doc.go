// Package capability 维护能力名到本地构建方法的静态映射
//
// 注册表在进程启动前填充，启动后冻结，之后只读。每个能力的本地
// 实例最多成功构建一次，后续调用返回同一个实例；构建失败不缓存，
// 下次调用会重试。
//
// 能力通过 fx 值组注入：
//
//	fx.Options(
//	    capability.Module(),
//	    capability.Provide(capability.Capability{
//	        Name:   "database",
//	        Recipe: newDatabase,
//	    }),
//	)
package capability
