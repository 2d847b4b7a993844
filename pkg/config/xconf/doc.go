// Package xconf 提供 vidgate 的配置加载、环境变量覆盖与热重载。
//
// # 分层加载
//
// 配置按固定顺序分三层合成，后层覆盖前层：
//
//  1. 内置默认值（Default）
//  2. 配置文件（YAML 或 JSON，按扩展名检测）
//  3. VIDGATE_ 前缀环境变量（显式映射表，见 applyEnv）
//
// 三层合成发生在每次 Load 调用中，热重载时同样生效：
// 文件变更后环境变量覆盖仍然保持。
//
// # 热重载
//
// Watch 基于 fsnotify 监视配置文件所在目录（编辑器原子写入
// 会先删后建，监视目录不丢事件），带防抖合并密集变更，
// 重载结果通过回调交给调用方。
//
// # 使用示例
//
//	cfg, err := xconf.Load("/etc/vidgate/config.yaml")
//	if err != nil {
//	    return err
//	}
//	w, err := xconf.Watch("/etc/vidgate/config.yaml", func(next *xconf.AppConfig, err error) {
//	    if err != nil {
//	        slog.Warn("配置重载失败", "error", err)
//	        return
//	    }
//	    // 应用新配置
//	})
//	if err != nil {
//	    return err
//	}
//	w.StartAsync()
//	defer w.Stop()
package xconf
