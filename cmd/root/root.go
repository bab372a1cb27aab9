package root

import (
	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "modbot-keeper",
	Short: "聊天机器人子系统热重载守护进程",
	Long:  `modbot-keeper在不重启宿主进程的前提下热重载机器人的各个子系统，维护依赖安全的重载顺序、状态保留、回滚检查点和健康诊断`,
}
