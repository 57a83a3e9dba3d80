package main

import (
	"fmt"
	"os"

	"Q-ITS-Mastery-Backend/internal/config"
	"Q-ITS-Mastery-Backend/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "q-its",
	Short: "Q-ITS 量子掌握度评估后端",
	Long:  "Q-ITS 根据学生的作答记录，在天衍量子云平台上运行参数化线路并给出掌握度评估。",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "配置文件所在目录 (默认依次查找 ./config 和 .)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(machinesCmd)
}

// loadRuntime 读取配置并初始化日志
func loadRuntime(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	paths := []string{"./config", "."}
	if dir, _ := cmd.Flags().GetString("config"); dir != "" {
		paths = []string{dir}
	}
	cfg, err := config.Load(paths...)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.New(cfg.Log.File, cfg.Log.Debug()), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
