package main

import (
	"context"
	"fmt"
	"strings"

	"Q-ITS-Mastery-Backend/internal/client"

	"github.com/spf13/cobra"
)

var machinesCmd = &cobra.Command{
	Use:   "machines",
	Short: "列出天衍平台上的量子计算机",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		machines, err := client.NewTianYanClient(cfg.TianYanOptions(), log).ListMachines(context.Background())
		if err != nil {
			return fmt.Errorf("获取机器列表失败: %w", err)
		}
		if len(machines) == 0 {
			fmt.Println("平台上没有可用的机器。")
			return nil
		}

		fmt.Printf("%-24s  %-6s  %-12s  %s\n", "Name", "Qubits", "Status", "Price")
		fmt.Println(strings.Repeat("─", 56))
		for _, m := range machines {
			mark := ""
			if m.Name == cfg.TianYan.MachineName {
				mark = "  *"
			}
			fmt.Printf("%-24s  %-6d  %-12s  %g%s\n", m.Name, m.Qubits, m.Status, m.Price, mark)
		}
		return nil
	},
}
