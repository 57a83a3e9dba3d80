package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"Q-ITS-Mastery-Backend/internal/client"
	"Q-ITS-Mastery-Backend/internal/model"
	"Q-ITS-Mastery-Backend/internal/quantum"
	"Q-ITS-Mastery-Backend/internal/repository"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "对会话日志文件运行一次掌握度评估",
	Long:  "读取会话日志 (完整的 session_*.json 或作答条目数组)，在量子平台上评估掌握度并输出结果。",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		write, _ := cmd.Flags().GetBool("write")

		cfg, log, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		fs := afero.NewOsFs()
		data, err := afero.ReadFile(fs, args[0])
		if err != nil {
			return fmt.Errorf("读取 %s 失败: %w", args[0], err)
		}
		entries, err := model.ParseSessionEntries(data)
		if err != nil {
			return err
		}
		records, err := model.NewAnswerRecords(entries)
		if err != nil {
			return err
		}

		engine := quantum.NewEngine(cfg.EngineSettings(), client.NewTianYanClient(cfg.TianYanOptions(), log), log)
		est := engine.Evaluate(context.Background(), records)
		if est.Err != nil {
			log.Warn("掌握度评估未成功", zap.Stringer("outcome", est.Outcome), zap.Error(est.Err))
		}

		if err := printJSON(est.Result); err != nil {
			return err
		}
		if !write {
			return nil
		}
		return writeBack(fs, args[0], data, est.Result, log)
	},
}

func init() {
	analyzeCmd.Flags().Bool("write", false, "把结果写回日志文件的 quantum_analysis 字段")
}

// writeBack 只对完整会话日志生效，条目数组没有可写入分析结果的位置
func writeBack(fs afero.Fs, path string, data []byte, result model.MasteryResult, log *zap.Logger) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("%s 不是完整的会话日志，无法写回分析结果", path)
	}
	sessionLog, err := repository.DecodeSessionLog(data)
	if err != nil {
		return err
	}
	sessionLog.QuantumAnalysis = &result

	repo, err := repository.NewSessionLogRepository(fs, filepath.Dir(path), log)
	if err != nil {
		return err
	}
	return repo.Write(filepath.Base(path), sessionLog)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
