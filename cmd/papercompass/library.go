package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"PaperCompass/internal/core"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file.pdf>...",
	Short: "解析 PDF 並加入本地資料庫",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *core.App) error {
			session := "upload"
			var failed int
			for _, path := range args {
				if err := uploadFile(context.Background(), app, session, path, os.Stdout); err != nil {
					fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d 个文件上传失败", failed)
			}
			return nil
		})
	},
}

var listLimit int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "列出本地資料庫中的論文（與比較指令使用同一編號）",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *core.App) error {
			papers, err := app.RecentPapers("list", listLimit)
			if err != nil {
				return err
			}
			if len(papers) == 0 {
				fmt.Println("本地資料庫無論文。")
				return nil
			}
			renderPapers(os.Stdout, papers)
			return nil
		})
	},
}

var (
	exportFormat string
	exportOut    string
	exportLimit  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "導出本地資料庫為 CSV 或 JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportOut == "" {
			exportOut = "papers." + exportFormat
		}
		return withApp(func(app *core.App) error {
			n, err := app.Export(context.Background(), exportFormat, exportOut, exportLimit)
			if err != nil {
				return err
			}
			fmt.Printf("已導出 %d 篇論文到 %s\n", n, exportOut)
			return nil
		})
	},
}

func uploadFile(ctx context.Context, app *core.App, session, path string, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取文件失败: %w", err)
	}
	res, err := app.UploadPDF(ctx, session, filepath.Base(path), data)
	if err != nil {
		return err
	}
	if res.Known {
		fmt.Fprintf(out, "文件 %s 已存在，跳過。\n", res.Name)
		return nil
	}
	fmt.Fprintf(out, "已上傳：%s（摘要來源：%s）\n", res.Title, res.Source)
	return nil
}

func init() {
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "最多列出的篇數，0 表示全部")

	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "导出格式：csv / json")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "输出文件路径（默认 papers.<format>）")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "最多导出的篇数，0 表示全部")

	rootCmd.AddCommand(uploadCmd, listCmd, exportCmd)
}
