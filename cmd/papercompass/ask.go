package main

import (
	"context"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"PaperCompass/internal/core"
)

var askCmd = &cobra.Command{
	Use:   "ask <指令>",
	Short: "執行一條自然語言指令",
	Long: `ask 以一次性會話執行指令並輸出結果。比較網路檢索結果需要先在同一會話中檢索，
這類連續操作請使用 chat。`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		command := strings.Join(args, " ")
		return withApp(func(app *core.App) error {
			resp, err := app.Handle(context.Background(), uuid.NewString(), command)
			if resp != nil {
				render(os.Stdout, resp)
			}
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
