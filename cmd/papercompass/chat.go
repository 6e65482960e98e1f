package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"PaperCompass/internal/core"
)

const chatHelp = `輸入自然語言指令，或以下命令：
  :import N     將最近一次網路檢索的第 N 篇加入本地資料庫
  :download N   下載最近一次網路檢索第 N 篇的 PDF
  :upload FILE  上傳 PDF
  :recent       列出本地論文編號
  :help         顯示說明
  :quit         離開`

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "互動式會話，檢索結果可在後續指令中按編號引用",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *core.App) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			return runChat(ctx, app, os.Stdin, os.Stdout)
		})
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(ctx context.Context, app *core.App, in io.Reader, out io.Writer) error {
	session := uuid.NewString()
	fmt.Fprintln(out, headerStyle.Render("PaperCompass")+" "+mutedStyle.Render("會話 "+session[:8]))
	fmt.Fprintln(out, mutedStyle.Render(chatHelp))

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, labelStyle.Render("> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ":") {
			if quit := chatCommand(ctx, app, session, line, out); quit {
				return nil
			}
			continue
		}

		resp, err := app.Handle(ctx, session, line)
		if resp != nil {
			render(out, resp)
		}
		if err != nil && (resp == nil || resp.Message == "") {
			fmt.Fprintln(out, errorStyle.Render(err.Error()))
		}
	}
}

// chatCommand 处理冒号开头的会话命令，返回 true 表示退出
func chatCommand(ctx context.Context, app *core.App, session, line string, out io.Writer) bool {
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "quit", "q", "exit":
		return true
	case "help", "h":
		fmt.Fprintln(out, chatHelp)
	case "recent":
		papers, err := app.RecentPapers(session, 0)
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render(err.Error()))
			return false
		}
		if len(papers) == 0 {
			fmt.Fprintln(out, "本地資料庫無論文。")
			return false
		}
		renderPapers(out, papers)
	case "import":
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			fmt.Fprintln(out, errorStyle.Render("用法：:import N"))
			return false
		}
		res, err := app.ImportResult(ctx, session, n)
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render(err.Error()))
			return false
		}
		if res.Known {
			fmt.Fprintf(out, "論文已存在：%s\n", res.Title)
		} else {
			fmt.Fprintf(out, "已加入本地資料庫：%s\n", res.Title)
		}
	case "download":
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			fmt.Fprintln(out, errorStyle.Render("用法：:download N"))
			return false
		}
		path, err := app.DownloadResult(ctx, session, n)
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render(err.Error()))
			return false
		}
		fmt.Fprintf(out, "已下載：%s\n", path)
	case "upload":
		if arg == "" {
			fmt.Fprintln(out, errorStyle.Render("用法：:upload FILE"))
			return false
		}
		if err := uploadFile(ctx, app, session, arg, out); err != nil {
			var pathErr *os.PathError
			if errors.As(err, &pathErr) {
				fmt.Fprintln(out, errorStyle.Render("找不到文件："+arg))
				return false
			}
			fmt.Fprintln(out, errorStyle.Render(err.Error()))
		}
	default:
		fmt.Fprintln(out, errorStyle.Render("未知命令 :"+name+"，輸入 :help 查看說明"))
	}
	return false
}
