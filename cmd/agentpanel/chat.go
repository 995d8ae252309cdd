package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BaSui01/agentpanel/agent/discussion"
	"github.com/BaSui01/agentpanel/agent/persistence"
	"github.com/BaSui01/agentpanel/agent/roles"
	"github.com/BaSui01/agentpanel/config"
	"github.com/BaSui01/agentpanel/llm/retry"
	"github.com/BaSui01/agentpanel/types"
)

// =============================================================================
// 💬 chat 命令：终端讨论
// =============================================================================

type chatOptions struct {
	topic    string
	mode     string
	roster   string
	roles    int
	maxTurns int
	verbose  bool
}

func newChatCommand(load func() (*config.Config, error)) *cobra.Command {
	var opts chatOptions

	cmd := &cobra.Command{
		Use:   "chat [topic...]",
		Short: "Run a discussion in the terminal",
		Long: `Starts a discussion on a topic and drives it from the terminal.

Controls:
  Enter          advance one turn
  <text>         speak as "You"
  /mode <mode>   switch between adaptive and round_robin
  /quit          leave the discussion

Example:
  agentpanel chat --topic "Should cities ban cars?" --roster classic
  agentpanel chat 远程办公是否提升了效率 --roles 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.topic == "" {
				opts.topic = strings.Join(args, " ")
			}
			opts.topic = strings.TrimSpace(opts.topic)
			if opts.topic == "" {
				return errors.New("a topic is required (--topic or positional arguments)")
			}

			cfg, err := load()
			if err != nil {
				return err
			}
			return runChat(cmd, cfg, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.topic, "topic", "t", "", "Discussion topic")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "", "Selection mode: adaptive or round_robin (default from config)")
	cmd.Flags().StringVarP(&opts.roster, "roster", "r", "", "Use a built-in roster instead of generated roles ("+strings.Join(roles.RosterNames(), ", ")+")")
	cmd.Flags().IntVarP(&opts.roles, "roles", "n", 0, "Number of roles to generate (default from config)")
	cmd.Flags().IntVar(&opts.maxTurns, "max-turns", 0, "Override the turn limit")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log engine activity to stderr")
	return cmd
}

func runChat(cmd *cobra.Command, cfg *config.Config, opts chatOptions) error {
	logCfg := cfg.Log
	logCfg.Format = "console"
	logCfg.OutputPaths = []string{"stderr"}
	if !opts.verbose {
		logCfg.Level = "warn"
	}
	logger := initLogger(logCfg)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	dcfg := discussionConfig(cfg.Discussion)
	if opts.maxTurns > 0 {
		dcfg.MaxTurns = opts.maxTurns
	}

	provider := newProvider(cfg.LLM, logger)
	dopts := []discussion.Option{
		discussion.WithJudge(discussion.NewLLMJudge(provider, judgeSettings(cfg.LLM))),
		discussion.WithSink(persistence.NewSink(st.store)),
		discussion.WithLogger(logger),
	}
	if opts.mode != "" {
		mode, err := discussion.ParseMode(opts.mode)
		if err != nil {
			return err
		}
		dopts = append(dopts, discussion.WithMode(mode))
	}

	id := uuid.NewString()
	d := discussion.New(id, discussion.NewLLMBackend(provider, speechSettings(cfg.LLM)), dcfg, dopts...)

	if err := st.store.CreateDiscussion(ctx, &persistence.DiscussionRecord{
		ID:     id,
		Topic:  opts.topic,
		Mode:   string(d.Mode()),
		Status: persistence.StatusCreated,
	}); err != nil {
		return fmt.Errorf("record discussion: %w", err)
	}

	var agents []discussion.Agent
	if opts.roster != "" {
		agents, err = roles.RosterByName(opts.roster)
		if err != nil {
			return err
		}
	} else {
		n := opts.roles
		if n <= 0 {
			n = cfg.Discussion.Roles
		}
		fmt.Fprintln(cmd.OutOrStdout(), color.New(color.Faint).Sprintf("Generating %d roles...", n))
		agents = newRoleSource(provider, cfg.LLM, st.cache, logger).GenerateOrFallback(ctx, opts.topic, n)
	}
	registry, err := discussion.NewRegistry(agents...)
	if err != nil {
		return err
	}

	session := newChatSession(d, cmd.InOrStdin(), cmd.OutOrStdout(), newTurnRetryer(cfg.LLM.MaxRetries, cmd.ErrOrStderr(), logger))
	session.onStatus = func(ctx context.Context, status persistence.Status) {
		if err := st.store.UpdateStatus(ctx, id, status); err != nil {
			logger.Warn("failed to update discussion status", zap.String("status", string(status)), zap.Error(err))
		}
	}
	return session.Run(ctx, opts.topic, registry)
}

// turnRetryDelay 首次重试前的等待时间
var turnRetryDelay = time.Second

// newTurnRetryer 只重试可重试的后端失败；持久化失败时轮次已完成，不能重放
func newTurnRetryer(maxRetries int, errOut io.Writer, logger *zap.Logger) retry.Retryer {
	return retry.NewBackoffRetryer(&retry.RetryPolicy{
		MaxRetries:   maxRetries,
		InitialDelay: turnRetryDelay,
		MaxDelay:     10 * turnRetryDelay,
		Multiplier:   2,
		Jitter:       true,
		ShouldRetry: func(err error) bool {
			return types.IsErrorCode(err, types.ErrBackend) && types.IsRetryable(err)
		},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			fmt.Fprintf(errOut, "%s %v (retry %d in %s)\n", color.YellowString("⚠"), err, attempt, delay.Round(time.Millisecond))
		},
	}, logger)
}

// =============================================================================
// 🖨️ 会话循环
// =============================================================================

var speakerPalette = []*color.Color{
	color.New(color.FgCyan, color.Bold),
	color.New(color.FgMagenta, color.Bold),
	color.New(color.FgBlue, color.Bold),
	color.New(color.FgYellow, color.Bold),
	color.New(color.FgRed, color.Bold),
	color.New(color.FgHiCyan, color.Bold),
	color.New(color.FgHiMagenta, color.Bold),
	color.New(color.FgHiBlue, color.Bold),
}

var (
	humanColor  = color.New(color.FgGreen, color.Bold)
	systemColor = color.New(color.Faint)
	promptColor = color.New(color.FgGreen)
)

// chatSession 驱动一个讨论：读取用户输入、推进轮次、打印发言
type chatSession struct {
	d        *discussion.Discussion
	in       *bufio.Scanner
	out      io.Writer
	retryer  retry.Retryer
	colors   map[string]*color.Color
	labels   map[string]string
	onStatus func(ctx context.Context, status persistence.Status)
}

func newChatSession(d *discussion.Discussion, in io.Reader, out io.Writer, retryer retry.Retryer) *chatSession {
	return &chatSession{
		d:       d,
		in:      bufio.NewScanner(in),
		out:     out,
		retryer: retryer,
		colors:  make(map[string]*color.Color),
		labels:  make(map[string]string),
	}
}

// Run 初始化讨论并进入输入循环，直到轮次用尽、/quit 或输入结束
func (s *chatSession) Run(ctx context.Context, topic string, registry *discussion.Registry) error {
	intro, err := s.d.Init(ctx, topic, registry)
	if err != nil && !types.IsErrorCode(err, types.ErrPersistence) {
		return err
	}
	s.warnPersistence(err)

	for i, a := range registry.Agents() {
		s.colors[a.Name] = speakerPalette[i%len(speakerPalette)]
		s.labels[a.Name] = a.Label()
	}
	s.status(ctx, persistence.StatusRunning)

	s.print(intro)
	fmt.Fprintf(s.out, "%s\n", systemColor.Sprintf("Panel: %s | mode: %s | turns: %d",
		strings.Join(registry.Names(), ", "), s.d.Mode(), s.d.Snapshot().MaxTurns))
	fmt.Fprintln(s.out, systemColor.Sprint("Enter = next turn, text = speak, /mode <mode>, /quit"))

	for {
		fmt.Fprint(s.out, promptColor.Sprint("> "))
		if !s.in.Scan() {
			fmt.Fprintln(s.out)
			return s.in.Err()
		}
		line := strings.TrimSpace(s.in.Text())

		switch {
		case line == "":
			done, err := s.advance(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				fmt.Fprintf(s.out, "%s %v\n", color.RedString("✗"), err)
				continue
			}
			if done {
				s.status(ctx, persistence.StatusCompleted)
				fmt.Fprintln(s.out, color.GreenString("✓")+" Discussion complete.")
				return nil
			}

		case line == "/quit" || line == "/exit":
			return nil

		case line == "/mode" || strings.HasPrefix(line, "/mode "):
			s.setMode(strings.TrimSpace(strings.TrimPrefix(line, "/mode")))

		case strings.HasPrefix(line, "/"):
			fmt.Fprintf(s.out, "%s unknown command %q\n", color.RedString("✗"), line)

		default:
			u, err := s.d.InjectHuman(ctx, line)
			if err != nil && !types.IsErrorCode(err, types.ErrPersistence) {
				fmt.Fprintf(s.out, "%s %v\n", color.RedString("✗"), err)
				continue
			}
			s.warnPersistence(err)
			s.print(u)
		}
	}
}

// advance 推进一轮。done 表示讨论已到达轮次上限。
func (s *chatSession) advance(ctx context.Context) (done bool, err error) {
	var last discussion.TurnResult
	_, err = retry.Value(ctx, s.retryer, func(ctx context.Context) (discussion.TurnResult, error) {
		res, err := s.d.Advance(ctx)
		last = res
		return res, err
	})
	if err != nil && !types.IsErrorCode(err, types.ErrPersistence) {
		return false, err
	}
	s.warnPersistence(err)

	if last.Done {
		return true, nil
	}
	s.print(last.Utterance)
	return s.d.State() == discussion.StateCompleted, nil
}

func (s *chatSession) setMode(arg string) {
	if arg == "" {
		fmt.Fprintf(s.out, "%s\n", systemColor.Sprintf("mode: %s", s.d.Mode()))
		return
	}
	mode, err := discussion.ParseMode(arg)
	if err == nil {
		err = s.d.SetMode(mode)
	}
	if err != nil {
		fmt.Fprintf(s.out, "%s %v\n", color.RedString("✗"), err)
		return
	}
	fmt.Fprintf(s.out, "%s mode set to %s\n", color.GreenString("✓"), mode)
}

func (s *chatSession) print(u discussion.Utterance) {
	switch u.Kind {
	case discussion.KindSystem:
		fmt.Fprintln(s.out, systemColor.Sprint(u.Text))
	case discussion.KindHuman:
		fmt.Fprintf(s.out, "%s: %s\n", humanColor.Sprint(discussion.HumanID), u.Text)
	default:
		c, ok := s.colors[u.SpeakerID]
		if !ok {
			c = speakerPalette[0]
		}
		label := s.labels[u.SpeakerID]
		if label == "" {
			label = u.SpeakerID
		}
		fmt.Fprintf(s.out, "%s: %s\n", c.Sprint(label), u.Text)
	}
}

func (s *chatSession) warnPersistence(err error) {
	if err != nil {
		fmt.Fprintf(s.out, "%s transcript not saved: %v\n", color.YellowString("⚠"), err)
	}
}

func (s *chatSession) status(ctx context.Context, status persistence.Status) {
	if s.onStatus != nil {
		s.onStatus(ctx, status)
	}
}
