// Package main - ninjactl, консольный инструмент администратора доджо.
//
// Команды работают с той же таблицей учебной программы, что и API сервер:
// - curriculum: печать таблицы (или YAML для CURRICULUM_FILE)
// - bounds / normalize / advance: границы, нормализация и шаг счётчика
// - walk: полный путь от состояния до потолка
// - migrate: схема PostgreSQL
// - watch: живая лента событий прогресса из Redis
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dojo-hub/ninja-dashboard/config"
	"github.com/dojo-hub/ninja-dashboard/internal/domain/progression"
	"github.com/dojo-hub/ninja-dashboard/internal/domain/shared"
	"github.com/dojo-hub/ninja-dashboard/internal/infrastructure/curriculumfile"
	"github.com/dojo-hub/ninja-dashboard/internal/infrastructure/persistence/postgres"
	"github.com/dojo-hub/ninja-dashboard/internal/infrastructure/persistence/redis"
)

const appName = "ninjactl"

// Version задаётся при сборке через -ldflags.
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ROOT
// ══════════════════════════════════════════════════════════════════════════════

// cli - общие флаги всех команд.
type cli struct {
	curriculumFile string
	asJSON         bool
}

func (c *cli) curriculum() (*progression.Curriculum, error) {
	return curriculumfile.Load(c.curriculumFile)
}

func rootCmd() *cobra.Command {
	c := &cli{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Dojo progression ladder tool",
		Long: `ninjactl inspects the progression ladder used by the ninja dashboard.

Every ninja sits at (path, belt, level, lesson). The curriculum table says how
many levels each belt has and how many lessons each level has; cells missing
from the table default to 8.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&c.curriculumFile, "curriculum", os.Getenv("CURRICULUM_FILE"),
		"YAML file with curriculum overrides")
	cmd.PersistentFlags().BoolVar(&c.asJSON, "json", false, "Print JSON instead of text")

	cmd.AddCommand(
		curriculumCmd(c),
		boundsCmd(c),
		normalizeCmd(c),
		advanceCmd(c),
		walkCmd(c),
		migrateCmd(),
		watchCmd(c),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)

	return cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// CURRICULUM
// ══════════════════════════════════════════════════════════════════════════════

func curriculumCmd(c *cli) *cobra.Command {
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "curriculum [path]",
		Short: "Print the curriculum table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			curriculum, err := c.curriculum()
			if err != nil {
				return err
			}

			if asYAML {
				data, err := curriculumfile.Encode(curriculum)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}

			paths := progression.Paths
			if len(args) == 1 {
				path, err := progression.ParsePath(args[0])
				if err != nil {
					return err
				}
				paths = []progression.Path{path}
			}

			if c.asJSON {
				out := make(map[progression.Path]map[progression.Belt][]int, len(paths))
				for _, path := range paths {
					out[path] = resolvedRows(curriculum, path)
				}
				return writeJSON(cmd.OutOrStdout(), out)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PATH\tBELT\tLEVELS\tLESSONS\tSOURCE")
			for _, path := range paths {
				rows := resolvedRows(curriculum, path)
				for _, belt := range progression.BeltOrder {
					source := "table"
					if !curriculum.Configured(path, belt) {
						source = "default"
					}
					lessons := rows[belt]
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
						path, belt, len(lessons), joinInts(lessons), source)
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print rows in the override file format")
	return cmd
}

// resolvedRows - таблица трека с подставленными значениями по умолчанию.
func resolvedRows(c *progression.Curriculum, path progression.Path) map[progression.Belt][]int {
	rows := make(map[progression.Belt][]int, len(progression.BeltOrder))
	for _, belt := range progression.BeltOrder {
		levels := c.MaxLevels(path, belt)
		lessons := make([]int, levels)
		for i := range lessons {
			lessons[i] = c.MaxLessons(path, belt, i+1)
		}
		rows[belt] = lessons
	}
	return rows
}

// ══════════════════════════════════════════════════════════════════════════════
// BOUNDS / NORMALIZE / ADVANCE
// ══════════════════════════════════════════════════════════════════════════════

// stateFlags - сырое состояние, как его вводят в форму.
type stateFlags struct {
	path   string
	belt   string
	level  string
	lesson string
}

func (f *stateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.path, "path", string(progression.PathJavaScript), "Learning path")
	cmd.Flags().StringVar(&f.belt, "belt", progression.FirstBelt.String(), "Belt")
	cmd.Flags().StringVar(&f.level, "level", "1", "Level (clamped into range)")
	cmd.Flags().StringVar(&f.lesson, "lesson", "1", "Lesson (clamped into range)")
}

func (f *stateFlags) pathBelt() (progression.Path, progression.Belt, error) {
	path, err := progression.ParsePath(f.path)
	if err != nil {
		return "", 0, err
	}
	belt, err := progression.ParseBelt(f.belt)
	if err != nil {
		return "", 0, err
	}
	return path, belt, nil
}

func (f *stateFlags) normalize(c *progression.Curriculum) (progression.State, error) {
	path, belt, err := f.pathBelt()
	if err != nil {
		return progression.State{}, err
	}
	return c.Normalize(path, belt, progression.ParseNumber(f.level), progression.ParseNumber(f.lesson)), nil
}

// boundsOutput - верхние границы для выпадающих списков формы.
type boundsOutput struct {
	Path           progression.Path `json:"path"`
	Belt           progression.Belt `json:"belt"`
	Level          int              `json:"level"`
	MaxLevels      int              `json:"max_levels"`
	MaxLessons     int              `json:"max_lessons"`
	LevelsFallback bool             `json:"levels_fallback"`
	LessonFallback bool             `json:"lessons_fallback"`
}

func boundsCmd(c *cli) *cobra.Command {
	var f stateFlags

	cmd := &cobra.Command{
		Use:   "bounds",
		Short: "Print level and lesson bounds for a belt",
		RunE: func(cmd *cobra.Command, args []string) error {
			curriculum, err := c.curriculum()
			if err != nil {
				return err
			}
			path, belt, err := f.pathBelt()
			if err != nil {
				return err
			}

			level := curriculum.ClampLevel(path, belt, progression.ParseNumber(f.level))
			levels := curriculum.LookupLevels(path, belt)
			lessons := curriculum.LookupLessons(path, belt, level)

			out := boundsOutput{
				Path:           path,
				Belt:           belt,
				Level:          level,
				MaxLevels:      levels.Value,
				MaxLessons:     lessons.Value,
				LevelsFallback: levels.Fallback,
				LessonFallback: lessons.Fallback,
			}
			if c.asJSON {
				return writeJSON(cmd.OutOrStdout(), out)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d levels%s, level %d has %d lessons%s\n",
				path, belt,
				out.MaxLevels, fallbackMark(out.LevelsFallback),
				out.Level, out.MaxLessons, fallbackMark(out.LessonFallback))
			return nil
		},
	}

	f.register(cmd)
	return cmd
}

func normalizeCmd(c *cli) *cobra.Command {
	var f stateFlags

	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Clamp a raw position into the curriculum",
		RunE: func(cmd *cobra.Command, args []string) error {
			curriculum, err := c.curriculum()
			if err != nil {
				return err
			}
			state, err := f.normalize(curriculum)
			if err != nil {
				return err
			}

			if c.asJSON {
				return writeJSON(cmd.OutOrStdout(), state)
			}
			fmt.Fprintln(cmd.OutOrStdout(), state)
			return nil
		},
	}

	f.register(cmd)
	return cmd
}

func advanceCmd(c *cli) *cobra.Command {
	var (
		f     stateFlags
		steps int
	)

	cmd := &cobra.Command{
		Use:   "advance",
		Short: "Advance a position by one or more lessons",
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return errors.New("--steps must be at least 1")
			}

			curriculum, err := c.curriculum()
			if err != nil {
				return err
			}
			state, err := f.normalize(curriculum)
			if err != nil {
				return err
			}

			transitions := make([]progression.Transition, 0, steps)
			for i := 0; i < steps; i++ {
				t := curriculum.Step(state)
				transitions = append(transitions, t)
				state = t.To
				if t.AtMaximum {
					break
				}
			}

			if c.asJSON {
				return writeJSON(cmd.OutOrStdout(), transitions)
			}
			for _, t := range transitions {
				printTransition(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}

	f.register(cmd)
	cmd.Flags().IntVarP(&steps, "steps", "n", 1, "Number of lessons to advance")
	return cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// WALK
// ══════════════════════════════════════════════════════════════════════════════

// walkSummary - итог прохода до потолка.
type walkSummary struct {
	From    progression.State        `json:"from"`
	To      progression.State        `json:"to"`
	Steps   int                      `json:"steps"`
	Belts   int                      `json:"belt_rollovers"`
	Levels  int                      `json:"level_rollovers"`
	Total   int                      `json:"total_lessons"`
	History []progression.Transition `json:"history,omitempty"`
}

func walkCmd(c *cli) *cobra.Command {
	var (
		f       stateFlags
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "walk",
		Short: "Advance from a position until the ladder tops out",
		RunE: func(cmd *cobra.Command, args []string) error {
			curriculum, err := c.curriculum()
			if err != nil {
				return err
			}
			start, err := f.normalize(curriculum)
			if err != nil {
				return err
			}

			summary, err := walk(cmd.Context(), curriculum, start, verbose)
			if err != nil {
				return err
			}

			if c.asJSON {
				return writeJSON(cmd.OutOrStdout(), summary)
			}
			out := cmd.OutOrStdout()
			for _, t := range summary.History {
				printTransition(out, t)
			}
			fmt.Fprintf(out, "%s -> %s: %d steps, %d level rollovers, %d belt rollovers (%d lessons on the path)\n",
				summary.From, summary.To, summary.Steps, summary.Levels, summary.Belts, summary.Total)
			return nil
		},
	}

	f.register(cmd)
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print every step")
	return cmd
}

// walk продвигает состояние до потолка. Число шагов ограничено общим
// числом уроков трека, так что цикл всегда конечен.
func walk(ctx context.Context, c *progression.Curriculum, start progression.State, keep bool) (walkSummary, error) {
	total := c.TotalLessons(start.Path)
	summary := walkSummary{From: start, To: start, Total: total}

	state := start
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		t := c.Step(state)
		if t.AtMaximum {
			break
		}
		if keep {
			summary.History = append(summary.History, t)
		}

		summary.Steps++
		switch t.Rollover {
		case progression.RolloverLevel:
			summary.Levels++
		case progression.RolloverBelt:
			summary.Belts++
		}
		state = t.To
	}

	summary.To = state
	return summary, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATE
// ══════════════════════════════════════════════════════════════════════════════

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd.Context(), func(m *postgres.Migrator) error {
					applied, err := m.Migrate(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd.Context(), func(m *postgres.Migrator) error {
					version, err := m.Rollback(cmd.Context())
					if err != nil {
						return err
					}
					if version == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "nothing to roll back")
						return nil
					}
					fmt.Fprintf(cmd.OutOrStdout(), "rolled back migration %d\n", version)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd.Context(), func(m *postgres.Migrator) error {
					migrations, err := m.Status(cmd.Context())
					if err != nil {
						return err
					}
					printMigrations(cmd.OutOrStdout(), migrations)
					return nil
				})
			},
		},
	)

	return cmd
}

func withMigrator(ctx context.Context, fn func(*postgres.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	dsn := cfg.Database.DSN()
	if dsn == "" {
		return errors.New("DB_URL (or DB_HOST and DB_USER) is required")
	}

	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = dsn
	conn, err := postgres.NewConnection(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	return fn(postgres.NewMigrator(conn))
}

func printMigrations(out io.Writer, migrations []postgres.Migration) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tSTATUS")
	for _, m := range migrations {
		status := "pending"
		if m.IsApplied {
			status = "applied " + m.AppliedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%03d\t%s\t%s\n", m.Version, m.Name, status)
	}
	_ = w.Flush()
}

// ══════════════════════════════════════════════════════════════════════════════
// WATCH
// ══════════════════════════════════════════════════════════════════════════════

func watchCmd(c *cli) *cobra.Command {
	var channel string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream progress events published by the dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if channel == "" {
				channel = cfg.Redis.ProgressChannel
			}

			redisCfg := redis.DefaultConfig()
			redisCfg.Host = cfg.Redis.Host
			redisCfg.Port = cfg.Redis.Port
			redisCfg.Password = cfg.Redis.Password
			redisCfg.DB = cfg.Redis.DB
			redisCfg.DialTimeout = cfg.Redis.DialTimeout

			cache, err := redis.NewCache(cmd.Context(), redisCfg)
			if err != nil {
				return err
			}
			defer cache.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(cmd.ErrOrStderr(), "watching %s on %s\n", redis.PubSubChannel(channel), redisCfg.Addr())
			return cache.WatchProgress(cmd.Context(), channel, func(env shared.EventEnvelope, err error) {
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "skipped message: %v\n", err)
					return
				}
				printEnvelope(out, env, c.asJSON)
			})
		},
	}

	cmd.Flags().StringVar(&channel, "channel", "", "Channel name without the pubsub: prefix (default REDIS_PROGRESS_CHANNEL)")
	return cmd
}

func printEnvelope(out io.Writer, env shared.EventEnvelope, asJSON bool) {
	if asJSON {
		_ = json.NewEncoder(out).Encode(env)
		return
	}
	fmt.Fprintf(out, "%s  %-18s ninja=%s  %s\n",
		env.Timestamp.Format("15:04:05"), env.Type, env.AggregateID, env.Payload)
}

// ══════════════════════════════════════════════════════════════════════════════
// OUTPUT
// ══════════════════════════════════════════════════════════════════════════════

func printTransition(out io.Writer, t progression.Transition) {
	if t.AtMaximum {
		fmt.Fprintf(out, "%s: already at maximum\n", t.From)
		return
	}
	fmt.Fprintf(out, "%s -> %s (%s)\n", t.From, t.To, t.Rollover)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fallbackMark(fallback bool) string {
	if fallback {
		return " (default)"
	}
	return ""
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, " ")
}
