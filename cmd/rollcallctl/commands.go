package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/rollcall-api/internal/live"
	"github.com/noah-isme/rollcall-api/internal/repository"
	"github.com/noah-isme/rollcall-api/internal/service"
	"github.com/noah-isme/rollcall-api/internal/viewstate"
	"github.com/noah-isme/rollcall-api/pkg/config"
	"github.com/noah-isme/rollcall-api/pkg/database"
	"github.com/noah-isme/rollcall-api/pkg/logger"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "rollcallctl",
		Short:         "Maintenance commands for the rollcall API",
		SilenceUsage: true,
	}
	root.AddCommand(newMigrateCommand(), newSeedCommand(), newHashPasswordCommand())
	return root
}

func newMigrateCommand() *cobra.Command {
	var statusOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), func(ctx context.Context, _ *config.Config, db *sqlx.DB, logr *zap.Logger) error {
				if !statusOnly {
					if err := database.Migrate(ctx, db, logr); err != nil {
						return err
					}
				}
				version, err := database.CurrentVersion(ctx, db)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema version %d of %d\n", version, database.SchemaVersion)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "print the schema version without migrating")
	return cmd
}

func newSeedCommand() *cobra.Command {
	var weekOf string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create demo classes, students and a week of lessons",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), func(ctx context.Context, cfg *config.Config, db *sqlx.DB, logr *zap.Logger) error {
				if err := database.Migrate(ctx, db, logr); err != nil {
					return err
				}
				loc := cfg.Location()
				monday, err := seedWeek(weekOf, loc)
				if err != nil {
					return err
				}
				created, err := seed(ctx, db, loc, monday, logr)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d classes, %d students, %d lessons from %s\n",
					created.classes, created.students, created.lessons, monday.Format(time.DateOnly))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&weekOf, "week-of", "", "any day of the week to fill, YYYY-MM-DD (default current week)")
	return cmd
}

func newHashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for AUTH_TEACHER_PASSWORD_HASH",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := ""
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("password required as argument or on stdin")
				}
				password = strings.TrimRight(line, "\r\n")
			}
			hash, err := service.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func withDatabase(ctx context.Context, fn func(context.Context, *config.Config, *sqlx.DB, *zap.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	return fn(ctx, cfg, db, logr)
}

func seedWeek(raw string, loc *time.Location) (time.Time, error) {
	day := time.Now().In(loc)
	if raw != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, raw, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("week-of must be YYYY-MM-DD: %w", err)
		}
		day = parsed
	}
	offset := service.ISOWeekday(day.Weekday()) - 1
	return time.Date(day.Year(), day.Month(), day.Day()-offset, 0, 0, 0, 0, loc), nil
}

type seedCounts struct {
	classes  int
	students int
	lessons  int
}

type seedClass struct {
	name     string
	students [][2]string
	lessons  []seedLesson
}

type seedLesson struct {
	subject string
	day     int
	start   string
	end     string
	room    string
}

var demoClasses = []seedClass{
	{
		name: "5A",
		students: [][2]string{
			{"Anna", "Becker"}, {"Ben", "Schulz"}, {"Clara", "Adams"}, {"David", "Zimmer"}, {"Emma", "Wolf"},
		},
		lessons: []seedLesson{
			{"Mathematics", 1, "08:00", "08:45", "101"},
			{"Biology", 2, "09:00", "09:45", "Lab 2"},
			{"Mathematics", 3, "08:00", "08:45", "101"},
			{"History", 5, "10:00", "10:45", "204"},
		},
	},
	{
		name: "7B",
		students: [][2]string{
			{"Felix", "Meyer"}, {"Greta", "Ortiz"}, {"Hugo", "Brandt"}, {"Ida", "Lang"},
		},
		lessons: []seedLesson{
			{"Physics", 1, "10:00", "10:45", "Lab 1"},
			{"Chemistry", 4, "11:00", "11:45", "Lab 1"},
			{"Mathematics", 5, "08:00", "08:45", "102"},
		},
	},
}

func seed(ctx context.Context, db *sqlx.DB, loc *time.Location, monday time.Time, logr *zap.Logger) (seedCounts, error) {
	var counts seedCounts
	broker := live.NewBroker()
	classRepo := repository.NewClassRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classes := service.NewClassService(classRepo, studentRepo, broker, loc, nil, logr)
	students := service.NewStudentService(studentRepo, classRepo, broker, loc, logr)
	lessons := service.NewLessonService(repository.NewLessonRepository(db), repository.NewSubjectRepository(db), classRepo,
		repository.NewTxRunner(db), broker, nil, service.DefaultRecurrenceDays, loc, logr)

	for _, demo := range demoClasses {
		class, err := classes.Create(ctx, service.ClassRequest{Name: demo.name})
		if err != nil {
			return counts, fmt.Errorf("class %s: %w", demo.name, err)
		}
		counts.classes++
		for _, name := range demo.students {
			form := viewstate.StudentForm{ClassID: &class.ID, FirstName: name[0], LastName: name[1]}
			if _, err := students.Create(ctx, form); err != nil {
				return counts, fmt.Errorf("student %s %s: %w", name[0], name[1], err)
			}
			counts.students++
		}
		for _, l := range demo.lessons {
			day := monday.AddDate(0, 0, l.day-1)
			form := viewstate.NewLessonForm(day).
				WithClass(class.ID).
				WithSubject(l.subject).
				WithTimes(l.start, l.end).
				WithRoom(l.room)
			ids, err := lessons.Save(ctx, 0, form, loc)
			if err != nil {
				return counts, fmt.Errorf("lesson %s on %s: %w", l.subject, day.Format(time.DateOnly), err)
			}
			counts.lessons += len(ids)
		}
	}
	return counts, nil
}
