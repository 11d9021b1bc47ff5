package gradeentry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/okian/gradebook/internal/adapters/http/client"
	"github.com/okian/gradebook/internal/domain/grading"
	"github.com/okian/gradebook/pkg/logger"
)

// Run executes one grade-entry session and prints a report to out.
func Run(ctx context.Context, cfg *Config, out io.Writer) (stats Stats, err error) {
	stats.StartTime = time.Now()
	defer func() {
		stats.EndTime = time.Now()
		stats.Duration = stats.EndTime.Sub(stats.StartTime)
	}()
	if err := cfg.Validate(); err != nil {
		return stats, err
	}
	log := logger.OrNop().Named("grade-entry")

	c, err := client.New(cfg.BaseURL, client.WithTimeout(cfg.Timeout))
	if err != nil {
		return stats, err
	}
	if cfg.List {
		return stats, List(ctx, c, cfg, out)
	}

	lines, err := ReadScoresFile(cfg.ScoresFile)
	if err != nil {
		return stats, err
	}
	log.Info(ctx, "starting grade entry",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("evaluation", cfg.EvaluationID),
		logger.String("scores", cfg.ScoresFile),
		logger.Int("lines", len(lines)))

	w, err := grading.New(c,
		grading.WithLogger(log),
		grading.WithNotifier(grading.LogNotifier{Logger: log}),
		grading.WithLoadTimeout(cfg.Timeout),
		grading.WithSaveTimeout(cfg.Timeout),
	)
	if err != nil {
		return stats, err
	}
	defer w.Close()

	if err := selectAll(ctx, w, cfg); err != nil {
		return stats, err
	}

	stage(ctx, w, lines, &stats, out, log)

	if cfg.Strict && stats.Rejected() > 0 {
		fmt.Fprintf(out, "%d line(s) rejected; nothing submitted\n", stats.Rejected())
		return stats, ErrInvalidLines
	}
	if !w.CanSubmit() {
		fmt.Fprintln(out, "nothing to submit")
		return stats, rejectedErr(stats)
	}

	res, err := w.Submit(ctx)
	if err != nil {
		return stats, err
	}
	stats.Saved = res.Saved
	fmt.Fprintf(out, "%d grade(s) saved\n", res.Saved)

	if st, err := c.Statistics(ctx, cfg.EvaluationID); err == nil {
		fmt.Fprintf(out, "graded %d/%d, mean %.2f, median %.2f, passed %d\n",
			st.Graded, st.Students, st.Mean, st.Median, st.Passed)
	} else {
		log.Warn(ctx, "statistics unavailable", logger.Error(err))
	}
	return stats, rejectedErr(stats)
}

func rejectedErr(stats Stats) error {
	if stats.Rejected() > 0 {
		return ErrInvalidLines
	}
	return nil
}

// selectAll walks the cascade, waiting for each tier before the next.
func selectAll(ctx context.Context, w *grading.Workflow, cfg *Config) error {
	steps := []struct {
		name string
		sel  func(context.Context, string) (*grading.Pending, error)
		id   string
	}{
		{"curriculum", w.SelectCurriculum, cfg.CurriculumID},
		{"academic year", w.SelectAcademicYear, cfg.AcademicYearID},
		{"schedule", w.SelectSchedule, cfg.ScheduleID},
		{"evaluation", w.SelectEvaluation, cfg.EvaluationID},
	}
	for _, step := range steps {
		p, err := step.sel(ctx, step.id)
		if err != nil {
			return fmt.Errorf("select %s %q: %w", step.name, step.id, err)
		}
		if err := p.Wait(ctx); err != nil {
			return fmt.Errorf("select %s %q: %w", step.name, step.id, err)
		}
	}
	return nil
}

// stage enters every line into the workflow. Keys resolve to an enrollment
// code first, then to a student number.
func stage(ctx context.Context, w *grading.Workflow, lines []ScoreLine, stats *Stats, out io.Writer, log logger.Logger) {
	byNumber := make(map[string]string)
	codes := make(map[string]bool)
	for _, v := range w.RowViews() {
		codes[v.Row.EnrollmentID] = true
		byNumber[v.Row.StudentNumber] = v.Row.EnrollmentID
	}

	for _, l := range lines {
		stats.Lines++
		id := l.Key
		if !codes[id] {
			id = byNumber[l.Key]
		}
		if id == "" {
			stats.Unknown++
			fmt.Fprintf(out, "line %d: unknown student %q\n", l.Line, l.Key)
			continue
		}

		in, err := w.EnterScore(id, l.Raw)
		if err != nil {
			stats.Unknown++
			fmt.Fprintf(out, "line %d: %v\n", l.Line, err)
			if !errors.Is(err, grading.ErrUnknownEnrollment) {
				log.Warn(ctx, "score not staged", logger.Int("line", l.Line), logger.Error(err))
			}
			continue
		}
		switch in.State {
		case grading.InputValid:
			stats.Staged++
			log.Debug(ctx, "score staged", logger.String("enrollment", id), logger.Float64("score", in.Value))
		case grading.InputUngraded:
			stats.Blank++
		case grading.InputInvalid:
			stats.Invalid++
			fmt.Fprintf(out, "line %d: %q for %s: %s\n", l.Line, l.Raw, l.Key, in.Reason)
		}
	}
}

// List prints the options of the deepest tier the ids in cfg reach.
func List(ctx context.Context, c *client.Client, cfg *Config, out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	switch {
	case cfg.EvaluationID != "":
		sheet, err := c.LoadEvaluationSheet(ctx, cfg.EvaluationID)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s (max %g, coefficient %g)\n", sheet.Evaluation.Title, sheet.Evaluation.MaxScore, sheet.Evaluation.Coefficient)
		fmt.Fprintln(tw, "ENROLLMENT\tNUMBER\tNAME\tSCORE\tSTATUS")
		for _, r := range sheet.Students {
			score, status := "-", "-"
			if r.Score != nil {
				score = fmt.Sprintf("%g", *r.Score)
				status = r.Status.Label()
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.EnrollmentID, r.StudentNumber, r.FullName(), score, status)
		}
	case cfg.ScheduleID != "":
		evaluations, err := c.LoadEvaluations(ctx, cfg.ScheduleID)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "ID\tTITLE\tMAX\tCOEFFICIENT\tSTATUS\tDATE")
		for _, e := range evaluations {
			fmt.Fprintf(tw, "%s\t%s\t%g\t%g\t%s\t%s\n", e.ID, e.Title, e.MaxScore, e.Coefficient, e.Status.Label(), e.Date.Format(time.DateOnly))
		}
	case cfg.CurriculumID != "" && cfg.AcademicYearID != "":
		schedules, err := c.LoadSchedules(ctx, cfg.CurriculumID, cfg.AcademicYearID)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tSTART\tEND")
		for _, s := range schedules {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Status.Label(), s.StartDate.Format(time.DateOnly), s.EndDate.Format(time.DateOnly))
		}
	default:
		curricula, err := c.Curricula(ctx)
		if err != nil {
			return err
		}
		years, err := c.AcademicYears(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "CURRICULUM\tNAME")
		for _, cu := range curricula {
			fmt.Fprintf(tw, "%s\t%s\n", cu.ID, cu.Name)
		}
		fmt.Fprintln(tw, "\nYEAR\tLABEL\tCURRENT")
		for _, y := range years {
			fmt.Fprintf(tw, "%s\t%s\t%t\n", y.ID, y.Label, y.Current)
		}
	}
	return nil
}
